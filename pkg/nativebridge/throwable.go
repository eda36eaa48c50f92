package nativebridge

import (
	"fmt"

	"github.com/daimatz/gojvm/pkg/value"
)

func registerThrowable(t *Table) {
	t.register(MangleName("java/lang/Throwable", "<init>"), throwableInit)
	t.register(MangleName("java/lang/Throwable", "getMessage"), throwableGetMessage)
}

// throwableInit backs every built-in exception/error's no-arg and
// single-String-message constructors — user bytecode's own `new
// FooException; dup; ldc "x"; invokespecial <init>(Ljava/lang/String;)V`
// reaches this the same way vm.throwNew's internally raised exceptions do,
// so both paths leave the same "message" field for getMessage to read.
func throwableInit(env RuntimeEnv, args []value.Value) (value.Value, error) {
	obj, ok := env.HeapRef().Object(args[0].Ref)
	if !ok {
		return value.Value{}, fmt.Errorf("<init>: receiver is not a live object")
	}
	if len(args) > 1 && args[1].Kind == value.ObjectRef && !args[1].IsNull() {
		obj.Fields["message"] = args[1]
	}
	return value.Value{}, nil
}

// throwableGetMessage returns the "message" field throwNew (or throwableInit)
// stashed on the receiver when it was constructed, or null if none was
// given — matching java/lang/Throwable's own no-detail-message default.
func throwableGetMessage(env RuntimeEnv, args []value.Value) (value.Value, error) {
	obj, ok := env.HeapRef().Object(args[0].Ref)
	if !ok {
		return value.Value{}, fmt.Errorf("getMessage: receiver is not a live object")
	}
	if msg, ok := obj.Fields["message"]; ok {
		return msg, nil
	}
	return value.NullValue(), nil
}
