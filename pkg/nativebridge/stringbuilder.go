package nativebridge

import (
	"fmt"

	"github.com/daimatz/gojvm/pkg/heap"
	"github.com/daimatz/gojvm/pkg/value"
)

// registerStringBuilder implements java.lang.StringBuilder by accumulating
// appended text in a NativeMeta "buffer" tag on the receiver object, rather
// than as heap-visible Java fields — StringBuilder has no Java-level fields
// a user program can observe.
func registerStringBuilder(t *Table) {
	t.register(MangleName("java/lang/StringBuilder", "<init>"), stringBuilderInit)
	t.register(MangleName("java/lang/StringBuilder", "append"), stringBuilderAppend)
	t.register(MangleName("java/lang/StringBuilder", "toString"), stringBuilderToString)
	t.register(MangleName("java/lang/StringBuilder", "length"), stringBuilderLength)
}

func stringBuilderBuffer(env RuntimeEnv, receiver value.Value) (*heap.ObjectInstance, string, error) {
	obj, ok := env.HeapRef().Object(receiver.Ref)
	if !ok {
		return nil, "", fmt.Errorf("StringBuilder receiver is not a live object")
	}
	return obj, obj.NativeMeta["buffer"].Text, nil
}

func stringBuilderInit(env RuntimeEnv, args []value.Value) (value.Value, error) {
	obj, ok := env.HeapRef().Object(args[0].Ref)
	if !ok {
		return value.Value{}, fmt.Errorf("StringBuilder receiver is not a live object")
	}
	initial := ""
	if len(args) > 1 && args[1].Kind == value.ObjectRef && !args[1].IsNull() {
		if s, ok := env.StringValue(args[1].Ref); ok {
			initial = s
		}
	}
	if obj.NativeMeta == nil {
		obj.NativeMeta = make(map[string]heap.NativeMetaValue)
	}
	obj.NativeMeta["buffer"] = heap.NativeMetaValue{Text: initial, IsText: true}
	return value.Value{}, nil
}

func stringBuilderAppend(env RuntimeEnv, args []value.Value) (value.Value, error) {
	obj, buf, err := stringBuilderBuffer(env, args[0])
	if err != nil {
		return value.Value{}, err
	}
	obj.NativeMeta["buffer"] = heap.NativeMetaValue{Text: buf + formatArg(env, args[1]), IsText: true}
	return args[0], nil
}

func stringBuilderToString(env RuntimeEnv, args []value.Value) (value.Value, error) {
	_, buf, err := stringBuilderBuffer(env, args[0])
	if err != nil {
		return value.Value{}, err
	}
	return newStringObject(env, buf), nil
}

func stringBuilderLength(env RuntimeEnv, args []value.Value) (value.Value, error) {
	_, buf, err := stringBuilderBuffer(env, args[0])
	if err != nil {
		return value.Value{}, err
	}
	return value.IntValue(int32(len(buf))), nil
}
