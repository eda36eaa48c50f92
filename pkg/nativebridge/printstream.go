package nativebridge

import (
	"fmt"

	"github.com/daimatz/gojvm/pkg/value"
)

// registerPrintStream implements java.io.PrintStream.{println,print}. A
// PrintStream instance is identified by a "stream" NativeMeta tag ("stdout"
// or "stderr") set when java/lang/System.out / .err is first read (see
// vm's getstatic handling); the handler only needs to pick the writer.
func registerPrintStream(t *Table) {
	t.register(MangleName("java/io/PrintStream", "println"), printStreamPrintln)
	t.register(MangleName("java/io/PrintStream", "print"), printStreamPrint)
}

func printStreamWriter(env RuntimeEnv, receiver value.Value) interface {
	Write([]byte) (int, error)
} {
	obj, ok := env.HeapRef().Object(receiver.Ref)
	if ok {
		if meta, ok := obj.NativeMeta["stream"]; ok && meta.Text == "stderr" {
			return env.Err()
		}
	}
	return env.Out()
}

func formatArg(env RuntimeEnv, v value.Value) string {
	switch v.Kind {
	case value.Null:
		return "null"
	case value.ObjectRef:
		if v.IsNull() {
			return "null"
		}
		if s, ok := env.StringValue(v.Ref); ok {
			return s
		}
		result, err := env.InvokeVirtual(v.Ref, "toString", "()Ljava/lang/String;", nil)
		if err == nil {
			if s, ok := env.StringValue(result.Ref); ok {
				return s
			}
		}
		return fmt.Sprintf("object#%d", v.Ref)
	case value.Boolean:
		if v.I32 != 0 {
			return "true"
		}
		return "false"
	case value.Char:
		return string(rune(v.I32))
	case value.Long:
		return fmt.Sprintf("%d", v.I64)
	case value.Float:
		return fmt.Sprintf("%v", v.F32)
	case value.Double:
		return fmt.Sprintf("%v", v.F64)
	default:
		return fmt.Sprintf("%d", v.I32)
	}
}

func printStreamPrintln(env RuntimeEnv, args []value.Value) (value.Value, error) {
	w := printStreamWriter(env, args[0])
	if len(args) < 2 {
		fmt.Fprintln(w)
		return value.Value{}, nil
	}
	fmt.Fprintln(w, formatArg(env, args[1]))
	return value.Value{}, nil
}

func printStreamPrint(env RuntimeEnv, args []value.Value) (value.Value, error) {
	w := printStreamWriter(env, args[0])
	fmt.Fprint(w, formatArg(env, args[1]))
	return value.Value{}, nil
}
