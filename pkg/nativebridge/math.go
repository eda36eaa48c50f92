package nativebridge

import (
	"math"

	"github.com/daimatz/gojvm/pkg/value"
)

// registerMath implements the handful of java.lang.Math statics the runtime
// needs: sqrt and pow operate on doubles, while abs, min and max switch on
// the argument's Kind (natives carry no descriptor, so their overloads are
// told apart at runtime).
func registerMath(t *Table) {
	t.register(MangleName("java/lang/Math", "sqrt"), mathUnary(math.Sqrt))
	t.register(MangleName("java/lang/Math", "abs"), mathAbs)
	t.register(MangleName("java/lang/Math", "pow"), mathPow)
	t.register(MangleName("java/lang/Math", "min"), mathMin)
	t.register(MangleName("java/lang/Math", "max"), mathMax)
}

func asDouble(v value.Value) float64 {
	switch v.Kind {
	case value.Double:
		return v.F64
	case value.Float:
		return float64(v.F32)
	case value.Long:
		return float64(v.I64)
	default:
		return float64(v.AsInt32())
	}
}

func mathUnary(fn func(float64) float64) Handler {
	return func(env RuntimeEnv, args []value.Value) (value.Value, error) {
		return value.DoubleValue(fn(asDouble(args[0]))), nil
	}
}

func mathAbs(env RuntimeEnv, args []value.Value) (value.Value, error) {
	v := args[0]
	switch v.Kind {
	case value.Int, value.Byte, value.Short, value.Char, value.Boolean:
		n := v.AsInt32()
		if n < 0 {
			n = -n
		}
		return value.IntValue(n), nil
	case value.Long:
		n := v.I64
		if n < 0 {
			n = -n
		}
		return value.LongValue(n), nil
	case value.Float:
		return value.FloatValue(float32(math.Abs(float64(v.F32)))), nil
	default:
		return value.DoubleValue(math.Abs(v.F64)), nil
	}
}

func mathPow(env RuntimeEnv, args []value.Value) (value.Value, error) {
	return value.DoubleValue(math.Pow(asDouble(args[0]), asDouble(args[1]))), nil
}

func mathMin(env RuntimeEnv, args []value.Value) (value.Value, error) {
	a, b := args[0], args[1]
	switch a.Kind {
	case value.Long:
		if a.I64 < b.I64 {
			return a, nil
		}
		return b, nil
	case value.Float, value.Double:
		if asDouble(a) < asDouble(b) {
			return a, nil
		}
		return b, nil
	default:
		if a.AsInt32() < b.AsInt32() {
			return a, nil
		}
		return b, nil
	}
}

func mathMax(env RuntimeEnv, args []value.Value) (value.Value, error) {
	a, b := args[0], args[1]
	switch a.Kind {
	case value.Long:
		if a.I64 > b.I64 {
			return a, nil
		}
		return b, nil
	case value.Float, value.Double:
		if asDouble(a) > asDouble(b) {
			return a, nil
		}
		return b, nil
	default:
		if a.AsInt32() > b.AsInt32() {
			return a, nil
		}
		return b, nil
	}
}
