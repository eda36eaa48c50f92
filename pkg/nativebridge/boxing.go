package nativebridge

import (
	"fmt"

	"github.com/daimatz/gojvm/pkg/heap"
	"github.com/daimatz/gojvm/pkg/value"
)

// registerBoxing implements valueOf/xxxValue/toString/equals/hashCode for the
// wrapper types, each of which stores its wrapped primitive in a single
// Fields["value"] entry on an ordinary heap object — boxing needs no native
// side table, just one field a user program never sees a descriptor for.
func registerBoxing(t *Table) {
	registerBox(t, "java/lang/Integer", "intValue", value.Int, func(v value.Value) value.Value { return value.IntValue(v.I32) })
	registerBox(t, "java/lang/Long", "longValue", value.Long, func(v value.Value) value.Value { return value.LongValue(v.I64) })
	registerBox(t, "java/lang/Double", "doubleValue", value.Double, func(v value.Value) value.Value { return value.DoubleValue(v.F64) })
	registerBox(t, "java/lang/Float", "floatValue", value.Float, func(v value.Value) value.Value { return value.FloatValue(v.F32) })
	registerBox(t, "java/lang/Short", "shortValue", value.Short, func(v value.Value) value.Value { return value.ShortValue(int16(v.I32)) })
	registerBox(t, "java/lang/Byte", "byteValue", value.Byte, func(v value.Value) value.Value { return value.ByteValue(int8(v.I32)) })
	registerBox(t, "java/lang/Character", "charValue", value.Char, func(v value.Value) value.Value { return value.CharValue(uint16(v.I32)) })
	registerBox(t, "java/lang/Boolean", "booleanValue", value.Boolean, func(v value.Value) value.Value { return value.BooleanValue(v.I32 != 0) })
}

func registerBox(t *Table, className, unboxMethod string, kind value.Kind, unboxedAs func(value.Value) value.Value) {
	t.register(MangleName(className, "valueOf"), func(env RuntimeEnv, args []value.Value) (value.Value, error) {
		return boxNew(env, className, args[0])
	})
	t.register(MangleName(className, unboxMethod), func(env RuntimeEnv, args []value.Value) (value.Value, error) {
		v, err := unboxField(env, args[0])
		if err != nil {
			return value.Value{}, err
		}
		return unboxedAs(v), nil
	})
	t.register(MangleName(className, "toString"), func(env RuntimeEnv, args []value.Value) (value.Value, error) {
		v, err := unboxField(env, args[0])
		if err != nil {
			return value.Value{}, err
		}
		return newStringObject(env, formatArg(env, v)), nil
	})
	t.register(MangleName(className, "hashCode"), func(env RuntimeEnv, args []value.Value) (value.Value, error) {
		v, err := unboxField(env, args[0])
		if err != nil {
			return value.Value{}, err
		}
		return value.IntValue(int32(v.Raw())), nil
	})
	t.register(MangleName(className, "equals"), func(env RuntimeEnv, args []value.Value) (value.Value, error) {
		v, err := unboxField(env, args[0])
		if err != nil {
			return value.Value{}, err
		}
		if args[1].IsNull() {
			return value.BooleanValue(false), nil
		}
		other, err := unboxField(env, args[1])
		if err != nil {
			return value.BooleanValue(false), nil
		}
		return value.BooleanValue(v.Raw() == other.Raw() && v.Kind == other.Kind), nil
	})
}

func boxNew(env RuntimeEnv, className string, primitive value.Value) (value.Value, error) {
	classID, err := env.RegistryRef().Load(className, false)
	if err != nil {
		return value.Value{}, fmt.Errorf("boxing %s: %w", className, err)
	}
	obj := &heap.ObjectInstance{
		ClassID:    classID,
		Fields:     map[string]value.Value{"value": primitive},
		NativeMeta: make(map[string]heap.NativeMetaValue),
	}
	id := env.HeapRef().NewObjectID(obj)
	return value.RefValue(id), nil
}

func unboxField(env RuntimeEnv, receiver value.Value) (value.Value, error) {
	obj, ok := env.HeapRef().Object(receiver.Ref)
	if !ok {
		return value.Value{}, fmt.Errorf("boxed receiver is not a live object")
	}
	v, ok := obj.Fields["value"]
	if !ok {
		return value.Value{}, fmt.Errorf("boxed receiver has no wrapped value")
	}
	return v, nil
}
