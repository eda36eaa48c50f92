package nativebridge

import (
	"fmt"

	"github.com/daimatz/gojvm/pkg/value"
)

func registerObject(t *Table) {
	t.register(MangleName("java/lang/Object", "hashCode"), objectHashCode)
	t.register(MangleName("java/lang/Object", "toString"), objectToString)
	t.register(MangleName("java/lang/Object", "equals"), objectEquals)
	t.register(MangleName("java/lang/Object", "getClass"), objectGetClass)
}

func objectHashCode(env RuntimeEnv, args []value.Value) (value.Value, error) {
	return value.IntValue(int32(args[0].Ref)), nil
}

func objectToString(env RuntimeEnv, args []value.Value) (value.Value, error) {
	obj, ok := env.HeapRef().Object(args[0].Ref)
	if !ok {
		return value.Value{}, fmt.Errorf("toString: receiver is not a live object")
	}
	className := env.HeapRef().Class(obj.ClassID).Name
	return newStringObject(env, fmt.Sprintf("%s@%x", className, args[0].Ref)), nil
}

func objectEquals(env RuntimeEnv, args []value.Value) (value.Value, error) {
	if args[1].IsNull() {
		return value.BooleanValue(false), nil
	}
	return value.BooleanValue(args[0].Ref == args[1].Ref), nil
}

func objectGetClass(env RuntimeEnv, args []value.Value) (value.Value, error) {
	obj, ok := env.HeapRef().Object(args[0].Ref)
	if !ok {
		return value.Value{}, fmt.Errorf("getClass: receiver is not a live object")
	}
	entry := env.HeapRef().Class(obj.ClassID)
	return value.RefValue(entry.ClassObjectID), nil
}
