package nativebridge

import (
	"fmt"

	"github.com/daimatz/gojvm/pkg/heap"
	"github.com/daimatz/gojvm/pkg/value"
)

// registerHashMap implements get/put for java.util.HashMap as a pair of
// parallel backing arrays (keys, values) searched linearly — small-N
// programs never notice, and it avoids needing a Go-side hash function
// consistent with hashCode() for every possible key type.
func registerHashMap(t *Table) {
	t.register(MangleName("java/util/HashMap", "<init>"), hashMapInit)
	t.register(MangleName("java/util/HashMap", "get"), hashMapGet)
	t.register(MangleName("java/util/HashMap", "put"), hashMapPut)
}

func hashMapInit(env RuntimeEnv, args []value.Value) (value.Value, error) {
	obj, ok := env.HeapRef().Object(args[0].Ref)
	if !ok {
		return value.Value{}, fmt.Errorf("HashMap receiver is not a live object")
	}
	keys := env.HeapRef().NewArrayID(&heap.ArrayInstance{ElementKind: value.ObjectRef})
	vals := env.HeapRef().NewArrayID(&heap.ArrayInstance{ElementKind: value.ObjectRef})
	obj.Fields["_keys"] = value.ArrValue(keys)
	obj.Fields["_vals"] = value.ArrValue(vals)
	return value.Value{}, nil
}

func hashMapArrays(env RuntimeEnv, receiver value.Value) (*heap.ObjectInstance, *heap.ArrayInstance, *heap.ArrayInstance, error) {
	obj, ok := env.HeapRef().Object(receiver.Ref)
	if !ok {
		return nil, nil, nil, fmt.Errorf("HashMap receiver is not a live object")
	}
	keys, ok := env.HeapRef().Array(obj.Fields["_keys"].Ref)
	if !ok {
		return nil, nil, nil, fmt.Errorf("HashMap receiver not initialized")
	}
	vals, _ := env.HeapRef().Array(obj.Fields["_vals"].Ref)
	return obj, keys, vals, nil
}

func mapKeysEqual(env RuntimeEnv, a, b value.Value) bool {
	if a.Kind != b.Kind && !(a.Kind == value.ObjectRef && b.Kind == value.ObjectRef) {
		return false
	}
	switch a.Kind {
	case value.ObjectRef:
		if a.IsNull() || b.IsNull() {
			return a.IsNull() && b.IsNull()
		}
		if sa, ok := env.StringValue(a.Ref); ok {
			sb, ok := env.StringValue(b.Ref)
			return ok && sa == sb
		}
		objA, okA := env.HeapRef().Object(a.Ref)
		objB, okB := env.HeapRef().Object(b.Ref)
		if okA && okB {
			if va, ok := objA.Fields["value"]; ok {
				if vb, ok := objB.Fields["value"]; ok {
					return va.Raw() == vb.Raw() && va.Kind == vb.Kind
				}
			}
		}
		return a.Ref == b.Ref
	default:
		return a.Raw() == b.Raw()
	}
}

func hashMapGet(env RuntimeEnv, args []value.Value) (value.Value, error) {
	_, keys, vals, err := hashMapArrays(env, args[0])
	if err != nil {
		return value.Value{}, err
	}
	for i, k := range keys.Cells {
		if mapKeysEqual(env, k, args[1]) {
			return vals.Cells[i], nil
		}
	}
	return value.NullValue(), nil
}

func hashMapPut(env RuntimeEnv, args []value.Value) (value.Value, error) {
	_, keys, vals, err := hashMapArrays(env, args[0])
	if err != nil {
		return value.Value{}, err
	}
	for i, k := range keys.Cells {
		if mapKeysEqual(env, k, args[1]) {
			old := vals.Cells[i]
			vals.Cells[i] = args[2]
			return old, nil
		}
	}
	keys.Cells = append(keys.Cells, args[1])
	vals.Cells = append(vals.Cells, args[2])
	return value.NullValue(), nil
}
