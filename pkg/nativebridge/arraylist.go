package nativebridge

import (
	"fmt"
	"sort"
	"strings"

	"github.com/daimatz/gojvm/pkg/heap"
	"github.com/daimatz/gojvm/pkg/value"
)

const arrayListInitialCapacity = 8

// registerArrayList implements enough of java.util.ArrayList to back small
// in-memory collections: the element storage is a plain heap.ArrayInstance
// referenced from Fields["_backing"], grown by doubling like the real
// implementation's backing array.
func registerArrayList(t *Table) {
	t.register(MangleName("java/util/ArrayList", "<init>"), arrayListInit)
	t.register(MangleName("java/util/ArrayList", "add"), arrayListAdd)
	t.register(MangleName("java/util/ArrayList", "get"), arrayListGet)
	t.register(MangleName("java/util/ArrayList", "size"), arrayListSize)
	t.register(MangleName("java/util/ArrayList", "sort"), arrayListSort)
}

func arrayListInit(env RuntimeEnv, args []value.Value) (value.Value, error) {
	obj, ok := env.HeapRef().Object(args[0].Ref)
	if !ok {
		return value.Value{}, fmt.Errorf("ArrayList receiver is not a live object")
	}
	backing := env.HeapRef().NewArrayID(&heap.ArrayInstance{
		ElementKind: value.ObjectRef,
		Cells:       make([]value.Value, arrayListInitialCapacity),
	})
	obj.Fields["_backing"] = value.ArrValue(backing)
	obj.Fields["_size"] = value.IntValue(0)
	return value.Value{}, nil
}

func arrayListState(env RuntimeEnv, receiver value.Value) (*heap.ObjectInstance, *heap.ArrayInstance, int32, error) {
	obj, ok := env.HeapRef().Object(receiver.Ref)
	if !ok {
		return nil, nil, 0, fmt.Errorf("ArrayList receiver is not a live object")
	}
	backing, ok := env.HeapRef().Array(obj.Fields["_backing"].Ref)
	if !ok {
		return nil, nil, 0, fmt.Errorf("ArrayList receiver has no backing array")
	}
	return obj, backing, obj.Fields["_size"].I32, nil
}

func arrayListAdd(env RuntimeEnv, args []value.Value) (value.Value, error) {
	obj, backing, size, err := arrayListState(env, args[0])
	if err != nil {
		return value.Value{}, err
	}
	if int(size) == len(backing.Cells) {
		grown := make([]value.Value, len(backing.Cells)*2)
		copy(grown, backing.Cells)
		backing.Cells = grown
	}
	backing.Cells[size] = args[1]
	obj.Fields["_size"] = value.IntValue(size + 1)
	return value.BooleanValue(true), nil
}

func arrayListGet(env RuntimeEnv, args []value.Value) (value.Value, error) {
	_, backing, size, err := arrayListState(env, args[0])
	if err != nil {
		return value.Value{}, err
	}
	idx := args[1].AsInt32()
	if idx < 0 || idx >= size {
		return value.Value{}, env.ThrowNew("java/lang/IndexOutOfBoundsException", fmt.Sprintf("Index %d out of bounds for length %d", idx, size))
	}
	return backing.Cells[idx], nil
}

func arrayListSize(env RuntimeEnv, args []value.Value) (value.Value, error) {
	_, _, size, err := arrayListState(env, args[0])
	if err != nil {
		return value.Value{}, err
	}
	return value.IntValue(size), nil
}

func arrayListSort(env RuntimeEnv, args []value.Value) (value.Value, error) {
	_, backing, size, err := arrayListState(env, args[0])
	if err != nil {
		return value.Value{}, err
	}
	elems := backing.Cells[:size]
	comparator := value.Value{}
	hasComparator := len(args) > 1 && !args[1].IsNull()
	if hasComparator {
		comparator = args[1]
	}
	var sortErr error
	sort.SliceStable(elems, func(i, j int) bool {
		if sortErr != nil {
			return false
		}
		c, err := compareElements(env, comparator, hasComparator, elems[i], elems[j])
		if err != nil {
			sortErr = err
			return false
		}
		return c < 0
	})
	return value.Value{}, sortErr
}

// compareElements orders two ArrayList/Collections elements: via the
// supplied Comparator.compare when present, else natural ordering for
// strings and boxed numerics, else the element's own compareTo.
func compareElements(env RuntimeEnv, comparator value.Value, hasComparator bool, a, b value.Value) (int, error) {
	if hasComparator {
		result, err := env.InvokeVirtual(comparator.Ref, "compare", "(Ljava/lang/Object;Ljava/lang/Object;)I", []value.Value{a, b})
		if err != nil {
			return 0, err
		}
		return int(result.I32), nil
	}
	if sa, ok := env.StringValue(a.Ref); ok {
		if sb, ok := env.StringValue(b.Ref); ok {
			return strings.Compare(sa, sb), nil
		}
	}
	objA, ok := env.HeapRef().Object(a.Ref)
	if ok {
		if va, ok := objA.Fields["value"]; ok {
			objB, _ := env.HeapRef().Object(b.Ref)
			if objB != nil {
				if vb, ok := objB.Fields["value"]; ok {
					return compareNatural(va, vb), nil
				}
			}
		}
	}
	result, err := env.InvokeVirtual(a.Ref, "compareTo", "(Ljava/lang/Object;)I", []value.Value{b})
	if err != nil {
		return 0, err
	}
	return int(result.I32), nil
}

func compareNatural(a, b value.Value) int {
	switch a.Kind {
	case value.Long:
		switch {
		case a.I64 < b.I64:
			return -1
		case a.I64 > b.I64:
			return 1
		default:
			return 0
		}
	case value.Float, value.Double:
		da, db := asDouble(a), asDouble(b)
		switch {
		case da < db:
			return -1
		case da > db:
			return 1
		default:
			return 0
		}
	default:
		ia, ib := a.AsInt32(), b.AsInt32()
		switch {
		case ia < ib:
			return -1
		case ia > ib:
			return 1
		default:
			return 0
		}
	}
}
