package vm

import (
	"fmt"

	"github.com/daimatz/gojvm/pkg/classfile"
	"github.com/daimatz/gojvm/pkg/heap"
	"github.com/daimatz/gojvm/pkg/value"
)

func (vm *VM) newPrimitiveArray(atype uint8, count int32) (value.Value, error) {
	if count < 0 {
		return value.Value{}, vm.negativeArraySizeException(count)
	}
	var kind value.Kind
	var fill value.Value
	switch atype {
	case atBoolean:
		kind, fill = value.Boolean, value.BooleanValue(false)
	case atChar:
		kind, fill = value.Char, value.CharValue(0)
	case atFloat:
		kind, fill = value.Float, value.FloatValue(0)
	case atDouble:
		kind, fill = value.Double, value.DoubleValue(0)
	case atByte:
		kind, fill = value.Byte, value.ByteValue(0)
	case atShort:
		kind, fill = value.Short, value.ShortValue(0)
	case atInt:
		kind, fill = value.Int, value.IntValue(0)
	case atLong:
		kind, fill = value.Long, value.LongValue(0)
	default:
		return value.Value{}, fmt.Errorf("newarray: unknown atype %d", atype)
	}
	cells := make([]value.Value, count)
	for i := range cells {
		cells[i] = fill
	}
	id := vm.Heap.NewArrayID(&heap.ArrayInstance{ElementKind: kind, Cells: cells})
	return value.ArrValue(id), nil
}

func (vm *VM) newReferenceArray(elementType string, count int32) (value.Value, error) {
	if count < 0 {
		return value.Value{}, vm.negativeArraySizeException(count)
	}
	cells := make([]value.Value, count)
	for i := range cells {
		cells[i] = value.NullValue()
	}
	id := vm.Heap.NewArrayID(&heap.ArrayInstance{ElementKind: value.ObjectRef, ElementType: elementType, Cells: cells})
	return value.ArrValue(id), nil
}

// arrayRef resolves arrRef to its backing ArrayInstance without an index
// bounds check — arraylength needs the array itself, not a specific cell.
func (vm *VM) arrayRef(arrRef value.Value) (*heap.ArrayInstance, error) {
	if arrRef.IsNull() {
		return nil, vm.nullPointerException("array access on null reference")
	}
	arr, ok := vm.Heap.Array(arrRef.Ref)
	if !ok {
		return nil, vm.nullPointerException("array access on non-array reference")
	}
	return arr, nil
}

func (vm *VM) arrayAt(arrRef value.Value, index int32) (*heap.ArrayInstance, error) {
	if arrRef.IsNull() {
		return nil, vm.nullPointerException("array access on null reference")
	}
	arr, ok := vm.Heap.Array(arrRef.Ref)
	if !ok {
		return nil, vm.nullPointerException("array access on non-array reference")
	}
	if index < 0 || int(index) >= len(arr.Cells) {
		return nil, vm.arrayIndexOutOfBoundsException(int(index), len(arr.Cells))
	}
	return arr, nil
}

// primitiveArraySigil maps a primitive element Kind to its JVMS field
// descriptor letter, the inverse of classloader's primitiveSigils table.
var primitiveArraySigil = map[value.Kind]byte{
	value.Boolean: 'Z',
	value.Char:    'C',
	value.Float:   'F',
	value.Double:  'D',
	value.Byte:    'B',
	value.Short:   'S',
	value.Int:     'I',
	value.Long:    'J',
}

// arrayTypeName computes the dynamic class name (e.g. "[I", "[Ljava/lang/String;")
// of a single-dimension array instance, for checkcast/instanceof matching
// against array target types.
func arrayTypeName(arr *heap.ArrayInstance) string {
	if arr.ElementKind == value.ObjectRef {
		return "[L" + arr.ElementType + ";"
	}
	return string([]byte{'[', primitiveArraySigil[arr.ElementKind]})
}

// isInstanceOf implements checkcast/instanceof's assignability test for both
// ordinary object references and (single-dimension) array references.
func (vm *VM) isInstanceOf(v value.Value, targetClassName string) bool {
	if v.IsNull() {
		return false
	}
	if v.Kind == value.ArrayRef {
		arr, ok := vm.Heap.Array(v.Ref)
		if !ok {
			return false
		}
		if len(targetClassName) > 0 && targetClassName[0] == '[' {
			if arr.ElementKind != value.ObjectRef {
				return arrayTypeName(arr) == targetClassName
			}
			if len(targetClassName) < 3 || targetClassName[1] != 'L' {
				return false
			}
			targetElem := targetClassName[2 : len(targetClassName)-1]
			elemClassID, err := vm.loadClass(arr.ElementType, false)
			if err != nil {
				return false
			}
			return vm.Registry.IsAssignableFrom(targetElem, elemClassID)
		}
		return targetClassName == "java/lang/Object" ||
			targetClassName == "java/lang/Cloneable" ||
			targetClassName == "java/io/Serializable"
	}
	obj, ok := vm.Heap.Object(v.Ref)
	if !ok {
		return false
	}
	return vm.Registry.IsAssignableFrom(targetClassName, obj.ClassID)
}

func (vm *VM) checkcast(frame *Frame, v value.Value) error {
	idx := frame.ReadU16()
	className, err := classfile.GetClassName(frame.Class.ConstantPool, idx)
	if err != nil {
		return err
	}
	if v.IsNull() || vm.isInstanceOf(v, className) {
		return nil
	}
	return vm.classCastException(fmt.Sprintf("cannot cast to %s", className))
}

func (vm *VM) instanceOf(frame *Frame, v value.Value) (value.Value, error) {
	idx := frame.ReadU16()
	className, err := classfile.GetClassName(frame.Class.ConstantPool, idx)
	if err != nil {
		return value.Value{}, err
	}
	if v.IsNull() {
		return value.IntValue(0), nil
	}
	if vm.isInstanceOf(v, className) {
		return value.IntValue(1), nil
	}
	return value.IntValue(0), nil
}
