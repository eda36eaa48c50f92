package vm

import (
	"fmt"

	"github.com/daimatz/gojvm/pkg/classfile"
	"github.com/daimatz/gojvm/pkg/heap"
	"github.com/daimatz/gojvm/pkg/value"
)

// ThrownException is the error type used to propagate a live Java exception
// (as opposed to an internal Go fault) up through executeMethod. It wraps the
// heap object id of the Throwable instance so handler matching can inspect
// its runtime class via the ClassRegistry.
type ThrownException struct {
	ObjectID  uint64
	ClassName string
}

func (e *ThrownException) Error() string {
	return fmt.Sprintf("uncaught exception: %s", e.ClassName)
}

// throwNew allocates a new instance of className (initializing it first, as
// any class reference does), sets its "message" field if message != "", and
// returns it wrapped as a ThrownException ready to propagate.
func (vm *VM) throwNew(className, message string) (*ThrownException, error) {
	classID, err := vm.Registry.Load(className, true)
	if err != nil {
		return nil, fmt.Errorf("constructing %s: %w", className, err)
	}
	obj := &heap.ObjectInstance{
		ClassID:    classID,
		Fields:     make(map[string]value.Value),
		NativeMeta: make(map[string]heap.NativeMetaValue),
	}
	if message != "" {
		obj.Fields["message"] = vm.internString(message)
	}
	objID := vm.Heap.NewObjectID(obj)
	return &ThrownException{ObjectID: objID, ClassName: className}, nil
}

func (vm *VM) nullPointerException(reason string) error {
	e, err := vm.throwNew("java/lang/NullPointerException", reason)
	if err != nil {
		return err
	}
	return e
}

func (vm *VM) arithmeticException(reason string) error {
	e, err := vm.throwNew("java/lang/ArithmeticException", reason)
	if err != nil {
		return err
	}
	return e
}

func (vm *VM) arrayIndexOutOfBoundsException(index, length int) error {
	e, err := vm.throwNew("java/lang/ArrayIndexOutOfBoundsException", fmt.Sprintf("%d", index))
	if err != nil {
		return err
	}
	return e
}

func (vm *VM) classCastException(reason string) error {
	e, err := vm.throwNew("java/lang/ClassCastException", reason)
	if err != nil {
		return err
	}
	return e
}

func (vm *VM) negativeArraySizeException(size int32) error {
	e, err := vm.throwNew("java/lang/NegativeArraySizeException", fmt.Sprintf("%d", size))
	if err != nil {
		return err
	}
	return e
}

func (vm *VM) noSuchMethodError(reason string) error {
	e, err := vm.throwNew("java/lang/NoSuchMethodError", reason)
	if err != nil {
		return err
	}
	return e
}

func (vm *VM) noSuchFieldError(reason string) error {
	e, err := vm.throwNew("java/lang/NoSuchFieldError", reason)
	if err != nil {
		return err
	}
	return e
}

func (vm *VM) abstractMethodError(reason string) error {
	e, err := vm.throwNew("java/lang/AbstractMethodError", reason)
	if err != nil {
		return err
	}
	return e
}

func (vm *VM) noClassDefFoundError(reason string) error {
	e, err := vm.throwNew("java/lang/NoClassDefFoundError", reason)
	if err != nil {
		return err
	}
	return e
}

// findHandler searches method's exception table for a handler that covers
// instrPC and whose catch type is assignable from the thrown object's
// runtime class (or is the catch-all/finally entry, CatchType == 0).
// Handlers are tried in declaration order, matching JVMS 4.7.3's requirement
// that the table be searched top to bottom.
func (vm *VM) findHandler(frame *Frame, instrPC int, thrown *ThrownException) (int, bool) {
	code := frame.Method.Code
	if code == nil {
		return 0, false
	}
	for _, h := range code.ExceptionHandlers {
		if instrPC < int(h.StartPC) || instrPC >= int(h.EndPC) {
			continue
		}
		if h.CatchType == 0 {
			return int(h.HandlerPC), true
		}
		catchName, err := classfile.GetClassName(frame.Class.ConstantPool, h.CatchType)
		if err != nil {
			continue
		}
		if vm.Registry.IsAssignableFrom(catchName, vm.objectClassID(thrown.ObjectID)) {
			return int(h.HandlerPC), true
		}
	}
	return 0, false
}

func (vm *VM) objectClassID(objID uint64) heap.ClassID {
	obj, ok := vm.Heap.Object(objID)
	if !ok {
		return 0
	}
	return obj.ClassID
}
