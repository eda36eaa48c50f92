package vm

import (
	"github.com/daimatz/gojvm/pkg/classfile"
	"github.com/daimatz/gojvm/pkg/value"
)

// popArgs pops len(categories) values off the stack in descriptor order,
// using PopWide for category-2 parameters.
func popArgs(stack *value.Stack, categories []bool) []value.Value {
	args := make([]value.Value, len(categories))
	for i := len(categories) - 1; i >= 0; i-- {
		if categories[i] {
			args[i] = stack.PopWide()
		} else {
			args[i] = stack.Pop()
		}
	}
	return args
}

// invoke handles all four invoke{static,special,virtual,interface} opcodes:
// resolve the call-site reference, pop the receiver and arguments, resolve
// the target method per mode, and run it to completion.
func (vm *VM) invoke(frame *Frame, mode InvokeMode) (value.Value, bool, error) {
	idx := frame.ReadU16()
	if mode == ModeInterface {
		frame.ReadU8() // count, redundant with the descriptor
		frame.ReadU8() // reserved, must be 0
	}

	var mref *classfile.MethodRefInfo
	var err error
	if mode == ModeInterface {
		mref, err = classfile.ResolveInterfaceMethodref(frame.Class.ConstantPool, idx)
	} else {
		mref, err = classfile.ResolveMethodref(frame.Class.ConstantPool, idx)
	}
	if err != nil {
		return value.Value{}, false, err
	}

	args := popArgs(frame.Stack, parseParamCategories(mref.Descriptor))

	var receiver value.Value
	if mode != ModeStatic {
		receiver = frame.Stack.Pop()
		if receiver.IsNull() {
			return value.Value{}, false, vm.nullPointerException("invoke " + mref.MethodName + " on null reference")
		}
	}

	declaredClassID, err := vm.loadClass(mref.ClassName, mode == ModeStatic)
	if err != nil {
		return value.Value{}, false, err
	}
	startClassID, err := vm.resolveStartClass(mode, declaredClassID, receiver.Ref)
	if err != nil {
		return value.Value{}, false, err
	}
	resolvedClassID, method, err := vm.resolveMethod(mode, startClassID, mref.MethodName, mref.Descriptor)
	if err != nil {
		return value.Value{}, false, err
	}
	if method.AccessFlags&classfile.AccAbstract != 0 {
		return value.Value{}, false, vm.abstractMethodError(mref.MethodName + mref.Descriptor)
	}

	var fullArgs []value.Value
	if mode == ModeStatic {
		fullArgs = args
	} else {
		fullArgs = append([]value.Value{receiver}, args...)
	}

	cf, _ := vm.Classpath.Find(vm.Heap.Class(resolvedClassID).Name)
	result, err := vm.executeMethod(resolvedClassID, cf, method, fullArgs)
	if err != nil {
		return value.Value{}, false, err
	}
	if !returnsVoid(mref.Descriptor) {
		frame.Stack.Push(result)
	}
	return value.Value{}, false, nil
}
