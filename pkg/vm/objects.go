package vm

import (
	"github.com/daimatz/gojvm/pkg/classfile"
	"github.com/daimatz/gojvm/pkg/heap"
	"github.com/daimatz/gojvm/pkg/value"
)

// collectInstanceFieldDefaults walks classID's superclass chain (root first)
// and returns a fresh Fields map seeded with the JVMS default value for every
// declared non-static field, so a `new`'d object reads correctly before its
// <init> runs.
func (vm *VM) collectInstanceFieldDefaults(classID heap.ClassID) map[string]value.Value {
	var chain []heap.ClassID
	for id := classID; ; {
		chain = append(chain, id)
		entry := vm.Heap.Class(id)
		if !entry.HasSuperclass {
			break
		}
		id = entry.SuperclassID
	}

	fields := make(map[string]value.Value)
	for i := len(chain) - 1; i >= 0; i-- {
		entry := vm.Heap.Class(chain[i])
		cf, ok := vm.Classpath.Find(entry.Name)
		if !ok {
			continue
		}
		for _, f := range cf.Fields {
			if f.AccessFlags&classfile.AccStatic == 0 {
				fields[f.Name] = defaultValueForDescriptor(f.Descriptor)
			}
		}
	}
	return fields
}

// newInstance executes the `new` opcode: resolve the class, initialize it
// (JVMS requires a class be initialized before its first instance is
// created), and allocate a zeroed object.
func (vm *VM) newInstance(frame *Frame) (value.Value, error) {
	idx := frame.ReadU16()
	className, err := classfile.GetClassName(frame.Class.ConstantPool, idx)
	if err != nil {
		return value.Value{}, err
	}
	classID, err := vm.loadClass(className, true)
	if err != nil {
		return value.Value{}, err
	}
	obj := &heap.ObjectInstance{
		ClassID:    classID,
		Fields:     vm.collectInstanceFieldDefaults(classID),
		NativeMeta: make(map[string]heap.NativeMetaValue),
	}
	id := vm.Heap.NewObjectID(obj)
	return value.RefValue(id), nil
}

func (vm *VM) getstatic(frame *Frame) (value.Value, error) {
	idx := frame.ReadU16()
	fref, err := classfile.ResolveFieldref(frame.Class.ConstantPool, idx)
	if err != nil {
		return value.Value{}, err
	}
	classID, err := vm.loadClass(fref.ClassName, true)
	if err != nil {
		return value.Value{}, err
	}
	entry := vm.Heap.Class(classID)
	if fref.ClassName == "java/lang/System" && (fref.FieldName == "out" || fref.FieldName == "err") {
		return vm.systemStreamMirror(entry, fref.FieldName), nil
	}
	declID := vm.findStaticFieldClass(classID, fref.FieldName)
	return vm.Heap.Class(declID).Statics[fref.FieldName], nil
}

// findStaticFieldClass walks classID's superclass chain looking for the
// class whose own class file declares a static field named name, per spec.md
// §4.4's "walk superclass chain to find the declaring slot". Falls back to
// classID itself (e.g. for fields the registry pre-populated without a
// backing class file, such as array pseudo-classes).
func (vm *VM) findStaticFieldClass(classID heap.ClassID, name string) heap.ClassID {
	for id := classID; ; {
		entry := vm.Heap.Class(id)
		if cf, ok := vm.Classpath.Find(entry.Name); ok {
			for _, f := range cf.Fields {
				if f.Name == name && f.AccessFlags&classfile.AccStatic != 0 {
					return id
				}
			}
		}
		if !entry.HasSuperclass {
			return classID
		}
		id = entry.SuperclassID
	}
}

// putstatic resolves its own field reference so it can tell, before popping,
// whether the pushed value is category-1 or category-2.
func (vm *VM) putstatic(frame *Frame) error {
	idx := frame.ReadU16()
	fref, err := classfile.ResolveFieldref(frame.Class.ConstantPool, idx)
	if err != nil {
		return err
	}
	classID, err := vm.loadClass(fref.ClassName, true)
	if err != nil {
		return err
	}
	var v value.Value
	if fieldCategory(fref.Descriptor) {
		v = frame.Stack.PopWide()
	} else {
		v = frame.Stack.Pop()
	}
	declID := vm.findStaticFieldClass(classID, fref.FieldName)
	vm.Heap.Class(declID).Statics[fref.FieldName] = v
	return nil
}

// systemStreamMirror lazily allocates the PrintStream mirror object backing
// java/lang/System.out / .err, tagging it with a NativeMeta "stream" marker
// that pkg/nativebridge's PrintStream handlers branch on. java/lang/System
// has no bytecode supplying an initial value for these statics, so ordinary
// default-value logic would otherwise leave them null forever.
func (vm *VM) systemStreamMirror(entry *heap.ClassEntry, field string) value.Value {
	if existing, ok := entry.Statics[field]; ok {
		return existing
	}
	psClassID, err := vm.Registry.Load("java/io/PrintStream", false)
	if err != nil {
		return value.NullValue()
	}
	tag := "stdout"
	if field == "err" {
		tag = "stderr"
	}
	obj := &heap.ObjectInstance{
		ClassID: psClassID,
		Fields:  make(map[string]value.Value),
		NativeMeta: map[string]heap.NativeMetaValue{
			"stream": {Text: tag, IsText: true},
		},
	}
	id := vm.Heap.NewObjectID(obj)
	v := value.RefValue(id)
	entry.Statics[field] = v
	return v
}

// getfield pops the receiver itself, ahead of reading the field reference —
// the two are independent (one reads the code stream, the other the operand
// stack) so the order only matters for readability.
func (vm *VM) getfield(frame *Frame) (value.Value, error) {
	objRef := frame.Stack.Pop()
	idx := frame.ReadU16()
	fref, err := classfile.ResolveFieldref(frame.Class.ConstantPool, idx)
	if err != nil {
		return value.Value{}, err
	}
	if objRef.IsNull() {
		return value.Value{}, vm.nullPointerException("getfield on null reference: " + fref.FieldName)
	}
	obj, ok := vm.Heap.Object(objRef.Ref)
	if !ok {
		return value.Value{}, vm.nullPointerException("getfield on non-object reference")
	}
	if v, ok := obj.Fields[fref.FieldName]; ok {
		return v, nil
	}
	return defaultValueForDescriptor(fref.Descriptor), nil
}

// putfield resolves the field reference first so it knows whether to pop a
// category-1 or category-2 value off the top of the stack, then pops the
// receiver from beneath it.
func (vm *VM) putfield(frame *Frame) error {
	idx := frame.ReadU16()
	fref, err := classfile.ResolveFieldref(frame.Class.ConstantPool, idx)
	if err != nil {
		return err
	}
	var v value.Value
	if fieldCategory(fref.Descriptor) {
		v = frame.Stack.PopWide()
	} else {
		v = frame.Stack.Pop()
	}
	objRef := frame.Stack.Pop()
	if objRef.IsNull() {
		return vm.nullPointerException("putfield on null reference: " + fref.FieldName)
	}
	obj, ok := vm.Heap.Object(objRef.Ref)
	if !ok {
		return vm.nullPointerException("putfield on non-object reference")
	}
	obj.Fields[fref.FieldName] = v
	return nil
}
