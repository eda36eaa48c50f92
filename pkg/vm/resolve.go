package vm

import (
	"fmt"

	"github.com/daimatz/gojvm/pkg/classfile"
	"github.com/daimatz/gojvm/pkg/heap"
	"github.com/daimatz/gojvm/pkg/nativebridge"
)

// InvokeMode is the four-way dispatch discipline named by the JVM spec's
// invoke{static,special,virtual,interface} opcodes. The modes differ in
// which class the search starts from (see resolveStartClass), in whether
// static or instance methods match, and in whether superinterfaces are
// searched.
type InvokeMode int

const (
	ModeStatic InvokeMode = iota
	ModeSpecial
	ModeVirtual
	ModeInterface
)

// resolveMethod finds the class and MethodInfo that should run for a call
// in the given mode, starting the search at startClassID.
//
//   - STATIC and SPECIAL both start the search at startClassID (the class
//     named by the call site's constant-pool reference) and never
//     re-dispatch on a receiver's runtime class — SPECIAL's entire point is
//     to invoke the statically-named class's version (superclass calls,
//     private methods, constructors), not whatever an overriding subclass
//     provides.
//   - VIRTUAL and INTERFACE start at startClassID, but the caller is
//     responsible for passing the *receiver's runtime class* as
//     startClassID for these two modes — that is what makes them virtual.
//
// All four modes then walk the superclass chain looking for a matching
// name+descriptor; VIRTUAL and INTERFACE also search each class's
// superinterfaces before moving on to its superclass.
func (vm *VM) resolveMethod(mode InvokeMode, startClassID heap.ClassID, name, descriptor string) (heap.ClassID, *classfile.MethodInfo, error) {
	wantStatic := mode == ModeStatic
	classID := startClassID
	visited := make(map[heap.ClassID]bool)
	for {
		if visited[classID] {
			break
		}
		visited[classID] = true

		entry := vm.Heap.Class(classID)
		if cf, ok := vm.Classpath.Find(entry.Name); ok {
			if m := cf.FindMethod(name, descriptor); m != nil && (m.AccessFlags&classfile.AccStatic != 0) == wantStatic {
				return classID, m, nil
			}
			if mode == ModeInterface || mode == ModeVirtual {
				if id, m, err := vm.resolveFromInterfaces(cf, name, descriptor); err == nil {
					return id, m, nil
				}
			}
		} else if _, ok := vm.Natives.Lookup(nativebridge.MangleName(entry.Name, name)); ok {
			// A bootstrap class with no class-file bytes (java/lang/Object
			// and friends, synthesized by the registry) can still answer a
			// call if the native library implements it directly.
			return classID, &classfile.MethodInfo{
				Name:        name,
				Descriptor:  descriptor,
				AccessFlags: classfile.AccNative,
			}, nil
		}
		if !entry.HasSuperclass {
			break
		}
		classID = entry.SuperclassID
	}
	return 0, nil, vm.noSuchMethodError(fmt.Sprintf("%s.%s%s", vm.Heap.Class(startClassID).Name, name, descriptor))
}

func (vm *VM) resolveFromInterfaces(cf *classfile.ClassFile, name, descriptor string) (heap.ClassID, *classfile.MethodInfo, error) {
	for _, ifName := range cf.InterfaceNames() {
		ifID, err := vm.Registry.Load(ifName, false)
		if err != nil {
			continue
		}
		ifCF, ok := vm.Classpath.Find(ifName)
		if !ok {
			continue
		}
		if m := ifCF.FindMethod(name, descriptor); m != nil {
			return ifID, m, nil
		}
		if id, m, err := vm.resolveFromInterfaces(ifCF, name, descriptor); err == nil {
			return id, m, nil
		}
	}
	return 0, nil, fmt.Errorf("not found in interfaces")
}

// resolveStartClass computes the class a call site's resolution should
// start from, given its mode and (for VIRTUAL/INTERFACE) the receiver's
// runtime class.
func (vm *VM) resolveStartClass(mode InvokeMode, declaredClassID, receiverObjID uint64) (heap.ClassID, error) {
	switch mode {
	case ModeStatic, ModeSpecial:
		return declaredClassID, nil
	default: // ModeVirtual, ModeInterface
		obj, ok := vm.Heap.Object(receiverObjID)
		if !ok {
			return 0, vm.nullPointerException("invoke on null receiver")
		}
		return obj.ClassID, nil
	}
}
