// Package vm implements the interpreter: the FrameFactory, MethodResolver,
// ExceptionEngine and the opcode dispatch loop that together execute a
// loaded class's bytecode against the shared Heap and ClassRegistry.
package vm

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/daimatz/gojvm/pkg/classfile"
	"github.com/daimatz/gojvm/pkg/classloader"
	"github.com/daimatz/gojvm/pkg/heap"
	"github.com/daimatz/gojvm/pkg/nativebridge"
	"github.com/daimatz/gojvm/pkg/value"
)

// VM owns the heap, the class registry, and the interpreter's I/O streams.
// It is the RuntimeEnv the native bridge calls back into.
type VM struct {
	Heap      *heap.Heap
	Classpath *classloader.Classpath
	Registry  *classloader.Registry
	Natives   *nativebridge.Table
	Stdout    io.Writer
	Stderr    io.Writer

	callDepth int
}

const maxCallDepth = 2048

// NewVM wires a fresh Heap and Registry to cp, registers the built-in
// native method table, and connects the Registry's <clinit> callback back
// into the interpreter (done here, not in pkg/classloader, to avoid an
// import cycle between classloader and vm).
func NewVM(cp *classloader.Classpath) *VM {
	h := heap.New()
	reg := classloader.NewRegistry(h, cp)
	vm := &VM{
		Heap:      h,
		Classpath: cp,
		Registry:  reg,
		Natives:   nativebridge.NewTable(),
		Stdout:    os.Stdout,
		Stderr:    os.Stderr,
	}
	reg.RunClinit = vm.runClinit
	return vm
}

// loadClass wraps Registry.Load, translating a *classloader.NoClassDefFoundError
// into a catchable java/lang/NoClassDefFoundError so bytecode-reachable call
// sites (new, getstatic/putstatic, invoke*, checkcast) surface linkage
// failures the JVMS way instead of aborting the whole run.
func (vm *VM) loadClass(name string, initialize bool) (heap.ClassID, error) {
	id, err := vm.Registry.Load(name, initialize)
	if err != nil {
		var ncdfe *classloader.NoClassDefFoundError
		if errors.As(err, &ncdfe) {
			return 0, vm.noClassDefFoundError(ncdfe.ClassName)
		}
		return 0, err
	}
	return id, nil
}

func (vm *VM) runClinit(classID heap.ClassID) error {
	entry := vm.Heap.Class(classID)
	if entry.IsArrayType || entry.IsPrimitiveType {
		return nil
	}
	cf, ok := vm.Classpath.Find(entry.Name)
	if !ok {
		return nil // synthesized root class (java/lang/Object): no <clinit>
	}
	method := cf.FindMethod("<clinit>", "()V")
	if method == nil {
		return nil
	}
	_, err := vm.executeMethod(classID, cf, method, nil)
	return err
}

// RunMain loads mainClass, initializes it, and executes its
// `public static void main(String[])`, passing args as a java/lang/String[].
func (vm *VM) RunMain(mainClass string, args []string) error {
	classID, err := vm.Registry.Load(mainClass, true)
	if err != nil {
		return err
	}
	cf, ok := vm.Classpath.Find(mainClass)
	if !ok {
		return fmt.Errorf("main class %s has no bytecode (cannot run a synthesized class)", mainClass)
	}
	method := cf.FindMethod("main", "([Ljava/lang/String;)V")
	if method == nil {
		return fmt.Errorf("class %s has no main([Ljava/lang/String;)V method", mainClass)
	}

	argv := make([]value.Value, len(args))
	for i, a := range args {
		argv[i] = vm.internString(a)
	}
	arr := &heap.ArrayInstance{ElementKind: value.ObjectRef, ElementType: "java/lang/String", Cells: argv}
	arrID := vm.Heap.NewArrayID(arr)

	_, err = vm.executeMethod(classID, cf, method, []value.Value{value.ArrValue(arrID)})
	if err != nil {
		if te, ok := err.(*ThrownException); ok {
			return fmt.Errorf("exception in thread \"main\" %s", te.ClassName)
		}
		return err
	}
	return nil
}

// internString returns the Value referencing the heap's interned
// java/lang/String for s, allocating it (and its backing object) on first
// use.
func (vm *VM) internString(s string) value.Value {
	id := vm.Heap.Intern(s, func() *heap.ObjectInstance {
		classID, _ := vm.Registry.Load("java/lang/String", false)
		return &heap.ObjectInstance{
			Fields: make(map[string]value.Value),
			NativeMeta: map[string]heap.NativeMetaValue{
				"string_value": {Text: s, IsText: true},
			},
			ClassID: classID,
		}
	})
	return value.RefValue(id)
}

// stringOf returns the Go string backing a java/lang/String object, if id
// refers to a String object (interned or not).
func (vm *VM) stringOf(id uint64) (string, bool) {
	obj, ok := vm.Heap.Object(id)
	if !ok {
		return "", false
	}
	meta, ok := obj.NativeMeta["string_value"]
	if !ok || !meta.IsText {
		return "", false
	}
	return meta.Text, true
}

// executeMethod runs a single method activation to completion, returning
// its return value (zero Value for void) or a propagating error — either a
// *ThrownException (uncaught Java exception) or an internal Go error.
func (vm *VM) executeMethod(classID heap.ClassID, cf *classfile.ClassFile, method *classfile.MethodInfo, args []value.Value) (value.Value, error) {
	vm.callDepth++
	defer func() { vm.callDepth-- }()
	if vm.callDepth > maxCallDepth {
		return value.Value{}, fmt.Errorf("stack overflow: call depth exceeded %d", maxCallDepth)
	}

	if method.AccessFlags&classfile.AccNative != 0 {
		return vm.invokeNative(classID, cf, method, args)
	}
	qualifiedName := vm.Heap.Class(classID).Name + "." + method.Name + method.Descriptor
	if method.Code == nil {
		return value.Value{}, fmt.Errorf("method %s has no Code attribute and is not native", qualifiedName)
	}

	frame := NewFrame(classID, cf, method)
	placeArgs(frame.Locals, args)

	for {
		instrPC := frame.PC
		if instrPC >= len(frame.Code) {
			return value.Value{}, fmt.Errorf("fell off the end of method %s", qualifiedName)
		}
		opcode := frame.Code[frame.PC]
		frame.PC++

		retVal, hasReturn, err := vm.step(frame, opcode)
		if err != nil {
			if te, ok := err.(*ThrownException); ok {
				if handlerPC, found := vm.findHandler(frame, instrPC, te); found {
					frame.Stack.Clear()
					frame.Stack.Push(value.RefValue(te.ObjectID))
					frame.PC = handlerPC
					continue
				}
			}
			return value.Value{}, err
		}
		if hasReturn {
			return retVal, nil
		}
	}
}

// placeArgs copies args into locals starting at index 0, widening category-2
// values (long/double) across two consecutive slots.
func placeArgs(locals *value.Locals, args []value.Value) {
	idx := 0
	for _, a := range args {
		if a.IsCategory2() {
			locals.SetWide(idx, a)
			idx += 2
		} else {
			locals.Set(idx, a)
			idx++
		}
	}
}

// invokeNative dispatches a native method either to the built-in table
// (keyed by mangled name, full Value/heap access) or, failing that, to a
// caller-registered Classpath native (the minimal uint64 ABI from spec §6).
func (vm *VM) invokeNative(classID heap.ClassID, cf *classfile.ClassFile, method *classfile.MethodInfo, args []value.Value) (value.Value, error) {
	className := vm.Heap.Class(classID).Name
	mangled := nativebridge.MangleName(className, method.Name)

	if handler, ok := vm.Natives.Lookup(mangled); ok {
		return handler(vm, args)
	}
	if fn, ok := vm.Classpath.NativeMethod(mangled); ok {
		rawArgs := make([]uint64, len(args))
		for i, a := range args {
			rawArgs[i] = a.Raw()
		}
		result, err := fn(rawArgs)
		if err != nil {
			return value.Value{}, fmt.Errorf("native method %s: %w", mangled, err)
		}
		if method.Descriptor[len(method.Descriptor)-1] == 'V' && len(method.Descriptor) >= 2 && method.Descriptor[len(method.Descriptor)-2] == ')' {
			return value.Value{}, nil
		}
		return value.IntValue(int32(result)), nil
	}
	e, err := vm.throwNew("java/lang/UnsatisfiedLinkError", mangled)
	if err != nil {
		return value.Value{}, err
	}
	return value.Value{}, e
}

var _ nativebridge.RuntimeEnv = (*VM)(nil)

// The following methods satisfy nativebridge.RuntimeEnv, giving native
// handlers controlled access to the heap, registry, and I/O streams without
// importing pkg/vm (which would cycle back into pkg/nativebridge).

func (vm *VM) HeapRef() *heap.Heap            { return vm.Heap }
func (vm *VM) RegistryRef() *classloader.Registry { return vm.Registry }
func (vm *VM) Out() io.Writer                 { return vm.Stdout }
func (vm *VM) Err() io.Writer                 { return vm.Stderr }
func (vm *VM) InternString(s string) value.Value { return vm.internString(s) }
func (vm *VM) StringValue(objID uint64) (string, bool) { return vm.stringOf(objID) }
func (vm *VM) ThrowNew(className, message string) error {
	e, err := vm.throwNew(className, message)
	if err != nil {
		return err
	}
	return e
}

// MainThreadID returns the ObjectID of the java/lang/Thread mirror for this
// process's single logical thread of execution (spec §4.6's
// get_main_thread()), creating and marking it alive on first use. Every
// Thread.currentThread() call resolves to this same object, since the
// cooperative scheduler never runs more than one.
func (vm *VM) MainThreadID() uint64 {
	if vm.Heap.MainThread != 0 {
		return vm.Heap.MainThread
	}
	classID, err := vm.Registry.Load("java/lang/Thread", true)
	if err != nil {
		return 0
	}
	obj := &heap.ObjectInstance{
		ClassID:    classID,
		Fields:     map[string]value.Value{"is_alive": value.BooleanValue(true)},
		NativeMeta: make(map[string]heap.NativeMetaValue),
	}
	id := vm.Heap.NewObjectID(obj)
	vm.Heap.MainThread = id
	return id
}

func (vm *VM) InvokeVirtual(objID uint64, methodName, descriptor string, args []value.Value) (value.Value, error) {
	obj, ok := vm.Heap.Object(objID)
	if !ok {
		return value.Value{}, vm.nullPointerException("invoke on null receiver")
	}
	classID, method, err := vm.resolveMethod(ModeVirtual, obj.ClassID, methodName, descriptor)
	if err != nil {
		return value.Value{}, err
	}
	cf, _ := vm.Classpath.Find(vm.Heap.Class(classID).Name)
	full := append([]value.Value{value.RefValue(objID)}, args...)
	return vm.executeMethod(classID, cf, method, full)
}
