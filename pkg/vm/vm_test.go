package vm

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/daimatz/gojvm/pkg/classfile"
	"github.com/daimatz/gojvm/pkg/classloader"
	"github.com/daimatz/gojvm/pkg/heap"
	"github.com/daimatz/gojvm/pkg/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The helpers below hand-assemble minimal .class files so these tests drive
// the interpreter the way a real javac-compiled program would, without
// needing an actual javac or a fixture directory of .class files.

type fieldSpec struct {
	name, desc  string
	accessFlags uint16
}

type methodSpec struct {
	name, desc          string
	accessFlags         uint16
	maxStack, maxLocals uint16
	code                []byte
	handlers            []classfile.ExceptionHandler
}

type poolWriter func(*bytes.Buffer)

// classBuilder accumulates constant pool entries and the fields/methods of a
// single class, then serializes everything to the JVMS chapter 4 binary
// format so it can be fed straight to classfile.Parse via Classpath.AddClass.
type classBuilder struct {
	entries   []poolWriter
	utf8Cache map[string]uint16
}

func newClassBuilder() *classBuilder {
	return &classBuilder{utf8Cache: make(map[string]uint16)}
}

func (b *classBuilder) add(w poolWriter) uint16 {
	b.entries = append(b.entries, w)
	return uint16(len(b.entries))
}

func (b *classBuilder) utf8(s string) uint16 {
	if idx, ok := b.utf8Cache[s]; ok {
		return idx
	}
	idx := b.add(func(buf *bytes.Buffer) {
		buf.WriteByte(classfile.TagUtf8)
		binary.Write(buf, binary.BigEndian, uint16(len(s)))
		buf.WriteString(s)
	})
	b.utf8Cache[s] = idx
	return idx
}

func (b *classBuilder) class(name string) uint16 {
	nameIdx := b.utf8(name)
	return b.add(func(buf *bytes.Buffer) {
		buf.WriteByte(classfile.TagClass)
		binary.Write(buf, binary.BigEndian, nameIdx)
	})
}

func (b *classBuilder) nameAndType(name, desc string) uint16 {
	nameIdx := b.utf8(name)
	descIdx := b.utf8(desc)
	return b.add(func(buf *bytes.Buffer) {
		buf.WriteByte(classfile.TagNameAndType)
		binary.Write(buf, binary.BigEndian, nameIdx)
		binary.Write(buf, binary.BigEndian, descIdx)
	})
}

func (b *classBuilder) methodref(className, name, desc string) uint16 {
	classIdx := b.class(className)
	natIdx := b.nameAndType(name, desc)
	return b.add(func(buf *bytes.Buffer) {
		buf.WriteByte(classfile.TagMethodref)
		binary.Write(buf, binary.BigEndian, classIdx)
		binary.Write(buf, binary.BigEndian, natIdx)
	})
}

func (b *classBuilder) fieldref(className, name, desc string) uint16 {
	classIdx := b.class(className)
	natIdx := b.nameAndType(name, desc)
	return b.add(func(buf *bytes.Buffer) {
		buf.WriteByte(classfile.TagFieldref)
		binary.Write(buf, binary.BigEndian, classIdx)
		binary.Write(buf, binary.BigEndian, natIdx)
	})
}

func (b *classBuilder) stringConst(s string) uint16 {
	strIdx := b.utf8(s)
	return b.add(func(buf *bytes.Buffer) {
		buf.WriteByte(classfile.TagString)
		binary.Write(buf, binary.BigEndian, strIdx)
	})
}

// build serializes the accumulated constant pool plus fields and methods
// into a complete class file, rooted at superName (java/lang/Object if
// empty matches only the true root — tests always pass an explicit super).
func (b *classBuilder) build(thisName, superName string, fields []fieldSpec, methods []methodSpec) []byte {
	thisIdx := b.class(thisName)
	var superIdx uint16
	if superName != "" {
		superIdx = b.class(superName)
	}

	type fieldEntry struct {
		nameIdx, descIdx, access uint16
	}
	fieldEntries := make([]fieldEntry, len(fields))
	for i, f := range fields {
		fieldEntries[i] = fieldEntry{b.utf8(f.name), b.utf8(f.desc), f.accessFlags}
	}

	type methodEntry struct {
		nameIdx, descIdx, access uint16
		spec                     methodSpec
	}
	methodEntries := make([]methodEntry, len(methods))
	for i, m := range methods {
		methodEntries[i] = methodEntry{b.utf8(m.name), b.utf8(m.desc), m.accessFlags, m}
	}
	codeAttrNameIdx := b.utf8("Code")

	var out bytes.Buffer
	binary.Write(&out, binary.BigEndian, uint32(0xCAFEBABE))
	binary.Write(&out, binary.BigEndian, uint16(0))
	binary.Write(&out, binary.BigEndian, uint16(52))
	binary.Write(&out, binary.BigEndian, uint16(len(b.entries)+1))
	for _, w := range b.entries {
		w(&out)
	}
	binary.Write(&out, binary.BigEndian, uint16(classfile.AccPublic|classfile.AccSuper))
	binary.Write(&out, binary.BigEndian, thisIdx)
	binary.Write(&out, binary.BigEndian, superIdx)
	binary.Write(&out, binary.BigEndian, uint16(0)) // interfaces

	binary.Write(&out, binary.BigEndian, uint16(len(fieldEntries)))
	for _, f := range fieldEntries {
		binary.Write(&out, binary.BigEndian, f.access)
		binary.Write(&out, binary.BigEndian, f.nameIdx)
		binary.Write(&out, binary.BigEndian, f.descIdx)
		binary.Write(&out, binary.BigEndian, uint16(0)) // attributes
	}

	binary.Write(&out, binary.BigEndian, uint16(len(methodEntries)))
	for _, m := range methodEntries {
		binary.Write(&out, binary.BigEndian, m.access)
		binary.Write(&out, binary.BigEndian, m.nameIdx)
		binary.Write(&out, binary.BigEndian, m.descIdx)
		binary.Write(&out, binary.BigEndian, uint16(1)) // Code only

		var codeAttr bytes.Buffer
		binary.Write(&codeAttr, binary.BigEndian, m.spec.maxStack)
		binary.Write(&codeAttr, binary.BigEndian, m.spec.maxLocals)
		binary.Write(&codeAttr, binary.BigEndian, uint32(len(m.spec.code)))
		codeAttr.Write(m.spec.code)
		binary.Write(&codeAttr, binary.BigEndian, uint16(len(m.spec.handlers)))
		for _, h := range m.spec.handlers {
			binary.Write(&codeAttr, binary.BigEndian, h.StartPC)
			binary.Write(&codeAttr, binary.BigEndian, h.EndPC)
			binary.Write(&codeAttr, binary.BigEndian, h.HandlerPC)
			binary.Write(&codeAttr, binary.BigEndian, h.CatchType)
		}
		binary.Write(&codeAttr, binary.BigEndian, uint16(0)) // Code's own attributes

		binary.Write(&out, binary.BigEndian, codeAttrNameIdx)
		binary.Write(&out, binary.BigEndian, uint32(codeAttr.Len()))
		out.Write(codeAttr.Bytes())
	}

	binary.Write(&out, binary.BigEndian, uint16(0)) // class attributes
	return out.Bytes()
}

// loadAndRun adds data to a fresh Classpath/VM, loads className, and runs
// methodName/descriptor to completion.
func loadAndRun(t *testing.T, data []byte, className, methodName, descriptor string, args []value.Value) (value.Value, error) {
	t.Helper()
	cp := classloader.NewClasspath()
	require.NoError(t, cp.AddClass(data))
	v := NewVM(cp)
	classID, err := v.Registry.Load(className, true)
	require.NoError(t, err)
	cf, ok := v.Classpath.Find(className)
	require.True(t, ok)
	method := cf.FindMethod(methodName, descriptor)
	require.NotNil(t, method)
	return v.executeMethod(classID, cf, method, args)
}

func TestArithmeticComputesExpectedResult(t *testing.T) {
	b := newClassBuilder()
	code := []byte{opBipush, 10, opBipush, 32, opIadd, opIreturn}
	data := b.build("Arith", "java/lang/Object", nil, []methodSpec{
		{name: "compute", desc: "()I", accessFlags: classfile.AccPublic | classfile.AccStatic, maxStack: 2, maxLocals: 0, code: code},
	})

	result, err := loadAndRun(t, data, "Arith", "compute", "()I", nil)
	require.NoError(t, err)
	assert.Equal(t, int32(42), result.I32)
}

func TestArrayStoreOutOfBoundsIsCatchable(t *testing.T) {
	b := newClassBuilder()
	aioobeClass := b.class("java/lang/ArrayIndexOutOfBoundsException")

	// iconst_5; newarray int           -- new int[5]
	// astore_0
	// aload_0; bipush 10; iconst_1; iastore   -- arr[10] = 1, out of bounds
	// iconst_0; ireturn                        -- unreachable if it throws
	// handler: pop; iconst_m1; ireturn
	code := []byte{
		opIconst5, opNewarray, atInt, opAstore0,
		opAload0, opBipush, 10, opIconst1, opIastore,
		opIconst0, opIreturn,
		opPop, opIconstM1, opIreturn,
	}
	handlerPC := uint16(11)
	data := b.build("Bounds", "java/lang/Object", nil, []methodSpec{
		{
			name: "compute", desc: "()I", accessFlags: classfile.AccPublic | classfile.AccStatic,
			maxStack: 4, maxLocals: 1, code: code,
			handlers: []classfile.ExceptionHandler{
				{StartPC: 4, EndPC: 9, HandlerPC: handlerPC, CatchType: aioobeClass},
			},
		},
	})

	result, err := loadAndRun(t, data, "Bounds", "compute", "()I", nil)
	require.NoError(t, err)
	assert.Equal(t, int32(-1), result.I32)
}

func TestArrayStoreOutOfBoundsUncaughtPropagates(t *testing.T) {
	b := newClassBuilder()
	code := []byte{
		opIconst5, opNewarray, atInt, opAstore0,
		opAload0, opBipush, 10, opIconst1, opIastore,
		opIconst0, opIreturn,
	}
	data := b.build("BoundsUncaught", "java/lang/Object", nil, []methodSpec{
		{name: "compute", desc: "()I", accessFlags: classfile.AccPublic | classfile.AccStatic, maxStack: 4, maxLocals: 1, code: code},
	})

	_, err := loadAndRun(t, data, "BoundsUncaught", "compute", "()I", nil)
	require.Error(t, err)
	te, ok := err.(*ThrownException)
	require.True(t, ok, "expected an uncaught *ThrownException, got %T: %v", err, err)
	assert.Equal(t, "java/lang/ArrayIndexOutOfBoundsException", te.ClassName)
}

// TestVirtualDispatchUsesRuntimeClass builds Base and Sub (Sub overrides
// Base.value()I), plus a Driver.run(LBase;)I that invokes value() virtually
// on whatever it's handed — it must see Sub's override when given a Sub
// instance, not Base's declaration, proving dispatch starts at the
// receiver's runtime class rather than the call site's static type.
func TestVirtualDispatchUsesRuntimeClass(t *testing.T) {
	baseCode := []byte{opBipush, 1, opIreturn}
	subCode := []byte{opBipush, 2, opIreturn}

	b1 := newClassBuilder()
	baseData := b1.build("Base", "java/lang/Object", nil, []methodSpec{
		{name: "value", desc: "()I", accessFlags: classfile.AccPublic, maxStack: 1, maxLocals: 1, code: baseCode},
	})

	b2 := newClassBuilder()
	subData := b2.build("Sub", "Base", nil, []methodSpec{
		{name: "value", desc: "()I", accessFlags: classfile.AccPublic, maxStack: 1, maxLocals: 1, code: subCode},
	})

	b3 := newClassBuilder()
	driverValue := b3.methodref("Base", "value", "()I")
	// Driver.run(LBase;)I: aload_0; invokevirtual Base.value()I; ireturn
	driverCode := []byte{opAload0, opInvokevirtual, byte(driverValue >> 8), byte(driverValue), opIreturn}
	driverData := b3.build("Driver", "java/lang/Object", nil, []methodSpec{
		{name: "run", desc: "(LBase;)I", accessFlags: classfile.AccPublic | classfile.AccStatic, maxStack: 1, maxLocals: 1, code: driverCode},
	})

	cp := classloader.NewClasspath()
	require.NoError(t, cp.AddClass(baseData))
	require.NoError(t, cp.AddClass(subData))
	require.NoError(t, cp.AddClass(driverData))
	v := NewVM(cp)

	baseID, err := v.Registry.Load("Base", true)
	require.NoError(t, err)
	subID, err := v.Registry.Load("Sub", true)
	require.NoError(t, err)
	driverID, err := v.Registry.Load("Driver", true)
	require.NoError(t, err)

	driverCF, _ := v.Classpath.Find("Driver")
	runMethod := driverCF.FindMethod("run", "(LBase;)I")
	require.NotNil(t, runMethod)

	baseObj := v.Heap.NewObjectID(&heap.ObjectInstance{ClassID: baseID, Fields: v.collectInstanceFieldDefaults(baseID)})
	subObj := v.Heap.NewObjectID(&heap.ObjectInstance{ClassID: subID, Fields: v.collectInstanceFieldDefaults(subID)})

	result, err := v.executeMethod(driverID, driverCF, runMethod, []value.Value{value.RefValue(baseObj)})
	require.NoError(t, err)
	assert.Equal(t, int32(1), result.I32, "a Base receiver should run Base.value")

	result, err = v.executeMethod(driverID, driverCF, runMethod, []value.Value{value.RefValue(subObj)})
	require.NoError(t, err)
	assert.Equal(t, int32(2), result.I32, "a Sub receiver should run Sub's override, not Base's")
}

// TestStaticInitRunsOnceBeforeFirstUse gives Counter a <clinit> that writes a
// constant into a static field, then checks a getstatic sees the
// initialized value and that a second class load doesn't re-run <clinit>.
func TestStaticInitRunsOnceBeforeFirstUse(t *testing.T) {
	b := newClassBuilder()
	fieldRef := b.fieldref("Counter", "value", "I")
	// <clinit>: bipush 7; putstatic Counter.value:I; return
	clinitCode := []byte{opBipush, 7, opPutstatic, byte(fieldRef >> 8), byte(fieldRef), opReturn}
	// read()I: getstatic Counter.value:I; ireturn
	readCode := []byte{opGetstatic, byte(fieldRef >> 8), byte(fieldRef), opIreturn}

	data := b.build("Counter", "java/lang/Object",
		[]fieldSpec{{name: "value", desc: "I", accessFlags: classfile.AccStatic}},
		[]methodSpec{
			{name: "<clinit>", desc: "()V", accessFlags: classfile.AccStatic, maxStack: 2, maxLocals: 0, code: clinitCode},
			{name: "read", desc: "()I", accessFlags: classfile.AccPublic | classfile.AccStatic, maxStack: 1, maxLocals: 0, code: readCode},
		})

	cp := classloader.NewClasspath()
	require.NoError(t, cp.AddClass(data))
	v := NewVM(cp)

	classID, err := v.Registry.Load("Counter", true)
	require.NoError(t, err)
	cf, _ := v.Classpath.Find("Counter")
	readMethod := cf.FindMethod("read", "()I")

	result, err := v.executeMethod(classID, cf, readMethod, nil)
	require.NoError(t, err)
	assert.Equal(t, int32(7), result.I32)

	// Loading again with initialize=true must not rerun <clinit> (it would
	// still write 7, so instead directly assert the class stays flagged
	// initialized across repeated loads).
	sameID, err := v.Registry.Load("Counter", true)
	require.NoError(t, err)
	assert.Equal(t, classID, sameID)
	assert.True(t, v.Heap.Class(classID).Initialized)
}

// TestNewStringDoesNotShareLiteralIdentity builds a method that compares an
// ldc literal with a new String(...) copy of it by reference and asserts the
// two are distinct objects; TestStringInternMatchesLiteralIdentity covers the
// copy's .intern().
func TestNewStringDoesNotShareLiteralIdentity(t *testing.T) {
	b := newClassBuilder()
	hello := b.stringConst("hello")
	strClass := b.class("java/lang/String")
	strInit := b.methodref("java/lang/String", "<init>", "(Ljava/lang/String;)V")

	// ldc "hello"                                        -> [lit]
	// new String; dup; ldc "hello"; invokespecial <init>  -> [lit, copy]
	// if_acmpeq identical -> iconst_1 : iconst_0           (copy vs lit: expect false)
	code := []byte{
		opLdc, byte(hello),
		opNew, byte(strClass >> 8), byte(strClass),
		opDup,
		opLdc, byte(hello),
		opInvokespecial, byte(strInit >> 8), byte(strInit),
		opIfAcmpeq, 0, 7,
		opIconst0, opGoto, 0, 4,
		opIconst1,
		opIreturn,
	}

	data := b.build("Interning", "java/lang/Object", nil, []methodSpec{
		{name: "copyEqualsLiteral", desc: "()Z", accessFlags: classfile.AccPublic | classfile.AccStatic, maxStack: 4, maxLocals: 0, code: code},
	})

	result, err := loadAndRun(t, data, "Interning", "copyEqualsLiteral", "()Z", nil)
	require.NoError(t, err)
	assert.Equal(t, int32(0), result.I32, "new String(...) must not share the ldc literal's identity")
}

func TestStringInternMatchesLiteralIdentity(t *testing.T) {
	b := newClassBuilder()
	hello := b.stringConst("hello")
	strClass := b.class("java/lang/String")
	strInit := b.methodref("java/lang/String", "<init>", "(Ljava/lang/String;)V")
	strIntern := b.methodref("java/lang/String", "intern", "()Ljava/lang/String;")

	// ldc "hello"                                          -> [lit]
	// new String; dup; ldc "hello"; invokespecial <init>   -> [lit, copy]
	// invokevirtual intern()Ljava/lang/String;             -> [lit, internedCopy]
	// if_acmpeq -> iconst_1 : iconst_0
	code := []byte{
		opLdc, byte(hello),
		opNew, byte(strClass >> 8), byte(strClass),
		opDup,
		opLdc, byte(hello),
		opInvokespecial, byte(strInit >> 8), byte(strInit),
		opInvokevirtual, byte(strIntern >> 8), byte(strIntern),
		opIfAcmpeq, 0, 7,
		opIconst0, opGoto, 0, 4,
		opIconst1,
		opIreturn,
	}

	data := b.build("Interning2", "java/lang/Object", nil, []methodSpec{
		{name: "internedEqualsLiteral", desc: "()Z", accessFlags: classfile.AccPublic | classfile.AccStatic, maxStack: 4, maxLocals: 0, code: code},
	})

	result, err := loadAndRun(t, data, "Interning2", "internedEqualsLiteral", "()Z", nil)
	require.NoError(t, err)
	assert.Equal(t, int32(1), result.I32, "copy.intern() must share the ldc literal's canonical identity")
}

// TestCaughtExceptionGetMessageReturnsConstructorArgument builds
// `try { throw new RuntimeException("x"); } catch (RuntimeException e) {
// return e.getMessage(); }` and checks the handler sees the message given to
// the constructor.
func TestCaughtExceptionGetMessageReturnsConstructorArgument(t *testing.T) {
	b := newClassBuilder()
	x := b.stringConst("x")
	excClass := b.class("java/lang/RuntimeException")
	excInit := b.methodref("java/lang/RuntimeException", "<init>", "(Ljava/lang/String;)V")
	getMessage := b.methodref("java/lang/RuntimeException", "getMessage", "()Ljava/lang/String;")

	// new RuntimeException; dup; ldc "x"; invokespecial <init>(String); athrow
	tryCode := []byte{
		opNew, byte(excClass >> 8), byte(excClass),
		opDup,
		opLdc, byte(x),
		opInvokespecial, byte(excInit >> 8), byte(excInit),
		opAthrow,
	}
	// handler: the unwind loop pushes the caught exception object; call
	// getMessage() on it directly and return.
	handlerCode := []byte{
		opInvokevirtual, byte(getMessage >> 8), byte(getMessage),
		opAreturn,
	}
	code := append(append([]byte{}, tryCode...), handlerCode...)
	handlerPC := uint16(len(tryCode))

	data := b.build("Catcher", "java/lang/Object", nil, []methodSpec{
		{
			name: "run", desc: "()Ljava/lang/String;", accessFlags: classfile.AccPublic | classfile.AccStatic,
			maxStack: 3, maxLocals: 0, code: code,
			handlers: []classfile.ExceptionHandler{
				{StartPC: 0, EndPC: uint16(len(tryCode)), HandlerPC: handlerPC, CatchType: excClass},
			},
		},
	})

	cp := classloader.NewClasspath()
	require.NoError(t, cp.AddClass(data))
	v := NewVM(cp)

	classID, err := v.Registry.Load("Catcher", true)
	require.NoError(t, err)
	cf, _ := v.Classpath.Find("Catcher")
	runMethod := cf.FindMethod("run", "()Ljava/lang/String;")
	require.NotNil(t, runMethod)

	result, err := v.executeMethod(classID, cf, runMethod, nil)
	require.NoError(t, err)
	msg, ok := v.StringValue(result.Ref)
	require.True(t, ok)
	assert.Equal(t, "x", msg)
}

// TestThreadStart0SetsIsAliveWithoutSpawning builds `Thread t = new Thread();
// t.start0(); return t.isAlive();` and checks isAlive flips from false to
// true purely from the is_alive flag start0 sets — no goroutine involved.
func TestThreadStart0SetsIsAliveWithoutSpawning(t *testing.T) {
	b := newClassBuilder()
	threadClass := b.class("java/lang/Thread")
	threadInit := b.methodref("java/lang/Thread", "<init>", "()V")
	start0 := b.methodref("java/lang/Thread", "start0", "()V")
	isAlive := b.methodref("java/lang/Thread", "isAlive", "()Z")

	code := []byte{
		opNew, byte(threadClass >> 8), byte(threadClass),
		opDup,
		opInvokespecial, byte(threadInit >> 8), byte(threadInit),
		opDup,
		opInvokevirtual, byte(start0 >> 8), byte(start0),
		opInvokevirtual, byte(isAlive >> 8), byte(isAlive),
		opIreturn,
	}
	data := b.build("ThreadUser", "java/lang/Object", nil, []methodSpec{
		{name: "run", desc: "()Z", accessFlags: classfile.AccPublic | classfile.AccStatic, maxStack: 2, maxLocals: 0, code: code},
	})

	result, err := loadAndRun(t, data, "ThreadUser", "run", "()Z", nil)
	require.NoError(t, err)
	assert.Equal(t, int32(1), result.I32, "start0 must mark the Thread mirror alive")
}

// TestCurrentThreadReturnsMainThreadMirror checks Thread.currentThread()
// always resolves to the same main-thread mirror object the cooperative
// scheduler treats as the sole logical thread of execution.
func TestCurrentThreadReturnsMainThreadMirror(t *testing.T) {
	b := newClassBuilder()
	currentThread := b.methodref("java/lang/Thread", "currentThread", "()Ljava/lang/Thread;")
	isAlive := b.methodref("java/lang/Thread", "isAlive", "()Z")

	code := []byte{
		opInvokestatic, byte(currentThread >> 8), byte(currentThread),
		opInvokevirtual, byte(isAlive >> 8), byte(isAlive),
		opIreturn,
	}
	data := b.build("MainThreadUser", "java/lang/Object", nil, []methodSpec{
		{name: "run", desc: "()Z", accessFlags: classfile.AccPublic | classfile.AccStatic, maxStack: 1, maxLocals: 0, code: code},
	})

	result, err := loadAndRun(t, data, "MainThreadUser", "run", "()Z", nil)
	require.NoError(t, err)
	assert.Equal(t, int32(1), result.I32, "the main thread mirror must already be alive")
}
