package classloader

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/daimatz/gojvm/pkg/classfile"
	"github.com/daimatz/gojvm/pkg/heap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// classBytes builds the bytes of a class with the given name and (optional)
// super name, no fields or methods besides an implicit empty method table.
func classBytes(t *testing.T, name, super string) []byte {
	t.Helper()
	var buf bytes.Buffer
	type cpWriter func(*bytes.Buffer)
	utf8 := func(s string) cpWriter {
		return func(b *bytes.Buffer) {
			b.WriteByte(classfile.TagUtf8)
			binary.Write(b, binary.BigEndian, uint16(len(s)))
			b.WriteString(s)
		}
	}
	class := func(nameIdx uint16) cpWriter {
		return func(b *bytes.Buffer) {
			b.WriteByte(classfile.TagClass)
			binary.Write(b, binary.BigEndian, nameIdx)
		}
	}
	entries := []cpWriter{utf8(name), class(1), utf8(super), class(3)}

	binary.Write(&buf, binary.BigEndian, uint32(0xCAFEBABE))
	binary.Write(&buf, binary.BigEndian, uint16(0))
	binary.Write(&buf, binary.BigEndian, uint16(52))
	binary.Write(&buf, binary.BigEndian, uint16(len(entries)+1))
	for _, w := range entries {
		w(&buf)
	}
	binary.Write(&buf, binary.BigEndian, uint16(classfile.AccPublic|classfile.AccSuper))
	binary.Write(&buf, binary.BigEndian, uint16(2)) // this_class
	binary.Write(&buf, binary.BigEndian, uint16(4)) // super_class
	binary.Write(&buf, binary.BigEndian, uint16(0)) // interfaces
	binary.Write(&buf, binary.BigEndian, uint16(0)) // fields
	binary.Write(&buf, binary.BigEndian, uint16(0)) // methods
	binary.Write(&buf, binary.BigEndian, uint16(0)) // class attributes
	return buf.Bytes()
}

func newTestRegistry(t *testing.T) (*Registry, *Classpath) {
	t.Helper()
	cp := NewClasspath()
	require.NoError(t, cp.AddClass(classBytes(t, "pkg/A", "java/lang/Object")))
	require.NoError(t, cp.AddClass(classBytes(t, "pkg/B", "pkg/A")))
	return NewRegistry(heap.New(), cp), cp
}

func TestLoadRecursesSuperclass(t *testing.T) {
	reg, _ := newTestRegistry(t)
	bID, err := reg.Load("pkg/B", false)
	require.NoError(t, err)

	aID, ok := reg.Heap.LookupClass("pkg/A")
	require.True(t, ok, "loading B should transitively load A")
	assert.Equal(t, aID, reg.Heap.Class(bID).SuperclassID)

	objID, ok := reg.Heap.LookupClass("java/lang/Object")
	require.True(t, ok, "loading A should transitively load the synthetic Object root")
	assert.Equal(t, objID, reg.Heap.Class(aID).SuperclassID)
}

func TestLoadIsIdempotent(t *testing.T) {
	reg, _ := newTestRegistry(t)
	id1, err := reg.Load("pkg/B", true)
	require.NoError(t, err)
	id2, err := reg.Load("pkg/B", true)
	require.NoError(t, err)
	assert.Equal(t, id1, id2)
}

func TestInitializationSetsFlagBeforeClinit(t *testing.T) {
	reg, _ := newTestRegistry(t)
	var sawInitializedDuringClinit bool
	reg.RunClinit = func(id heap.ClassID) error {
		sawInitializedDuringClinit = reg.Heap.Class(id).Initialized
		return nil
	}
	_, err := reg.Load("pkg/A", true)
	require.NoError(t, err)
	assert.True(t, sawInitializedDuringClinit)
}

func TestArrayPseudoClass(t *testing.T) {
	reg, _ := newTestRegistry(t)
	id, err := reg.Load("[I", false)
	require.NoError(t, err)
	entry := reg.Heap.Class(id)
	assert.True(t, entry.IsArrayType)
	assert.Contains(t, entry.Interfaces, "java/io/Serializable")
	assert.Contains(t, entry.Interfaces, "java/lang/Cloneable")
}

func TestPrimitivePseudoClass(t *testing.T) {
	reg, _ := newTestRegistry(t)
	id, err := reg.Load("I", false)
	require.NoError(t, err)
	entry := reg.Heap.Class(id)
	assert.True(t, entry.IsPrimitiveType)
	assert.Equal(t, "int", entry.Name)
}

func TestIsAssignableFromReflexiveAndObjectRoot(t *testing.T) {
	reg, _ := newTestRegistry(t)
	bID, err := reg.Load("pkg/B", false)
	require.NoError(t, err)

	assert.True(t, reg.IsAssignableFrom("pkg/B", bID))
	assert.True(t, reg.IsAssignableFrom("pkg/A", bID))
	assert.True(t, reg.IsAssignableFrom("java/lang/Object", bID))
	assert.False(t, reg.IsAssignableFrom("pkg/Unrelated", bID))
}

func TestSynthesizedThrowableHierarchy(t *testing.T) {
	reg, _ := newTestRegistry(t)
	npeID, err := reg.Load("java/lang/NullPointerException", false)
	require.NoError(t, err)

	assert.True(t, reg.IsAssignableFrom("java/lang/RuntimeException", npeID))
	assert.True(t, reg.IsAssignableFrom("java/lang/Exception", npeID))
	assert.True(t, reg.IsAssignableFrom("java/lang/Throwable", npeID))
	assert.True(t, reg.IsAssignableFrom("java/lang/Object", npeID))
	assert.False(t, reg.IsAssignableFrom("java/lang/Error", npeID))
}

func TestLoadMissingClassIsNoClassDefFoundError(t *testing.T) {
	reg, _ := newTestRegistry(t)
	_, err := reg.Load("does/not/Exist", false)
	require.Error(t, err)
	var ncdfe *NoClassDefFoundError
	assert.ErrorAs(t, err, &ncdfe)
}
