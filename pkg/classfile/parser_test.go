package classfile

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildMinimalClass assembles the bytes of a tiny class file with one
// static method, in-memory, so parser tests don't depend on a real javac
// toolchain or checked-in binary fixtures.
func buildMinimalClass(t *testing.T, className, methodName, descriptor string, code []byte, maxStack, maxLocals uint16) []byte {
	t.Helper()
	var buf bytes.Buffer

	// Constant pool, 1-indexed:
	// 1: Utf8 className
	// 2: Class -> 1
	// 3: Utf8 "java/lang/Object"
	// 4: Class -> 3
	// 5: Utf8 methodName
	// 6: Utf8 descriptor
	// 7: Utf8 "Code"
	type cpWriter func(*bytes.Buffer)
	utf8 := func(s string) cpWriter {
		return func(b *bytes.Buffer) {
			b.WriteByte(TagUtf8)
			binary.Write(b, binary.BigEndian, uint16(len(s)))
			b.WriteString(s)
		}
	}
	class := func(nameIdx uint16) cpWriter {
		return func(b *bytes.Buffer) {
			b.WriteByte(TagClass)
			binary.Write(b, binary.BigEndian, nameIdx)
		}
	}
	entries := []cpWriter{
		utf8(className),
		class(1),
		utf8("java/lang/Object"),
		class(3),
		utf8(methodName),
		utf8(descriptor),
		utf8("Code"),
	}

	binary.Write(&buf, binary.BigEndian, uint32(classMagic))
	binary.Write(&buf, binary.BigEndian, uint16(0))  // minor
	binary.Write(&buf, binary.BigEndian, uint16(52)) // major
	binary.Write(&buf, binary.BigEndian, uint16(len(entries)+1))
	for _, w := range entries {
		w(&buf)
	}
	binary.Write(&buf, binary.BigEndian, uint16(AccPublic|AccSuper)) // access_flags
	binary.Write(&buf, binary.BigEndian, uint16(2))                  // this_class
	binary.Write(&buf, binary.BigEndian, uint16(4))                  // super_class
	binary.Write(&buf, binary.BigEndian, uint16(0))                  // interfaces_count
	binary.Write(&buf, binary.BigEndian, uint16(0))                  // fields_count

	binary.Write(&buf, binary.BigEndian, uint16(1)) // methods_count
	binary.Write(&buf, binary.BigEndian, uint16(AccPublic|AccStatic))
	binary.Write(&buf, binary.BigEndian, uint16(5)) // name_index
	binary.Write(&buf, binary.BigEndian, uint16(6)) // descriptor_index
	binary.Write(&buf, binary.BigEndian, uint16(1)) // attributes_count

	var codeAttr bytes.Buffer
	binary.Write(&codeAttr, binary.BigEndian, maxStack)
	binary.Write(&codeAttr, binary.BigEndian, maxLocals)
	binary.Write(&codeAttr, binary.BigEndian, uint32(len(code)))
	codeAttr.Write(code)
	binary.Write(&codeAttr, binary.BigEndian, uint16(0)) // exception_table_length
	binary.Write(&codeAttr, binary.BigEndian, uint16(0)) // attributes_count

	binary.Write(&buf, binary.BigEndian, uint16(7)) // "Code" name_index
	binary.Write(&buf, binary.BigEndian, uint32(codeAttr.Len()))
	buf.Write(codeAttr.Bytes())

	binary.Write(&buf, binary.BigEndian, uint16(0)) // class attributes_count

	return buf.Bytes()
}

func TestParseMinimalClass(t *testing.T) {
	code := []byte{0xb1} // return
	data := buildMinimalClass(t, "Hello", "main", "([Ljava/lang/String;)V", code, 1, 1)

	cf, err := Parse(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, uint16(52), cf.MajorVersion)

	className, err := cf.ClassName()
	require.NoError(t, err)
	assert.Equal(t, "Hello", className)
	assert.Equal(t, "java/lang/Object", cf.SuperClassName())

	main := cf.FindMethod("main", "([Ljava/lang/String;)V")
	require.NotNil(t, main)
	require.NotNil(t, main.Code)
	assert.Equal(t, code, main.Code.Code)
	assert.Equal(t, uint16(1), main.Code.MaxStack)
}

func TestParseInvalidMagic(t *testing.T) {
	_, err := Parse(bytes.NewReader([]byte{0xDE, 0xAD, 0xBE, 0xEF}))
	assert.Error(t, err)
}

func TestFindMethodByNameFirstMatch(t *testing.T) {
	code := []byte{0xb1}
	data := buildMinimalClass(t, "Add", "add", "(II)I", code, 2, 2)
	cf, err := Parse(bytes.NewReader(data))
	require.NoError(t, err)
	assert.NotNil(t, cf.FindMethodByName("add"))
	assert.Nil(t, cf.FindMethodByName("missing"))
}
