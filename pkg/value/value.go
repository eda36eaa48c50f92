// Package value implements the JVM's tagged value union and the typed
// containers (operand stack, local variable table) that hold it.
package value

import (
	"fmt"
	"math"
)

// Kind tags the variant held by a Value.
type Kind uint8

const (
	Byte Kind = iota
	Short
	Int
	Long
	Float
	Double
	Char
	Boolean
	ObjectRef
	ArrayRef
	Null
	// Slot is the second cell of a wide (category-2) value, or an unset
	// local/stack slot. Never observable to bytecode except via the
	// pairing rules in Stack/Locals.
	Slot
)

// ObjectID and ArrayID are stable numeric handles into the Heap. They share
// a single monotonic counter, so no id is ever both.
type ObjectID = uint64
type ArrayID = uint64

// Value is a tagged union over every JVM value kind.
type Value struct {
	Kind Kind

	I32 int32   // Byte, Short, Int, Char, Boolean (0/1)
	I64 int64   // Long
	F32 float32 // Float
	F64 float64 // Double

	Ref uint64 // ObjectID for ObjectRef, ArrayID for ArrayRef (0 == none for ObjectRef)

	UpperHalf bool // meaningful only when Kind == Slot
	Unset     bool // meaningful only when Kind == Slot
}

// IsCategory2 reports whether v occupies two stack/local cells.
func (v Value) IsCategory2() bool {
	return v.Kind == Long || v.Kind == Double
}

func (v Value) String() string {
	switch v.Kind {
	case Byte, Short, Int, Char, Boolean:
		return fmt.Sprintf("%d", v.I32)
	case Long:
		return fmt.Sprintf("%d", v.I64)
	case Float:
		return fmt.Sprintf("%v", v.F32)
	case Double:
		return fmt.Sprintf("%v", v.F64)
	case ObjectRef:
		if v.Ref == 0 {
			return "null"
		}
		return fmt.Sprintf("objref#%d", v.Ref)
	case ArrayRef:
		return fmt.Sprintf("arrref#%d", v.Ref)
	case Null:
		return "null"
	case Slot:
		return "<slot>"
	default:
		return "<invalid>"
	}
}

func ByteValue(v int8) Value    { return Value{Kind: Byte, I32: int32(v)} }
func ShortValue(v int16) Value  { return Value{Kind: Short, I32: int32(v)} }
func IntValue(v int32) Value    { return Value{Kind: Int, I32: v} }
func LongValue(v int64) Value   { return Value{Kind: Long, I64: v} }
func FloatValue(v float32) Value { return Value{Kind: Float, F32: v} }
func DoubleValue(v float64) Value { return Value{Kind: Double, F64: v} }
func CharValue(v uint16) Value  { return Value{Kind: Char, I32: int32(v)} }

func BooleanValue(v bool) Value {
	if v {
		return Value{Kind: Boolean, I32: 1}
	}
	return Value{Kind: Boolean, I32: 0}
}

// RefValue constructs a non-null object reference.
func RefValue(id ObjectID) Value { return Value{Kind: ObjectRef, Ref: id} }

// ArrValue constructs an array reference.
func ArrValue(id ArrayID) Value { return Value{Kind: ArrayRef, Ref: id} }

// NullValue constructs a null object reference.
func NullValue() Value { return Value{Kind: Null} }

// IsNull reports whether v is a null reference (either the dedicated Null
// kind, or an ObjectRef/ArrayRef whose handle is the reserved zero id).
func (v Value) IsNull() bool {
	return v.Kind == Null || ((v.Kind == ObjectRef || v.Kind == ArrayRef) && v.Ref == 0)
}

func upperHalf() Value { return Value{Kind: Slot, UpperHalf: true} }

// Raw packs v into a single uint64 for the minimal native ABI (spec §6's
// add_native_method): integral kinds and references pass through their
// payload bits, Float/Double pass through their IEEE-754 bit pattern.
func (v Value) Raw() uint64 {
	switch v.Kind {
	case Float:
		return uint64(math.Float32bits(v.F32))
	case Double:
		return math.Float64bits(v.F64)
	case Long:
		return uint64(v.I64)
	case ObjectRef, ArrayRef:
		return v.Ref
	default:
		return uint64(uint32(v.I32))
	}
}

// AsInt32 widens Byte/Short/Char/Boolean/Int to int32, matching JVMS
// integral promotion. Panics on a non-integral kind — callers must dispatch
// on Kind first where float/long/ref is also legal.
func (v Value) AsInt32() int32 {
	switch v.Kind {
	case Byte, Short, Int, Char, Boolean:
		return v.I32
	default:
		panic(fmt.Sprintf("value: AsInt32 on non-integral kind %d", v.Kind))
	}
}
