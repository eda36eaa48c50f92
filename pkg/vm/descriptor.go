package vm

import (
	"strings"

	"github.com/daimatz/gojvm/pkg/value"
)

// descriptorCategory reports whether the single field/parameter type
// descriptor s names a category-2 (wide) value, and how many bytes of s it
// consumes (relevant for array and object types, which have their own
// internal terminator).
func descriptorCategory(s string) (wide bool, consumed int) {
	switch s[0] {
	case 'J', 'D':
		return true, 1
	case 'L':
		idx := strings.IndexByte(s, ';')
		return false, idx + 1
	case '[':
		n := 0
		for s[n] == '[' {
			n++
		}
		_, c := descriptorCategory(s[n:])
		return false, n + c
	default: // B, C, F, I, S, Z
		return false, 1
	}
}

// parseParamCategories returns one wide-flag per parameter of a method
// descriptor "(...)R", in declared order.
func parseParamCategories(descriptor string) []bool {
	var cats []bool
	i := 1 // skip '('
	for descriptor[i] != ')' {
		wide, consumed := descriptorCategory(descriptor[i:])
		cats = append(cats, wide)
		i += consumed
	}
	return cats
}

// fieldCategory reports whether a lone field-type descriptor (no
// surrounding parens) is category-2.
func fieldCategory(descriptor string) bool {
	wide, _ := descriptorCategory(descriptor)
	return wide
}

// returnsVoid reports whether a method descriptor's return type is void.
func returnsVoid(descriptor string) bool {
	idx := strings.IndexByte(descriptor, ')')
	return idx >= 0 && idx+1 < len(descriptor) && descriptor[idx+1] == 'V'
}

// defaultValueForDescriptor mirrors classloader's field-default logic for
// instance fields, which the registry only applies to statics.
func defaultValueForDescriptor(descriptor string) value.Value {
	switch descriptor[0] {
	case 'L', '[':
		return value.NullValue()
	case 'J':
		return value.LongValue(0)
	case 'F':
		return value.FloatValue(0)
	case 'D':
		return value.DoubleValue(0)
	case 'C':
		return value.CharValue(0)
	case 'Z':
		return value.BooleanValue(false)
	case 'B':
		return value.ByteValue(0)
	case 'S':
		return value.ShortValue(0)
	default:
		return value.IntValue(0)
	}
}
