package nativebridge

import (
	"fmt"
	"strings"

	"github.com/daimatz/gojvm/pkg/heap"
	"github.com/daimatz/gojvm/pkg/value"
)

func registerStringMethods(t *Table) {
	t.register(MangleName("java/lang/String", "<init>"), stringInit)
	t.register(MangleName("java/lang/String", "intern"), stringIntern)
	t.register(MangleName("java/lang/String", "length"), stringLength)
	t.register(MangleName("java/lang/String", "charAt"), stringCharAt)
	t.register(MangleName("java/lang/String", "equals"), stringEquals)
	t.register(MangleName("java/lang/String", "concat"), stringConcat)
	t.register(MangleName("java/lang/String", "toString"), stringToString)
	t.register(MangleName("java/lang/String", "hashCode"), stringHashCode)
	t.register(MangleName("java/lang/String", "substring"), stringSubstring)
	t.register(MangleName("java/lang/String", "indexOf"), stringIndexOf)
	t.register(MangleName("java/lang/String", "toUpperCase"), stringToUpperCase)
	t.register(MangleName("java/lang/String", "toLowerCase"), stringToLowerCase)
	t.register(MangleName("java/lang/String", "trim"), stringTrim)
	t.register(MangleName("java/lang/String", "isEmpty"), stringIsEmpty)
	t.register(MangleName("java/lang/String", "compareTo"), stringCompareTo)
	t.register(MangleName("java/lang/String", "valueOf"), stringValueOf)
}

// newStringObject allocates a fresh, non-interned java/lang/String instance
// wrapping s. Per JVMS 5.1, every String-producing expression except a
// literal (ldc) or an explicit .intern() call yields a new object distinct
// from any other equal-content String, so derived strings (concat,
// substring, case conversion, valueOf, <init>) must not go through the
// intern table the way ldc does.
func newStringObject(env RuntimeEnv, s string) value.Value {
	classID, _ := env.RegistryRef().Load("java/lang/String", false)
	obj := &heap.ObjectInstance{
		Fields: make(map[string]value.Value),
		NativeMeta: map[string]heap.NativeMetaValue{
			"string_value": {Text: s, IsText: true},
		},
		ClassID: classID,
	}
	return value.RefValue(env.HeapRef().NewObjectID(obj))
}

// stringInit implements the no-arg, String(String), and String(char[])
// constructor overloads (natives don't encode a descriptor, so all three
// share one handler and switch on argument shape).
func stringInit(env RuntimeEnv, args []value.Value) (value.Value, error) {
	receiver, ok := env.HeapRef().Object(args[0].Ref)
	if !ok {
		return value.Value{}, fmt.Errorf("String receiver is not a live object")
	}
	s := ""
	if len(args) > 1 && !args[1].IsNull() {
		switch args[1].Kind {
		case value.ArrayRef:
			arr, ok := env.HeapRef().Array(args[1].Ref)
			if !ok {
				return value.Value{}, fmt.Errorf("String(char[]): not a live array")
			}
			chars := make([]rune, len(arr.Cells))
			for i, c := range arr.Cells {
				chars[i] = rune(uint16(c.AsInt32()))
			}
			s = string(chars)
		case value.ObjectRef:
			if v, ok := env.StringValue(args[1].Ref); ok {
				s = v
			}
		}
	}
	if receiver.NativeMeta == nil {
		receiver.NativeMeta = make(map[string]heap.NativeMetaValue)
	}
	receiver.NativeMeta["string_value"] = heap.NativeMetaValue{Text: s, IsText: true}
	return value.Value{}, nil
}

// stringIntern returns the canonical interned String for the receiver's
// content, allocating it on first use — the only path (besides ldc) that
// produces the identity ldc's own string constants share.
func stringIntern(env RuntimeEnv, args []value.Value) (value.Value, error) {
	s, err := receiverString(env, args)
	if err != nil {
		return value.Value{}, err
	}
	return env.InternString(s), nil
}

func receiverString(env RuntimeEnv, args []value.Value) (string, error) {
	s, ok := env.StringValue(args[0].Ref)
	if !ok {
		return "", fmt.Errorf("receiver is not a java/lang/String")
	}
	return s, nil
}

func stringLength(env RuntimeEnv, args []value.Value) (value.Value, error) {
	s, err := receiverString(env, args)
	if err != nil {
		return value.Value{}, err
	}
	return value.IntValue(int32(len(s))), nil
}

func stringCharAt(env RuntimeEnv, args []value.Value) (value.Value, error) {
	s, err := receiverString(env, args)
	if err != nil {
		return value.Value{}, err
	}
	idx := int(args[1].AsInt32())
	if idx < 0 || idx >= len(s) {
		return value.Value{}, env.ThrowNew("java/lang/StringIndexOutOfBoundsException", fmt.Sprintf("index %d, length %d", idx, len(s)))
	}
	return value.CharValue(uint16(s[idx])), nil
}

func stringEquals(env RuntimeEnv, args []value.Value) (value.Value, error) {
	s, err := receiverString(env, args)
	if err != nil {
		return value.Value{}, err
	}
	if args[1].IsNull() {
		return value.BooleanValue(false), nil
	}
	other, ok := env.StringValue(args[1].Ref)
	return value.BooleanValue(ok && other == s), nil
}

func stringConcat(env RuntimeEnv, args []value.Value) (value.Value, error) {
	s, err := receiverString(env, args)
	if err != nil {
		return value.Value{}, err
	}
	other, _ := env.StringValue(args[1].Ref)
	return newStringObject(env, s+other), nil
}

func stringToString(env RuntimeEnv, args []value.Value) (value.Value, error) {
	return args[0], nil
}

func stringHashCode(env RuntimeEnv, args []value.Value) (value.Value, error) {
	s, err := receiverString(env, args)
	if err != nil {
		return value.Value{}, err
	}
	var h int32
	for _, c := range s {
		h = 31*h + int32(c)
	}
	return value.IntValue(h), nil
}

func stringSubstring(env RuntimeEnv, args []value.Value) (value.Value, error) {
	s, err := receiverString(env, args)
	if err != nil {
		return value.Value{}, err
	}
	begin := int(args[1].AsInt32())
	end := len(s)
	if len(args) > 2 {
		end = int(args[2].AsInt32())
	}
	if begin < 0 || end > len(s) || begin > end {
		return value.Value{}, env.ThrowNew("java/lang/StringIndexOutOfBoundsException", fmt.Sprintf("begin %d, end %d, length %d", begin, end, len(s)))
	}
	return newStringObject(env, s[begin:end]), nil
}

func stringIndexOf(env RuntimeEnv, args []value.Value) (value.Value, error) {
	s, err := receiverString(env, args)
	if err != nil {
		return value.Value{}, err
	}
	if args[1].Kind == value.ObjectRef {
		target, _ := env.StringValue(args[1].Ref)
		return value.IntValue(int32(strings.Index(s, target))), nil
	}
	return value.IntValue(int32(strings.IndexRune(s, rune(args[1].AsInt32())))), nil
}

func stringToUpperCase(env RuntimeEnv, args []value.Value) (value.Value, error) {
	s, err := receiverString(env, args)
	if err != nil {
		return value.Value{}, err
	}
	return newStringObject(env, strings.ToUpper(s)), nil
}

func stringToLowerCase(env RuntimeEnv, args []value.Value) (value.Value, error) {
	s, err := receiverString(env, args)
	if err != nil {
		return value.Value{}, err
	}
	return newStringObject(env, strings.ToLower(s)), nil
}

func stringTrim(env RuntimeEnv, args []value.Value) (value.Value, error) {
	s, err := receiverString(env, args)
	if err != nil {
		return value.Value{}, err
	}
	return newStringObject(env, strings.TrimSpace(s)), nil
}

func stringIsEmpty(env RuntimeEnv, args []value.Value) (value.Value, error) {
	s, err := receiverString(env, args)
	if err != nil {
		return value.Value{}, err
	}
	return value.BooleanValue(len(s) == 0), nil
}

func stringCompareTo(env RuntimeEnv, args []value.Value) (value.Value, error) {
	s, err := receiverString(env, args)
	if err != nil {
		return value.Value{}, err
	}
	other, _ := env.StringValue(args[1].Ref)
	return value.IntValue(int32(strings.Compare(s, other))), nil
}

// stringValueOf is static: String.valueOf(Object|int|long|...) -> String.
func stringValueOf(env RuntimeEnv, args []value.Value) (value.Value, error) {
	v := args[0]
	switch v.Kind {
	case value.ObjectRef:
		if v.IsNull() {
			return newStringObject(env, "null"), nil
		}
		if _, ok := env.StringValue(v.Ref); ok {
			return v, nil
		}
		result, err := env.InvokeVirtual(v.Ref, "toString", "()Ljava/lang/String;", nil)
		if err != nil {
			return value.Value{}, err
		}
		return result, nil
	default:
		return newStringObject(env, formatArg(env, v)), nil
	}
}
