package nativebridge

import (
	"sync/atomic"

	"github.com/daimatz/gojvm/pkg/value"
)

// clockTick backs currentTimeMillis with a monotonic counter rather than a
// wall-clock read: the runtime makes no timekeeping guarantee, only that
// successive calls are non-decreasing.
var clockTick int64

// registerSystem implements the java.lang.System statics a plain program
// tends to reach for outside of stdout/stderr (handled by PrintStream):
// array copying, a monotonic clock reading, and identity hashing.
func registerSystem(t *Table) {
	t.register(MangleName("java/lang/System", "arraycopy"), systemArraycopy)
	t.register(MangleName("java/lang/System", "currentTimeMillis"), systemCurrentTimeMillis)
	t.register(MangleName("java/lang/System", "identityHashCode"), systemIdentityHashCode)
	t.register(MangleName("java/io/FileOutputStream", "writeBytes"), fileOutputStreamWriteBytes)
}

// fileOutputStreamWriteBytes implements the spec §6 stdout/stderr bridge:
// this.fd.fd selects the destination writer (1 stdout, 2 stderr); any other
// fd value is not a supported destination.
func fileOutputStreamWriteBytes(env RuntimeEnv, args []value.Value) (value.Value, error) {
	receiver, ok := env.HeapRef().Object(args[0].Ref)
	if !ok {
		return value.Value{}, env.ThrowNew("java/lang/NullPointerException", "writeBytes receiver")
	}
	fdRef, ok := receiver.Fields["fd"]
	if !ok || fdRef.IsNull() {
		return value.Value{}, env.ThrowNew("java/lang/NullPointerException", "writeBytes: no fd")
	}
	fdObj, ok := env.HeapRef().Object(fdRef.Ref)
	if !ok {
		return value.Value{}, env.ThrowNew("java/lang/NullPointerException", "writeBytes: no fd")
	}
	fd := fdObj.Fields["fd"].AsInt32()

	buf, ok := env.HeapRef().Array(args[1].Ref)
	if !ok {
		return value.Value{}, env.ThrowNew("java/lang/NullPointerException", "writeBytes: null buffer")
	}
	off := int(args[2].AsInt32())
	length := int(args[3].AsInt32())
	if off < 0 || length < 0 || off+length > len(buf.Cells) {
		return value.Value{}, env.ThrowNew("java/lang/ArrayIndexOutOfBoundsException", "writeBytes out of range")
	}

	var w interface{ Write([]byte) (int, error) }
	switch fd {
	case 1:
		w = env.Out()
	case 2:
		w = env.Err()
	default:
		return value.Value{}, env.ThrowNew("java/lang/UnsupportedOperationException", "unsupported file descriptor")
	}

	bytes := make([]byte, length)
	for i, cell := range buf.Cells[off : off+length] {
		bytes[i] = byte(cell.AsInt32())
	}
	_, err := w.Write(bytes)
	return value.Value{}, err
}

func systemArraycopy(env RuntimeEnv, args []value.Value) (value.Value, error) {
	if args[0].IsNull() {
		return value.Value{}, env.ThrowNew("java/lang/NullPointerException", "arraycopy src")
	}
	if args[2].IsNull() {
		return value.Value{}, env.ThrowNew("java/lang/NullPointerException", "arraycopy dest")
	}
	src, ok := env.HeapRef().Array(args[0].Ref)
	if !ok {
		return value.Value{}, env.ThrowNew("java/lang/NullPointerException", "arraycopy src")
	}
	dest, ok := env.HeapRef().Array(args[2].Ref)
	if !ok {
		return value.Value{}, env.ThrowNew("java/lang/NullPointerException", "arraycopy dest")
	}
	srcPos := int(args[1].AsInt32())
	destPos := int(args[3].AsInt32())
	length := int(args[4].AsInt32())
	if srcPos < 0 || destPos < 0 || length < 0 ||
		srcPos+length > len(src.Cells) || destPos+length > len(dest.Cells) {
		return value.Value{}, env.ThrowNew("java/lang/ArrayIndexOutOfBoundsException", "arraycopy out of range")
	}
	copy(dest.Cells[destPos:destPos+length], src.Cells[srcPos:srcPos+length])
	return value.Value{}, nil
}

func systemCurrentTimeMillis(env RuntimeEnv, args []value.Value) (value.Value, error) {
	return value.LongValue(atomic.AddInt64(&clockTick, 1)), nil
}

func systemIdentityHashCode(env RuntimeEnv, args []value.Value) (value.Value, error) {
	if args[0].IsNull() {
		return value.IntValue(0), nil
	}
	return value.IntValue(int32(args[0].Ref)), nil
}
