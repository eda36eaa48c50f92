package vm

import (
	"fmt"

	"github.com/daimatz/gojvm/pkg/classfile"
	"github.com/daimatz/gojvm/pkg/value"
)

// ldc pushes the constant-pool entry at idx: a category-1 literal (int,
// float), a materialized (and interned) java/lang/String for a String
// constant, or the java/lang/Class mirror for a Class constant. ldc_w shares
// this implementation — the two opcodes differ only in operand width, which
// the caller has already consumed.
func (vm *VM) ldc(frame *Frame, idx uint16) error {
	pool := frame.Class.ConstantPool
	if int(idx) >= len(pool) || pool[idx] == nil {
		return fmt.Errorf("ldc: invalid constant pool index %d", idx)
	}
	switch entry := pool[idx].(type) {
	case *classfile.ConstantInteger:
		frame.Stack.Push(value.IntValue(entry.Value))
	case *classfile.ConstantFloat:
		frame.Stack.Push(value.FloatValue(entry.Value))
	case *classfile.ConstantString:
		s, err := classfile.GetUtf8(pool, entry.StringIndex)
		if err != nil {
			return fmt.Errorf("ldc: resolving string: %w", err)
		}
		frame.Stack.Push(vm.internString(s))
	case *classfile.ConstantClass:
		className, err := classfile.GetClassName(pool, idx)
		if err != nil {
			return fmt.Errorf("ldc: resolving class: %w", err)
		}
		classID, err := vm.loadClass(className, false)
		if err != nil {
			return err
		}
		frame.Stack.Push(value.RefValue(vm.Heap.Class(classID).ClassObjectID))
	default:
		return fmt.Errorf("ldc: constant pool index %d is not a loadable constant (tag=%d)", idx, pool[idx].Tag())
	}
	return nil
}

// wide executes the opcode immediately following a wide prefix, reading its
// local-variable index (and, for iinc, its delta) as u16 instead of the u8
// the unprefixed form uses. It returns like step itself: (value, hasReturn,
// err), since the widened opcode is always one of the non-returning local
// variable ops or iinc.
func (vm *VM) wide(frame *Frame) (value.Value, bool, error) {
	l := frame.Locals
	s := frame.Stack
	opcode := frame.ReadU8()
	idx := int(frame.ReadU16())
	switch opcode {
	case opIload, opFload, opAload:
		s.Push(l.Get(idx))
	case opLload, opDload:
		s.Push(l.GetWide(idx))
	case opIstore, opFstore, opAstore:
		l.Set(idx, s.Pop())
	case opLstore, opDstore:
		l.SetWide(idx, s.PopWide())
	case opIinc:
		delta := frame.ReadI16()
		l.Set(idx, value.IntValue(l.Get(idx).AsInt32()+int32(delta)))
	case opRet:
		frame.PC = int(l.Get(idx).AsInt32())
	default:
		return value.Value{}, false, fmt.Errorf("wide: unsupported opcode 0x%02x", opcode)
	}
	return value.Value{}, false, nil
}

// ldc2w pushes a category-2 constant (long or double); there is no narrow
// form since a u1 index could never span the u2 range a wide constant needs.
func (vm *VM) ldc2w(frame *Frame, idx uint16) error {
	pool := frame.Class.ConstantPool
	if int(idx) >= len(pool) || pool[idx] == nil {
		return fmt.Errorf("ldc2_w: invalid constant pool index %d", idx)
	}
	switch entry := pool[idx].(type) {
	case *classfile.ConstantLong:
		frame.Stack.PushWide(value.LongValue(entry.Value))
	case *classfile.ConstantDouble:
		frame.Stack.PushWide(value.DoubleValue(entry.Value))
	default:
		return fmt.Errorf("ldc2_w: constant pool index %d is not a wide constant (tag=%d)", idx, pool[idx].Tag())
	}
	return nil
}
