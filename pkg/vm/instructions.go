package vm

import (
	"fmt"
	"math"

	"github.com/daimatz/gojvm/pkg/classfile"
	"github.com/daimatz/gojvm/pkg/value"
)

// step executes a single decoded opcode against frame, whose PC already sits
// just past the opcode byte (at the start of its immediates, if any). It
// returns (returnValue, true, nil) when the opcode completed the current
// method activation, (_, false, nil) to keep looping, or a non-nil error —
// either a *ThrownException or an internal Go fault — to unwind.
//
// invokedynamic and its LambdaMetafactory/StringConcatFactory bootstrap
// machinery are deliberately unimplemented: they are not one of the four
// invocation modes this interpreter resolves.
func (vm *VM) step(frame *Frame, opcode byte) (value.Value, bool, error) {
	instrPC := frame.PC - 1
	s := frame.Stack
	l := frame.Locals

	switch opcode {
	case opNop:
		// no-op

	case opAconstNull:
		s.Push(value.NullValue())
	case opIconstM1, opIconst0, opIconst1, opIconst2, opIconst3, opIconst4, opIconst5:
		s.Push(value.IntValue(int32(opcode) - int32(opIconst0)))
	case opLconst0, opLconst1:
		s.Push(value.LongValue(int64(opcode) - int64(opLconst0)))
	case opFconst0, opFconst1, opFconst2:
		s.Push(value.FloatValue(float32(opcode) - float32(opFconst0)))
	case opDconst0, opDconst1:
		s.Push(value.DoubleValue(float64(opcode) - float64(opDconst0)))
	case opBipush:
		s.Push(value.IntValue(int32(frame.ReadI8())))
	case opSipush:
		s.Push(value.IntValue(int32(frame.ReadI16())))

	case opLdc:
		return value.Value{}, false, vm.ldc(frame, uint16(frame.ReadU8()))
	case opLdcW:
		return value.Value{}, false, vm.ldc(frame, frame.ReadU16())
	case opLdc2W:
		return value.Value{}, false, vm.ldc2w(frame, frame.ReadU16())

	case opIload, opFload, opAload:
		s.Push(l.Get(int(frame.ReadU8())))
	case opLload, opDload:
		s.Push(l.GetWide(int(frame.ReadU8())))
	case opIload0, opFload0, opAload0:
		s.Push(l.Get(0))
	case opIload1, opFload1, opAload1:
		s.Push(l.Get(1))
	case opIload2, opFload2, opAload2:
		s.Push(l.Get(2))
	case opIload3, opFload3, opAload3:
		s.Push(l.Get(3))
	case opLload0, opDload0:
		s.Push(l.GetWide(0))
	case opLload1, opDload1:
		s.Push(l.GetWide(1))
	case opLload2, opDload2:
		s.Push(l.GetWide(2))
	case opLload3, opDload3:
		s.Push(l.GetWide(3))

	case opIstore, opFstore, opAstore:
		l.Set(int(frame.ReadU8()), s.Pop())
	case opLstore, opDstore:
		l.SetWide(int(frame.ReadU8()), s.PopWide())
	case opIstore0, opFstore0, opAstore0:
		l.Set(0, s.Pop())
	case opIstore1, opFstore1, opAstore1:
		l.Set(1, s.Pop())
	case opIstore2, opFstore2, opAstore2:
		l.Set(2, s.Pop())
	case opIstore3, opFstore3, opAstore3:
		l.Set(3, s.Pop())
	case opLstore0, opDstore0:
		l.SetWide(0, s.PopWide())
	case opLstore1, opDstore1:
		l.SetWide(1, s.PopWide())
	case opLstore2, opDstore2:
		l.SetWide(2, s.PopWide())
	case opLstore3, opDstore3:
		l.SetWide(3, s.PopWide())

	case opIaload, opFaload, opBaload, opCaload, opSaload, opAaload:
		idx := s.Pop().AsInt32()
		arr, err := vm.arrayAt(s.Pop(), idx)
		if err != nil {
			return value.Value{}, false, err
		}
		s.Push(arr.Cells[idx])
	case opLaload, opDaload:
		idx := s.Pop().AsInt32()
		arr, err := vm.arrayAt(s.Pop(), idx)
		if err != nil {
			return value.Value{}, false, err
		}
		s.PushWide(arr.Cells[idx])

	case opIastore, opFastore, opAastore:
		v := s.Pop()
		idx := s.Pop().AsInt32()
		arr, err := vm.arrayAt(s.Pop(), idx)
		if err != nil {
			return value.Value{}, false, err
		}
		arr.Cells[idx] = v
	case opBastore:
		v := s.Pop()
		idx := s.Pop().AsInt32()
		arr, err := vm.arrayAt(s.Pop(), idx)
		if err != nil {
			return value.Value{}, false, err
		}
		arr.Cells[idx] = value.ByteValue(int8(v.AsInt32()))
	case opCastore:
		v := s.Pop()
		idx := s.Pop().AsInt32()
		arr, err := vm.arrayAt(s.Pop(), idx)
		if err != nil {
			return value.Value{}, false, err
		}
		arr.Cells[idx] = value.CharValue(uint16(v.AsInt32()))
	case opSastore:
		v := s.Pop()
		idx := s.Pop().AsInt32()
		arr, err := vm.arrayAt(s.Pop(), idx)
		if err != nil {
			return value.Value{}, false, err
		}
		arr.Cells[idx] = value.ShortValue(int16(v.AsInt32()))
	case opLastore, opDastore:
		v := s.PopWide()
		idx := s.Pop().AsInt32()
		arr, err := vm.arrayAt(s.Pop(), idx)
		if err != nil {
			return value.Value{}, false, err
		}
		arr.Cells[idx] = v

	case opPop:
		s.Pop()
	case opPop2:
		if s.TopIsCategory2() {
			s.PopWide()
		} else {
			s.Pop()
			s.Pop()
		}
	case opDup:
		v := s.Pop()
		s.Push(v)
		s.Push(v)
	case opDupX1:
		v1 := s.Pop()
		v2 := s.Pop()
		s.Push(v1)
		s.Push(v2)
		s.Push(v1)
	case opDupX2:
		if s.TopIsCategory2() {
			v1 := s.PopWide()
			v2 := s.Pop()
			s.PushWide(v1)
			s.Push(v2)
			s.PushWide(v1)
		} else {
			v1 := s.Pop()
			v2 := s.Pop()
			v3 := s.Pop()
			s.Push(v1)
			s.Push(v3)
			s.Push(v2)
			s.Push(v1)
		}
	case opDup2:
		if s.TopIsCategory2() {
			v := s.PopWide()
			s.PushWide(v)
			s.PushWide(v)
		} else {
			v1 := s.Pop()
			v2 := s.Pop()
			s.Push(v2)
			s.Push(v1)
			s.Push(v2)
			s.Push(v1)
		}
	case opDup2X1:
		if s.TopIsCategory2() {
			v1 := s.PopWide()
			v2 := s.Pop()
			s.PushWide(v1)
			s.Push(v2)
			s.PushWide(v1)
		} else {
			v1 := s.Pop()
			v2 := s.Pop()
			v3 := s.Pop()
			s.Push(v2)
			s.Push(v1)
			s.Push(v3)
			s.Push(v2)
			s.Push(v1)
		}
	case opDup2X2:
		if s.TopIsCategory2() {
			v1 := s.PopWide()
			if s.TopIsCategory2() {
				v2 := s.PopWide()
				s.PushWide(v1)
				s.PushWide(v2)
				s.PushWide(v1)
			} else {
				v2 := s.Pop()
				v3 := s.Pop()
				s.PushWide(v1)
				s.Push(v3)
				s.Push(v2)
				s.PushWide(v1)
			}
		} else {
			v1 := s.Pop()
			v2 := s.Pop()
			v3 := s.Pop()
			s.Push(v2)
			s.Push(v1)
			s.Push(v3)
			s.Push(v2)
			s.Push(v1)
		}
	case opSwap:
		v1 := s.Pop()
		v2 := s.Pop()
		s.Push(v1)
		s.Push(v2)

	case opIadd:
		b, a := s.Pop().AsInt32(), s.Pop().AsInt32()
		s.Push(value.IntValue(a + b))
	case opIsub:
		b, a := s.Pop().AsInt32(), s.Pop().AsInt32()
		s.Push(value.IntValue(a - b))
	case opImul:
		b, a := s.Pop().AsInt32(), s.Pop().AsInt32()
		s.Push(value.IntValue(a * b))
	case opIdiv:
		b, a := s.Pop().AsInt32(), s.Pop().AsInt32()
		if b == 0 {
			return value.Value{}, false, vm.arithmeticException("/ by zero")
		}
		s.Push(value.IntValue(a / b))
	case opIrem:
		b, a := s.Pop().AsInt32(), s.Pop().AsInt32()
		if b == 0 {
			return value.Value{}, false, vm.arithmeticException("/ by zero")
		}
		s.Push(value.IntValue(a % b))
	case opIneg:
		s.Push(value.IntValue(-s.Pop().AsInt32()))
	case opIshl:
		b, a := s.Pop().AsInt32(), s.Pop().AsInt32()
		s.Push(value.IntValue(a << (uint32(b) & 0x1f)))
	case opIshr:
		b, a := s.Pop().AsInt32(), s.Pop().AsInt32()
		s.Push(value.IntValue(a >> (uint32(b) & 0x1f)))
	case opIushr:
		b, a := s.Pop().AsInt32(), s.Pop().AsInt32()
		s.Push(value.IntValue(int32(uint32(a) >> (uint32(b) & 0x1f))))
	case opIand:
		b, a := s.Pop().AsInt32(), s.Pop().AsInt32()
		s.Push(value.IntValue(a & b))
	case opIor:
		b, a := s.Pop().AsInt32(), s.Pop().AsInt32()
		s.Push(value.IntValue(a | b))
	case opIxor:
		b, a := s.Pop().AsInt32(), s.Pop().AsInt32()
		s.Push(value.IntValue(a ^ b))

	case opLadd:
		b, a := s.PopWide().I64, s.PopWide().I64
		s.PushWide(value.LongValue(a + b))
	case opLsub:
		b, a := s.PopWide().I64, s.PopWide().I64
		s.PushWide(value.LongValue(a - b))
	case opLmul:
		b, a := s.PopWide().I64, s.PopWide().I64
		s.PushWide(value.LongValue(a * b))
	case opLdiv:
		b, a := s.PopWide().I64, s.PopWide().I64
		if b == 0 {
			return value.Value{}, false, vm.arithmeticException("/ by zero")
		}
		s.PushWide(value.LongValue(a / b))
	case opLrem:
		b, a := s.PopWide().I64, s.PopWide().I64
		if b == 0 {
			return value.Value{}, false, vm.arithmeticException("/ by zero")
		}
		s.PushWide(value.LongValue(a % b))
	case opLneg:
		s.PushWide(value.LongValue(-s.PopWide().I64))
	case opLshl:
		b := s.Pop().AsInt32()
		a := s.PopWide().I64
		s.PushWide(value.LongValue(a << (uint32(b) & 0x3f)))
	case opLshr:
		b := s.Pop().AsInt32()
		a := s.PopWide().I64
		s.PushWide(value.LongValue(a >> (uint32(b) & 0x3f)))
	case opLushr:
		b := s.Pop().AsInt32()
		a := s.PopWide().I64
		s.PushWide(value.LongValue(int64(uint64(a) >> (uint32(b) & 0x3f))))
	case opLand:
		b, a := s.PopWide().I64, s.PopWide().I64
		s.PushWide(value.LongValue(a & b))
	case opLor:
		b, a := s.PopWide().I64, s.PopWide().I64
		s.PushWide(value.LongValue(a | b))
	case opLxor:
		b, a := s.PopWide().I64, s.PopWide().I64
		s.PushWide(value.LongValue(a ^ b))

	case opFadd:
		b, a := s.Pop().F32, s.Pop().F32
		s.Push(value.FloatValue(a + b))
	case opFsub:
		b, a := s.Pop().F32, s.Pop().F32
		s.Push(value.FloatValue(a - b))
	case opFmul:
		b, a := s.Pop().F32, s.Pop().F32
		s.Push(value.FloatValue(a * b))
	case opFdiv:
		b, a := s.Pop().F32, s.Pop().F32
		s.Push(value.FloatValue(a / b))
	case opFrem:
		b, a := s.Pop().F32, s.Pop().F32
		s.Push(value.FloatValue(float32(math.Mod(float64(a), float64(b)))))
	case opFneg:
		s.Push(value.FloatValue(-s.Pop().F32))

	case opDadd:
		b, a := s.PopWide().F64, s.PopWide().F64
		s.PushWide(value.DoubleValue(a + b))
	case opDsub:
		b, a := s.PopWide().F64, s.PopWide().F64
		s.PushWide(value.DoubleValue(a - b))
	case opDmul:
		b, a := s.PopWide().F64, s.PopWide().F64
		s.PushWide(value.DoubleValue(a * b))
	case opDdiv:
		b, a := s.PopWide().F64, s.PopWide().F64
		s.PushWide(value.DoubleValue(a / b))
	case opDrem:
		b, a := s.PopWide().F64, s.PopWide().F64
		s.PushWide(value.DoubleValue(math.Mod(a, b)))
	case opDneg:
		s.PushWide(value.DoubleValue(-s.PopWide().F64))

	case opIinc:
		idx := int(frame.ReadU8())
		delta := int32(frame.ReadI8())
		l.Set(idx, value.IntValue(l.Get(idx).AsInt32()+delta))

	case opI2l:
		s.PushWide(value.LongValue(int64(s.Pop().AsInt32())))
	case opI2f:
		s.Push(value.FloatValue(float32(s.Pop().AsInt32())))
	case opI2d:
		s.PushWide(value.DoubleValue(float64(s.Pop().AsInt32())))
	case opL2i:
		s.Push(value.IntValue(int32(s.PopWide().I64)))
	case opL2f:
		s.Push(value.FloatValue(float32(s.PopWide().I64)))
	case opL2d:
		s.PushWide(value.DoubleValue(float64(s.PopWide().I64)))
	case opF2i:
		s.Push(value.IntValue(int32(s.Pop().F32)))
	case opF2l:
		s.PushWide(value.LongValue(int64(s.Pop().F32)))
	case opF2d:
		s.PushWide(value.DoubleValue(float64(s.Pop().F32)))
	case opD2i:
		s.Push(value.IntValue(int32(s.PopWide().F64)))
	case opD2l:
		s.PushWide(value.LongValue(int64(s.PopWide().F64)))
	case opD2f:
		s.Push(value.FloatValue(float32(s.PopWide().F64)))
	case opI2b:
		s.Push(value.IntValue(int32(int8(s.Pop().AsInt32()))))
	case opI2c:
		s.Push(value.IntValue(int32(uint16(s.Pop().AsInt32()))))
	case opI2s:
		s.Push(value.IntValue(int32(int16(s.Pop().AsInt32()))))

	case opLcmp:
		b, a := s.PopWide().I64, s.PopWide().I64
		s.Push(value.IntValue(compareOrdered(a > b, a < b)))
	case opFcmpl:
		b, a := s.Pop().F32, s.Pop().F32
		s.Push(value.IntValue(fcmp(float64(a), float64(b), -1)))
	case opFcmpg:
		b, a := s.Pop().F32, s.Pop().F32
		s.Push(value.IntValue(fcmp(float64(a), float64(b), 1)))
	case opDcmpl:
		b, a := s.PopWide().F64, s.PopWide().F64
		s.Push(value.IntValue(fcmp(a, b, -1)))
	case opDcmpg:
		b, a := s.PopWide().F64, s.PopWide().F64
		s.Push(value.IntValue(fcmp(a, b, 1)))

	case opIfeq:
		branchOn(s.Pop().AsInt32() == 0, frame, instrPC)
	case opIfne:
		branchOn(s.Pop().AsInt32() != 0, frame, instrPC)
	case opIflt:
		branchOn(s.Pop().AsInt32() < 0, frame, instrPC)
	case opIfge:
		branchOn(s.Pop().AsInt32() >= 0, frame, instrPC)
	case opIfgt:
		branchOn(s.Pop().AsInt32() > 0, frame, instrPC)
	case opIfle:
		branchOn(s.Pop().AsInt32() <= 0, frame, instrPC)
	case opIfIcmpeq:
		b, a := s.Pop().AsInt32(), s.Pop().AsInt32()
		branchOn(a == b, frame, instrPC)
	case opIfIcmpne:
		b, a := s.Pop().AsInt32(), s.Pop().AsInt32()
		branchOn(a != b, frame, instrPC)
	case opIfIcmplt:
		b, a := s.Pop().AsInt32(), s.Pop().AsInt32()
		branchOn(a < b, frame, instrPC)
	case opIfIcmpge:
		b, a := s.Pop().AsInt32(), s.Pop().AsInt32()
		branchOn(a >= b, frame, instrPC)
	case opIfIcmpgt:
		b, a := s.Pop().AsInt32(), s.Pop().AsInt32()
		branchOn(a > b, frame, instrPC)
	case opIfIcmple:
		b, a := s.Pop().AsInt32(), s.Pop().AsInt32()
		branchOn(a <= b, frame, instrPC)
	case opIfAcmpeq:
		b, a := s.Pop(), s.Pop()
		branchOn(refEqual(a, b), frame, instrPC)
	case opIfAcmpne:
		b, a := s.Pop(), s.Pop()
		branchOn(!refEqual(a, b), frame, instrPC)
	case opIfnull:
		branchOn(s.Pop().IsNull(), frame, instrPC)
	case opIfnonnull:
		branchOn(!s.Pop().IsNull(), frame, instrPC)
	case opGoto:
		offset := frame.ReadI16()
		frame.PC = instrPC + int(offset)
	case opGotoW:
		offset := frame.ReadI32()
		frame.PC = instrPC + int(offset)

	case opTableswitch:
		frame.PC = vm.tableswitch(frame, instrPC)
	case opLookupswitch:
		frame.PC = vm.lookupswitch(frame, instrPC)

	case opIreturn, opFreturn, opAreturn:
		return s.Pop(), true, nil
	case opLreturn, opDreturn:
		return s.PopWide(), true, nil
	case opReturn:
		return value.Value{}, true, nil

	case opGetstatic:
		v, err := vm.getstatic(frame)
		if err != nil {
			return value.Value{}, false, err
		}
		s.Push(v)
	case opPutstatic:
		if err := vm.putstatic(frame); err != nil {
			return value.Value{}, false, err
		}
	case opGetfield:
		v, err := vm.getfield(frame)
		if err != nil {
			return value.Value{}, false, err
		}
		s.Push(v)
	case opPutfield:
		if err := vm.putfield(frame); err != nil {
			return value.Value{}, false, err
		}

	case opInvokestatic:
		return vm.invoke(frame, ModeStatic)
	case opInvokespecial:
		return vm.invoke(frame, ModeSpecial)
	case opInvokevirtual:
		return vm.invoke(frame, ModeVirtual)
	case opInvokeinterface:
		return vm.invoke(frame, ModeInterface)
	case opInvokedynamic:
		return value.Value{}, false, fmt.Errorf("invokedynamic is not supported: no bootstrap-method dispatch for indy call sites")

	case opNew:
		v, err := vm.newInstance(frame)
		if err != nil {
			return value.Value{}, false, err
		}
		s.Push(v)
	case opNewarray:
		atype := frame.ReadU8()
		v, err := vm.newPrimitiveArray(atype, s.Pop().AsInt32())
		if err != nil {
			return value.Value{}, false, err
		}
		s.Push(v)
	case opAnewarray:
		idx := frame.ReadU16()
		className, err := classfile.GetClassName(frame.Class.ConstantPool, idx)
		if err != nil {
			return value.Value{}, false, err
		}
		v, err := vm.newReferenceArray(className, s.Pop().AsInt32())
		if err != nil {
			return value.Value{}, false, err
		}
		s.Push(v)
	case opArraylength:
		arr, err := vm.arrayRef(s.Pop())
		if err != nil {
			return value.Value{}, false, err
		}
		s.Push(value.IntValue(int32(len(arr.Cells))))

	case opAthrow:
		v := s.Pop()
		if v.IsNull() {
			return value.Value{}, false, vm.nullPointerException("throw null")
		}
		return value.Value{}, false, &ThrownException{ObjectID: v.Ref, ClassName: vm.Heap.Class(vm.objectClassID(v.Ref)).Name}

	case opCheckcast:
		v := s.Peek()
		if err := vm.checkcast(frame, v); err != nil {
			return value.Value{}, false, err
		}
	case opInstanceof:
		v := s.Pop()
		result, err := vm.instanceOf(frame, v)
		if err != nil {
			return value.Value{}, false, err
		}
		s.Push(result)

	case opMonitorenter, opMonitorexit:
		s.Pop() // single-threaded: no lock bookkeeping, just drop the receiver

	case opWide:
		return vm.wide(frame)

	default:
		return value.Value{}, false, fmt.Errorf("unimplemented opcode 0x%02x at pc %d", opcode, instrPC)
	}
	return value.Value{}, false, nil
}

func branchOn(cond bool, frame *Frame, instrPC int) bool {
	offset := frame.ReadI16()
	if cond {
		frame.PC = instrPC + int(offset)
	}
	return cond
}

func refEqual(a, b value.Value) bool {
	if a.IsNull() || b.IsNull() {
		return a.IsNull() && b.IsNull()
	}
	return a.Ref == b.Ref
}

// compareOrdered implements lcmp's ordering: 1 if gt, -1 if lt, 0 if equal.
func compareOrdered(gt, lt bool) int32 {
	switch {
	case gt:
		return 1
	case lt:
		return -1
	default:
		return 0
	}
}

// fcmp implements fcmpl/fcmpg/dcmpl/dcmpg: nanResult is the value pushed
// when either operand is NaN (1 for the *g forms, -1 for the *l forms).
func fcmp(a, b float64, nanResult int32) int32 {
	if math.IsNaN(a) || math.IsNaN(b) {
		return nanResult
	}
	switch {
	case a > b:
		return 1
	case a < b:
		return -1
	default:
		return 0
	}
}
