package vm

import (
	"github.com/daimatz/gojvm/pkg/classfile"
	"github.com/daimatz/gojvm/pkg/heap"
	"github.com/daimatz/gojvm/pkg/value"
)

// Frame is one activation record of the interpreter's call stack: an operand
// stack, a local variable table, a PC into the defining method's bytecode,
// and enough context (defining class, constant pool, method) to resolve
// constant-pool references and exception handlers without threading them
// through every opcode handler.
type Frame struct {
	Stack   *value.Stack
	Locals  *value.Locals
	Code    []byte
	PC      int
	Class   *classfile.ClassFile
	ClassID heap.ClassID
	Method  *classfile.MethodInfo
}

// NewFrame builds a Frame for a method about to execute, sized per its Code
// attribute's max_stack/max_locals.
func NewFrame(classID heap.ClassID, cf *classfile.ClassFile, method *classfile.MethodInfo) *Frame {
	code := method.Code
	return &Frame{
		Stack:   value.NewStack(int(code.MaxStack)),
		Locals:  value.NewLocals(int(code.MaxLocals)),
		Code:    code.Code,
		Class:   cf,
		ClassID: classID,
		Method:  method,
	}
}

// ReadU8 reads a uint8 operand and advances PC.
func (f *Frame) ReadU8() uint8 {
	v := f.Code[f.PC]
	f.PC++
	return v
}

// ReadI8 reads an int8 operand and advances PC.
func (f *Frame) ReadI8() int8 {
	return int8(f.ReadU8())
}

// ReadU16 reads a big-endian uint16 operand and advances PC by 2.
func (f *Frame) ReadU16() uint16 {
	v := uint16(f.Code[f.PC])<<8 | uint16(f.Code[f.PC+1])
	f.PC += 2
	return v
}

// ReadI16 reads a big-endian int16 operand and advances PC by 2.
func (f *Frame) ReadI16() int16 {
	return int16(f.ReadU16())
}

// ReadU32 reads a big-endian uint32 operand and advances PC by 4.
func (f *Frame) ReadU32() uint32 {
	v := uint32(f.Code[f.PC])<<24 | uint32(f.Code[f.PC+1])<<16 | uint32(f.Code[f.PC+2])<<8 | uint32(f.Code[f.PC+3])
	f.PC += 4
	return v
}

// ReadI32 reads a big-endian int32 operand and advances PC by 4.
func (f *Frame) ReadI32() int32 {
	return int32(f.ReadU32())
}

// AlignPC4 advances PC to the next multiple of 4 relative to the start of
// the method's code (PC 0),
// as required before reading tableswitch/lookupswitch padding.
func (f *Frame) AlignPC4() {
	for f.PC%4 != 0 {
		f.PC++
	}
}
