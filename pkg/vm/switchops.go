package vm

// tableswitch and lookupswitch pad to a 4-byte boundary measured from the
// start of the owning method's bytecode (JVMS 6.5); since every frame's Code
// slice already starts at offset 0 of that method, aligning relative to the
// current PC is equivalent.

func (vm *VM) tableswitch(frame *Frame, instrPC int) int {
	frame.AlignPC4()
	defaultOffset := frame.ReadI32()
	low := frame.ReadI32()
	high := frame.ReadI32()
	key := frame.Stack.Pop().AsInt32()
	if key < low || key > high {
		return instrPC + int(defaultOffset)
	}
	frame.PC += int(key-low) * 4
	offset := frame.ReadI32()
	return instrPC + int(offset)
}

func (vm *VM) lookupswitch(frame *Frame, instrPC int) int {
	frame.AlignPC4()
	defaultOffset := frame.ReadI32()
	npairs := frame.ReadI32()
	key := frame.Stack.Pop().AsInt32()
	for i := int32(0); i < npairs; i++ {
		matchValue := frame.ReadI32()
		offset := frame.ReadI32()
		if matchValue == key {
			return instrPC + int(offset)
		}
	}
	return instrPC + int(defaultOffset)
}
