package insts

// NibbleOrder lists the bit offsets of the nibbles of a word in the order
// they cross the quad-SPI bus: each byte goes out high nibble first, and
// bytes go out lowest address first.
var NibbleOrder = [8]uint{4, 0, 12, 8, 20, 16, 28, 24}

// Nibbles splits the low nbytes bytes of value into bus order.
func Nibbles(value uint32, nbytes int) []uint8 {
	out := make([]uint8, 0, 2*nbytes)
	for _, shift := range NibbleOrder[:2*nbytes] {
		out = append(out, uint8(value>>shift)&0xF)
	}
	return out
}

// Assemble is the inverse of Nibbles: it rebuilds a value from nibbles in
// bus order.
func Assemble(nibbles []uint8) uint32 {
	var value uint32
	for i, n := range nibbles {
		if i >= len(NibbleOrder) {
			break
		}
		value |= uint32(n&0xF) << NibbleOrder[i]
	}
	return value
}

// InstructionNibbles returns the nibbles of an encoded instruction: four for
// a compressed instruction, eight otherwise.
func InstructionNibbles(word uint32) []uint8 {
	return Nibbles(word, Length(uint16(word)))
}
