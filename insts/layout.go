package insts

// immBit maps one logical immediate bit to its physical position in the word.
type immBit struct {
	logical  uint8
	physical uint8
}

// immLayout is the complete scatter table of one immediate family.
type immLayout []immBit

// span places logical bits hi..lo at physical bits starting at at for lo.
func span(hi, lo, at uint8) []immBit {
	bits := make([]immBit, 0, hi-lo+1)
	for b := lo; b <= hi; b++ {
		bits = append(bits, immBit{logical: b, physical: at + (b - lo)})
	}
	return bits
}

func layout(parts ...[]immBit) immLayout {
	var l immLayout
	for _, p := range parts {
		l = append(l, p...)
	}
	return l
}

// scatter places the bits of imm at their physical positions.
func (l immLayout) scatter(imm uint32) uint32 {
	var word uint32
	for _, b := range l {
		word |= ((imm >> b.logical) & 1) << b.physical
	}
	return word
}

// gather collects the physical bits of word back into an immediate.
func (l immLayout) gather(word uint32) uint32 {
	var imm uint32
	for _, b := range l {
		imm |= ((word >> b.physical) & 1) << b.logical
	}
	return imm
}

// Standard formats.
var (
	layoutI = layout(span(11, 0, 20))
	layoutS = layout(span(4, 0, 7), span(11, 5, 25))
	layoutB = layout(span(4, 1, 8), span(10, 5, 25), span(11, 11, 7), span(12, 12, 31))
	layoutU = layout(span(19, 0, 12))
	layoutJ = layout(span(10, 1, 21), span(11, 11, 20), span(19, 12, 12), span(20, 20, 31))
)

// Compressed formats. Bit lists read from the instruction's most significant
// bit down, as the ISA manual tables do.
var (
	// imm[5] | imm[4:0]
	layoutCI = layout(span(5, 5, 12), span(4, 0, 2))

	// uimm[5] | uimm[4:2|7:6]
	layoutCILWSP = layout(span(5, 5, 12), span(4, 2, 4), span(7, 6, 2))

	// uimm[5:2|7:6]
	layoutCSSSWSP = layout(span(5, 2, 9), span(7, 6, 7))

	// uimm[5:3] | uimm[2|6]
	layoutCLW = layout(span(5, 3, 10), span(2, 2, 6), span(6, 6, 5))

	// offset[8|4:3] | offset[7:6|2:1|5]
	layoutCB = layout(span(8, 8, 12), span(4, 3, 10),
		span(7, 6, 5), span(2, 1, 3), span(5, 5, 2))

	// offset[11|4|9:8|10|6|7|3:1|5]
	layoutCJ = layout(span(11, 11, 12), span(4, 4, 11), span(9, 8, 9),
		span(10, 10, 8), span(6, 6, 7), span(7, 7, 6), span(3, 1, 3), span(5, 5, 2))

	// uimm[0|1]
	layoutCByte = layout(span(0, 0, 6), span(1, 1, 5))

	// uimm[1]
	layoutCHalf = layout(span(1, 1, 5))
)

func signExtend(v uint32, bits uint) int32 {
	shift := 32 - bits
	return int32(v<<shift) >> shift
}
