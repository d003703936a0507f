package insts

// Decoder reconstructs semantic instructions from transferred words.
type Decoder struct{}

// NewDecoder creates a new RV32E decoder.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Length returns the instruction length in bytes given its first half-word.
func Length(first uint16) int {
	if first&0x3 == 0x3 {
		return 4
	}
	return 2
}

// Decode decodes an instruction word. A compressed instruction is taken from
// the low 16 bits and the high bits are ignored. Unrecognised patterns decode
// to OpUnknown.
func (d *Decoder) Decode(word uint32) *Instruction {
	if Length(uint16(word)) == 2 {
		return d.decodeCompressed(uint16(word))
	}

	opcode := word & 0x7F
	funct3 := (word >> 12) & 0x7
	funct7 := word >> 25
	rd := uint8((word >> 7) & 0x1F)
	rs1 := uint8((word >> 15) & 0x1F)
	rs2 := uint8((word >> 20) & 0x1F)

	op := d.lookupStandard(opcode, funct3, funct7)
	if op == OpUnknown {
		return unknown()
	}

	inst := &Instruction{Op: op}

	switch op.Format() {
	case FormatR:
		inst.Rd, inst.Rs1, inst.Rs2 = rd, rs1, rs2
	case FormatI:
		inst.Rd, inst.Rs1 = rd, rs1
		if op == OpSLLI || op == OpSRLI || op == OpSRAI {
			inst.Imm = int32(rs2)
		} else {
			inst.Imm = signExtend(layoutI.gather(word), 12)
		}
	case FormatS:
		inst.Rs1, inst.Rs2 = rs1, rs2
		inst.Imm = signExtend(layoutS.gather(word), 12)
	case FormatB:
		inst.Rs1, inst.Rs2 = rs1, rs2
		inst.Imm = signExtend(layoutB.gather(word), 13)
	case FormatU:
		inst.Rd = rd
		inst.Imm = signExtend(layoutU.gather(word), 20)
	case FormatJ:
		inst.Rd = rd
		inst.Imm = signExtend(layoutJ.gather(word), 21)
	}

	return inst
}

func (d *Decoder) lookupStandard(opcode, funct3, funct7 uint32) Op {
	for op := OpUnknown + 1; op < numOps; op++ {
		info := opTable[op]
		if info.format >= FormatCR || info.opcode != opcode {
			continue
		}

		switch info.format {
		case FormatU, FormatJ:
			return op
		case FormatR:
			if info.funct3 == funct3 && info.funct7 == funct7 {
				return op
			}
		case FormatI:
			if info.funct3 != funct3 {
				continue
			}
			isShift := op == OpSLLI || op == OpSRLI || op == OpSRAI
			if !isShift || info.funct7 == funct7 {
				return op
			}
		default:
			if info.funct3 == funct3 {
				return op
			}
		}
	}

	return OpUnknown
}
