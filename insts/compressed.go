package insts

// prime maps x8-x15 to the 3-bit register field.
func prime(r uint8) uint16 {
	return uint16(r-8) & 0x7
}

// unprime maps a 3-bit register field back to x8-x15.
func unprime(field uint16) uint8 {
	return uint8(field&0x7) + 8
}

//nolint:gocyclo // one case per compressed format
func encodeCompressed(inst Instruction) uint16 {
	info := inst.Op.info()
	imm := uint32(inst.Imm)
	quadrant := uint16(info.opcode)
	f3 := uint16(info.funct3) << 13

	switch info.format {
	case FormatCI:
		if inst.Op == OpCNOP {
			return 0x0001
		}
		l := layoutCI
		if inst.Op == OpCLWSP {
			l = layoutCILWSP
		}
		return f3 | uint16(l.scatter(imm)) | uint16(inst.Rd)<<7 | quadrant

	case FormatCSS:
		return f3 | uint16(layoutCSSSWSP.scatter(imm)) | uint16(inst.Rs2)<<2 | quadrant

	case FormatCL:
		return f3 | uint16(layoutCLW.scatter(imm)) | prime(inst.Rs1)<<7 | prime(inst.Rd)<<2 | quadrant

	case FormatCS:
		return f3 | uint16(layoutCLW.scatter(imm)) | prime(inst.Rs1)<<7 | prime(inst.Rs2)<<2 | quadrant

	case FormatCA:
		return uint16(info.funct7)<<10 | prime(inst.Rd)<<7 | uint16(info.funct3)<<5 |
			prime(inst.Rs2)<<2 | quadrant

	case FormatCB:
		if info.class == ClassBranch {
			return f3 | uint16(layoutCB.scatter(imm)) | prime(inst.Rs1)<<7 | quadrant
		}
		return f3 | uint16(layoutCI.scatter(imm)) | uint16(info.funct7)<<10 | prime(inst.Rd)<<7 | quadrant

	case FormatCJ:
		return f3 | uint16(layoutCJ.scatter(imm)) | quadrant

	case FormatCR:
		return uint16(info.funct7)<<12 | uint16(inst.Rd)<<7 | uint16(inst.Rs2)<<2 | quadrant

	case FormatCU:
		return uint16(info.funct7)<<10 | prime(inst.Rd)<<7 | 0b11<<5 | uint16(info.funct3)<<2 | quadrant

	case FormatCLB:
		return uint16(info.funct7)<<10 | prime(inst.Rs1)<<7 | uint16(layoutCByte.scatter(imm)) |
			prime(inst.Rd)<<2 | quadrant

	case FormatCLH:
		return uint16(info.funct7)<<10 | prime(inst.Rs1)<<7 | uint16(info.funct3)<<6 |
			uint16(layoutCHalf.scatter(imm)) | prime(inst.Rd)<<2 | quadrant

	case FormatCSB:
		return uint16(info.funct7)<<10 | prime(inst.Rs1)<<7 | uint16(layoutCByte.scatter(imm)) |
			prime(inst.Rs2)<<2 | quadrant

	case FormatCSH:
		return uint16(info.funct7)<<10 | prime(inst.Rs1)<<7 | uint16(layoutCHalf.scatter(imm)) |
			prime(inst.Rs2)<<2 | quadrant
	}

	return 0
}

func (d *Decoder) decodeCompressed(half uint16) *Instruction {
	switch half & 0x3 {
	case 0b00:
		return d.decodeQuadrant0(half)
	case 0b01:
		return d.decodeQuadrant1(half)
	case 0b10:
		return d.decodeQuadrant2(half)
	}
	return unknown()
}

func unknown() *Instruction {
	return &Instruction{Op: OpUnknown}
}

func (d *Decoder) decodeQuadrant0(half uint16) *Instruction {
	word := uint32(half)
	rdp := unprime(half >> 2)
	rs1p := unprime(half >> 7)

	switch half >> 13 {
	case 0b010:
		return &Instruction{Op: OpCLW, Rd: rdp, Rs1: rs1p, Imm: int32(layoutCLW.gather(word))}
	case 0b110:
		return &Instruction{Op: OpCSW, Rs1: rs1p, Rs2: rdp, Imm: int32(layoutCLW.gather(word))}
	case 0b100:
		switch (half >> 10) & 0x7 {
		case 0b000:
			return &Instruction{Op: OpCLBU, Rd: rdp, Rs1: rs1p, Imm: int32(layoutCByte.gather(word))}
		case 0b001:
			op := OpCLHU
			if half&(1<<6) != 0 {
				op = OpCLH
			}
			return &Instruction{Op: op, Rd: rdp, Rs1: rs1p, Imm: int32(layoutCHalf.gather(word))}
		case 0b010:
			return &Instruction{Op: OpCSB, Rs1: rs1p, Rs2: rdp, Imm: int32(layoutCByte.gather(word))}
		case 0b011:
			if half&(1<<6) != 0 {
				return unknown()
			}
			return &Instruction{Op: OpCSH, Rs1: rs1p, Rs2: rdp, Imm: int32(layoutCHalf.gather(word))}
		}
	}

	return unknown()
}

//nolint:gocyclo // quadrant 1 holds most of the compressed opcodes
func (d *Decoder) decodeQuadrant1(half uint16) *Instruction {
	word := uint32(half)
	rd := uint8((half >> 7) & 0x1F)
	ciImm := signExtend(layoutCI.gather(word), 6)

	switch half >> 13 {
	case 0b000:
		if half == 0x0001 {
			return &Instruction{Op: OpCNOP}
		}
		if rd == 0 {
			return unknown()
		}
		return &Instruction{Op: OpCADDI, Rd: rd, Rs1: rd, Imm: ciImm}
	case 0b001:
		return &Instruction{Op: OpCJAL, Rd: RegRA, Imm: signExtend(layoutCJ.gather(word), 12)}
	case 0b010:
		if rd == 0 {
			return unknown()
		}
		return &Instruction{Op: OpCLI, Rd: rd, Imm: ciImm}
	case 0b011:
		if rd == 0 || rd == RegSP || ciImm == 0 {
			return unknown()
		}
		return &Instruction{Op: OpCLUI, Rd: rd, Imm: ciImm}
	case 0b100:
		return d.decodeArith(half)
	case 0b101:
		return &Instruction{Op: OpCJ, Imm: signExtend(layoutCJ.gather(word), 12)}
	case 0b110, 0b111:
		op := OpCBEQZ
		if half>>13 == 0b111 {
			op = OpCBNEZ
		}
		return &Instruction{Op: op, Rs1: unprime(half >> 7), Imm: signExtend(layoutCB.gather(word), 9)}
	}

	return unknown()
}

func (d *Decoder) decodeArith(half uint16) *Instruction {
	word := uint32(half)
	rdp := unprime(half >> 7)
	rs2p := unprime(half >> 2)
	bit12 := half&(1<<12) != 0

	switch (half >> 10) & 0x3 {
	case 0b00, 0b01:
		shamt := int32(layoutCI.gather(word))
		if bit12 || shamt == 0 {
			return unknown()
		}
		op := OpCSRLI
		if (half>>10)&0x3 == 0b01 {
			op = OpCSRAI
		}
		return &Instruction{Op: op, Rd: rdp, Rs1: rdp, Imm: shamt}
	case 0b10:
		return &Instruction{Op: OpCANDI, Rd: rdp, Rs1: rdp, Imm: signExtend(layoutCI.gather(word), 6)}
	}

	funct2 := (half >> 5) & 0x3
	if !bit12 {
		ops := [4]Op{OpCSUB, OpCXOR, OpCOR, OpCAND}
		return &Instruction{Op: ops[funct2], Rd: rdp, Rs1: rdp, Rs2: rs2p}
	}

	switch funct2 {
	case 0b10:
		return &Instruction{Op: OpCMUL, Rd: rdp, Rs1: rdp, Rs2: rs2p}
	case 0b11:
		ops := map[uint16]Op{
			0b000: OpCZEXTB,
			0b001: OpCSEXTB,
			0b010: OpCZEXTH,
			0b011: OpCSEXTH,
			0b101: OpCNOT,
		}
		op, ok := ops[(half>>2)&0x7]
		if !ok {
			return unknown()
		}
		return &Instruction{Op: op, Rd: rdp, Rs1: rdp}
	}

	return unknown()
}

func (d *Decoder) decodeQuadrant2(half uint16) *Instruction {
	word := uint32(half)
	rd := uint8((half >> 7) & 0x1F)
	rs2 := uint8((half >> 2) & 0x1F)
	bit12 := half&(1<<12) != 0

	switch half >> 13 {
	case 0b000:
		shamt := int32(layoutCI.gather(word))
		if rd == 0 || bit12 || shamt == 0 {
			return unknown()
		}
		return &Instruction{Op: OpCSLLI, Rd: rd, Rs1: rd, Imm: shamt}
	case 0b010:
		if rd == 0 {
			return unknown()
		}
		return &Instruction{Op: OpCLWSP, Rd: rd, Rs1: RegSP, Imm: int32(layoutCILWSP.gather(word))}
	case 0b100:
		if rd == 0 || rs2 == 0 {
			return unknown()
		}
		if bit12 {
			return &Instruction{Op: OpCADD, Rd: rd, Rs1: rd, Rs2: rs2}
		}
		return &Instruction{Op: OpCMV, Rd: rd, Rs2: rs2}
	case 0b110:
		return &Instruction{Op: OpCSWSP, Rs1: RegSP, Rs2: rs2, Imm: int32(layoutCSSSWSP.gather(word))}
	}

	return unknown()
}
