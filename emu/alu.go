package emu

import "github.com/sarchlab/qvcheck/insts"

// ALU implements the integer arithmetic and logic operations.
type ALU struct {
	regFile *RegFile
}

// NewALU creates a new ALU connected to the given register file.
func NewALU(regFile *RegFile) *ALU {
	return &ALU{regFile: regFile}
}

// Reg performs a register-register operation: rd = rs1 op rs2.
func (a *ALU) Reg(op insts.Op, rd, rs1, rs2 uint8) {
	x := a.regFile.ReadReg(rs1)
	y := a.regFile.ReadReg(rs2)
	a.regFile.WriteReg(rd, Compute(op, x, y))
}

// Imm performs a register-immediate operation: rd = rs1 op imm.
func (a *ALU) Imm(op insts.Op, rd, rs1 uint8, imm int32) {
	x := a.regFile.ReadReg(rs1)
	a.regFile.WriteReg(rd, Compute(op, x, imm))
}

// Upper performs lui, c.lui and auipc.
func (a *ALU) Upper(op insts.Op, rd uint8, upper int32, pc uint32) {
	value := int64(upper) << 12
	if op == insts.OpAUIPC {
		value += int64(pc)
	}
	a.regFile.WriteReg(rd, value)
}

// Compute returns the unnormalised result of applying op to x and y.
//
//nolint:gocyclo // one case per opcode
func Compute(op insts.Op, x, y int32) int64 {
	ux, uy := uint32(x), uint32(y)

	switch op {
	case insts.OpADD, insts.OpADDI, insts.OpCADD, insts.OpCADDI,
		insts.OpCLI, insts.OpCMV:
		return int64(x) + int64(y)
	case insts.OpSUB, insts.OpCSUB:
		return int64(x) - int64(y)
	case insts.OpAND, insts.OpANDI, insts.OpCAND, insts.OpCANDI:
		return int64(x & y)
	case insts.OpOR, insts.OpORI, insts.OpCOR:
		return int64(x | y)
	case insts.OpXOR, insts.OpXORI, insts.OpCXOR:
		return int64(x ^ y)
	case insts.OpSLT, insts.OpSLTI:
		return boolValue(x < y)
	case insts.OpSLTU, insts.OpSLTIU:
		return boolValue(ux < uy)
	case insts.OpSLL, insts.OpSLLI, insts.OpCSLLI:
		return int64(int32(ux << (uy & 31)))
	case insts.OpSRL, insts.OpSRLI, insts.OpCSRLI:
		return int64(int32(ux >> (uy & 31)))
	case insts.OpSRA, insts.OpSRAI, insts.OpCSRAI:
		return int64(x >> (uy & 31))
	case insts.OpCMUL:
		return int64(x) * int64(uy&0xFFFF)
	case insts.OpCZEXTB:
		return int64(ux & 0xFF)
	case insts.OpCSEXTB:
		return int64(int8(x))
	case insts.OpCZEXTH:
		return int64(ux & 0xFFFF)
	case insts.OpCSEXTH:
		return int64(int16(x))
	case insts.OpCNOT:
		return int64(^x)
	}

	return 0
}

func boolValue(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
