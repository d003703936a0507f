package insts

import "fmt"

// Register aliases used by the harness.
const (
	RegZero uint8 = 0
	RegRA   uint8 = 1
	RegSP   uint8 = 2
	RegGP   uint8 = 3
	RegTP   uint8 = 4
)

// Instruction is a semantic RV32E instruction: an opcode plus its operands.
//
// Field use depends on the format. Instructions that read and write the same
// register (c.addi, c.srli, c.and, ...) carry the register in both Rd and Rs1.
// For lui and c.lui, Imm is the value placed in bits 31:12 of the result.
type Instruction struct {
	Op  Op    // Operation code
	Rd  uint8 // Destination register
	Rs1 uint8 // First source register, base register for loads and stores
	Rs2 uint8 // Second source register, data register for stores
	Imm int32 // Immediate or offset
}

// Format returns the encoding format of the instruction.
func (i Instruction) Format() Format {
	return i.Op.Format()
}

// Length returns the encoded length in bytes.
func (i Instruction) Length() int {
	if i.Op.IsCompressed() {
		return 2
	}
	return 4
}

// IsMemoryOp reports whether the instruction is a load or a store.
func (i Instruction) IsMemoryOp() bool {
	c := i.Op.Class()
	return c == ClassLoad || c == ClassStore
}

// String renders the instruction in assembler syntax.
func (i Instruction) String() string {
	name := i.Op.String()

	switch i.Op.Class() {
	case ClassNop:
		return name
	case ClassUpper:
		return fmt.Sprintf("%s x%d, %#x", name, i.Rd, uint32(i.Imm)&0xFFFFF)
	case ClassLoad:
		return fmt.Sprintf("%s x%d, %d(x%d)", name, i.Rd, i.Imm, i.Rs1)
	case ClassStore:
		return fmt.Sprintf("%s x%d, %d(x%d)", name, i.Rs2, i.Imm, i.Rs1)
	case ClassBranch:
		if i.Op.IsCompressed() {
			return fmt.Sprintf("%s x%d, %d", name, i.Rs1, i.Imm)
		}
		return fmt.Sprintf("%s x%d, x%d, %d", name, i.Rs1, i.Rs2, i.Imm)
	case ClassJump:
		return fmt.Sprintf("%s x%d, %d", name, i.Rd, i.Imm)
	case ClassALUReg:
		return fmt.Sprintf("%s x%d, x%d, x%d", name, i.Rd, i.Rs1, i.Rs2)
	case ClassALUImm:
		if i.Op.Format() == FormatCU {
			return fmt.Sprintf("%s x%d", name, i.Rd)
		}
		return fmt.Sprintf("%s x%d, x%d, %d", name, i.Rd, i.Rs1, i.Imm)
	}

	return name
}

// ADDI builds addi rd, rs1, imm.
func ADDI(rd, rs1 uint8, imm int32) Instruction {
	return Instruction{Op: OpADDI, Rd: rd, Rs1: rs1, Imm: imm}
}

// NOP builds the canonical 32-bit nop, addi x0, x0, 0.
func NOP() Instruction {
	return ADDI(0, 0, 0)
}

// LUI builds lui rd, upper.
func LUI(rd uint8, upper int32) Instruction {
	return Instruction{Op: OpLUI, Rd: rd, Imm: upper}
}

// LW builds lw rd, offset(rs1).
func LW(rd, rs1 uint8, offset int32) Instruction {
	return Instruction{Op: OpLW, Rd: rd, Rs1: rs1, Imm: offset}
}

// SW builds sw rs2, offset(rs1).
func SW(rs1, rs2 uint8, offset int32) Instruction {
	return Instruction{Op: OpSW, Rs1: rs1, Rs2: rs2, Imm: offset}
}

// JAL builds jal rd, offset.
func JAL(rd uint8, offset int32) Instruction {
	return Instruction{Op: OpJAL, Rd: rd, Imm: offset}
}

// SplitConstant returns the lui upper value and addi low value whose sum is v.
// The low part is sign-extended by addi, so the upper part absorbs the carry.
func SplitConstant(v uint32) (upper int32, low int32) {
	low = int32(v<<20) >> 20
	upper = int32((v - uint32(low)) >> 12)
	if upper >= 1<<19 {
		upper -= 1 << 20
	}
	return upper, low
}
