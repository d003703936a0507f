package emu

import "github.com/sarchlab/qvcheck/insts"

// LoadStoreUnit computes effective addresses and applies load results.
type LoadStoreUnit struct {
	regFile *RegFile
}

// NewLoadStoreUnit creates a new LoadStoreUnit connected to the given
// register file.
func NewLoadStoreUnit(regFile *RegFile) *LoadStoreUnit {
	return &LoadStoreUnit{regFile: regFile}
}

// Address returns rs1 + imm with 32-bit wraparound.
func (lsu *LoadStoreUnit) Address(inst insts.Instruction) uint32 {
	return uint32(lsu.regFile.ReadReg(inst.Rs1)) + uint32(inst.Imm)
}

// StoreValue returns the low AccessSize bytes of rs2.
func (lsu *LoadStoreUnit) StoreValue(inst insts.Instruction) uint32 {
	return truncate(uint32(lsu.regFile.ReadReg(inst.Rs2)), inst.Op.AccessSize())
}

// Load writes the extended load data to rd.
func (lsu *LoadStoreUnit) Load(inst insts.Instruction, data uint32) {
	lsu.regFile.WriteReg(inst.Rd, int64(Extend(inst.Op, data)))
}

// Extend zero- or sign-extends the low AccessSize bytes of data the way op
// does.
func Extend(op insts.Op, data uint32) int32 {
	switch op.AccessSize() {
	case 1:
		if op.SignExtends() {
			return int32(int8(data))
		}
		return int32(data & 0xFF)
	case 2:
		if op.SignExtends() {
			return int32(int16(data))
		}
		return int32(data & 0xFFFF)
	}
	return int32(data)
}

func truncate(v uint32, size int) uint32 {
	switch size {
	case 1:
		return v & 0xFF
	case 2:
		return v & 0xFFFF
	}
	return v
}
