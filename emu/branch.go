package emu

import "github.com/sarchlab/qvcheck/insts"

// BranchUnit implements branches and jumps.
type BranchUnit struct {
	regFile *RegFile
}

// NewBranchUnit creates a new BranchUnit connected to the given register file.
func NewBranchUnit(regFile *RegFile) *BranchUnit {
	return &BranchUnit{regFile: regFile}
}

// Taken reports whether a branch or jump transfers control.
func (b *BranchUnit) Taken(inst insts.Instruction) bool {
	x := b.regFile.ReadReg(inst.Rs1)
	y := b.regFile.ReadReg(inst.Rs2)

	switch inst.Op {
	case insts.OpJAL, insts.OpCJ, insts.OpCJAL:
		return true
	case insts.OpBEQ:
		return x == y
	case insts.OpBNE:
		return x != y
	case insts.OpBLT:
		return x < y
	case insts.OpBGE:
		return x >= y
	case insts.OpBLTU:
		return uint32(x) < uint32(y)
	case insts.OpBGEU:
		return uint32(x) >= uint32(y)
	case insts.OpCBEQZ:
		return x == 0
	case insts.OpCBNEZ:
		return x != 0
	}

	return false
}

// Execute resolves a branch or jump at pc, writes the link register of a
// jump, and returns the next program counter.
func (b *BranchUnit) Execute(inst insts.Instruction, pc uint32) (next uint32, taken bool) {
	fallthroughPC := pc + uint32(inst.Length())
	taken = b.Taken(inst)

	if inst.Op.Class() == insts.ClassJump {
		b.regFile.WriteReg(inst.Rd, int64(fallthroughPC))
	}

	if !taken {
		return fallthroughPC, false
	}

	return pc + uint32(inst.Imm), true
}
