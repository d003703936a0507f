package scenario

import (
	"fmt"
	"math/rand"

	"github.com/sarchlab/qvcheck/bus"
	"github.com/sarchlab/qvcheck/emu"
	"github.com/sarchlab/qvcheck/insts"
)

// Kind tags the variant of an OperationDescriptor.
type Kind uint8

// Operation kinds.
const (
	KindALUImm Kind = iota
	KindALURegister
	KindCompressedImm
	KindCompressedRegister
	KindLoad
	KindStore
	KindBranch
	KindPointer
)

var kindNames = [...]string{
	"alu-imm", "alu-reg", "c-imm", "c-reg", "load", "store", "branch", "pointer",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// codeLimit keeps branch targets in the low half of flash so the sequential
// fetch that follows never runs into RAM.
const codeLimit = 0x800000

// Env is the state randomization and legality look at.
type Env struct {
	Model   *emu.Model
	Encoder *insts.Encoder
	Window  Window
}

// OperationDescriptor describes one family of instructions the random
// stream draws from. Every capability dispatches on Kind.
type OperationDescriptor struct {
	Kind   Kind
	Ops    []insts.Op
	Weight int
}

// IsMemoryOp reports whether the family needs a data transaction.
func (d OperationDescriptor) IsMemoryOp() bool {
	return d.Kind == KindLoad || d.Kind == KindStore
}

// Applicable reports whether any instruction of the family can be legal in
// env. Compressed loads and stores need a base register that already
// points into the window.
func (d OperationDescriptor) Applicable(env Env) bool {
	if !d.IsMemoryOp() {
		return len(d.Ops) > 0
	}

	for _, op := range d.Ops {
		if len(env.bases(op)) > 0 {
			return true
		}
	}

	return false
}

// Randomize draws an instruction of the family. The result may be illegal;
// callers resample until Legal accepts it.
func (d OperationDescriptor) Randomize(rng *rand.Rand, env Env) insts.Instruction {
	n := int(env.Model.RegFile().Count())
	reg := func() uint8 { return uint8(rng.Intn(n)) }

	op := d.Ops[rng.Intn(len(d.Ops))]
	imm := immediate(rng, op)

	switch d.Kind {
	case KindALUImm:
		if op.Format() == insts.FormatU {
			return insts.Instruction{Op: op, Rd: reg(), Imm: imm}
		}
		return insts.Instruction{Op: op, Rd: reg(), Rs1: reg(), Imm: imm}
	case KindALURegister:
		return insts.Instruction{Op: op, Rd: reg(), Rs1: reg(), Rs2: reg()}
	case KindCompressedImm:
		rd := reg()
		if op == insts.OpCLI || op == insts.OpCLUI {
			return insts.Instruction{Op: op, Rd: rd, Imm: imm}
		}
		return insts.Instruction{Op: op, Rd: rd, Rs1: rd, Imm: imm}
	case KindCompressedRegister:
		rd := reg()
		if op == insts.OpCMV {
			return insts.Instruction{Op: op, Rd: rd, Rs2: reg()}
		}
		return insts.Instruction{Op: op, Rd: rd, Rs1: rd, Rs2: reg()}
	case KindLoad, KindStore:
		return d.randomizeMemory(rng, env, reg)
	case KindBranch:
		switch op {
		case insts.OpJAL:
			return insts.Instruction{Op: op, Rd: reg(), Imm: imm}
		case insts.OpCJ:
			return insts.Instruction{Op: op, Imm: imm}
		case insts.OpCJAL:
			return insts.Instruction{Op: op, Rd: insts.RegRA, Imm: imm}
		case insts.OpCBEQZ, insts.OpCBNEZ:
			return insts.Instruction{Op: op, Rs1: reg(), Imm: imm}
		}
		return insts.Instruction{Op: op, Rs1: reg(), Rs2: reg(), Imm: imm}
	case KindPointer:
		return insts.Instruction{Op: insts.OpADDI, Rd: reg(), Rs1: insts.RegGP, Imm: imm}
	}

	return insts.Instruction{}
}

func (d OperationDescriptor) randomizeMemory(rng *rand.Rand, env Env, reg func() uint8) insts.Instruction {
	for {
		op := d.Ops[rng.Intn(len(d.Ops))]

		bases := env.bases(op)
		if len(bases) == 0 {
			continue
		}

		base := bases[rng.Intn(len(bases))]
		imm := immediate(rng, op)

		if d.Kind == KindLoad {
			return insts.Instruction{Op: op, Rd: reg(), Rs1: base, Imm: imm}
		}
		return insts.Instruction{Op: op, Rs1: base, Rs2: reg(), Imm: imm}
	}
}

// Legal reports whether inst can be encoded and stays within the harness'
// address rules: data accesses inside the window, branch targets inside the
// code region, pointers into the window.
func (d OperationDescriptor) Legal(inst insts.Instruction, env Env) bool {
	if env.Encoder.Validate(inst) != nil {
		return false
	}

	m := env.Model

	switch d.Kind {
	case KindLoad, KindStore:
		addr := uint32(m.Reg(inst.Rs1) + inst.Imm)
		return env.Window.Contains(addr, inst.Op.AccessSize())
	case KindBranch:
		target := int64(m.PC()) + int64(inst.Imm)
		return target >= 0 && target < codeLimit
	case KindPointer:
		addr := uint32(m.Reg(insts.RegGP) + inst.Imm)
		return m.RegFile().Writable(inst.Rd) && env.Window.Contains(addr, 4)
	}

	return true
}

// Generate resamples Randomize until the result is legal.
func (d OperationDescriptor) Generate(rng *rand.Rand, env Env) insts.Instruction {
	for {
		inst := d.Randomize(rng, env)
		if d.Legal(inst, env) {
			return inst
		}
	}
}

// Encode returns the bit pattern of inst.
func (d OperationDescriptor) Encode(enc *insts.Encoder, inst insts.Instruction) (uint32, error) {
	return enc.Encode(inst)
}

// Predict applies inst to the golden model. loadData is only used by
// loads.
func (d OperationDescriptor) Predict(m *emu.Model, inst insts.Instruction, loadData uint32) emu.StepResult {
	return m.Execute(inst, loadData)
}

// PerformMemory runs the data transaction of a load or store on the bus
// and returns the bytes that moved. Other kinds do nothing.
func (d OperationDescriptor) PerformMemory(p bus.Port, side MemorySide, a emu.Access) (uint32, error) {
	switch d.Kind {
	case KindLoad:
		return side.load(p, a)
	case KindStore:
		return side.store(p, a)
	}
	return 0, nil
}

// bases returns the registers that can serve as the base of op with the
// offset zero, given the current golden register values.
func (env Env) bases(op insts.Op) []uint8 {
	lo, hi := uint8(0), env.Model.RegFile().Count()-1

	switch op.Format() {
	case insts.FormatCL, insts.FormatCS, insts.FormatCLB, insts.FormatCSB,
		insts.FormatCLH, insts.FormatCSH:
		lo, hi = 8, 15
	case insts.FormatCI, insts.FormatCSS:
		lo, hi = insts.RegSP, insts.RegSP
	}

	var regs []uint8
	for r := lo; r <= hi; r++ {
		if env.Window.Contains(uint32(env.Model.Reg(r)), op.AccessSize()) {
			regs = append(regs, r)
		}
	}

	return regs
}

// upperRange bounds the signed 20-bit immediates of the U and J formats.
const upperRange = 1 << 19

func between(rng *rand.Rand, lo, hi int32) int32 {
	return lo + rng.Int31n(hi-lo+1)
}

//nolint:gocyclo // one range per immediate shape
func immediate(rng *rand.Rand, op insts.Op) int32 {
	switch op {
	case insts.OpSLLI, insts.OpSRLI, insts.OpSRAI:
		return between(rng, 0, 31)
	case insts.OpCSLLI, insts.OpCSRLI, insts.OpCSRAI:
		return between(rng, 1, 31)
	case insts.OpCADDI, insts.OpCLI, insts.OpCANDI, insts.OpCLUI:
		return between(rng, -32, 31)
	case insts.OpCZEXTB, insts.OpCSEXTB, insts.OpCZEXTH, insts.OpCSEXTH, insts.OpCNOT:
		return 0
	case insts.OpCLW, insts.OpCSW:
		return 4 * between(rng, 0, 31)
	case insts.OpCLWSP, insts.OpCSWSP:
		return 4 * between(rng, 0, 63)
	case insts.OpCLBU, insts.OpCSB:
		return between(rng, 0, 3)
	case insts.OpCLHU, insts.OpCLH, insts.OpCSH:
		return 2 * between(rng, 0, 1)
	case insts.OpCBEQZ, insts.OpCBNEZ:
		return 2 * between(rng, -128, 127)
	case insts.OpCJ, insts.OpCJAL:
		return 2 * between(rng, -1024, 1023)
	}

	switch op.Format() {
	case insts.FormatB:
		return 2 * between(rng, -2048, 2047)
	case insts.FormatJ:
		return 2 * between(rng, -upperRange, upperRange-1)
	case insts.FormatU:
		return between(rng, -upperRange, upperRange-1)
	}

	return between(rng, -2048, 2047)
}

// Catalog is a weighted set of operation families.
type Catalog []OperationDescriptor

// DefaultCatalog covers every ALU, load, store and branch opcode of RV32EC
// with Zcb.
func DefaultCatalog() Catalog {
	return Catalog{
		{Kind: KindALUImm, Weight: 6, Ops: []insts.Op{
			insts.OpADDI, insts.OpSLTI, insts.OpSLTIU, insts.OpXORI, insts.OpORI,
			insts.OpANDI, insts.OpSLLI, insts.OpSRLI, insts.OpSRAI, insts.OpLUI,
			insts.OpAUIPC,
		}},
		{Kind: KindALURegister, Weight: 6, Ops: []insts.Op{
			insts.OpADD, insts.OpSUB, insts.OpSLL, insts.OpSLT, insts.OpSLTU,
			insts.OpXOR, insts.OpSRL, insts.OpSRA, insts.OpOR, insts.OpAND,
		}},
		{Kind: KindCompressedImm, Weight: 4, Ops: []insts.Op{
			insts.OpCADDI, insts.OpCLI, insts.OpCLUI, insts.OpCSLLI, insts.OpCSRLI,
			insts.OpCSRAI, insts.OpCANDI, insts.OpCZEXTB, insts.OpCSEXTB,
			insts.OpCZEXTH, insts.OpCSEXTH, insts.OpCNOT,
		}},
		{Kind: KindCompressedRegister, Weight: 4, Ops: []insts.Op{
			insts.OpCMV, insts.OpCADD, insts.OpCSUB, insts.OpCXOR, insts.OpCOR,
			insts.OpCAND, insts.OpCMUL,
		}},
		{Kind: KindLoad, Weight: 3, Ops: []insts.Op{
			insts.OpLB, insts.OpLH, insts.OpLW, insts.OpLBU, insts.OpLHU,
			insts.OpCLW, insts.OpCLBU, insts.OpCLHU, insts.OpCLH, insts.OpCLWSP,
		}},
		{Kind: KindStore, Weight: 3, Ops: []insts.Op{
			insts.OpSB, insts.OpSH, insts.OpSW, insts.OpCSW, insts.OpCSB,
			insts.OpCSH, insts.OpCSWSP,
		}},
		{Kind: KindBranch, Weight: 2, Ops: []insts.Op{
			insts.OpBEQ, insts.OpBNE, insts.OpBLT, insts.OpBGE, insts.OpBLTU,
			insts.OpBGEU, insts.OpCBEQZ, insts.OpCBNEZ, insts.OpJAL, insts.OpCJ,
			insts.OpCJAL,
		}},
		{Kind: KindPointer, Weight: 2, Ops: []insts.Op{insts.OpADDI}},
	}
}

// ALUOnly returns the catalog restricted to register arithmetic.
func (c Catalog) ALUOnly() Catalog {
	return c.Only(KindALUImm, KindALURegister, KindCompressedImm, KindCompressedRegister)
}

// Only returns the descriptors of the given kinds.
func (c Catalog) Only(kinds ...Kind) Catalog {
	var out Catalog
	for _, d := range c {
		for _, k := range kinds {
			if d.Kind == k {
				out = append(out, d)
				break
			}
		}
	}
	return out
}

// Pick draws a descriptor by weight among those applicable in env.
func (c Catalog) Pick(rng *rand.Rand, env Env) (OperationDescriptor, bool) {
	total := 0
	for _, d := range c {
		if d.Weight > 0 && d.Applicable(env) {
			total += d.Weight
		}
	}

	if total == 0 {
		return OperationDescriptor{}, false
	}

	n := rng.Intn(total)
	for _, d := range c {
		if d.Weight <= 0 || !d.Applicable(env) {
			continue
		}
		if n < d.Weight {
			return d, true
		}
		n -= d.Weight
	}

	return OperationDescriptor{}, false
}
