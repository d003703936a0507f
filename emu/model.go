package emu

import (
	"errors"
	"fmt"

	"github.com/sarchlab/qvcheck/insts"
)

// Errors returned by the model.
var (
	ErrUnknownInstruction = errors.New("unknown instruction")
	ErrNotMemoryOp        = errors.New("instruction does not access memory")
	ErrFlashAccess        = errors.New("loads and stores to flash are unsupported")
	ErrInstructionLimit   = errors.New("max instructions reached")
)

// StepResult represents the result of executing a single instruction.
type StepResult struct {
	// NextPC is the address of the next instruction.
	NextPC uint32

	// Taken is true if a branch or jump transferred control.
	Taken bool

	// Err is set if the instruction could not be executed.
	Err error
}

// Model predicts the architectural effect of injected instructions.
type Model struct {
	regFile *RegFile
	space   *AddressSpace

	alu        *ALU
	lsu        *LoadStoreUnit
	branchUnit *BranchUnit

	pc uint32

	numRegs          uint8
	gp, tp           uint32
	instructionCount uint64
	maxInstructions  uint64 // 0 means no limit
}

// ModelOption is a functional option for configuring the Model.
type ModelOption func(*Model)

// WithRegisterCount selects a 16 (RV32E) or 32 (RV32I) entry register file.
func WithRegisterCount(n uint8) ModelOption {
	return func(m *Model) {
		m.numRegs = n
	}
}

// WithPointers sets the initial global and thread pointer values.
func WithPointers(gp, tp uint32) ModelOption {
	return func(m *Model) {
		m.gp = gp
		m.tp = tp
	}
}

// WithEntry sets the initial program counter.
func WithEntry(pc uint32) ModelOption {
	return func(m *Model) {
		m.pc = pc
	}
}

// WithMaxInstructions sets the maximum number of instructions to execute.
// A value of 0 means no limit.
func WithMaxInstructions(max uint64) ModelOption {
	return func(m *Model) {
		m.maxInstructions = max
	}
}

// NewModel creates a golden model with every general register zero.
func NewModel(opts ...ModelOption) *Model {
	m := &Model{
		numRegs: 16,
		gp:      DefaultGP,
		tp:      DefaultTP,
		space:   NewAddressSpace(),
	}

	for _, opt := range opts {
		opt(m)
	}

	m.Reset()

	return m
}

// Reset clears the registers and the instruction count. The program counter
// and pointer registers go back to their configured values.
func (m *Model) Reset() {
	m.regFile = NewRegFile(m.numRegs)
	_ = m.regFile.SetPointer(insts.RegGP, m.gp)
	_ = m.regFile.SetPointer(insts.RegTP, m.tp)

	m.alu = NewALU(m.regFile)
	m.lsu = NewLoadStoreUnit(m.regFile)
	m.branchUnit = NewBranchUnit(m.regFile)

	m.instructionCount = 0
}

// RegFile returns the model's register file.
func (m *Model) RegFile() *RegFile {
	return m.regFile
}

// AddressSpace returns the model's address space.
func (m *Model) AddressSpace() *AddressSpace {
	return m.space
}

// PC returns the address of the next instruction the core will fetch.
func (m *Model) PC() uint32 {
	return m.pc
}

// SetPC moves the program counter, as a restarted fetch does.
func (m *Model) SetPC(pc uint32) {
	m.pc = pc
}

// SetPointer sets gp or tp. It is the only way to change them.
func (m *Model) SetPointer(reg uint8, value uint32) error {
	return m.regFile.SetPointer(reg, value)
}

// Reg returns the value of a register.
func (m *Model) Reg(reg uint8) int32 {
	return m.regFile.ReadReg(reg)
}

// InstructionCount returns the number of instructions executed.
func (m *Model) InstructionCount() uint64 {
	return m.instructionCount
}

// Access predicts the memory access of a load or store.
func (m *Model) Access(inst insts.Instruction) (Access, error) {
	if !inst.IsMemoryOp() {
		return Access{}, fmt.Errorf("%s: %w", inst, ErrNotMemoryOp)
	}

	addr := m.lsu.Address(inst)
	a := Access{
		Addr:   addr,
		Size:   inst.Op.AccessSize(),
		Region: m.space.Region(addr),
		Store:  inst.Op.Class() == insts.ClassStore,
	}

	if a.Region == RegionFlash {
		return a, fmt.Errorf("%s at %#x: %w", inst, addr, ErrFlashAccess)
	}

	if a.Store {
		a.Value = m.lsu.StoreValue(inst)
	}

	return a, nil
}

// Execute applies inst at the current program counter. loadData is the
// value the memory side returned for a load and is ignored otherwise.
func (m *Model) Execute(inst insts.Instruction, loadData uint32) StepResult {
	if m.maxInstructions > 0 && m.instructionCount >= m.maxInstructions {
		return StepResult{NextPC: m.pc, Err: ErrInstructionLimit}
	}

	result := m.execute(inst, loadData)
	if result.Err != nil {
		return result
	}

	m.pc = result.NextPC
	m.instructionCount++

	return result
}

func (m *Model) execute(inst insts.Instruction, loadData uint32) StepResult {
	next := m.pc + uint32(inst.Length())

	switch inst.Op.Class() {
	case insts.ClassNop:
	case insts.ClassUpper:
		m.alu.Upper(inst.Op, inst.Rd, inst.Imm, m.pc)
	case insts.ClassALUImm:
		m.alu.Imm(inst.Op, inst.Rd, inst.Rs1, inst.Imm)
	case insts.ClassALUReg:
		m.alu.Reg(inst.Op, inst.Rd, inst.Rs1, inst.Rs2)
	case insts.ClassLoad:
		if _, err := m.Access(inst); err != nil {
			return StepResult{NextPC: m.pc, Err: err}
		}
		m.lsu.Load(inst, loadData)
	case insts.ClassStore:
		if _, err := m.Access(inst); err != nil {
			return StepResult{NextPC: m.pc, Err: err}
		}
	case insts.ClassBranch, insts.ClassJump:
		target, taken := m.branchUnit.Execute(inst, m.pc)
		return StepResult{NextPC: target, Taken: taken}
	default:
		return StepResult{
			NextPC: m.pc,
			Err:    fmt.Errorf("%w at PC=0x%X", ErrUnknownInstruction, m.pc),
		}
	}

	return StepResult{NextPC: next}
}
