// Package latency provides the timing configuration of a scenario and the
// execution cycle table of the reference core.
package latency

import (
	"github.com/sarchlab/qvcheck/insts"
)

// Table provides instruction latency lookups.
type Table struct {
	config *TimingConfig
}

// NewTable creates a new latency table with default timing values.
func NewTable() *Table {
	return &Table{
		config: DefaultTimingConfig(),
	}
}

// NewTableWithConfig creates a new latency table with custom timing configuration.
func NewTableWithConfig(config *TimingConfig) *Table {
	return &Table{
		config: config,
	}
}

// GetLatency returns the execution latency in cycles for the given instruction.
func (t *Table) GetLatency(inst insts.Instruction) uint64 {
	if inst.Op == insts.OpCMUL {
		return t.config.MultiplyLatency
	}

	switch inst.Op.Class() {
	case insts.ClassBranch, insts.ClassJump:
		return t.config.BranchLatency
	case insts.ClassLoad:
		return t.config.LoadLatency
	case insts.ClassStore:
		return t.config.StoreLatency
	case insts.ClassALUImm, insts.ClassALUReg, insts.ClassUpper:
		return t.config.ALULatency
	default:
		return 1
	}
}

// StallCycles returns the number of cycles the core holds the QSPI clock low
// after inst before it fetches the next nibble.
func (t *Table) StallCycles(inst insts.Instruction) uint64 {
	return t.GetLatency(inst) - 1
}

// ReadDelay returns the number of cycles the core holds the QSPI clock low
// before the first data nibble of a read, as set by latency_cfg.
func (t *Table) ReadDelay(latencyCfg uint8) uint64 {
	if latencyCfg <= 1 {
		return 0
	}
	return uint64(latencyCfg) - 1
}

// IsMemoryOp returns true if the instruction accesses memory.
func (t *Table) IsMemoryOp(inst insts.Instruction) bool {
	return inst.IsMemoryOp()
}

// IsLoadOp returns true if the instruction is a load operation.
func (t *Table) IsLoadOp(inst insts.Instruction) bool {
	return inst.Op.Class() == insts.ClassLoad
}

// IsStoreOp returns true if the instruction is a store operation.
func (t *Table) IsStoreOp(inst insts.Instruction) bool {
	return inst.Op.Class() == insts.ClassStore
}

// IsBranchOp returns true if the instruction is a branch or jump.
func (t *Table) IsBranchOp(inst insts.Instruction) bool {
	c := inst.Op.Class()
	return c == insts.ClassBranch || c == insts.ClassJump
}

// Config returns the current timing configuration.
func (t *Table) Config() *TimingConfig {
	return t.config
}
