// Package emu provides the golden model of the core's architectural state.
//
// The model never fetches on its own. It is told which instruction the
// harness injected and, for loads, which data the harness drove, and it
// predicts the register and program-counter effects of that instruction.
package emu

import (
	"fmt"

	"github.com/sarchlab/qvcheck/insts"
)

// Fixed values the core holds in its pointer registers.
const (
	DefaultGP uint32 = 0x1000400
	DefaultTP uint32 = 0x8000000
)

// RegFile represents the integer register file.
// Register 0 always reads as 0. The global pointer (x3) and thread pointer
// (x4) can only be changed through SetPointer.
type RegFile struct {
	// X holds the registers. Only the first Count() entries are used.
	X [32]int32

	count uint8
}

// NewRegFile creates a register file with count registers, 16 for RV32E or
// 32 for RV32I.
func NewRegFile(count uint8) *RegFile {
	if count != 16 && count != 32 {
		panic(fmt.Sprintf("emu: unsupported register count %d", count))
	}

	r := &RegFile{count: count}
	r.X[insts.RegGP] = int32(DefaultGP)
	r.X[insts.RegTP] = int32(DefaultTP)

	return r
}

// Count returns the number of architectural registers.
func (r *RegFile) Count() uint8 {
	return r.count
}

// ReadReg reads a register value. Registers outside the file read as 0.
func (r *RegFile) ReadReg(reg uint8) int32 {
	if reg == 0 || reg >= r.count {
		return 0
	}
	return r.X[reg]
}

// WriteReg writes a value to a register after normalising it into the
// signed 32-bit range. Writes to x0, gp, tp and to registers outside the
// file are discarded.
func (r *RegFile) WriteReg(reg uint8, value int64) {
	if !r.Writable(reg) {
		return
	}
	r.X[reg] = Normalize(value)
}

// Writable reports whether a write to reg changes the register file.
func (r *RegFile) Writable(reg uint8) bool {
	return reg != insts.RegZero && reg != insts.RegGP && reg != insts.RegTP &&
		reg < r.count
}

// SetPointer sets the global or thread pointer register.
func (r *RegFile) SetPointer(reg uint8, value uint32) error {
	if reg != insts.RegGP && reg != insts.RegTP {
		return fmt.Errorf("x%d is not a pointer register", reg)
	}
	r.X[reg] = int32(value)
	return nil
}

// Snapshot returns a copy of the used registers.
func (r *RegFile) Snapshot() []int32 {
	regs := make([]int32, r.count)
	copy(regs, r.X[:r.count])
	return regs
}

// Normalize folds v into [-2^31, 2^31-1] by adding or subtracting 2^32.
func Normalize(v int64) int32 {
	v = (v + 1<<31) % (1 << 32)
	if v < 0 {
		v += 1 << 32
	}
	return int32(v - 1<<31)
}
