package scenario

import (
	"errors"
	"fmt"

	"github.com/sarchlab/qvcheck/insts"
)

// Scenario errors.
var (
	// ErrMismatch is wrapped by every MismatchError.
	ErrMismatch = errors.New("golden model mismatch")
	// ErrEncoding means an encoded instruction did not decode back to itself.
	ErrEncoding = errors.New("encoding does not round-trip")
	// ErrReset means the device did not go through reset as expected.
	ErrReset = errors.New("reset sequence failed")
	// ErrUnpredictable means the golden model cannot know a load's data.
	ErrUnpredictable = errors.New("load data cannot be predicted")
	// ErrFillerRunning means the main sequence tried to use the bus while
	// the filler owns it.
	ErrFillerRunning = errors.New("filler owns the bus")
	// ErrEmptyCatalog means no operation of the catalog can be generated.
	ErrEmptyCatalog = errors.New("no applicable operation in catalog")
)

// MismatchError reports a value seen on the bus that differs from the
// golden model.
type MismatchError struct {
	Inst insts.Instruction
	// Reg is the register whose value was observed.
	Reg  uint8
	Want uint32
	Got  uint32
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("%s: x%d = 0x%08x, want 0x%08x (%s)",
		ErrMismatch, e.Reg, e.Got, e.Want, e.Inst)
}

// Unwrap returns ErrMismatch.
func (e *MismatchError) Unwrap() error {
	return ErrMismatch
}
