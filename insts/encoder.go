package insts

import (
	"errors"
	"fmt"
)

// Validation errors. Encode wraps one of these with the offending value.
var (
	ErrUnknownOp           = errors.New("unknown opcode")
	ErrRegisterOutOfRange  = errors.New("register out of range")
	ErrImmediateOutOfRange = errors.New("immediate out of range")
	ErrMisalignedImmediate = errors.New("immediate not aligned")
	ErrTiedOperandsDiffer  = errors.New("tied operands differ")
	ErrReservedOperand     = errors.New("reserved operand value")
)

// DefaultRegisterCount is the RV32E register file size.
const DefaultRegisterCount = 16

// Encoder turns semantic instructions into bit patterns.
type Encoder struct {
	numRegs uint8
}

// EncoderOption configures an Encoder.
type EncoderOption func(*Encoder)

// WithRegisterCount sets the number of architectural registers, 16 for RV32E
// or 32 for RV32I.
func WithRegisterCount(n uint8) EncoderOption {
	return func(e *Encoder) {
		e.numRegs = n
	}
}

// NewEncoder creates a new RV32E encoder.
func NewEncoder(opts ...EncoderOption) *Encoder {
	e := &Encoder{numRegs: DefaultRegisterCount}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Validate reports whether inst can be encoded, and if not, why.
func Validate(inst Instruction) error {
	return defaultEncoder.Validate(inst)
}

// Encode encodes inst with the default RV32E encoder.
func Encode(inst Instruction) (uint32, error) {
	return defaultEncoder.Encode(inst)
}

var defaultEncoder = NewEncoder()

// Validate reports whether inst can be encoded, and if not, why.
func (e *Encoder) Validate(inst Instruction) error {
	if inst.Op == OpUnknown || inst.Op >= numOps {
		return fmt.Errorf("%w: %d", ErrUnknownOp, inst.Op)
	}

	if err := e.validateRegisters(inst); err != nil {
		return fmt.Errorf("%s: %w", inst.Op, err)
	}

	if err := validateImmediate(inst); err != nil {
		return fmt.Errorf("%s: %w", inst.Op, err)
	}

	return nil
}

func (e *Encoder) reg(name string, r uint8) error {
	if r >= e.numRegs {
		return fmt.Errorf("%w: %s=x%d, limit x%d", ErrRegisterOutOfRange, name, r, e.numRegs-1)
	}
	return nil
}

func primeReg(name string, r uint8) error {
	if r < 8 || r > 15 {
		return fmt.Errorf("%w: %s=x%d, want x8-x15", ErrRegisterOutOfRange, name, r)
	}
	return nil
}

func nonZeroReg(name string, r uint8) error {
	if r == 0 {
		return fmt.Errorf("%w: %s=x0", ErrReservedOperand, name)
	}
	return nil
}

func tied(inst Instruction) error {
	if inst.Rd != inst.Rs1 {
		return fmt.Errorf("%w: rd=x%d rs1=x%d", ErrTiedOperandsDiffer, inst.Rd, inst.Rs1)
	}
	return nil
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

//nolint:gocyclo // one case per format is clearer than splitting
func (e *Encoder) validateRegisters(inst Instruction) error {
	switch inst.Op.Format() {
	case FormatR:
		return firstErr(e.reg("rd", inst.Rd), e.reg("rs1", inst.Rs1), e.reg("rs2", inst.Rs2))
	case FormatI:
		return firstErr(e.reg("rd", inst.Rd), e.reg("rs1", inst.Rs1))
	case FormatS, FormatB:
		return firstErr(e.reg("rs1", inst.Rs1), e.reg("rs2", inst.Rs2))
	case FormatU, FormatJ:
		return e.reg("rd", inst.Rd)
	case FormatCR:
		if inst.Op == OpCADD {
			if err := tied(inst); err != nil {
				return err
			}
		}
		return firstErr(e.reg("rd", inst.Rd), e.reg("rs2", inst.Rs2),
			nonZeroReg("rd", inst.Rd), nonZeroReg("rs2", inst.Rs2))
	case FormatCI:
		return e.validateCI(inst)
	case FormatCSS:
		if inst.Rs1 != RegSP {
			return fmt.Errorf("%w: base must be sp, got x%d", ErrReservedOperand, inst.Rs1)
		}
		return e.reg("rs2", inst.Rs2)
	case FormatCL, FormatCLB, FormatCLH:
		return firstErr(primeReg("rd", inst.Rd), primeReg("rs1", inst.Rs1))
	case FormatCS, FormatCSB, FormatCSH:
		return firstErr(primeReg("rs1", inst.Rs1), primeReg("rs2", inst.Rs2))
	case FormatCA:
		return firstErr(tied(inst), primeReg("rd", inst.Rd), primeReg("rs2", inst.Rs2))
	case FormatCB:
		if inst.Op.Class() == ClassBranch {
			return primeReg("rs1", inst.Rs1)
		}
		return firstErr(tied(inst), primeReg("rd", inst.Rd))
	case FormatCU:
		return firstErr(tied(inst), primeReg("rd", inst.Rd))
	case FormatCJ:
		want := RegZero
		if inst.Op == OpCJAL {
			want = RegRA
		}
		if inst.Rd != want {
			return fmt.Errorf("%w: link register must be x%d, got x%d", ErrReservedOperand, want, inst.Rd)
		}
		return nil
	}

	return nil
}

func (e *Encoder) validateCI(inst Instruction) error {
	switch inst.Op {
	case OpCNOP:
		if inst.Rd != 0 || inst.Rs1 != 0 || inst.Imm != 0 {
			return fmt.Errorf("%w: c.nop takes no operands", ErrReservedOperand)
		}
		return nil
	case OpCADDI, OpCSLLI:
		return firstErr(tied(inst), e.reg("rd", inst.Rd), nonZeroReg("rd", inst.Rd))
	case OpCLI:
		return firstErr(e.reg("rd", inst.Rd), nonZeroReg("rd", inst.Rd))
	case OpCLUI:
		if inst.Rd == RegSP {
			return fmt.Errorf("%w: rd=x2", ErrReservedOperand)
		}
		return firstErr(e.reg("rd", inst.Rd), nonZeroReg("rd", inst.Rd))
	case OpCLWSP:
		if inst.Rs1 != RegSP {
			return fmt.Errorf("%w: base must be sp, got x%d", ErrReservedOperand, inst.Rs1)
		}
		return firstErr(e.reg("rd", inst.Rd), nonZeroReg("rd", inst.Rd))
	}
	return nil
}

type immRule struct {
	min, max int32
	align    int32
	nonZero  bool
}

//nolint:gocyclo // table of immediate ranges
func immRuleFor(op Op) (immRule, bool) {
	switch op {
	case OpSLLI, OpSRLI, OpSRAI:
		return immRule{min: 0, max: 31, align: 1}, true
	case OpCSLLI, OpCSRLI, OpCSRAI:
		return immRule{min: 1, max: 31, align: 1}, true
	case OpCADDI, OpCLI, OpCANDI:
		return immRule{min: -32, max: 31, align: 1}, true
	case OpCLUI:
		return immRule{min: -32, max: 31, align: 1, nonZero: true}, true
	case OpCLW, OpCSW:
		return immRule{min: 0, max: 124, align: 4}, true
	case OpCLWSP, OpCSWSP:
		return immRule{min: 0, max: 252, align: 4}, true
	case OpCLBU, OpCSB:
		return immRule{min: 0, max: 3, align: 1}, true
	case OpCLHU, OpCLH, OpCSH:
		return immRule{min: 0, max: 2, align: 2}, true
	case OpCBEQZ, OpCBNEZ:
		return immRule{min: -256, max: 254, align: 2}, true
	case OpCJ, OpCJAL:
		return immRule{min: -2048, max: 2046, align: 2}, true
	}

	switch op.Format() {
	case FormatI, FormatS:
		return immRule{min: -2048, max: 2047, align: 1}, true
	case FormatB:
		return immRule{min: -4096, max: 4094, align: 2}, true
	case FormatU:
		return immRule{min: -(1 << 19), max: 1<<19 - 1, align: 1}, true
	case FormatJ:
		return immRule{min: -(1 << 20), max: 1<<20 - 2, align: 2}, true
	}

	return immRule{}, false
}

func validateImmediate(inst Instruction) error {
	rule, ok := immRuleFor(inst.Op)
	if !ok {
		return nil
	}

	if inst.Imm < rule.min || inst.Imm > rule.max {
		return fmt.Errorf("%w: %d not in [%d, %d]", ErrImmediateOutOfRange, inst.Imm, rule.min, rule.max)
	}

	if inst.Imm%rule.align != 0 {
		return fmt.Errorf("%w: %d not a multiple of %d", ErrMisalignedImmediate, inst.Imm, rule.align)
	}

	if rule.nonZero && inst.Imm == 0 {
		return fmt.Errorf("%w: immediate must be non-zero", ErrReservedOperand)
	}

	return nil
}

// Encode validates inst and returns its bit pattern. Compressed instructions
// occupy the low 16 bits.
func (e *Encoder) Encode(inst Instruction) (uint32, error) {
	if err := e.Validate(inst); err != nil {
		return 0, err
	}

	if inst.Op.IsCompressed() {
		return uint32(encodeCompressed(inst)), nil
	}

	return encodeStandard(inst), nil
}

// MustEncode is like Encode but panics on an invalid instruction.
func (e *Encoder) MustEncode(inst Instruction) uint32 {
	word, err := e.Encode(inst)
	if err != nil {
		panic(err)
	}
	return word
}

func encodeStandard(inst Instruction) uint32 {
	info := inst.Op.info()
	imm := uint32(inst.Imm)
	rd := uint32(inst.Rd) << 7
	rs1 := uint32(inst.Rs1) << 15
	rs2 := uint32(inst.Rs2) << 20
	f3 := info.funct3 << 12

	switch info.format {
	case FormatR:
		return info.funct7<<25 | rs2 | rs1 | f3 | rd | info.opcode
	case FormatI:
		if inst.Op == OpSLLI || inst.Op == OpSRLI || inst.Op == OpSRAI {
			return info.funct7<<25 | (imm&0x1F)<<20 | rs1 | f3 | rd | info.opcode
		}
		return layoutI.scatter(imm) | rs1 | f3 | rd | info.opcode
	case FormatS:
		return layoutS.scatter(imm) | rs2 | rs1 | f3 | info.opcode
	case FormatB:
		return layoutB.scatter(imm) | rs2 | rs1 | f3 | info.opcode
	case FormatU:
		return layoutU.scatter(imm) | rd | info.opcode
	case FormatJ:
		return layoutJ.scatter(imm) | rd | info.opcode
	}

	return 0
}
