// Package scenario drives randomized and directed conformance scenarios
// against a device under test.
//
// A Driver plays the memory side of the QSPI bus. It injects encoded
// instructions as the device fetches them, answers the loads and stores
// they cause, and mirrors every instruction in a golden model. At the end
// it stores every register to RAM and compares the observed values with
// the model.
package scenario

import (
	"fmt"
	"log/slog"
	"math/rand"

	"github.com/sarchlab/qvcheck/bus"
	"github.com/sarchlab/qvcheck/emu"
	"github.com/sarchlab/qvcheck/insts"
	"github.com/sarchlab/qvcheck/timing/clock"
)

// Stage is a step of the scenario state machine.
type Stage uint8

// Scenario stages, in order.
const (
	StageSetup Stage = iota
	StageSeedRegisters
	StageInjectStream
	StageVerify
	StageDone
)

var stageNames = [...]string{"setup", "seed-registers", "inject-stream", "verify", "done"}

func (s Stage) String() string {
	if int(s) < len(stageNames) {
		return stageNames[s]
	}
	return fmt.Sprintf("stage(%d)", uint8(s))
}

// State is a snapshot of a driver.
type State struct {
	Seed          int64
	Stage         Stage
	Registers     []int32
	FillerRunning bool
}

// Stats counts what a driver issued.
type Stats struct {
	Instructions  int
	ByKind        map[Kind]int
	Loads         int
	Stores        int
	TakenBranches int
	FillerNOPs    int
}

// Outcome is what issuing one instruction produced.
type Outcome struct {
	Inst   insts.Instruction
	Access emu.Access
	// Data is the load data driven or the store data observed.
	Data  uint32
	Taken bool
}

// RegisterCheck is one comparison of the verify stage.
type RegisterCheck struct {
	Reg  uint8
	Want uint32
	Got  uint32
}

// Passed reports whether the observed value matched.
func (c RegisterCheck) Passed() bool {
	return c.Want == c.Got
}

// Driver runs one scenario.
type Driver struct {
	cfg  *Config
	seed int64
	rng  *rand.Rand

	model *emu.Model
	enc   *insts.Encoder
	dec   *insts.Decoder
	side  MemorySide
	nop   uint32

	stage  Stage
	filler *Filler
	stats  Stats
	checks []RegisterCheck
}

// NewDriver creates a driver for cfg whose random choices all derive from
// seed.
func NewDriver(cfg *Config, seed int64) *Driver {
	rng := rand.New(rand.NewSource(seed))
	enc := insts.NewEncoder(insts.WithRegisterCount(cfg.RegisterCount))

	d := &Driver{
		cfg:   cfg,
		seed:  seed,
		rng:   rng,
		model: emu.NewModel(emu.WithRegisterCount(cfg.RegisterCount)),
		enc:   enc,
		dec:   insts.NewDecoder(),
		side: MemorySide{
			Engine: bus.NewEngine(cfg.Protocol),
			RAM:    NewRAM(rng),
		},
		nop:   enc.MustEncode(insts.NOP()),
		stats: Stats{ByKind: make(map[Kind]int)},
	}

	return d
}

// Model returns the golden model.
func (d *Driver) Model() *emu.Model {
	return d.model
}

// Engine returns the bus engine.
func (d *Driver) Engine() *bus.Engine {
	return d.side.Engine
}

// RAM returns the RAM contents the driver has served.
func (d *Driver) RAM() *RAM {
	return d.side.RAM
}

// Stats returns the driver counters.
func (d *Driver) Stats() Stats {
	return d.stats
}

// Checks returns the register comparisons of the verify stage.
func (d *Driver) Checks() []RegisterCheck {
	return d.checks
}

// State returns a snapshot of the driver.
func (d *Driver) State() State {
	return State{
		Seed:          d.seed,
		Stage:         d.stage,
		Registers:     d.model.RegFile().Snapshot(),
		FillerRunning: d.filler != nil,
	}
}

func (d *Driver) env() Env {
	return Env{Model: d.model, Encoder: d.enc, Window: d.cfg.Window}
}

// Run takes the driver through every remaining stage.
func (d *Driver) Run(t *clock.Task) error {
	for d.stage != StageDone {
		if err := d.Step(t); err != nil {
			return err
		}
	}
	return nil
}

// Step runs the current stage and moves to the next one.
func (d *Driver) Step(t *clock.Task) error {
	var err error

	switch d.stage {
	case StageSetup:
		err = d.Setup(t)
	case StageSeedRegisters:
		err = d.SeedRegisters(t)
	case StageInjectStream:
		err = d.InjectStream(t, d.cfg.Instructions)
	case StageVerify:
		err = d.Verify(t)
	case StageDone:
		return nil
	}

	if err != nil {
		return fmt.Errorf("seed %d, %s: %w", d.seed, d.stage, err)
	}

	slog.Info("scenario stage done", "seed", d.seed, "stage", d.stage.String(),
		"cycle", t.Cycle(), "instructions", d.stats.Instructions)

	d.stage++

	return nil
}

// Setup resets the device and the golden model and waits for the first
// fetch from address 0.
func (d *Driver) Setup(t *clock.Task) error {
	if err := Reset(t, d.cfg.Timing); err != nil {
		return err
	}

	d.model.Reset()
	d.side.Engine.Reset()

	return d.side.Engine.StartRead(t, 0)
}

// SeedRegisters gives every writable register a random value.
func (d *Driver) SeedRegisters(t *clock.Task) error {
	rf := d.model.RegFile()

	for r := uint8(0); r < rf.Count(); r++ {
		if !rf.Writable(r) {
			continue
		}
		if err := d.Materialize(t, r, d.rng.Uint32()); err != nil {
			return err
		}
	}

	return nil
}

// Materialize loads v into reg with lui and addi.
func (d *Driver) Materialize(t *clock.Task, reg uint8, v uint32) error {
	upper, low := insts.SplitConstant(v)

	if err := d.Issue(t, insts.LUI(reg, upper)); err != nil {
		return err
	}

	return d.Issue(t, insts.ADDI(reg, reg, low))
}

// InjectStream issues n instructions drawn from the catalog.
func (d *Driver) InjectStream(t *clock.Task, n int) error {
	for i := 0; i < n; i++ {
		env := d.env()

		desc, ok := d.cfg.Catalog.Pick(d.rng, env)
		if !ok {
			return ErrEmptyCatalog
		}

		inst := desc.Generate(d.rng, env)
		d.stats.ByKind[desc.Kind]++

		if _, err := d.issue(t, desc, inst); err != nil {
			return fmt.Errorf("instruction %d: %w", i, err)
		}
	}

	return nil
}

// Issue sends inst to the device, runs any data transaction it causes and
// applies it to the golden model.
func (d *Driver) Issue(p bus.Port, inst insts.Instruction) error {
	_, err := d.issue(p, descriptorFor(inst), inst)
	return err
}

// IssuePeripheralLoad sends a load from the peripheral window whose result
// the caller knows, and applies it to the golden model with that data.
func (d *Driver) IssuePeripheralLoad(p bus.Port, inst insts.Instruction, data uint32) error {
	if err := d.own(p); err != nil {
		return err
	}

	a, err := d.model.Access(inst)
	if err != nil {
		return err
	}
	if a.Store || a.Region != emu.RegionPeripheral {
		return fmt.Errorf("%s: not a peripheral load", inst)
	}

	word, err := d.encode(inst)
	if err != nil {
		return err
	}

	if err := d.send(p, inst, word); err != nil {
		return err
	}

	return d.predict(descriptorFor(inst), inst, data)
}

func descriptorFor(inst insts.Instruction) OperationDescriptor {
	switch inst.Op.Class() {
	case insts.ClassLoad:
		return OperationDescriptor{Kind: KindLoad}
	case insts.ClassStore:
		return OperationDescriptor{Kind: KindStore}
	case insts.ClassBranch, insts.ClassJump:
		return OperationDescriptor{Kind: KindBranch}
	case insts.ClassALUReg:
		return OperationDescriptor{Kind: KindALURegister}
	}
	return OperationDescriptor{Kind: KindALUImm}
}

// own fails if the filler is running and p is not the filler's task.
func (d *Driver) own(p bus.Port) error {
	if d.filler != nil && p != d.filler.task {
		return ErrFillerRunning
	}
	return nil
}

func (d *Driver) issue(p bus.Port, desc OperationDescriptor, inst insts.Instruction) (Outcome, error) {
	if err := d.own(p); err != nil {
		return Outcome{}, err
	}

	out := Outcome{Inst: inst}

	word, err := d.encode(inst)
	if err != nil {
		return out, err
	}

	if !inst.IsMemoryOp() {
		if err := d.send(p, inst, word); err != nil {
			return out, err
		}
		return d.control(p, desc, out)
	}

	a, err := d.model.Access(inst)
	if err != nil {
		return out, err
	}
	out.Access = a

	if a.Region == emu.RegionPeripheral {
		if !a.Store {
			return out, fmt.Errorf("%s: %w", inst, ErrUnpredictable)
		}
		if err := d.send(p, inst, word); err != nil {
			return out, err
		}
		return out, d.predict(desc, inst, 0)
	}

	return d.memory(p, desc, out, word)
}

func (d *Driver) encode(inst insts.Instruction) (uint32, error) {
	word, err := d.enc.Encode(inst)
	if err != nil {
		return 0, err
	}

	if back := d.dec.Decode(word); *back != inst {
		return 0, fmt.Errorf("%w: %s encodes to %#x, decodes to %s", ErrEncoding, inst, word, back)
	}

	return word, nil
}

func (d *Driver) send(p bus.Port, inst insts.Instruction, word uint32) error {
	if _, err := d.side.Engine.SendInstr(p, word, false); err != nil {
		return fmt.Errorf("%s at %#x: %w", inst, d.model.PC(), err)
	}

	clock.Trace("scenario issue", "seed", d.seed, "pc", d.model.PC(), "inst", inst.String())

	return nil
}

func (d *Driver) predict(desc OperationDescriptor, inst insts.Instruction, data uint32) error {
	res := desc.Predict(d.model, inst, data)
	if res.Err != nil {
		return fmt.Errorf("%s: %w", inst, res.Err)
	}

	d.stats.Instructions++

	return nil
}

// control finishes an instruction that does not touch memory. A taken
// branch or jump must make the device leave the fetch early; the driver
// then expects a new fetch at the target.
func (d *Driver) control(p bus.Port, desc OperationDescriptor, out Outcome) (Outcome, error) {
	res := desc.Predict(d.model, out.Inst, 0)
	if res.Err != nil {
		return out, fmt.Errorf("%s: %w", out.Inst, res.Err)
	}
	d.stats.Instructions++

	if !res.Taken {
		return out, nil
	}

	out.Taken = true
	d.stats.TakenBranches++

	kept, err := d.side.Engine.SendInstr(p, d.nop, true)
	if err != nil {
		return out, fmt.Errorf("after %s: %w", out.Inst, err)
	}
	if kept {
		return out, fmt.Errorf("%w: %s taken but the device kept fetching", ErrMismatch, out.Inst)
	}

	if err := d.side.Engine.StartRead(p, res.NextPC); err != nil {
		return out, fmt.Errorf("fetch at %#x after %s: %w", res.NextPC, out.Inst, err)
	}

	return out, nil
}

// memory runs the data transaction of a RAM load or store between two
// fetches. A store whose data differs from the golden model is reported
// after the fetch has resumed, so the caller may keep going.
func (d *Driver) memory(p bus.Port, desc OperationDescriptor, out Outcome, word uint32) (Outcome, error) {
	inst, a := out.Inst, out.Access

	if err := d.send(p, inst, word); err != nil {
		return out, err
	}

	if err := d.side.Engine.EndTransaction(p); err != nil {
		return out, fmt.Errorf("%s: fetch did not end: %w", inst, err)
	}

	data, err := desc.PerformMemory(p, d.side, a)
	if err != nil {
		return out, fmt.Errorf("%s: %w", inst, err)
	}
	out.Data = data

	var mismatch error

	if a.Store {
		d.stats.Stores++
		if data != a.Value {
			mismatch = &MismatchError{Inst: inst, Reg: inst.Rs2, Want: a.Value, Got: data}
		}
	} else {
		d.stats.Loads++
	}

	if err := d.predict(desc, inst, data); err != nil {
		return out, err
	}

	if err := d.side.Engine.StartRead(p, d.model.PC()); err != nil {
		return out, fmt.Errorf("fetch at %#x after %s: %w", d.model.PC(), inst, err)
	}

	return out, mismatch
}
