package bus

import (
	"fmt"

	"github.com/sarchlab/qvcheck/dut"
	"github.com/sarchlab/qvcheck/insts"
	"github.com/sarchlab/qvcheck/timing/clock"
)

// Port is the pin access the engine needs. A *clock.Task satisfies it.
type Port interface {
	Outputs() dut.Outputs
	Inputs() *dut.Inputs
	FallingEdges(n int)
}

// Stats counts what the engine has seen.
type Stats struct {
	Transactions    int
	Commands        int
	ContinuousReads int
	EarlyExits      int
	Nibbles         int
}

type continuity struct {
	valid bool
	end   uint32
}

// Engine is the memory side of the bus. It owns only the state of the
// transaction in flight and where each device's last read ended.
type Engine struct {
	proto Protocol
	state Phase
	cur   Transaction

	nibbles int
	last    [numDevices]continuity
	stats   Stats
}

// NewEngine creates an engine speaking p.
func NewEngine(p Protocol) *Engine {
	return &Engine{proto: p}
}

// Protocol returns the protocol the engine speaks.
func (e *Engine) Protocol() Protocol {
	return e.proto
}

// State returns the phase the engine is in.
func (e *Engine) State() Phase {
	return e.state
}

// Current returns the transaction in flight, if any.
func (e *Engine) Current() (Transaction, bool) {
	if e.state == PhaseIdle {
		return Transaction{}, false
	}
	return e.cur, true
}

// Stats returns the counters accumulated so far.
func (e *Engine) Stats() Stats {
	return e.stats
}

// Reset forgets every device's read position, as after a device reset.
func (e *Engine) Reset() {
	e.state = PhaseIdle
	e.cur = Transaction{}
	e.nibbles = 0
	e.last = [numDevices]continuity{}
}

// IsContinuous reports whether a read of addr would skip its command.
func (e *Engine) IsContinuous(addr uint32) bool {
	dev := SelectDevice(addr)
	return e.proto.ContinuousRead && dev == DeviceFlash &&
		e.last[dev].valid && e.last[dev].end == addr
}

// StartRead waits for the device selecting addr's chip and checks every
// edge up to the data phase of a read.
func (e *Engine) StartRead(p Port, addr uint32) error {
	return e.start(p, Read, addr)
}

// StartWrite waits for the device selecting addr's chip and checks every
// edge up to the data phase of a write.
func (e *Engine) StartWrite(p Port, addr uint32) error {
	return e.start(p, Write, addr)
}

func (e *Engine) start(p Port, dir Direction, addr uint32) error {
	if e.state != PhaseIdle {
		return fmt.Errorf("%w: %s", ErrBusy, e.cur)
	}

	dev := SelectDevice(addr)
	continuous := dir == Read && e.IsContinuous(addr)

	steps, err := e.proto.Plan(dev, dir, addr, continuous)
	if err != nil {
		return err
	}

	e.cur = Transaction{Device: dev, Direction: dir, Addr: addr, Continuous: continuous}
	e.nibbles = 0

	if err := e.awaitSelect(p); err != nil {
		return err
	}

	out := p.Outputs()
	if out.QSPIClk != 0 {
		return e.violation(steps[0].Phase, 0, "clk", 0, out.QSPIClk)
	}
	if out.QSPIDataOE != steps[0].OE {
		return e.violation(steps[0].Phase, 0, "oe", steps[0].OE, out.QSPIDataOE)
	}

	e.stats.Transactions++
	if continuous {
		e.stats.ContinuousReads++
	} else {
		e.stats.Commands++
	}

	clock.Trace("bus start", "txn", e.cur.String())

	for i, s := range steps {
		e.state = s.Phase
		if err := e.step(p, i, s); err != nil {
			return err
		}
	}

	e.state = PhaseData

	return nil
}

func (e *Engine) awaitSelect(p Port) error {
	for waited := 0; ; waited++ {
		out := p.Outputs()

		dev, ok, err := SelectedDevice(out)
		if err != nil {
			return err
		}

		if ok && dev != e.cur.Device {
			return e.violation(PhaseIdle, 0, dev.String()+" select", 1, 0)
		}

		if ok {
			return nil
		}

		if waited >= e.proto.EdgeWaitLimit {
			return e.violation(PhaseIdle, 0, "select", 0, 1)
		}

		p.FallingEdges(1)
	}
}

// step checks one clock period of a command, address or dummy phase.
func (e *Engine) step(p Port, edge int, s Step) error {
	p.FallingEdges(1)
	out := p.Outputs()

	if err := e.expectSelected(out, s.Phase, edge); err != nil {
		return err
	}
	if out.QSPIClk != 1 {
		return e.violation(s.Phase, edge, "clk", 1, out.QSPIClk)
	}
	if out.QSPIDataOE != s.OE {
		return e.violation(s.Phase, edge, "oe", s.OE, out.QSPIDataOE)
	}
	if s.OE != 0 && out.QSPIDataOut != s.Out {
		return e.violation(s.Phase, edge, "data", s.Out, out.QSPIDataOut)
	}

	clock.Trace("bus step", "device", e.cur.Device.String(), "phase", s.Phase.String(),
		"edge", edge, "data", out.QSPIDataOut, "oe", out.QSPIDataOE)

	p.FallingEdges(1)
	out = p.Outputs()

	if err := e.expectSelected(out, s.Phase, edge); err != nil {
		return err
	}
	if out.QSPIClk != 0 {
		return e.violation(s.Phase, edge, "clk", 0, out.QSPIClk)
	}

	return nil
}

func (e *Engine) expectSelected(out dut.Outputs, phase Phase, edge int) error {
	if n := out.SelectsAsserted(); n > 1 {
		return fmt.Errorf("%w: %s phase edge %d, %d selects low", ErrSelectConflict, phase, edge, n)
	}
	if !e.cur.Device.Selected(out) {
		return e.violation(phase, edge, "select", 0, 1)
	}
	return nil
}

func (e *Engine) violation(phase Phase, edge int, signal string, want, got uint8) error {
	return &ProtocolError{
		Device: e.cur.Device,
		Phase:  phase,
		Edge:   edge,
		Signal: signal,
		Want:   uint32(want),
		Got:    uint32(got),
	}
}

func (e *Engine) requireData(dir Direction) error {
	if e.state != PhaseData || e.cur.Direction != dir {
		return fmt.Errorf("%w: want %s, engine %s", ErrNoTransaction, dir, e.state)
	}
	return nil
}

// SendInstr drives one encoded instruction during a read: four nibbles for
// a compressed instruction, eight otherwise. If the device deselects before
// the instruction is complete, SendInstr returns false when allowExit is set
// and a protocol error otherwise.
func (e *Engine) SendInstr(p Port, word uint32, allowExit bool) (bool, error) {
	if err := e.requireData(Read); err != nil {
		return false, err
	}

	return e.drive(p, insts.InstructionNibbles(word), allowExit)
}

// DriveLoad drives the nbytes low bytes of value as load data.
func (e *Engine) DriveLoad(p Port, value uint32, nbytes int) error {
	if err := e.requireData(Read); err != nil {
		return err
	}

	_, err := e.drive(p, insts.Nibbles(value, nbytes), false)

	return err
}

// awaitClock waits, a bounded number of cycles, for the device to raise the
// clock. It returns false if the device deselected first.
func (e *Engine) awaitClock(p Port, edge int) (dut.Outputs, bool, error) {
	for waited := 0; ; waited++ {
		out := p.Outputs()

		if n := out.SelectsAsserted(); n > 1 {
			return out, false, fmt.Errorf("%w: data edge %d", ErrSelectConflict, edge)
		}
		if !e.cur.Device.Selected(out) {
			return out, false, nil
		}
		if out.QSPIClk == 1 {
			return out, true, nil
		}
		if waited >= e.proto.EdgeWaitLimit {
			return out, false, e.violation(PhaseData, edge, "clk", 1, 0)
		}

		p.FallingEdges(1)
	}
}

func (e *Engine) drive(p Port, nibbles []uint8, allowExit bool) (bool, error) {
	for i, n := range nibbles {
		p.Inputs().QSPIDataIn = n
		p.FallingEdges(1)

		out, selected, err := e.awaitClock(p, i)
		if err != nil {
			return false, err
		}
		if !selected {
			return e.exit(i, allowExit)
		}
		if out.QSPIDataOE != 0 {
			return false, e.violation(PhaseData, i, "oe", 0, out.QSPIDataOE)
		}

		e.nibbles++
		e.stats.Nibbles++

		p.FallingEdges(1)
		out = p.Outputs()

		if out.SelectsAsserted() == 0 {
			return e.exit(i, allowExit)
		}
		if err := e.expectSelected(out, PhaseData, i); err != nil {
			return false, err
		}
		if out.QSPIClk != 0 {
			return false, e.violation(PhaseData, i, "clk", 0, out.QSPIClk)
		}
	}

	e.cur.Bytes = uint32(e.nibbles / 2)

	return true, nil
}

func (e *Engine) exit(edge int, allowExit bool) (bool, error) {
	if !allowExit {
		return false, e.violation(PhaseData, edge, "select", 0, 1)
	}

	e.cur.Aborted = true
	e.stats.EarlyExits++
	e.finish()

	clock.Trace("bus early exit", "txn", e.cur.String())

	return false, nil
}

// SampleStore samples nbytes of store data driven by the device.
func (e *Engine) SampleStore(p Port, nbytes int) (uint32, error) {
	if err := e.requireData(Write); err != nil {
		return 0, err
	}

	nibbles := make([]uint8, 0, 2*nbytes)

	for i := 0; i < 2*nbytes; i++ {
		p.FallingEdges(1)

		out, selected, err := e.awaitClock(p, i)
		if err != nil {
			return 0, err
		}
		if !selected {
			return 0, e.violation(PhaseData, i, "select", 0, 1)
		}
		if out.QSPIDataOE != 0xF {
			return 0, e.violation(PhaseData, i, "oe", 0xF, out.QSPIDataOE)
		}

		nibbles = append(nibbles, out.QSPIDataOut)
		e.nibbles++
		e.stats.Nibbles++

		p.FallingEdges(1)
		out = p.Outputs()

		if err := e.expectSelected(out, PhaseData, i); err != nil {
			return 0, err
		}
		if out.QSPIClk != 0 {
			return 0, e.violation(PhaseData, i, "clk", 0, out.QSPIClk)
		}
	}

	e.cur.Bytes = uint32(e.nibbles / 2)

	return insts.Assemble(nibbles), nil
}

// EndTransaction waits, a bounded number of cycles, for the device to
// deselect and closes the transaction.
func (e *Engine) EndTransaction(p Port) error {
	if e.state == PhaseIdle {
		return nil
	}

	for waited := 0; ; waited++ {
		out := p.Outputs()

		if !e.cur.Device.Selected(out) {
			break
		}
		if out.QSPIClk != 0 {
			return e.violation(e.state, 0, "clk", 0, out.QSPIClk)
		}
		if waited >= e.proto.EdgeWaitLimit {
			return e.violation(e.state, 0, "select", 1, 0)
		}

		p.FallingEdges(1)
	}

	e.finish()

	clock.Trace("bus end", "txn", e.cur.String())

	return nil
}

func (e *Engine) finish() {
	e.cur.Bytes = uint32(e.nibbles / 2)
	e.last[e.cur.Device] = continuity{
		valid: e.cur.Direction == Read,
		end:   e.cur.End(),
	}
	e.state = PhaseIdle
}
