package bus

import (
	"fmt"

	"github.com/sarchlab/qvcheck/dut"
	"github.com/sarchlab/qvcheck/timing/clock"
)

// Memory answers the data phase of observed transactions.
type Memory interface {
	LoadByte(dev Device, addr uint32) byte
	StoreByte(dev Device, addr uint32, v byte)
}

// Observe waits for the device to select a chip, then decodes the command
// (or its absence, for a continuous read) and the address. It returns with
// the engine in the data phase. A limit of zero waits forever.
func (e *Engine) Observe(p Port, limit int) (Transaction, error) {
	if e.state != PhaseIdle {
		return Transaction{}, fmt.Errorf("%w: %s", ErrBusy, e.cur)
	}

	dev, err := e.awaitAnySelect(p, limit)
	if err != nil {
		return Transaction{}, err
	}

	e.cur = Transaction{Device: dev}
	e.nibbles = 0
	e.state = PhaseCommand

	first, err := e.readEdge(p, PhaseCommand, 0)
	if err != nil {
		return Transaction{}, err
	}

	var (
		cmd    uint8
		mode   = Quad
		cursor = 1
	)

	switch first.QSPIDataOE {
	case 0x1:
		mode = SingleLine
		cmd = first.QSPIDataOut & 1
		for i := 1; i < 8; i++ {
			out, err := e.readEdge(p, PhaseCommand, i)
			if err != nil {
				return Transaction{}, err
			}
			cmd = cmd<<1 | out.QSPIDataOut&1
		}
	case 0xF:
		if last := e.last[dev]; dev == DeviceFlash && e.proto.ContinuousRead && last.valid {
			if err := e.observeFlashRead(p, first, last.end); err != nil {
				return Transaction{}, err
			}
			return e.enterData(), nil
		}

		second, err := e.readEdge(p, PhaseCommand, 1)
		if err != nil {
			return Transaction{}, err
		}
		cursor = 2
		cmd = first.QSPIDataOut<<4 | second.QSPIDataOut
	default:
		return Transaction{}, e.violation(PhaseCommand, 0, "oe", 0xF, first.QSPIDataOE)
	}

	if err := e.classify(cmd, mode); err != nil {
		return Transaction{}, err
	}

	e.state = PhaseAddress
	var addr uint32
	for i := 0; i < 6; i++ {
		out, err := e.readEdge(p, PhaseAddress, cursor+i)
		if err != nil {
			return Transaction{}, err
		}
		if out.QSPIDataOE != 0xF {
			return Transaction{}, e.violation(PhaseAddress, cursor+i, "oe", 0xF, out.QSPIDataOE)
		}
		addr = addr<<4 | uint32(out.QSPIDataOut)
	}

	if dev.IsRAM() {
		addr |= RAMABase
	}
	e.cur.Addr = addr

	if e.cur.Direction == Read {
		if err := e.skipDummy(p, dev); err != nil {
			return Transaction{}, err
		}
	}

	return e.enterData(), nil
}

// observeFlashRead decodes a flash read that may continue the previous
// one. A continuous read drives the six address nibbles and the dummy
// nibbles before it releases the lines; a commanded read drives two command
// nibbles more. The engine reads ahead to the release to tell the two apart.
func (e *Engine) observeFlashRead(p Port, first dut.Outputs, end uint32) error {
	e.state = PhaseAddress

	commanded := 2 + 6 + e.proto.DummyEdges
	nibbles := []uint8{first.QSPIDataOut}
	released := false

	for len(nibbles) < commanded {
		out, err := e.readEdge(p, PhaseAddress, len(nibbles))
		if err != nil {
			return err
		}
		if out.QSPIDataOE == 0 {
			released = true
			break
		}
		if out.QSPIDataOE != 0xF {
			return e.violation(PhaseAddress, len(nibbles), "oe", 0xF, out.QSPIDataOE)
		}
		nibbles = append(nibbles, out.QSPIDataOut)
	}

	switch {
	case released && len(nibbles) == 6+e.proto.DummyEdges:
		e.cur.Direction = Read
		e.cur.Continuous = true
		e.cur.Addr = nibbleAddress(nibbles[:6])

		if e.cur.Addr != end {
			return &ProtocolError{
				Device: e.cur.Device,
				Phase:  PhaseAddress,
				Signal: "continuous address",
				Want:   end,
				Got:    e.cur.Addr,
			}
		}

		return e.checkFlashDummy(p, nibbles[6:], 1)

	case !released:
		if err := e.classify(nibbles[0]<<4|nibbles[1], Quad); err != nil {
			return err
		}
		e.cur.Addr = nibbleAddress(nibbles[2:8])

		return e.checkFlashDummy(p, nibbles[8:], 0)
	}

	return e.violation(PhaseAddress, len(nibbles), "oe", 0xF, 0)
}

// checkFlashDummy checks the dummy nibbles already read, then waits out the
// release edges not yet seen.
func (e *Engine) checkFlashDummy(p Port, dummy []uint8, seen int) error {
	e.state = PhaseDummy

	for i, n := range dummy {
		if n != e.proto.DummyFiller {
			return e.violation(PhaseDummy, i, "data", e.proto.DummyFiller, n)
		}
	}

	return e.awaitRelease(p, len(dummy)+seen, e.proto.FlashReleaseEdges-seen)
}

func nibbleAddress(nibbles []uint8) uint32 {
	var addr uint32
	for _, n := range nibbles {
		addr = addr<<4 | uint32(n&0xF)
	}
	return addr
}

func (e *Engine) enterData() Transaction {
	e.state = PhaseData
	e.stats.Transactions++
	if e.cur.Continuous {
		e.stats.ContinuousReads++
	} else {
		e.stats.Commands++
	}

	clock.Trace("bus observed", "txn", e.cur.String())

	return e.cur
}

func (e *Engine) awaitAnySelect(p Port, limit int) (Device, error) {
	for waited := 0; ; waited++ {
		dev, ok, err := SelectedDevice(p.Outputs())
		if err != nil {
			return 0, err
		}
		if ok {
			return dev, nil
		}
		if limit > 0 && waited >= limit {
			return 0, fmt.Errorf("%w: nothing selected in %d cycles", ErrNoTransaction, limit)
		}
		p.FallingEdges(1)
	}
}

func (e *Engine) classify(cmd uint8, mode LineMode) error {
	want := e.proto.command(e.cur.Device, Read)

	switch {
	case e.cur.Device.IsRAM() && cmd == e.proto.RAMWrite.Value:
		e.cur.Direction = Write
		return nil
	case cmd == want.Value && mode == want.Mode:
		e.cur.Direction = Read
		return nil
	case cmd == want.Value:
		return e.violation(PhaseCommand, 0, "line mode", uint8(want.Mode), uint8(mode))
	}

	return e.violation(PhaseCommand, 0, "command", want.Value, cmd)
}

func (e *Engine) skipDummy(p Port, dev Device) error {
	e.state = PhaseDummy

	release := e.proto.RAMReleaseEdges
	edges := 0

	if dev == DeviceFlash {
		release = e.proto.FlashReleaseEdges
		for ; edges < e.proto.DummyEdges; edges++ {
			out, err := e.readEdge(p, PhaseDummy, edges)
			if err != nil {
				return err
			}
			if out.QSPIDataOE != 0xF || out.QSPIDataOut != e.proto.DummyFiller {
				return e.violation(PhaseDummy, edges, "data", e.proto.DummyFiller, out.QSPIDataOut)
			}
		}
	}

	return e.awaitRelease(p, edges, release)
}

// awaitRelease checks n edges with the data lines released, numbered from
// edge.
func (e *Engine) awaitRelease(p Port, edge, n int) error {
	for i := 0; i < n; i++ {
		out, err := e.readEdge(p, PhaseDummy, edge+i)
		if err != nil {
			return err
		}
		if out.QSPIDataOE != 0 {
			return e.violation(PhaseDummy, edge+i, "oe", 0, out.QSPIDataOE)
		}
	}
	return nil
}

// readEdge returns the outputs of the next clock-high period and checks the
// clock falls again after it.
func (e *Engine) readEdge(p Port, phase Phase, edge int) (dut.Outputs, error) {
	p.FallingEdges(1)

	out, selected, err := e.awaitClock(p, edge)
	if err != nil {
		return out, err
	}
	if !selected {
		return out, e.violation(phase, edge, "select", 0, 1)
	}

	p.FallingEdges(1)
	after := p.Outputs()

	if err := e.expectSelected(after, phase, edge); err != nil {
		return out, err
	}
	if after.QSPIClk != 0 {
		return out, e.violation(phase, edge, "clk", 0, after.QSPIClk)
	}

	return out, nil
}

// Serve observes one transaction and answers it from mem until the device
// deselects: reads are fed one nibble per clock, writes are stored a byte at
// a time.
func (e *Engine) Serve(p Port, mem Memory, limit int) (Transaction, error) {
	txn, err := e.Observe(p, limit)
	if err != nil {
		return txn, err
	}

	var (
		prevClk uint8
		pending uint8
	)

	if txn.Direction == Read {
		p.Inputs().QSPIDataIn = e.nibbleAt(mem, 0)
	}

	for {
		p.FallingEdges(1)
		out := p.Outputs()

		dev, ok, err := SelectedDevice(out)
		if err != nil {
			return e.cur, err
		}
		if !ok || dev != txn.Device {
			break
		}

		if out.QSPIClk == 1 && prevClk == 0 {
			if err := e.serveNibble(p, mem, out, &pending); err != nil {
				return e.cur, err
			}
		}
		prevClk = out.QSPIClk
	}

	e.finish()

	return e.cur, nil
}

func (e *Engine) serveNibble(p Port, mem Memory, out dut.Outputs, pending *uint8) error {
	n := e.nibbles

	if e.cur.Direction == Read {
		if out.QSPIDataOE != 0 {
			return e.violation(PhaseData, n, "oe", 0, out.QSPIDataOE)
		}
		e.nibbles++
		e.stats.Nibbles++
		p.Inputs().QSPIDataIn = e.nibbleAt(mem, e.nibbles)
		return nil
	}

	if out.QSPIDataOE != 0xF {
		return e.violation(PhaseData, n, "oe", 0xF, out.QSPIDataOE)
	}

	e.nibbles++
	e.stats.Nibbles++

	if n%2 == 0 {
		*pending = out.QSPIDataOut << 4
		return nil
	}

	mem.StoreByte(e.cur.Device, e.cur.Addr+uint32(n/2), *pending|out.QSPIDataOut&0xF)

	return nil
}

// nibbleAt returns the n-th nibble of the current read: each byte high
// nibble first.
func (e *Engine) nibbleAt(mem Memory, n int) uint8 {
	b := mem.LoadByte(e.cur.Device, e.cur.Addr+uint32(n/2))
	if n%2 == 0 {
		return b >> 4
	}
	return b & 0xF
}
