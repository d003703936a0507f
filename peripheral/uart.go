package peripheral

import (
	"fmt"

	"github.com/sarchlab/qvcheck/dut"
	"github.com/sarchlab/qvcheck/timing/clock"
	"github.com/sarchlab/qvcheck/timing/latency"
)

// Line selects a transmit line from the device outputs.
type Line func(out dut.Outputs) uint8

// TxLine is the main UART transmit line.
func TxLine(out dut.Outputs) uint8 { return out.UARTTx }

// DebugTxLine is the debug UART transmit line.
func DebugTxLine(out dut.Outputs) uint8 { return out.DebugUARTTx }

// UARTChecker receives 8N1 frames by sampling in the middle of each bit.
type UARTChecker struct {
	name       string
	line       Line
	bitTimeNs  float64
	pollCycles int
	polls      int
}

// NewUARTChecker creates a checker for the main transmit line with the
// bit time and start poll of c.
func NewUARTChecker(c *latency.TimingConfig) *UARTChecker {
	return &UARTChecker{
		name:       "uart",
		line:       TxLine,
		bitTimeNs:  c.UARTBitTimeNs,
		pollCycles: int(c.UARTStartPollCycles),
		polls:      int(c.UARTStartPolls),
	}
}

// WithLine makes the checker watch another transmit line.
func (u *UARTChecker) WithLine(name string, line Line) *UARTChecker {
	u.name = name
	u.line = line
	return u
}

// WithStartPoll sets how often and how many times the checker looks for a
// start bit.
func (u *UARTChecker) WithStartPoll(cycles, polls int) *UARTChecker {
	u.pollCycles = cycles
	u.polls = polls
	return u
}

// AwaitStart polls the line until it goes low.
func (u *UARTChecker) AwaitStart(p Pins) error {
	for i := 0; i < u.polls; i++ {
		p.RisingEdges(u.pollCycles)
		if u.line(p.Outputs()) == 0 {
			return nil
		}
	}

	return fmt.Errorf("%s: %w after %d polls of %d cycles",
		u.name, ErrNeverStarted, u.polls, u.pollCycles)
}

// Receive waits for a start bit and returns the byte of the frame.
func (u *UARTChecker) Receive(p Pins) (byte, error) {
	if err := u.AwaitStart(p); err != nil {
		return 0, err
	}
	return u.ReceiveStarted(p)
}

// ReceiveStarted receives a frame whose start bit has just begun.
func (u *UARTChecker) ReceiveStarted(p Pins) (byte, error) {
	p.Timer(u.bitTimeNs / 2)
	if level := u.line(p.Outputs()); level != 0 {
		return 0, &FrameError{Peripheral: u.name, Signal: "start", Bit: 0, Want: 0, Got: uint32(level)}
	}

	var b byte
	for i := 0; i < 8; i++ {
		p.Timer(u.bitTimeNs)
		b |= u.line(p.Outputs()) & 1 << i
	}

	p.Timer(u.bitTimeNs)
	if level := u.line(p.Outputs()); level != 1 {
		return b, &FrameError{Peripheral: u.name, Signal: "stop", Bit: 9, Want: 1, Got: uint32(level)}
	}

	clock.Trace("uart frame", "line", u.name, "byte", b)

	return b, nil
}

// Expect waits for a frame and checks it carries want.
func (u *UARTChecker) Expect(p Pins, want byte) error {
	if err := u.AwaitStart(p); err != nil {
		return fmt.Errorf("waiting for %q: %w", want, err)
	}
	return u.ExpectStarted(p, want)
}

// ExpectStarted checks a frame whose start bit has just begun.
func (u *UARTChecker) ExpectStarted(p Pins, want byte) error {
	got, err := u.ReceiveStarted(p)
	if err != nil {
		return err
	}

	if got != want {
		return &FrameError{
			Peripheral: u.name,
			Signal:     "data",
			Bit:        firstDifferentBit(got, want),
			Want:       uint32(want),
			Got:        uint32(got),
		}
	}

	return nil
}

// ExpectString checks one frame per byte of s.
func (u *UARTChecker) ExpectString(p Pins, s string) error {
	for i := 0; i < len(s); i++ {
		if err := u.Expect(p, s[i]); err != nil {
			return fmt.Errorf("character %d of %q: %w", i, s, err)
		}
	}
	return nil
}

// firstDifferentBit returns the frame index of the lowest differing data
// bit. Bit 0 is the start bit.
func firstDifferentBit(a, b byte) int {
	diff := a ^ b
	for i := 0; i < 8; i++ {
		if diff>>i&1 == 1 {
			return i + 1
		}
	}
	return 0
}

// UARTDriver drives 8N1 frames onto the receive line.
type UARTDriver struct {
	bitTimeNs float64
}

// NewUARTDriver creates a driver with the bit time of c.
func NewUARTDriver(c *latency.TimingConfig) *UARTDriver {
	return &UARTDriver{bitTimeNs: c.UARTBitTimeNs}
}

// Idle drives the line high.
func (d *UARTDriver) Idle(p Pins) {
	p.Inputs().UARTRx = 1
}

// Send drives one frame and leaves the line idle.
func (d *UARTDriver) Send(p Pins, b byte) {
	in := p.Inputs()

	in.UARTRx = 0
	p.Timer(d.bitTimeNs)

	for i := 0; i < 8; i++ {
		in.UARTRx = b >> i & 1
		p.Timer(d.bitTimeNs)
	}

	in.UARTRx = 1
	p.Timer(d.bitTimeNs)
}

// SendString drives one frame per byte of s.
func (d *UARTDriver) SendString(p Pins, s string) {
	for i := 0; i < len(s); i++ {
		d.Send(p, s[i])
	}
}
