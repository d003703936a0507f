package bus

import (
	"errors"
	"fmt"
)

// Phase is a transaction phase, and the engine's state.
type Phase uint8

// Transaction phases.
const (
	PhaseIdle Phase = iota
	PhaseCommand
	PhaseAddress
	PhaseDummy
	PhaseData
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseCommand:
		return "command"
	case PhaseAddress:
		return "address"
	case PhaseDummy:
		return "dummy"
	case PhaseData:
		return "data"
	}
	return fmt.Sprintf("phase(%d)", uint8(p))
}

// LineMode is the number of data lines a command is sent on.
type LineMode uint8

// Line modes.
const (
	SingleLine LineMode = iota
	Quad
)

// Command is a command byte and the way it crosses the bus.
type Command struct {
	Value uint8
	Mode  LineMode
}

// Step is one clock period of a transaction: the clock rises with Out on the
// data lines, then falls while Out holds. An OE of zero means the lines are
// released and Out is not checked.
type Step struct {
	Phase Phase
	Out   uint8
	OE    uint8
}

func (c Command) steps() []Step {
	if c.Mode == SingleLine {
		steps := make([]Step, 8)
		for i := range steps {
			steps[i] = Step{Phase: PhaseCommand, Out: (c.Value >> (7 - i)) & 1, OE: 0x1}
		}
		return steps
	}

	return []Step{
		{Phase: PhaseCommand, Out: c.Value >> 4, OE: 0xF},
		{Phase: PhaseCommand, Out: c.Value & 0xF, OE: 0xF},
	}
}

// Protocol describes the framing of every transaction kind.
type Protocol struct {
	Name string

	FlashRead Command
	RAMRead   Command
	RAMWrite  Command

	// DummyFiller is driven during the DummyEdges edges of a flash read.
	DummyFiller uint8
	DummyEdges  int

	// Released edges give the device time to turn the bus around.
	FlashReleaseEdges int
	RAMReleaseEdges   int

	// ContinuousRead lets a sequential flash read skip its command.
	ContinuousRead bool

	// EdgeWaitLimit bounds how many system cycles the engine waits for a
	// select or a stalled clock.
	EdgeWaitLimit int
}

// RevisedProtocol is the current bus protocol: quad commands everywhere,
// filler 0xA and continuous flash reads.
func RevisedProtocol() Protocol {
	return Protocol{
		Name:              "revised",
		FlashRead:         Command{Value: 0x0B, Mode: Quad},
		RAMRead:           Command{Value: 0x0B, Mode: Quad},
		RAMWrite:          Command{Value: 0x02, Mode: Quad},
		DummyFiller:       0xA,
		DummyEdges:        2,
		FlashReleaseEdges: 4,
		RAMReleaseEdges:   4,
		ContinuousRead:    true,
		EdgeWaitLimit:     20,
	}
}

// LegacyProtocol is the original protocol: a single-line 0xEB flash command
// on every read and filler 0xF.
func LegacyProtocol() Protocol {
	return Protocol{
		Name:              "legacy",
		FlashRead:         Command{Value: 0xEB, Mode: SingleLine},
		RAMRead:           Command{Value: 0xEB, Mode: Quad},
		RAMWrite:          Command{Value: 0x02, Mode: Quad},
		DummyFiller:       0xF,
		DummyEdges:        2,
		FlashReleaseEdges: 4,
		RAMReleaseEdges:   4,
		EdgeWaitLimit:     20,
	}
}

// ProtocolByName returns a preset protocol.
func ProtocolByName(name string) (Protocol, error) {
	switch name {
	case "", "revised":
		return RevisedProtocol(), nil
	case "legacy":
		return LegacyProtocol(), nil
	}
	return Protocol{}, fmt.Errorf("unknown bus protocol %q", name)
}

// Validate checks that the protocol is usable.
func (p Protocol) Validate() error {
	if p.RAMRead.Mode != Quad || p.RAMWrite.Mode != Quad {
		return errors.New("RAM commands must be quad")
	}
	if p.DummyEdges < 0 || p.FlashReleaseEdges < 0 || p.RAMReleaseEdges < 0 {
		return errors.New("edge counts must not be negative")
	}
	if p.ContinuousRead && p.FlashReleaseEdges < 1 {
		return errors.New("continuous read needs at least one released flash edge")
	}
	if p.EdgeWaitLimit <= 0 {
		return errors.New("edge wait limit must be positive")
	}
	if p.DummyFiller > 0xF {
		return errors.New("dummy filler must be a nibble")
	}
	return nil
}

// Plan returns every step of a transaction before its data phase.
func (p Protocol) Plan(dev Device, dir Direction, addr uint32, continuous bool) ([]Step, error) {
	if dir == Write && !dev.IsRAM() {
		return nil, fmt.Errorf("%w: write to %s", ErrUnsupported, dev)
	}
	if continuous && (dir == Write || dev != DeviceFlash || !p.ContinuousRead) {
		return nil, fmt.Errorf("%w: continuous %s on %s", ErrUnsupported, dir, dev)
	}

	var steps []Step

	if !continuous {
		steps = append(steps, p.command(dev, dir).steps()...)
	}

	for i := 0; i < 6; i++ {
		nibble := uint8(addr>>(20-4*i)) & 0xF
		steps = append(steps, Step{Phase: PhaseAddress, Out: nibble, OE: 0xF})
	}

	if dir == Write {
		return steps, nil
	}

	release := p.RAMReleaseEdges
	if dev == DeviceFlash {
		for i := 0; i < p.DummyEdges; i++ {
			steps = append(steps, Step{Phase: PhaseDummy, Out: p.DummyFiller, OE: 0xF})
		}
		release = p.FlashReleaseEdges
	}

	for i := 0; i < release; i++ {
		steps = append(steps, Step{Phase: PhaseDummy})
	}

	return steps, nil
}

func (p Protocol) command(dev Device, dir Direction) Command {
	switch {
	case dir == Write:
		return p.RAMWrite
	case dev == DeviceFlash:
		return p.FlashRead
	default:
		return p.RAMRead
	}
}
