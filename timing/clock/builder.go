package clock

import (
	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/qvcheck/dut"
)

// DefaultPeriodNs is the system clock period used by the reference tests.
const DefaultPeriodNs = 15.0

// Builder can build clock domains.
type Builder struct {
	engine    sim.Engine
	device    dut.Device
	periodNs  float64
	maxCycles uint64
}

// MakeBuilder creates a builder with default parameters.
func MakeBuilder() Builder {
	return Builder{periodNs: DefaultPeriodNs}
}

// WithEngine sets the engine that drives the clock.
func (b Builder) WithEngine(engine sim.Engine) Builder {
	b.engine = engine
	return b
}

// WithDevice sets the device evaluated on every rising edge.
func (b Builder) WithDevice(device dut.Device) Builder {
	b.device = device
	return b
}

// WithPeriodNs sets the system clock period in nanoseconds.
func (b Builder) WithPeriodNs(periodNs float64) Builder {
	b.periodNs = periodNs
	return b
}

// WithMaxCycles bounds a run to the given number of system clock cycles.
// Zero means unbounded.
func (b Builder) WithMaxCycles(n uint64) Builder {
	b.maxCycles = n
	return b
}

// Build creates a clock domain. The component ticks twice per system clock
// period: odd ticks are rising edges, even ticks are falling edges.
func (b Builder) Build(name string) *Domain {
	if b.engine == nil {
		b.engine = sim.NewSerialEngine()
	}

	if b.device == nil {
		panic("clock domain needs a device")
	}

	if b.periodNs <= 0 {
		panic("clock period must be positive")
	}

	d := &Domain{
		engine:    b.engine,
		device:    b.device,
		periodNs:  b.periodNs,
		maxCycles: b.maxCycles,
		out:       dut.IdleOutputs(),
	}

	freq := sim.Freq(2e9 / b.periodNs)
	d.TickingComponent = sim.NewTickingComponent(name, b.engine, freq, d)

	return d
}
