// Package core provides a behavioural RV32EC core with a quad-SPI memory
// interface. It is the default device under test: it fetches instructions
// from flash, executes them with the golden model's units and talks to its
// flash and RAM chips only through pins.
package core

import (
	"github.com/sarchlab/qvcheck/bus"
	"github.com/sarchlab/qvcheck/dut"
	"github.com/sarchlab/qvcheck/emu"
	"github.com/sarchlab/qvcheck/insts"
	"github.com/sarchlab/qvcheck/timing/latency"
)

// UIOOEIdle is the uio_oe value the core drives between transactions.
const UIOOEIdle = dut.UIOOEIdle

// Stats holds activity counters for the core.
type Stats struct {
	// Cycles is the number of clock edges seen out of reset.
	Cycles uint64
	// Instructions is the number of instructions retired.
	Instructions uint64
	// Transactions is the number of QSPI transactions started.
	Transactions uint64
	// ContinuousReads is the number of reads that skipped their command.
	ContinuousReads uint64
	// Loads and Stores count data transactions on the bus.
	Loads  uint64
	Stores uint64
	// PeripheralAccesses counts loads and stores served internally.
	PeripheralAccesses uint64
	// TakenBranches counts branches and jumps that restarted the fetch.
	TakenBranches uint64
	// StallCycles counts data-phase cycles with the QSPI clock held low.
	StallCycles uint64
	// Faults counts instructions the core could not execute.
	Faults uint64
	// Dropped counts peripheral writes that found the peripheral busy.
	Dropped uint64
}

// Builder can build cores.
type Builder struct {
	proto   bus.Protocol
	timing  *latency.TimingConfig
	numRegs uint8
}

// MakeBuilder creates a builder with default parameters.
func MakeBuilder() Builder {
	return Builder{
		proto:   bus.RevisedProtocol(),
		timing:  latency.DefaultTimingConfig(),
		numRegs: 16,
	}
}

// WithProtocol sets the bus protocol the core speaks.
func (b Builder) WithProtocol(p bus.Protocol) Builder {
	b.proto = p
	return b
}

// WithTimingConfig sets the clock, peripheral and execution timing.
func (b Builder) WithTimingConfig(c *latency.TimingConfig) Builder {
	b.timing = c
	return b
}

// WithRegisterCount selects 16 (RV32E) or 32 (RV32I) registers.
func (b Builder) WithRegisterCount(n uint8) Builder {
	b.numRegs = n
	return b
}

// Build creates a core. The core holds its outputs idle until it has seen
// rst_n low.
func (b Builder) Build(name string) *Core {
	c := &Core{
		name:    name,
		proto:   b.proto,
		timing:  b.timing,
		table:   latency.NewTableWithConfig(b.timing),
		decoder: insts.NewDecoder(),
		numRegs: b.numRegs,
	}

	c.reset(0)

	return c
}

// Core is a behavioural quad-SPI RISC-V core.
type Core struct {
	name    string
	proto   bus.Protocol
	timing  *latency.TimingConfig
	table   *latency.Table
	decoder *insts.Decoder
	numRegs uint8

	model  *emu.Model
	lsu    *emu.LoadStoreUnit
	periph *peripherals

	started    bool
	latencyCfg uint8
	idle       int
	xfer       *transfer
	last       [3]continuity
	pending    *memOp
	fetchBuf   []uint8

	out   dut.Outputs
	stats Stats
}

// Name returns the name of the core.
func (c *Core) Name() string {
	return c.name
}

// Model returns the architectural state of the core.
func (c *Core) Model() *emu.Model {
	return c.model
}

// Stats returns the counters accumulated since the last reset.
func (c *Core) Stats() Stats {
	s := c.stats
	s.Dropped = c.periph.dropped
	return s
}

// LatencyCfg returns the read latency latched during reset.
func (c *Core) LatencyCfg() uint8 {
	return c.latencyCfg
}

// Clock applies one rising edge of the system clock.
func (c *Core) Clock(in dut.Inputs) dut.Outputs {
	if !in.RstN {
		c.reset(in.LatencyCfg)
		c.started = true
		return c.out
	}

	if !in.Ena || !c.started {
		return c.out
	}

	c.stats.Cycles++

	c.periph.tick(pinInputs{gpio: in.UIIn, rx: in.UARTRx, miso: in.SPIMiso})
	c.tickBus(in)

	c.out.UARTTx = c.periph.uartTx
	c.out.DebugUARTTx = c.periph.debugUARTTx
	c.out.SPICs = c.periph.spi.cs
	c.out.SPISck = c.periph.spi.sck
	c.out.SPIMosi = c.periph.spi.mosi
	c.out.UOOut = c.periph.gpioOut
	c.mapUIO()

	return c.out
}

func (c *Core) reset(latencyCfg uint8) {
	c.model = emu.NewModel(emu.WithRegisterCount(c.numRegs))
	c.lsu = emu.NewLoadStoreUnit(c.model.RegFile())
	c.periph = newPeripherals(c.timing.UARTDivider(), c.timing.SPIDivider, c.timing.SPILatency)

	c.latencyCfg = latencyCfg
	c.idle = 1
	c.xfer = nil
	c.last = [3]continuity{}
	c.pending = nil
	c.fetchBuf = c.fetchBuf[:0]
	c.stats = Stats{}

	c.out = dut.IdleOutputs()
}

// mapUIO mirrors the QSPI pins onto the bidirectional port: bit 0 flash
// select, bits 1, 2, 4 and 5 data, bit 3 clock, bits 6 and 7 RAM selects.
func (c *Core) mapUIO() {
	o := &c.out
	data := func(v uint8) uint8 {
		return v&0x3<<1 | v&0xC<<2
	}

	o.UIOOut = o.FlashSelect&1 | o.QSPIClk&1<<3 | o.RAMASelect&1<<6 |
		o.RAMBSelect&1<<7 | data(o.QSPIDataOut)
	o.UIOOE = UIOOEIdle | data(o.QSPIDataOE)
}
