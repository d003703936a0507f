package core

import (
	"github.com/sarchlab/qvcheck/bus"
	"github.com/sarchlab/qvcheck/dut"
	"github.com/sarchlab/qvcheck/emu"
	"github.com/sarchlab/qvcheck/insts"
	"github.com/sarchlab/qvcheck/timing/clock"
)

type transferKind int

const (
	kindFetch transferKind = iota
	kindLoad
	kindStore
)

type continuity struct {
	valid bool
	end   uint32
}

type memOp struct {
	inst   insts.Instruction
	access emu.Access
}

// transfer is the QSPI transaction the core is driving.
type transfer struct {
	kind transferKind
	dev  bus.Device
	dir  bus.Direction
	addr uint32

	steps []bus.Step
	step  int
	data  bool
	high  bool
	stall uint64

	out     []uint8
	in      []uint8
	nibbles int
	want    int

	// exitAfter counts the nibbles still fetched before an early exit.
	exitAfter int
	ending    bool
}

func (c *Core) tickBus(in dut.Inputs) {
	t := c.xfer

	switch {
	case t == nil:
		c.deselect()
		if c.idle > 0 {
			c.idle--
			return
		}
		c.begin()
	case t.ending:
		c.end(t)
	case !t.data:
		c.setupEdge(t)
	default:
		c.dataEdge(t, in)
	}
}

func (c *Core) deselect() {
	c.out.FlashSelect = 1
	c.out.RAMASelect = 1
	c.out.RAMBSelect = 1
	c.out.QSPIClk = 0
	c.out.QSPIDataOE = 0
	c.out.QSPIDataOut = 0
}

func (c *Core) continuous(dev bus.Device, addr uint32) bool {
	return c.proto.ContinuousRead && dev == bus.DeviceFlash &&
		c.last[dev].valid && c.last[dev].end == addr
}

// begin selects a chip for the pending data access, or for the next fetch.
func (c *Core) begin() {
	t := &transfer{kind: kindFetch, dir: bus.Read, addr: c.model.PC(), exitAfter: -1}

	if op := c.pending; op != nil {
		t.addr = op.access.Addr
		t.want = 2 * op.access.Size
		t.kind = kindLoad
		if op.access.Store {
			t.kind = kindStore
			t.dir = bus.Write
			t.out = insts.Nibbles(op.access.Value, op.access.Size)
		}
	}

	t.dev = bus.SelectDevice(t.addr)
	cont := t.dir == bus.Read && c.continuous(t.dev, t.addr)

	steps, err := c.proto.Plan(t.dev, t.dir, t.addr, cont)
	if err != nil {
		c.fault("bus", err)
		c.retireMemory(0)
		c.idle = 0
		return
	}
	t.steps = steps

	c.stats.Transactions++
	if cont {
		c.stats.ContinuousReads++
	}

	c.xfer = t
	c.fetchBuf = c.fetchBuf[:0]

	switch t.dev {
	case bus.DeviceFlash:
		c.out.FlashSelect = 0
	case bus.DeviceRAMA:
		c.out.RAMASelect = 0
	case bus.DeviceRAMB:
		c.out.RAMBSelect = 0
	}
	c.out.QSPIClk = 0
	c.out.QSPIDataOE = steps[0].OE
	c.out.QSPIDataOut = steps[0].Out

	clock.Trace("core select", "core", c.name, "device", t.dev.String(),
		"dir", t.dir.String(), "addr", t.addr, "continuous", cont)
}

// setupEdge drives one half of a command, address or dummy step.
func (c *Core) setupEdge(t *transfer) {
	if !t.high {
		s := t.steps[t.step]
		c.out.QSPIClk = 1
		c.out.QSPIDataOE = s.OE
		c.out.QSPIDataOut = s.Out
		t.high = true
		return
	}

	c.out.QSPIClk = 0
	t.high = false
	t.step++

	if t.step < len(t.steps) {
		c.out.QSPIDataOE = t.steps[t.step].OE
		c.out.QSPIDataOut = t.steps[t.step].Out
		return
	}

	t.data = true
	if t.dir == bus.Write {
		c.out.QSPIDataOE = 0xF
		c.out.QSPIDataOut = t.out[0]
		return
	}

	c.out.QSPIDataOE = 0
	c.out.QSPIDataOut = 0
	t.stall = c.table.ReadDelay(c.latencyCfg)
}

// dataEdge moves one half of a data nibble. Nibbles are taken on the edge
// that raises the QSPI clock and acted on when it falls.
func (c *Core) dataEdge(t *transfer, in dut.Inputs) {
	if t.high {
		c.out.QSPIClk = 0
		t.high = false
		c.nibbleDone(t)
		if t.dir == bus.Write && t.nibbles < len(t.out) {
			c.out.QSPIDataOut = t.out[t.nibbles]
		}
		return
	}

	if t.stall > 0 {
		t.stall--
		c.stats.StallCycles++
		c.out.QSPIClk = 0
		return
	}

	c.out.QSPIClk = 1
	t.high = true

	if t.dir == bus.Write {
		c.out.QSPIDataOut = t.out[t.nibbles]
	} else {
		t.in = append(t.in, in.QSPIDataIn&0xF)
	}
	t.nibbles++
}

func (c *Core) nibbleDone(t *transfer) {
	switch t.kind {
	case kindStore:
		if t.nibbles == t.want {
			t.ending = true
		}
	case kindLoad:
		if t.nibbles == t.want {
			t.ending = true
		}
	case kindFetch:
		c.fetchNibble(t)
	}
}

// end deselects the chip one cycle after the last clock fall and records
// where the transaction left the device.
func (c *Core) end(t *transfer) {
	c.deselect()
	c.xfer = nil
	c.idle = 0

	c.last[t.dev] = continuity{
		valid: t.dir == bus.Read,
		end:   t.addr + uint32(t.nibbles/2),
	}

	switch t.kind {
	case kindLoad:
		c.stats.Loads++
		c.retireMemory(insts.Assemble(t.in))
	case kindStore:
		c.stats.Stores++
		c.retireMemory(0)
	}

	clock.Trace("core deselect", "core", c.name, "device", t.dev.String(),
		"addr", t.addr, "bytes", t.nibbles/2)
}
