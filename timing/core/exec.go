package core

import (
	"log/slog"

	"github.com/sarchlab/qvcheck/emu"
	"github.com/sarchlab/qvcheck/insts"
	"github.com/sarchlab/qvcheck/timing/clock"
)

// exitNibbles is how many nibbles past a taken branch the core fetches
// before it deselects the flash.
const exitNibbles = 2

// fetchNibble collects one fetched nibble and executes the instruction it
// completes.
func (c *Core) fetchNibble(t *transfer) {
	n := t.in[len(t.in)-1]

	if t.exitAfter >= 0 {
		t.exitAfter--
		if t.exitAfter == 0 {
			t.ending = true
		}
		return
	}

	c.fetchBuf = append(c.fetchBuf, n)

	if len(c.fetchBuf) < 4 {
		return
	}

	word := insts.Assemble(c.fetchBuf)
	if len(c.fetchBuf) == 4 && insts.Length(uint16(word)) == 4 {
		return
	}

	c.fetchBuf = c.fetchBuf[:0]
	c.execute(t, word)
}

func (c *Core) execute(t *transfer, word uint32) {
	inst := *c.decoder.Decode(word)
	pc := c.model.PC()

	clock.Trace("core execute", "core", c.name, "pc", pc, "inst", inst.String())

	if inst.IsMemoryOp() {
		c.executeMemory(t, inst)
		return
	}

	result := c.model.Execute(inst, 0)
	if result.Err != nil {
		c.fault("execute", result.Err)
		c.model.SetPC(pc + uint32(inst.Length()))
		return
	}

	c.stats.Instructions++

	if result.Taken {
		c.stats.TakenBranches++
		t.exitAfter = exitNibbles
	}

	t.stall = c.table.StallCycles(inst)
}

func (c *Core) executeMemory(t *transfer, inst insts.Instruction) {
	access, err := c.model.Access(inst)

	switch {
	case access.Region == emu.RegionPeripheral:
		c.stats.PeripheralAccesses++
		if access.Store {
			c.periph.store(access.Offset(), access.Value)
			c.retire(inst, 0)
		} else {
			c.retire(inst, c.periph.load(access.Offset()))
		}
		t.stall = c.table.StallCycles(inst)
	case err != nil && access.Store:
		c.fault("store", err)
		c.model.SetPC(c.model.PC() + uint32(inst.Length()))
	default:
		c.pending = &memOp{inst: inst, access: access}
		t.ending = true
	}
}

// retire completes a load or store with the data the bus returned.
func (c *Core) retire(inst insts.Instruction, data uint32) {
	if inst.Op.Class() == insts.ClassLoad {
		c.lsu.Load(inst, data)
	}
	c.model.SetPC(c.model.PC() + uint32(inst.Length()))
	c.stats.Instructions++
}

func (c *Core) retireMemory(data uint32) {
	op := c.pending
	if op == nil {
		return
	}
	c.pending = nil
	c.retire(op.inst, data)
}

func (c *Core) fault(what string, err error) {
	c.stats.Faults++
	slog.Warn("core fault", "core", c.name, "what", what, "pc", c.model.PC(), "err", err)
}
