package scenario

import (
	"fmt"

	"github.com/sarchlab/qvcheck/dut"
	"github.com/sarchlab/qvcheck/timing/clock"
	"github.com/sarchlab/qvcheck/timing/latency"
)

// Reset runs the power-on sequence: enable the design with rst_n high for
// two cycles, hold rst_n low with latency_cfg applied, and release it. The
// bidirectional port must be all inputs while in reset and take its idle
// direction one cycle after release. The UART receive line is held idle.
func Reset(t *clock.Task, c *latency.TimingConfig) error {
	in := t.Inputs()
	*in = dut.Inputs{RstN: true, Ena: true, UARTRx: 1}
	t.RisingEdges(2)

	in.RstN = false
	in.LatencyCfg = c.LatencyCfg
	t.RisingEdges(1)

	if oe := t.Outputs().UIOOE; oe != 0 {
		return fmt.Errorf("%w: uio_oe = %#010b in reset, want 0", ErrReset, oe)
	}

	if c.ResetCycles > 1 {
		t.RisingEdges(int(c.ResetCycles - 1))
	}

	in.RstN = true
	t.RisingEdges(1)

	if oe := t.Outputs().UIOOE; oe != dut.UIOOEIdle {
		return fmt.Errorf("%w: uio_oe = %#010b after reset, want %#010b", ErrReset, oe, dut.UIOOEIdle)
	}

	return nil
}
