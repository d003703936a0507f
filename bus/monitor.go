package bus

import (
	"fmt"

	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/qvcheck/timing/clock"
)

// Monitor is a clock hook that checks bus-wide invariants on every rising
// edge: at most one select is low, and the clock only toggles while a
// device is selected. It also counts transactions per device.
type Monitor struct {
	err error

	active  bool
	current Device

	transactions [numDevices]int
	clocks       [numDevices]int
}

// NewMonitor creates a monitor. Attach it with AcceptHook on a clock domain.
func NewMonitor() *Monitor {
	return &Monitor{}
}

// Func implements sim.Hook.
func (m *Monitor) Func(ctx sim.HookCtx) {
	if ctx.Pos != clock.HookPosEdge {
		return
	}

	ev, ok := ctx.Item.(clock.EdgeEvent)
	if !ok || ev.Edge != clock.Rising {
		return
	}

	dev, selected, err := SelectedDevice(ev.Outputs)
	if err != nil {
		m.record(fmt.Errorf("cycle %d: %w", ev.Cycle, err))
		return
	}

	if !selected {
		if ev.Outputs.QSPIClk != 0 {
			m.record(fmt.Errorf("%w: cycle %d: clock high with no device selected",
				ErrProtocol, ev.Cycle))
		}
		m.active = false
		return
	}

	if !m.active || m.current != dev {
		m.transactions[dev]++
	}
	m.active, m.current = true, dev

	if ev.Outputs.QSPIClk == 1 {
		m.clocks[dev]++
	}
}

func (m *Monitor) record(err error) {
	if m.err == nil {
		m.err = err
	}
}

// Err returns the first violation seen, or nil.
func (m *Monitor) Err() error {
	return m.err
}

// Transactions returns how many times dev has been selected.
func (m *Monitor) Transactions(dev Device) int {
	return m.transactions[dev]
}

// Clocks returns how many clock pulses dev has received.
func (m *Monitor) Clocks(dev Device) int {
	return m.clocks[dev]
}
