package bus_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/qvcheck/bus"
	"github.com/sarchlab/qvcheck/dut"
	"github.com/sarchlab/qvcheck/timing/clock"
)

var _ = Describe("Monitor", func() {
	var monitor *bus.Monitor

	fire := func(edge clock.Edge, out dut.Outputs) {
		monitor.Func(sim.HookCtx{
			Pos:  clock.HookPosEdge,
			Item: clock.EdgeEvent{Edge: edge, Outputs: out},
		})
	}

	BeforeEach(func() {
		monitor = bus.NewMonitor()
	})

	It("should count transactions and clock pulses per device", func() {
		w := (&waveform{}).on(bus.DeviceFlash).assert(0, 0xF).step(0, 0xF).idle(1).
			on(bus.DeviceRAMA).assert(0, 0xF).step(0, 0xF).step(0, 0xF).idle(1)

		for _, out := range w.outs {
			fire(clock.Rising, out)
		}

		Expect(monitor.Err()).ToNot(HaveOccurred())
		Expect(monitor.Transactions(bus.DeviceFlash)).To(Equal(1))
		Expect(monitor.Transactions(bus.DeviceRAMA)).To(Equal(1))
		Expect(monitor.Clocks(bus.DeviceFlash)).To(Equal(1))
		Expect(monitor.Clocks(bus.DeviceRAMA)).To(Equal(2))
	})

	It("should flag two selects low together", func() {
		out := selectedOutputs(bus.DeviceFlash)
		out.RAMBSelect = 0
		fire(clock.Rising, out)

		Expect(monitor.Err()).To(MatchError(bus.ErrSelectConflict))
	})

	It("should flag a clock pulse with nothing selected", func() {
		out := dut.IdleOutputs()
		out.QSPIClk = 1
		fire(clock.Rising, out)

		Expect(monitor.Err()).To(MatchError(bus.ErrProtocol))
	})

	It("should ignore falling edges and other hook positions", func() {
		out := dut.IdleOutputs()
		out.QSPIClk = 1
		fire(clock.Falling, out)
		monitor.Func(sim.HookCtx{Pos: &sim.HookPos{Name: "other"}, Item: 42})

		Expect(monitor.Err()).ToNot(HaveOccurred())
	})
})
