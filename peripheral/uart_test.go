package peripheral_test

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/qvcheck/dut"
	"github.com/sarchlab/qvcheck/peripheral"
	"github.com/sarchlab/qvcheck/timing/clock"
	"github.com/sarchlab/qvcheck/timing/latency"
)

// uartWave transmits one 8N1 frame of b starting at the given cycle.
func uartWave(b byte, start, divider int) dut.Device {
	cycle := 0
	frame := 1<<9 | int(b)<<1

	return dut.DeviceFunc(func(in dut.Inputs) dut.Outputs {
		out := dut.IdleOutputs()
		k := cycle - start
		cycle++
		if k >= 0 && k < 10*divider {
			out.UARTTx = uint8(frame>>(k/divider)) & 1
		}
		return out
	})
}

var _ = Describe("UART", func() {
	var timing *latency.TimingConfig

	run := func(dev dut.Device, fn clock.TaskFunc) error {
		domain := clock.MakeBuilder().
			WithDevice(dev).
			WithPeriodNs(timing.ClockPeriodNs).
			WithMaxCycles(1000000).
			Build("Clock")
		return domain.Run("main", fn)
	}

	BeforeEach(func() {
		timing = latency.DefaultTimingConfig()
	})

	It("should receive a frame", func() {
		var got byte

		err := run(uartWave(0x54, 100, int(timing.UARTDivider())), func(t *clock.Task) error {
			var err error
			got, err = peripheral.NewUARTChecker(timing).Receive(t)
			return err
		})

		Expect(err).NotTo(HaveOccurred())
		Expect(got).To(Equal(byte(0x54)))
	})

	It("should accept the expected byte", func() {
		err := run(uartWave('H', 40, int(timing.UARTDivider())), func(t *clock.Task) error {
			return peripheral.NewUARTChecker(timing).Expect(t, 'H')
		})

		Expect(err).NotTo(HaveOccurred())
	})

	It("should report the first wrong bit", func() {
		err := run(uartWave(0x55, 100, int(timing.UARTDivider())), func(t *clock.Task) error {
			return peripheral.NewUARTChecker(timing).Expect(t, 0x54)
		})

		Expect(err).To(MatchError(peripheral.ErrWrongBits))

		var frameErr *peripheral.FrameError
		Expect(errors.As(err, &frameErr)).To(BeTrue())
		Expect(frameErr.Bit).To(Equal(1))
		Expect(frameErr.Got).To(Equal(uint32(0x55)))
	})

	It("should give up when no frame starts", func() {
		idle := dut.DeviceFunc(func(dut.Inputs) dut.Outputs { return dut.IdleOutputs() })

		err := run(idle, func(t *clock.Task) error {
			return peripheral.NewUARTChecker(timing).WithStartPoll(8, 10).Expect(t, 'x')
		})

		Expect(err).To(MatchError(peripheral.ErrNeverStarted))
		Expect(errors.Is(err, peripheral.ErrWrongBits)).To(BeFalse())
	})

	It("should report a start bit that does not last", func() {
		divider := int(timing.UARTDivider())
		cycle := 0
		glitch := dut.DeviceFunc(func(dut.Inputs) dut.Outputs {
			out := dut.IdleOutputs()
			if cycle >= 100 && cycle < 100+divider/4 {
				out.UARTTx = 0
			}
			cycle++
			return out
		})

		err := run(glitch, func(t *clock.Task) error {
			_, err := peripheral.NewUARTChecker(timing).WithStartPoll(1, 1000).Receive(t)
			return err
		})

		Expect(err).To(MatchError(peripheral.ErrWrongBits))
		Expect(errors.Is(err, peripheral.ErrNeverStarted)).To(BeFalse())

		var frameErr *peripheral.FrameError
		Expect(errors.As(err, &frameErr)).To(BeTrue())
		Expect(frameErr.Signal).To(Equal("start"))
		Expect(frameErr.Got).To(Equal(uint32(1)))
	})

	It("should watch the debug line when asked", func() {
		wave := uartWave('d', 20, int(timing.UARTDivider()))
		debug := dut.DeviceFunc(func(in dut.Inputs) dut.Outputs {
			out := wave.Clock(in)
			out.DebugUARTTx, out.UARTTx = out.UARTTx, 1
			return out
		})

		err := run(debug, func(t *clock.Task) error {
			return peripheral.NewUARTChecker(timing).
				WithLine("debug", peripheral.DebugTxLine).
				Expect(t, 'd')
		})

		Expect(err).NotTo(HaveOccurred())
	})

	It("should loop driven frames back through a wire", func() {
		loopback := dut.DeviceFunc(func(in dut.Inputs) dut.Outputs {
			out := dut.IdleOutputs()
			out.UARTTx = in.UARTRx
			return out
		})

		err := run(loopback, func(t *clock.Task) error {
			driver := peripheral.NewUARTDriver(timing)
			driver.Idle(t)
			t.RisingEdges(2)

			sender := t.Spawn("sender", func(s *clock.Task) error {
				s.RisingEdges(50)
				driver.SendString(s, "ok")
				return nil
			})

			if err := peripheral.NewUARTChecker(timing).ExpectString(t, "ok"); err != nil {
				return err
			}
			return t.Join(sender)
		})

		Expect(err).NotTo(HaveOccurred())
	})
})
