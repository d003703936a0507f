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

// spiWave holds cs low for latency cycles, shifts data out with a divider
// of one and raises cs one cycle after the last bit.
type spiWave struct {
	cycle   int
	start   int
	latency int
	data    byte
	rx      byte
}

func (w *spiWave) Clock(in dut.Inputs) dut.Outputs {
	out := dut.IdleOutputs()
	k := w.cycle - w.start
	w.cycle++

	if k >= 0 && k < w.latency {
		out.SPICs = 0
		out.SPISck = 0
		return out
	}
	k -= w.latency

	if k >= 0 && k < 16 {
		out.SPICs = 0
		out.SPISck = uint8(k % 2)
		out.SPIMosi = w.data >> (7 - k/2) & 1
		if k%2 == 1 {
			w.rx = w.rx<<1 | in.SPIMiso&1
		}
	}

	return out
}

var _ = Describe("SPI", func() {
	var (
		timing *latency.TimingConfig
		wave   *spiWave
	)

	run := func(fn clock.TaskFunc) error {
		domain := clock.MakeBuilder().
			WithDevice(wave).
			WithMaxCycles(10000).
			Build("Clock")
		return domain.Run("main", fn)
	}

	BeforeEach(func() {
		timing = latency.DefaultTimingConfig()
		wave = &spiWave{start: 10, data: 0xA5}
	})

	It("should check a frame and its end", func() {
		err := run(func(t *clock.Task) error {
			t.RisingEdges(1)
			checker := peripheral.NewSPIChecker(timing).WithResponse(0x3C)
			if err := checker.Expect(t, 0xA5); err != nil {
				return err
			}
			return checker.ExpectEnd(t)
		})

		Expect(err).NotTo(HaveOccurred())
		Expect(wave.rx).To(Equal(byte(0x3C)))
	})

	It("should wait out the latency before the first edge", func() {
		timing.SPILatency = 3
		wave.latency = 3

		err := run(func(t *clock.Task) error {
			t.RisingEdges(1)
			checker := peripheral.NewSPIChecker(timing).WithResponse(0x81)
			if err := checker.Expect(t, 0xA5); err != nil {
				return err
			}
			return checker.ExpectEnd(t)
		})

		Expect(err).NotTo(HaveOccurred())
		Expect(wave.rx).To(Equal(byte(0x81)))
	})

	It("should report an early first edge", func() {
		wave.latency = 0

		err := run(func(t *clock.Task) error {
			t.RisingEdges(1)
			return peripheral.NewSPIChecker(timing).WithLatency(2).Expect(t, 0xA5)
		})

		var frameErr *peripheral.FrameError
		Expect(errors.As(err, &frameErr)).To(BeTrue())
		Expect(frameErr.Signal).To(Equal("sck"))
		Expect(err).To(MatchError(peripheral.ErrWrongBits))
	})

	It("should report a wrong mosi bit", func() {
		err := run(func(t *clock.Task) error {
			t.RisingEdges(1)
			return peripheral.NewSPIChecker(timing).Expect(t, 0xA4)
		})

		var frameErr *peripheral.FrameError
		Expect(errors.As(err, &frameErr)).To(BeTrue())
		Expect(frameErr.Signal).To(Equal("mosi"))
		Expect(frameErr.Bit).To(Equal(7))
		Expect(err).To(MatchError(peripheral.ErrWrongBits))
	})

	It("should give up when cs never falls", func() {
		wave.start = 1000

		err := run(func(t *clock.Task) error {
			t.RisingEdges(1)
			return peripheral.NewSPIChecker(timing).Expect(t, 0xA5)
		})

		Expect(err).To(MatchError(peripheral.ErrNeverStarted))
	})
})
