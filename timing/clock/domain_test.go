package clock_test

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/qvcheck/dut"
	"github.com/sarchlab/qvcheck/timing/clock"
)

type edgeCounter struct {
	rising, falling int
	lastTimeNs      float64
}

func (h *edgeCounter) Func(ctx sim.HookCtx) {
	if ctx.Pos != clock.HookPosEdge {
		return
	}

	ev := ctx.Item.(clock.EdgeEvent)
	if ev.Edge == clock.Rising {
		h.rising++
	} else {
		h.falling++
	}
	h.lastTimeNs = ev.TimeNs
}

var _ = Describe("Domain", func() {
	var (
		evaluations int
		domain      *clock.Domain
	)

	// echo copies ui_in to uo_out, one rising edge late.
	echo := dut.DeviceFunc(func(in dut.Inputs) dut.Outputs {
		evaluations++
		out := dut.IdleOutputs()
		out.UOOut = in.UIIn
		return out
	})

	BeforeEach(func() {
		evaluations = 0
		domain = clock.MakeBuilder().
			WithDevice(echo).
			WithPeriodNs(10).
			WithMaxCycles(10000).
			Build("Clock")
	})

	It("should evaluate the device once per rising edge", func() {
		err := domain.Run("main", func(t *clock.Task) error {
			t.RisingEdges(3)
			t.FallingEdges(1)
			return nil
		})

		Expect(err).ToNot(HaveOccurred())
		Expect(evaluations).To(Equal(3))
		Expect(domain.Cycle()).To(Equal(uint64(3)))
	})

	It("should apply inputs on the next rising edge", func() {
		var before, after uint8

		err := domain.Run("main", func(t *clock.Task) error {
			t.FallingEdges(1)
			t.Inputs().UIIn = 0x5A
			before = t.Outputs().UOOut
			t.FallingEdges(1)
			after = t.Outputs().UOOut
			return nil
		})

		Expect(err).ToNot(HaveOccurred())
		Expect(before).To(Equal(uint8(0)))
		Expect(after).To(Equal(uint8(0x5A)))
	})

	It("should resolve timers to the first edge at or after the deadline", func() {
		var start, end float64

		err := domain.Run("main", func(t *clock.Task) error {
			t.RisingEdges(1)
			start = t.NowNs()
			t.Timer(42)
			end = t.NowNs()
			return nil
		})

		Expect(err).ToNot(HaveOccurred())
		Expect(end - start).To(BeNumerically(">=", 42))
		Expect(end - start).To(BeNumerically("<", 47))
	})

	It("should interleave spawned tasks at edge boundaries", func() {
		var order []string

		err := domain.Run("main", func(t *clock.Task) error {
			child := t.Spawn("child", func(c *clock.Task) error {
				for i := 0; i < 3; i++ {
					order = append(order, "child")
					c.RisingEdges(2)
				}
				return nil
			})

			for i := 0; i < 3; i++ {
				order = append(order, "main")
				t.RisingEdges(2)
			}

			return t.Join(child)
		})

		Expect(err).ToNot(HaveOccurred())
		Expect(order).To(Equal([]string{
			"main", "child", "main", "child", "main", "child",
		}))
	})

	It("should pass a joined task's error to the joiner and fail the run", func() {
		boom := errors.New("boom")

		err := domain.Run("main", func(t *clock.Task) error {
			child := t.Spawn("child", func(c *clock.Task) error {
				c.RisingEdges(5)
				return boom
			})
			return t.Join(child)
		})

		Expect(err).To(MatchError(boom))
	})

	It("should stop tasks that outlive the main task", func() {
		err := domain.Run("main", func(t *clock.Task) error {
			t.Spawn("forever", func(c *clock.Task) error {
				for {
					c.FallingEdges(1)
				}
			})
			t.RisingEdges(10)
			return nil
		})

		Expect(err).ToNot(HaveOccurred())
	})

	It("should turn a panic into an error", func() {
		err := domain.Run("main", func(t *clock.Task) error {
			t.RisingEdges(1)
			panic("bad state")
		})

		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("bad state"))
	})

	It("should enforce the cycle limit", func() {
		err := domain.Run("main", func(t *clock.Task) error {
			for {
				t.RisingEdges(1)
			}
		})

		Expect(err).To(MatchError(clock.ErrCycleLimit))
	})

	It("should invoke hooks on both edges", func() {
		counter := &edgeCounter{}
		domain.AcceptHook(counter)

		err := domain.Run("main", func(t *clock.Task) error {
			t.FallingEdges(4)
			return nil
		})

		Expect(err).ToNot(HaveOccurred())
		Expect(counter.rising).To(Equal(4))
		Expect(counter.falling).To(Equal(4))
		Expect(counter.lastTimeNs).To(BeNumerically("~", 35.0))
	})
})
