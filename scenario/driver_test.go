package scenario_test

import (
	"errors"
	"fmt"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/qvcheck/bus"
	"github.com/sarchlab/qvcheck/dut"
	"github.com/sarchlab/qvcheck/emu"
	"github.com/sarchlab/qvcheck/insts"
	"github.com/sarchlab/qvcheck/scenario"
	"github.com/sarchlab/qvcheck/timing/clock"
)

// corruptStores flips the low bit of every data nibble the wrapped device
// writes to RAM A.
type corruptStores struct {
	dut.Device

	rises   int
	prevClk uint8
}

func (c *corruptStores) Clock(in dut.Inputs) dut.Outputs {
	out := c.Device.Clock(in)

	if out.RAMASelect != 0 {
		c.rises = 0
		c.prevClk = 0
		return out
	}

	if out.QSPIClk == 1 && c.prevClk == 0 {
		c.rises++
	}
	c.prevClk = out.QSPIClk

	// Command and address take eight clocks.
	if out.QSPIDataOE == 0xF && c.rises > 8 {
		out.QSPIDataOut ^= 0x1
	}

	return out
}

func faultyCore(c *scenario.Config) dut.Device {
	return &corruptStores{Device: scenario.ReferenceCore(c)}
}

func checkOf(res scenario.Result, reg uint8) scenario.RegisterCheck {
	for _, c := range res.Checks {
		if c.Reg == reg {
			return c
		}
	}
	Fail("no check for register")
	return scenario.RegisterCheck{}
}

var _ = Describe("Driver", func() {
	var runner *scenario.Runner

	BeforeEach(func() {
		runner = scenario.NewRunner(scenario.NewConfig(scenario.WithInstructions(120)))
	})

	It("should pass the random scenario on the reference core", func() {
		res := runner.RunSeed("random", 3, scenario.Random)

		Expect(res.Err).NotTo(HaveOccurred())
		Expect(res.State.Stage).To(Equal(scenario.StageDone))
		Expect(res.Stats.ByKind).NotTo(BeEmpty())
		Expect(res.Checks).To(HaveLen(16))
		for _, c := range res.Checks {
			Expect(c.Passed()).To(BeTrue(), "x%d", c.Reg)
		}
	})

	It("should keep x0, gp and tp fixed", func() {
		res := runner.RunSeed("random", 11, scenario.Random)

		Expect(res.Err).NotTo(HaveOccurred())
		Expect(checkOf(res, 0).Got).To(BeZero())
		Expect(checkOf(res, insts.RegGP).Got).To(Equal(emu.DefaultGP))
		Expect(checkOf(res, insts.RegTP).Got).To(Equal(emu.DefaultTP))
	})

	It("should produce the same stream for the same seed", func() {
		a := runner.RunSeed("random", 5, scenario.Random)
		b := runner.RunSeed("random", 5, scenario.Random)

		Expect(a.Err).NotTo(HaveOccurred())
		Expect(b.Stats).To(Equal(a.Stats))
		Expect(b.State.Registers).To(Equal(a.State.Registers))
		Expect(b.Cycles).To(Equal(a.Cycles))
	})

	It("should see a logical shift of -1 by 4", func() {
		res := runner.RunSeed("srli", 1, func(t *clock.Task, d *scenario.Driver) error {
			if err := d.Setup(t); err != nil {
				return err
			}
			if err := d.Materialize(t, 5, 0xFFFFFFFF); err != nil {
				return err
			}
			if err := d.Issue(t, insts.Instruction{Op: insts.OpSRLI, Rd: 5, Rs1: 5, Imm: 4}); err != nil {
				return err
			}
			return d.Verify(t)
		})

		Expect(res.Err).NotTo(HaveOccurred())
		Expect(checkOf(res, 5)).To(Equal(scenario.RegisterCheck{Reg: 5, Want: 0x0FFFFFFF, Got: 0x0FFFFFFF}))
	})

	It("should see a compressed logical shift of -1 by 4", func() {
		res := runner.RunSeed("c.srli", 1, func(t *clock.Task, d *scenario.Driver) error {
			if err := d.Setup(t); err != nil {
				return err
			}
			if err := d.Materialize(t, 9, 0xFFFFFFFF); err != nil {
				return err
			}
			if err := d.Issue(t, insts.Instruction{Op: insts.OpCSRLI, Rd: 9, Rs1: 9, Imm: 4}); err != nil {
				return err
			}
			return d.Verify(t)
		})

		Expect(res.Err).NotTo(HaveOccurred())
		Expect(checkOf(res, 9)).To(Equal(scenario.RegisterCheck{Reg: 9, Want: 0x0FFFFFFF, Got: 0x0FFFFFFF}))
	})

	It("should follow taken branches", func() {
		res := runner.RunSeed("branch", 1, func(t *clock.Task, d *scenario.Driver) error {
			if err := d.Setup(t); err != nil {
				return err
			}
			if err := d.Issue(t, insts.JAL(insts.RegRA, 0x40)); err != nil {
				return err
			}
			if pc := d.Model().PC(); pc != 0x40 {
				return fmt.Errorf("pc = %#x after jal", pc)
			}
			return d.Issue(t, insts.Instruction{Op: insts.OpCBEQZ, Rs1: 8, Imm: -0x20})
		})

		Expect(res.Err).NotTo(HaveOccurred())
		Expect(res.Stats.TakenBranches).To(Equal(2))
		Expect(res.Bus.EarlyExits).To(Equal(2))
	})

	It("should serve loads and check stores", func() {
		var loaded uint32

		res := runner.RunSeed("memory", 2, func(t *clock.Task, d *scenario.Driver) error {
			if err := d.Setup(t); err != nil {
				return err
			}
			d.RAM().Write(emu.DefaultGP+8, 0xCAFEF00D, 4)

			if err := d.Issue(t, insts.LW(6, insts.RegGP, 8)); err != nil {
				return err
			}
			loaded = uint32(d.Model().Reg(6))

			return d.Issue(t, insts.Instruction{Op: insts.OpSH, Rs1: insts.RegGP, Rs2: 6, Imm: 16})
		})

		Expect(res.Err).NotTo(HaveOccurred())
		Expect(loaded).To(Equal(uint32(0xCAFEF00D)))
		Expect(res.Stats.Loads).To(Equal(1))
		Expect(res.Stats.Stores).To(Equal(1))
		Expect(res.BusTransactions[bus.DeviceRAMA]).To(Equal(2))
	})

	It("should refuse to guess peripheral loads", func() {
		res := runner.RunSeed("periph", 1, func(t *clock.Task, d *scenario.Driver) error {
			if err := d.Setup(t); err != nil {
				return err
			}
			return d.Issue(t, insts.LW(5, insts.RegTP, 0x10))
		})

		Expect(res.Err).To(MatchError(scenario.ErrUnpredictable))
	})

	It("should reject instructions that do not encode", func() {
		res := runner.RunSeed("bad", 1, func(t *clock.Task, d *scenario.Driver) error {
			if err := d.Setup(t); err != nil {
				return err
			}
			return d.Issue(t, insts.Instruction{Op: insts.OpCLW, Rd: 1, Rs1: insts.RegSP})
		})

		Expect(res.Err).To(MatchError(insts.ErrRegisterOutOfRange))
		Expect(res.Stats.Instructions).To(BeZero())
	})

	It("should report every mismatching register of a faulty device", func() {
		cfg := scenario.NewConfig(scenario.WithDevice(faultyCore))

		res := scenario.NewRunner(cfg).RunSeed("faulty", 1, func(t *clock.Task, d *scenario.Driver) error {
			if err := d.Setup(t); err != nil {
				return err
			}
			if err := d.Materialize(t, 5, 0x12345678); err != nil {
				return err
			}
			return d.Verify(t)
		})

		Expect(errors.Is(res.Err, scenario.ErrMismatch)).To(BeTrue())

		var mismatch *scenario.MismatchError
		Expect(errors.As(res.Err, &mismatch)).To(BeTrue())
		Expect(mismatch.Got).NotTo(Equal(mismatch.Want))

		Expect(res.Checks).To(HaveLen(16))
		Expect(checkOf(res, 5).Want).To(Equal(uint32(0x12345678)))
		Expect(checkOf(res, 5).Passed()).To(BeFalse())
	})

	It("should stop the random stream at the first wrong store", func() {
		cfg := scenario.NewConfig(
			scenario.WithDevice(faultyCore),
			scenario.WithCatalog(scenario.DefaultCatalog().Only(scenario.KindStore)),
			scenario.WithInstructions(10),
		)

		res := scenario.NewRunner(cfg).RunSeed("random", 1, scenario.Random)

		Expect(res.Err).To(MatchError(scenario.ErrMismatch))
		Expect(res.State.Stage).To(Equal(scenario.StageInjectStream))
		Expect(res.Stats.Stores).To(Equal(1))
	})
})

var _ = Describe("Reset", func() {
	It("should fail a device that never drives its idle direction", func() {
		domain := clock.MakeBuilder().
			WithDevice(dut.DeviceFunc(func(in dut.Inputs) dut.Outputs {
				return dut.IdleOutputs()
			})).
			WithMaxCycles(1000).
			Build("Clock")

		cfg := scenario.NewConfig()
		err := domain.Run("reset", func(t *clock.Task) error {
			return scenario.Reset(t, cfg.Timing)
		})

		Expect(err).To(MatchError(scenario.ErrReset))
		Expect(err.Error()).To(ContainSubstring("after reset"))
	})
})
