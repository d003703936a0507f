package scenario_test

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/qvcheck/dut"
	"github.com/sarchlab/qvcheck/insts"
	"github.com/sarchlab/qvcheck/scenario"
	"github.com/sarchlab/qvcheck/timing/clock"
)

// hangingCore goes idle once hang is set, as a device that stopped fetching.
type hangingCore struct {
	dut.Device

	hang *bool
}

func (c *hangingCore) Clock(in dut.Inputs) dut.Outputs {
	out := c.Device.Clock(in)
	if *c.hang {
		return dut.IdleOutputs()
	}
	return out
}

var _ = Describe("Filler", func() {
	var runner *scenario.Runner

	BeforeEach(func() {
		runner = scenario.NewRunner(scenario.NewConfig())
	})

	It("should keep the device busy until stopped", func() {
		var issued int

		res := runner.RunSeed("filler", 1, func(t *clock.Task, d *scenario.Driver) error {
			if err := d.Setup(t); err != nil {
				return err
			}

			f, err := d.StartFiller(t)
			if err != nil {
				return err
			}

			t.RisingEdges(500)

			issued, err = f.Stop(t)
			if err != nil {
				return err
			}

			return d.Verify(t)
		})

		Expect(res.Err).NotTo(HaveOccurred())
		Expect(issued).To(BeNumerically(">", 5))
		Expect(res.Stats.FillerNOPs).To(Equal(issued))
		Expect(res.State.FillerRunning).To(BeFalse())
	})

	It("should hand the bus back after the instruction in flight", func() {
		res := runner.RunSeed("filler", 1, func(t *clock.Task, d *scenario.Driver) error {
			if err := d.Setup(t); err != nil {
				return err
			}

			for i := 0; i < 3; i++ {
				err := d.WhileFilling(t, func() error {
					t.RisingEdges(37 * (i + 1))
					return nil
				})
				if err != nil {
					return err
				}

				if err := d.Issue(t, insts.ADDI(5, 5, 1)); err != nil {
					return err
				}
			}

			return d.Verify(t)
		})

		Expect(res.Err).NotTo(HaveOccurred())
		Expect(checkOf(res, 5).Got).To(Equal(uint32(3)))
	})

	It("should keep the main sequence off the bus while running", func() {
		var issueErr, secondErr, stopErr error

		res := runner.RunSeed("filler", 1, func(t *clock.Task, d *scenario.Driver) error {
			if err := d.Setup(t); err != nil {
				return err
			}

			f, err := d.StartFiller(t)
			if err != nil {
				return err
			}

			issueErr = d.Issue(t, insts.NOP())
			_, secondErr = d.StartFiller(t)

			if _, err := f.Stop(t); err != nil {
				return err
			}
			_, stopErr = f.Stop(t)

			return d.Issue(t, insts.NOP())
		})

		Expect(res.Err).NotTo(HaveOccurred())
		Expect(issueErr).To(MatchError(scenario.ErrFillerRunning))
		Expect(secondErr).To(MatchError(scenario.ErrFillerRunning))
		Expect(stopErr).To(MatchError(ContainSubstring("already stopped")))
	})

	It("should pass on the error of the body", func() {
		errBody := errors.New("peripheral timed out")
		var fillErr error

		runner.RunSeed("filler", 1, func(t *clock.Task, d *scenario.Driver) error {
			if err := d.Setup(t); err != nil {
				return err
			}

			fillErr = d.WhileFilling(t, func() error {
				t.RisingEdges(100)
				return errBody
			})

			return nil
		})

		Expect(fillErr).To(MatchError(errBody))
	})

	It("should keep both errors when the filler fails too", func() {
		errBody := errors.New("peripheral timed out")
		hang := false
		var fillErr error

		cfg := scenario.NewConfig(scenario.WithDevice(func(c *scenario.Config) dut.Device {
			return &hangingCore{Device: scenario.ReferenceCore(c), hang: &hang}
		}))

		scenario.NewRunner(cfg).RunSeed("filler", 1, func(t *clock.Task, d *scenario.Driver) error {
			if err := d.Setup(t); err != nil {
				return err
			}

			fillErr = d.WhileFilling(t, func() error {
				t.RisingEdges(100)
				hang = true
				t.RisingEdges(200)
				return errBody
			})

			return nil
		})

		Expect(fillErr).To(MatchError(errBody))

		joined, ok := fillErr.(interface{ Unwrap() []error })
		Expect(ok).To(BeTrue())
		Expect(joined.Unwrap()).To(HaveLen(2))
	})
})
