package scenario_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/qvcheck/scenario"
	"github.com/sarchlab/qvcheck/timing/latency"
)

var _ = Describe("Peripherals", func() {
	It("should pass on the reference core", func() {
		res := scenario.NewRunner(scenario.NewConfig()).
			RunSeed("peripherals", 1, scenario.Peripherals)

		Expect(res.Err).NotTo(HaveOccurred())
		Expect(res.State.Stage).To(Equal(scenario.StageDone))
		Expect(res.Stats.FillerNOPs).To(BeNumerically(">", 0))

		Expect(checkOf(res, 1).Got).To(Equal(uint32(scenario.PeripheralGPIOValue)))
		Expect(checkOf(res, 5).Got).To(Equal(uint32(scenario.PeripheralMISOByte)))
		Expect(checkOf(res, 6).Got).To(Equal(uint32(scenario.PeripheralRxByte)))
		for i := 0; i < 8; i++ {
			Expect(checkOf(res, uint8(8+i)).Got).To(Equal(uint32(0x102 * i)))
		}
	})

	It("should pass with extra SPI latency before the first edge", func() {
		timing := latency.DefaultTimingConfig()
		timing.SPILatency = 3

		res := scenario.NewRunner(scenario.NewConfig(scenario.WithTimingConfig(timing))).
			RunSeed("peripherals", 2, scenario.Peripherals)

		Expect(res.Err).NotTo(HaveOccurred())
		Expect(checkOf(res, 5).Got).To(Equal(uint32(scenario.PeripheralMISOByte)))
	})

	It("should fail on a device that corrupts stores", func() {
		cfg := scenario.NewConfig(scenario.WithDevice(faultyCore))

		res := scenario.NewRunner(cfg).RunSeed("peripherals", 1, scenario.Peripherals)

		Expect(res.Err).To(MatchError(scenario.ErrMismatch))
		Expect(res.State.Stage).To(Equal(scenario.StageVerify))
	})
})
