package latency_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/qvcheck/insts"
	"github.com/sarchlab/qvcheck/timing/latency"
)

var _ = Describe("Latency", func() {
	var table *latency.Table

	BeforeEach(func() {
		table = latency.NewTable()
	})

	Describe("Default Timing Values", func() {
		It("should have a 15 ns clock", func() {
			Expect(table.Config().ClockPeriodNs).To(Equal(15.0))
		})

		It("should wait 20 cycles for each QSPI clock", func() {
			Expect(table.Config().EdgeWaitLimit).To(Equal(uint64(20)))
		})

		It("should derive the UART divider from the bit time", func() {
			Expect(table.Config().UARTDivider()).To(Equal(uint64(579)))
		})
	})

	Describe("Instruction Latencies", func() {
		It("should return 1 cycle for ALU operations", func() {
			Expect(table.GetLatency(insts.ADDI(5, 0, 1))).To(Equal(uint64(1)))
			Expect(table.GetLatency(insts.Instruction{Op: insts.OpCSUB, Rd: 8, Rs1: 8, Rs2: 9})).
				To(Equal(uint64(1)))
			Expect(table.StallCycles(insts.ADDI(5, 0, 1))).To(BeZero())
		})

		It("should return MultiplyLatency for c.mul", func() {
			inst := insts.Instruction{Op: insts.OpCMUL, Rd: 8, Rs1: 8, Rs2: 9}
			Expect(table.GetLatency(inst)).To(Equal(uint64(4)))
			Expect(table.StallCycles(inst)).To(Equal(uint64(3)))
		})

		It("should return BranchLatency for branches and jumps", func() {
			Expect(table.GetLatency(insts.JAL(1, 8))).To(Equal(uint64(1)))
			Expect(table.GetLatency(insts.Instruction{Op: insts.OpBNE, Rs1: 5, Imm: 8})).
				To(Equal(uint64(1)))
		})

		It("should delay reads by latency_cfg minus one", func() {
			Expect(table.ReadDelay(0)).To(BeZero())
			Expect(table.ReadDelay(1)).To(BeZero())
			Expect(table.ReadDelay(3)).To(Equal(uint64(2)))
		})
	})

	Describe("Instruction Type Detection", func() {
		It("should classify memory operations", func() {
			lw := insts.LW(5, 3, 0)
			sw := insts.SW(3, 5, 0)
			add := insts.ADDI(5, 5, 1)

			Expect(table.IsMemoryOp(lw)).To(BeTrue())
			Expect(table.IsMemoryOp(sw)).To(BeTrue())
			Expect(table.IsMemoryOp(add)).To(BeFalse())
			Expect(table.IsLoadOp(lw)).To(BeTrue())
			Expect(table.IsStoreOp(lw)).To(BeFalse())
			Expect(table.IsStoreOp(sw)).To(BeTrue())
		})

		It("should detect branch operations", func() {
			Expect(table.IsBranchOp(insts.Instruction{Op: insts.OpCBEQZ, Rs1: 8})).To(BeTrue())
			Expect(table.IsBranchOp(insts.JAL(0, 4))).To(BeTrue())
			Expect(table.IsBranchOp(insts.NOP())).To(BeFalse())
		})
	})

	Describe("Custom Configuration", func() {
		It("should use custom config values", func() {
			config := latency.DefaultTimingConfig()
			config.LoadLatency = 3
			config.MultiplyLatency = 6

			custom := latency.NewTableWithConfig(config)

			Expect(custom.GetLatency(insts.LW(5, 3, 0))).To(Equal(uint64(3)))
			Expect(custom.GetLatency(insts.Instruction{Op: insts.OpCMUL, Rd: 8, Rs1: 8, Rs2: 9})).
				To(Equal(uint64(6)))
		})
	})
})

var _ = Describe("TimingConfig", func() {
	Describe("Default Config", func() {
		It("should create valid default config", func() {
			config := latency.DefaultTimingConfig()
			Expect(config.Validate()).To(Succeed())
		})

		It("should create a valid slow config", func() {
			config := latency.SlowTimingConfig()
			Expect(config.Validate()).To(Succeed())
			Expect(config.LatencyCfg).To(Equal(uint8(3)))
			Expect(config.UARTDivider()).To(Equal(uint64(556)))
		})
	})

	Describe("Validation", func() {
		It("should reject zero ALU latency", func() {
			config := latency.DefaultTimingConfig()
			config.ALULatency = 0
			Expect(config.Validate()).To(HaveOccurred())
		})

		It("should reject a zero clock period", func() {
			config := latency.DefaultTimingConfig()
			config.ClockPeriodNs = 0
			Expect(config.Validate()).To(HaveOccurred())
		})

		It("should reject a latency_cfg wider than three bits", func() {
			config := latency.DefaultTimingConfig()
			config.LatencyCfg = 8
			Expect(config.Validate()).To(HaveOccurred())
		})

		It("should reject stalls the harness would not wait for", func() {
			config := latency.DefaultTimingConfig()
			config.MultiplyLatency = 19
			Expect(config.Validate()).To(HaveOccurred())
		})

		It("should reject a zero SPI divider", func() {
			config := latency.DefaultTimingConfig()
			config.SPIDivider = 0
			Expect(config.Validate()).To(HaveOccurred())
		})
	})

	Describe("Clone", func() {
		It("should create independent copy", func() {
			original := latency.DefaultTimingConfig()
			clone := original.Clone()

			clone.ALULatency = 100

			Expect(original.ALULatency).To(Equal(uint64(1)))
			Expect(clone.ALULatency).To(Equal(uint64(100)))
		})
	})

	Describe("File Operations", func() {
		var tempDir string

		BeforeEach(func() {
			var err error
			tempDir, err = os.MkdirTemp("", "latency-test")
			Expect(err).NotTo(HaveOccurred())
		})

		AfterEach(func() {
			_ = os.RemoveAll(tempDir)
		})

		It("should save and load JSON config", func() {
			original := latency.DefaultTimingConfig()
			original.ALULatency = 5
			original.LatencyCfg = 2

			path := filepath.Join(tempDir, "timing.json")
			Expect(original.SaveConfig(path)).To(Succeed())

			loaded, err := latency.LoadConfig(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(loaded).To(Equal(original))
		})

		It("should save and load YAML config", func() {
			original := latency.SlowTimingConfig()

			path := filepath.Join(tempDir, "timing.yaml")
			Expect(original.SaveConfig(path)).To(Succeed())

			loaded, err := latency.LoadConfig(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(loaded).To(Equal(original))
		})

		It("should keep defaults for fields missing from the file", func() {
			path := filepath.Join(tempDir, "partial.yml")
			Expect(os.WriteFile(path, []byte("latency_cfg: 3\n"), 0644)).To(Succeed())

			loaded, err := latency.LoadConfig(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(loaded.LatencyCfg).To(Equal(uint8(3)))
			Expect(loaded.UARTBitTimeNs).To(Equal(8680.0))
		})

		It("should return error for non-existent file", func() {
			_, err := latency.LoadConfig("/nonexistent/path/timing.json")
			Expect(err).To(HaveOccurred())
		})

		It("should return error for invalid JSON", func() {
			path := filepath.Join(tempDir, "invalid.json")
			err := os.WriteFile(path, []byte("not valid json"), 0644)
			Expect(err).NotTo(HaveOccurred())

			_, err = latency.LoadConfig(path)
			Expect(err).To(HaveOccurred())
		})
	})
})
