package emu_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/qvcheck/bus"
	"github.com/sarchlab/qvcheck/emu"
	"github.com/sarchlab/qvcheck/insts"
)

var _ = Describe("Model", func() {
	var m *emu.Model

	exec := func(inst insts.Instruction) emu.StepResult {
		result := m.Execute(inst, 0)
		Expect(result.Err).NotTo(HaveOccurred())
		return result
	}

	materialize := func(rd uint8, v uint32) {
		upper, low := insts.SplitConstant(v)
		exec(insts.LUI(rd, upper))
		exec(insts.ADDI(rd, rd, low))
	}

	BeforeEach(func() {
		m = emu.NewModel()
	})

	Describe("register effects", func() {
		It("should materialize constants with lui and addi", func() {
			for _, v := range []uint32{0, 0x12345FFF, 0x80000000, 0xFFFFFFFF, 0x7FF, 0x800} {
				materialize(5, v)
				Expect(uint32(m.Reg(5))).To(Equal(v))
			}
		})

		It("should shift -1 right logically by 4", func() {
			exec(insts.ADDI(5, 0, -1))
			exec(insts.Instruction{Op: insts.OpSRLI, Rd: 5, Rs1: 5, Imm: 4})
			Expect(uint32(m.Reg(5))).To(Equal(uint32(0x0FFFFFFF)))
		})

		It("should never change x0, gp or tp", func() {
			exec(insts.ADDI(0, 0, 5))
			exec(insts.ADDI(insts.RegGP, 0, 5))
			exec(insts.Instruction{Op: insts.OpCLI, Rd: insts.RegTP, Imm: 3})

			Expect(m.Reg(0)).To(BeZero())
			Expect(uint32(m.Reg(insts.RegGP))).To(Equal(emu.DefaultGP))
			Expect(uint32(m.Reg(insts.RegTP))).To(Equal(emu.DefaultTP))
		})

		It("should move registers with c.mv", func() {
			exec(insts.ADDI(9, 0, 77))
			exec(insts.Instruction{Op: insts.OpCMV, Rd: 10, Rs2: 9})
			Expect(m.Reg(10)).To(Equal(int32(77)))
		})

		It("should use the configured pointers", func() {
			m = emu.NewModel(emu.WithPointers(0x1000800, 0x8000100))
			Expect(uint32(m.Reg(insts.RegGP))).To(Equal(uint32(0x1000800)))
			Expect(uint32(m.Reg(insts.RegTP))).To(Equal(uint32(0x8000100)))
		})
	})

	Describe("program counter", func() {
		It("should advance by the instruction length", func() {
			exec(insts.ADDI(5, 0, 1))
			Expect(m.PC()).To(Equal(uint32(4)))
			exec(insts.Instruction{Op: insts.OpCADDI, Rd: 5, Rs1: 5, Imm: 1})
			Expect(m.PC()).To(Equal(uint32(6)))
			Expect(m.InstructionCount()).To(Equal(uint64(2)))
		})

		It("should follow a taken branch", func() {
			exec(insts.ADDI(5, 0, 3))
			exec(insts.ADDI(6, 0, 3))
			result := exec(insts.Instruction{Op: insts.OpBEQ, Rs1: 5, Rs2: 6, Imm: -8})
			Expect(result.Taken).To(BeTrue())
			Expect(m.PC()).To(Equal(uint32(0)))
		})

		It("should fall through a branch not taken", func() {
			exec(insts.ADDI(5, 0, -1))
			result := exec(insts.Instruction{Op: insts.OpBLTU, Rs1: 5, Rs2: 0, Imm: 64})
			Expect(result.Taken).To(BeFalse())
			Expect(m.PC()).To(Equal(uint32(8)))
		})

		It("should compare signed and unsigned differently", func() {
			exec(insts.ADDI(5, 0, -1))
			result := exec(insts.Instruction{Op: insts.OpBLT, Rs1: 5, Rs2: 0, Imm: 64})
			Expect(result.Taken).To(BeTrue())
			Expect(result.NextPC).To(Equal(uint32(68)))
		})

		It("should link jal to the next instruction", func() {
			exec(insts.NOP())
			exec(insts.JAL(insts.RegRA, 8))
			Expect(m.Reg(insts.RegRA)).To(Equal(int32(8)))
			Expect(m.PC()).To(Equal(uint32(12)))
		})

		It("should link c.jal past a 16-bit instruction", func() {
			exec(insts.Instruction{Op: insts.OpCJAL, Rd: insts.RegRA, Imm: 16})
			Expect(m.Reg(insts.RegRA)).To(Equal(int32(2)))
			Expect(m.PC()).To(Equal(uint32(16)))
		})

		It("should test c.bnez against zero", func() {
			m.SetPC(0x100)
			result := exec(insts.Instruction{Op: insts.OpCBNEZ, Rs1: 8, Imm: -4})
			Expect(result.Taken).To(BeFalse())
			Expect(m.PC()).To(Equal(uint32(0x102)))
		})
	})

	Describe("memory", func() {
		It("should predict a RAM store", func() {
			materialize(5, 0x1000000)
			exec(insts.ADDI(6, 0, -2))

			access, err := m.Access(insts.Instruction{Op: insts.OpSH, Rs1: 5, Rs2: 6, Imm: 6})
			Expect(err).NotTo(HaveOccurred())
			Expect(access.Addr).To(Equal(uint32(0x1000006)))
			Expect(access.Store).To(BeTrue())
			Expect(access.Size).To(Equal(2))
			Expect(access.Value).To(Equal(uint32(0xFFFE)))

			dev, ok := access.Device()
			Expect(ok).To(BeTrue())
			Expect(dev).To(Equal(bus.DeviceRAMA))
		})

		It("should place high addresses in RAM B", func() {
			materialize(5, 0x1800010)
			access, err := m.Access(insts.LW(6, 5, -4))
			Expect(err).NotTo(HaveOccurred())
			Expect(access.Region).To(Equal(emu.RegionRAMB))
		})

		It("should route tp-relative accesses to the peripherals", func() {
			access, err := m.Access(insts.SW(insts.RegTP, 5, 0x10))
			Expect(err).NotTo(HaveOccurred())
			Expect(access.Region).To(Equal(emu.RegionPeripheral))
			Expect(access.Offset()).To(Equal(uint32(0x10)))

			_, ok := access.Device()
			Expect(ok).To(BeFalse())
		})

		It("should reject flash accesses", func() {
			_, err := m.Access(insts.LW(5, 0, 16))
			Expect(err).To(MatchError(emu.ErrFlashAccess))

			result := m.Execute(insts.LW(5, 0, 16), 0)
			Expect(result.Err).To(MatchError(emu.ErrFlashAccess))
			Expect(m.PC()).To(BeZero())
		})

		It("should reject non-memory instructions", func() {
			_, err := m.Access(insts.NOP())
			Expect(err).To(MatchError(emu.ErrNotMemoryOp))
		})

		DescribeTable("load extension",
			func(op insts.Op, data uint32, want int32) {
				inst := insts.Instruction{Op: op, Rd: 6, Rs1: insts.RegGP}
				result := m.Execute(inst, data)
				Expect(result.Err).NotTo(HaveOccurred())
				Expect(m.Reg(6)).To(Equal(want))
			},
			Entry("lb", insts.OpLB, uint32(0xF0), int32(-16)),
			Entry("lbu", insts.OpLBU, uint32(0xF0), int32(0xF0)),
			Entry("lh", insts.OpLH, uint32(0x8001), int32(-32767)),
			Entry("lhu", insts.OpLHU, uint32(0x8001), int32(0x8001)),
			Entry("lw", insts.OpLW, uint32(0xDEADBEEF), int32(-559038737)),
			Entry("c.lbu ignores upper bytes", insts.OpCLBU, uint32(0x1234), int32(0x34)),
			Entry("c.lh", insts.OpCLH, uint32(0xFFFF), int32(-1)),
		)

		It("should leave registers alone on a store", func() {
			before := m.RegFile().Snapshot()
			result := m.Execute(insts.SW(insts.RegGP, 5, 0), 0)
			Expect(result.Err).NotTo(HaveOccurred())
			Expect(m.RegFile().Snapshot()).To(Equal(before))
		})
	})

	It("should stop at the instruction limit", func() {
		m = emu.NewModel(emu.WithMaxInstructions(1))
		exec(insts.NOP())
		Expect(m.Execute(insts.NOP(), 0).Err).To(MatchError(emu.ErrInstructionLimit))
	})

	It("should reject unknown instructions", func() {
		result := m.Execute(insts.Instruction{}, 0)
		Expect(result.Err).To(MatchError(emu.ErrUnknownInstruction))
	})
})
