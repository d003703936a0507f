package insts_test

import (
	"math/rand"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/qvcheck/insts"
)

// canonical shapes random fields into the operand layout the decoder returns.
func canonical(op insts.Op, rd, rs1, rs2 uint8, imm int32) insts.Instruction {
	i := insts.Instruction{Op: op}

	switch op.Format() {
	case insts.FormatR:
		i.Rd, i.Rs1, i.Rs2 = rd, rs1, rs2
	case insts.FormatI, insts.FormatCL, insts.FormatCLB, insts.FormatCLH:
		i.Rd, i.Rs1, i.Imm = rd, rs1, imm
	case insts.FormatS, insts.FormatB, insts.FormatCS, insts.FormatCSB, insts.FormatCSH:
		i.Rs1, i.Rs2, i.Imm = rs1, rs2, imm
	case insts.FormatU, insts.FormatJ:
		i.Rd, i.Imm = rd, imm
	case insts.FormatCR:
		i.Rd, i.Rs2 = rd, rs2
		if op == insts.OpCADD {
			i.Rs1 = rd
		}
	case insts.FormatCI:
		switch op {
		case insts.OpCNOP:
		case insts.OpCADDI, insts.OpCSLLI:
			i.Rd, i.Rs1, i.Imm = rd, rd, imm
		case insts.OpCLWSP:
			i.Rd, i.Rs1, i.Imm = rd, insts.RegSP, imm
		default:
			i.Rd, i.Imm = rd, imm
		}
	case insts.FormatCSS:
		i.Rs1, i.Rs2, i.Imm = insts.RegSP, rs2, imm
	case insts.FormatCA:
		i.Rd, i.Rs1, i.Rs2 = rd, rd, rs2
	case insts.FormatCB:
		if op.Class() == insts.ClassBranch {
			i.Rs1, i.Imm = rs1, imm
		} else {
			i.Rd, i.Rs1, i.Imm = rd, rd, imm
		}
	case insts.FormatCU:
		i.Rd, i.Rs1 = rd, rd
	case insts.FormatCJ:
		i.Imm = imm
		if op == insts.OpCJAL {
			i.Rd = insts.RegRA
		}
	}

	return i
}

func randomImmediate(rng *rand.Rand) int32 {
	width := rng.Intn(22)
	return int32(rng.Int63n(1<<(width+1))) - int32(1<<width)
}

var _ = Describe("Decoder", func() {
	var (
		encoder *insts.Encoder
		decoder *insts.Decoder
	)

	BeforeEach(func() {
		encoder = insts.NewEncoder()
		decoder = insts.NewDecoder()
	})

	It("should decode addi x8, x0, 0x102", func() {
		inst := decoder.Decode(0x10200413)

		Expect(inst.Op).To(Equal(insts.OpADDI))
		Expect(inst.Rd).To(Equal(uint8(8)))
		Expect(inst.Rs1).To(Equal(uint8(0)))
		Expect(inst.Imm).To(Equal(int32(0x102)))
		Expect(inst.Format()).To(Equal(insts.FormatI))
	})

	It("should decode c.j -2 from the low half-word only", func() {
		inst := decoder.Decode(0xFFFFBFFD)

		Expect(inst.Op).To(Equal(insts.OpCJ))
		Expect(inst.Imm).To(Equal(int32(-2)))
	})

	It("should return OpUnknown for the all-zero half-word", func() {
		Expect(decoder.Decode(0).Op).To(Equal(insts.OpUnknown))
	})

	It("should return OpUnknown for an unsupported major opcode", func() {
		Expect(decoder.Decode(0x0000007F).Op).To(Equal(insts.OpUnknown))
	})

	It("should tell compressed from standard words by the low two bits", func() {
		Expect(insts.Length(0x0001)).To(Equal(2))
		Expect(insts.Length(0x0413)).To(Equal(4))
	})

	It("should round-trip every legal instruction of every opcode", func() {
		rng := rand.New(rand.NewSource(1))

		for _, op := range insts.Ops() {
			found := 0
			for attempt := 0; attempt < 20000 && found < 25; attempt++ {
				inst := canonical(op,
					uint8(rng.Intn(16)), uint8(rng.Intn(16)), uint8(rng.Intn(16)),
					randomImmediate(rng))
				if encoder.Validate(inst) != nil {
					continue
				}
				found++

				word, err := encoder.Encode(inst)
				Expect(err).ToNot(HaveOccurred())
				Expect(insts.Length(uint16(word))).To(Equal(inst.Length()), inst.String())
				Expect(*decoder.Decode(word)).To(Equal(inst), inst.String())
			}

			Expect(found).To(BeNumerically(">", 0), "no legal sample for "+op.String())
		}
	})
})

var _ = Describe("Nibbles", func() {
	It("should send each byte high nibble first, lowest byte first", func() {
		Expect(insts.Nibbles(0x12345678, 4)).To(Equal(
			[]uint8{0x7, 0x8, 0x5, 0x6, 0x3, 0x4, 0x1, 0x2}))
	})

	It("should emit four nibbles for a compressed instruction", func() {
		Expect(insts.InstructionNibbles(0x4415)).To(Equal([]uint8{0x1, 0x5, 0x4, 0x4}))
	})

	It("should reassemble what it split", func() {
		for _, n := range []int{1, 2, 4} {
			v := uint32(0xA1B2C3D4) & (1<<(8*uint(n)) - 1)
			if n == 4 {
				v = 0xA1B2C3D4
			}
			Expect(insts.Assemble(insts.Nibbles(v, n))).To(Equal(v))
		}
	})
})
