package benchmarks

import (
	"github.com/sarchlab/qvcheck/insts"
	"github.com/sarchlab/qvcheck/timing/core"
)

// Registers the programs use for UART output.
const (
	charReg   uint8 = 8
	statusReg uint8 = 9
)

// GetMicrobenchmarks returns the standard set of directed programs. Each
// one prints a short string on the UART, so a run both exercises a part of
// the core and checks the result.
func GetMicrobenchmarks() []Benchmark {
	return []Benchmark{
		hello(),
		countLoop(),
		ramBytes(),
		multiply(),
		shifts(),
		jumps(),
	}
}

// GetCoreBenchmarks returns a minimal set for quick validation.
func GetCoreBenchmarks() []Benchmark {
	return []Benchmark{
		hello(),
		countLoop(),
		ramBytes(),
	}
}

// Length returns the encoded size of list in bytes.
func Length(list []insts.Instruction) int32 {
	n := 0
	for _, inst := range list {
		n += inst.Length()
	}
	return int32(n)
}

// PutReg waits until the UART transmitter is idle, then writes the low
// byte of reg to it. It clobbers the status register x9.
func PutReg(reg uint8) []insts.Instruction {
	poll := []insts.Instruction{
		insts.LW(statusReg, insts.RegTP, int32(core.RegUARTStatus)),
		{Op: insts.OpANDI, Rd: statusReg, Rs1: statusReg, Imm: int32(core.UARTTxBusy)},
	}

	return append(poll,
		insts.Instruction{Op: insts.OpBNE, Rs1: statusReg, Rs2: insts.RegZero, Imm: -Length(poll)},
		insts.SW(insts.RegTP, reg, int32(core.RegUARTData)),
	)
}

// PutString prints s one character at a time through x8.
func PutString(s string) []insts.Instruction {
	var list []insts.Instruction
	for i := 0; i < len(s); i++ {
		list = append(list, insts.ADDI(charReg, insts.RegZero, int32(s[i])))
		list = append(list, PutReg(charReg)...)
	}
	return list
}

// Halt spins on a compressed jump to itself.
func Halt() insts.Instruction {
	return insts.Instruction{Op: insts.OpCJ}
}

// program joins instruction groups.
func program(groups ...[]insts.Instruction) []insts.Instruction {
	var list []insts.Instruction
	for _, g := range groups {
		list = append(list, g...)
	}
	return list
}

func hello() Benchmark {
	return Benchmark{
		Name:        "hello",
		Description: "prints a string with status polling - continuous flash reads and peripheral loads",
		Program:     program(PutString("Hello"), []insts.Instruction{Halt()}),
		Expect:      "Hello",
	}
}

func countLoop() Benchmark {
	loop := []insts.Instruction{
		{Op: insts.OpCADDI, Rd: 10, Rs1: 10, Imm: 1},
		{Op: insts.OpCADDI, Rd: 11, Rs1: 11, Imm: -1},
	}
	loop = append(loop, insts.Instruction{Op: insts.OpCBNEZ, Rs1: 11, Imm: -Length(loop)})

	return Benchmark{
		Name:        "count_loop",
		Description: "25 iterations of a compressed loop - taken branches restart the fetch",
		Program: program(
			[]insts.Instruction{
				insts.ADDI(10, insts.RegZero, 'A'),
				{Op: insts.OpCLI, Rd: 11, Imm: 25},
			},
			loop,
			PutReg(10),
			[]insts.Instruction{Halt()},
		),
		Expect: "Z",
	}
}

func ramBytes() Benchmark {
	store := []insts.Instruction{
		insts.ADDI(10, insts.RegZero, 'R'),
		{Op: insts.OpSB, Rs1: insts.RegGP, Rs2: 10, Imm: 0},
		insts.ADDI(10, insts.RegZero, 'A'),
		{Op: insts.OpSB, Rs1: insts.RegGP, Rs2: 10, Imm: 1},
		insts.ADDI(10, insts.RegZero, 'M'),
		{Op: insts.OpSB, Rs1: insts.RegGP, Rs2: 10, Imm: 2},
		{Op: insts.OpSB, Rs1: insts.RegGP, Rs2: insts.RegZero, Imm: 3},
		insts.LW(13, insts.RegGP, 0),
		insts.SW(insts.RegGP, 13, 4),
	}

	var load []insts.Instruction
	for i := int32(0); i < 3; i++ {
		load = append(load, insts.Instruction{Op: insts.OpLBU, Rd: 12, Rs1: insts.RegGP, Imm: 4 + i})
		load = append(load, PutReg(12)...)
	}

	return Benchmark{
		Name:        "ram_bytes",
		Description: "byte and word stores and loads through gp - RAM A transactions",
		Program:     program(store, load, []insts.Instruction{Halt()}),
		Expect:      "RAM",
	}
}

func multiply() Benchmark {
	return Benchmark{
		Name:        "multiply",
		Description: "c.mul of two small values - multi-cycle execution",
		Program: program(
			[]insts.Instruction{
				insts.ADDI(charReg, insts.RegZero, 6),
				insts.ADDI(statusReg, insts.RegZero, 11),
				{Op: insts.OpCMUL, Rd: charReg, Rs1: charReg, Rs2: statusReg},
			},
			PutReg(charReg),
			[]insts.Instruction{Halt()},
		),
		Expect: "B",
	}
}

func shifts() Benchmark {
	return Benchmark{
		Name:        "shifts",
		Description: "compressed shifts and immediates - back-to-back 16-bit instructions",
		Program: program(
			[]insts.Instruction{
				insts.ADDI(10, insts.RegZero, 0x9E),
				{Op: insts.OpCSRLI, Rd: 10, Rs1: 10, Imm: 1},
				insts.ADDI(11, insts.RegZero, 0x25),
				{Op: insts.OpCSLLI, Rd: 11, Rs1: 11, Imm: 1},
				{Op: insts.OpCADDI, Rd: 11, Rs1: 11, Imm: 1},
			},
			PutReg(10),
			PutReg(11),
			[]insts.Instruction{Halt()},
		),
		Expect: "OK",
	}
}

func jumps() Benchmark {
	return Benchmark{
		Name:        "jumps",
		Description: "jal and c.j over dead instructions - fetch restarts on every jump",
		Program: program(
			[]insts.Instruction{
				insts.JAL(insts.RegRA, 8),
				insts.ADDI(10, insts.RegZero, 'X'),
				insts.ADDI(10, insts.RegZero, 'J'),
				{Op: insts.OpCJ, Imm: 4},
				{Op: insts.OpCLI, Rd: 10, Imm: 0},
			},
			PutReg(10),
			[]insts.Instruction{Halt()},
		),
		Expect: "J",
	}
}
