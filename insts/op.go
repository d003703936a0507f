package insts

import "fmt"

// Op represents an RV32E / RVC opcode.
type Op uint16

// Opcodes.
const (
	OpUnknown Op = iota

	// Upper immediates and jumps
	OpLUI
	OpAUIPC
	OpJAL

	// Branches
	OpBEQ
	OpBNE
	OpBLT
	OpBGE
	OpBLTU
	OpBGEU

	// Loads and stores
	OpLB
	OpLH
	OpLW
	OpLBU
	OpLHU
	OpSB
	OpSH
	OpSW

	// ALU with immediate
	OpADDI
	OpSLTI
	OpSLTIU
	OpXORI
	OpORI
	OpANDI
	OpSLLI
	OpSRLI
	OpSRAI

	// ALU with register
	OpADD
	OpSUB
	OpSLL
	OpSLT
	OpSLTU
	OpXOR
	OpSRL
	OpSRA
	OpOR
	OpAND

	// Compressed
	OpCNOP
	OpCADDI
	OpCLI
	OpCLUI
	OpCSLLI
	OpCSRLI
	OpCSRAI
	OpCANDI
	OpCMV
	OpCADD
	OpCSUB
	OpCXOR
	OpCOR
	OpCAND
	OpCMUL
	OpCLW
	OpCSW
	OpCLWSP
	OpCSWSP
	OpCLBU
	OpCLHU
	OpCLH
	OpCSB
	OpCSH
	OpCZEXTB
	OpCSEXTB
	OpCZEXTH
	OpCSEXTH
	OpCNOT
	OpCJ
	OpCJAL
	OpCBEQZ
	OpCBNEZ

	numOps
)

// Format represents an instruction encoding format.
type Format uint8

// Instruction formats.
const (
	FormatUnknown Format = iota
	FormatR
	FormatI
	FormatS
	FormatB
	FormatU
	FormatJ
	FormatCR  // register-register, full register fields
	FormatCI  // immediate, full rd
	FormatCSS // stack-relative store
	FormatCL  // load, x8-x15 only
	FormatCS  // store, x8-x15 only
	FormatCA  // arithmetic, x8-x15 only
	FormatCB  // branch / shift-immediate, x8-x15 only
	FormatCJ  // jump
	FormatCU  // Zcb unary, x8-x15 only
	FormatCLB // Zcb byte load
	FormatCSB // Zcb byte store
	FormatCLH // Zcb half-word load
	FormatCSH // Zcb half-word store
)

// Class groups opcodes by the kind of effect they have.
type Class uint8

// Instruction classes.
const (
	ClassUnknown Class = iota
	ClassNop
	ClassUpper
	ClassALUImm
	ClassALUReg
	ClassLoad
	ClassStore
	ClassBranch
	ClassJump
)

type opInfo struct {
	name   string
	format Format
	class  Class

	opcode uint32 // major opcode, or quadrant for compressed
	funct3 uint32
	funct7 uint32 // funct7 / funct6 depending on format

	size   int  // bytes moved by loads and stores
	signed bool // load sign-extends
}

var opTable = [numOps]opInfo{
	OpUnknown: {name: "unknown"},

	OpLUI:   {name: "lui", format: FormatU, class: ClassUpper, opcode: 0b0110111},
	OpAUIPC: {name: "auipc", format: FormatU, class: ClassUpper, opcode: 0b0010111},
	OpJAL:   {name: "jal", format: FormatJ, class: ClassJump, opcode: 0b1101111},

	OpBEQ:  {name: "beq", format: FormatB, class: ClassBranch, opcode: 0b1100011, funct3: 0b000},
	OpBNE:  {name: "bne", format: FormatB, class: ClassBranch, opcode: 0b1100011, funct3: 0b001},
	OpBLT:  {name: "blt", format: FormatB, class: ClassBranch, opcode: 0b1100011, funct3: 0b100},
	OpBGE:  {name: "bge", format: FormatB, class: ClassBranch, opcode: 0b1100011, funct3: 0b101},
	OpBLTU: {name: "bltu", format: FormatB, class: ClassBranch, opcode: 0b1100011, funct3: 0b110},
	OpBGEU: {name: "bgeu", format: FormatB, class: ClassBranch, opcode: 0b1100011, funct3: 0b111},

	OpLB:  {name: "lb", format: FormatI, class: ClassLoad, opcode: 0b0000011, funct3: 0b000, size: 1, signed: true},
	OpLH:  {name: "lh", format: FormatI, class: ClassLoad, opcode: 0b0000011, funct3: 0b001, size: 2, signed: true},
	OpLW:  {name: "lw", format: FormatI, class: ClassLoad, opcode: 0b0000011, funct3: 0b010, size: 4, signed: true},
	OpLBU: {name: "lbu", format: FormatI, class: ClassLoad, opcode: 0b0000011, funct3: 0b100, size: 1},
	OpLHU: {name: "lhu", format: FormatI, class: ClassLoad, opcode: 0b0000011, funct3: 0b101, size: 2},
	OpSB:  {name: "sb", format: FormatS, class: ClassStore, opcode: 0b0100011, funct3: 0b000, size: 1},
	OpSH:  {name: "sh", format: FormatS, class: ClassStore, opcode: 0b0100011, funct3: 0b001, size: 2},
	OpSW:  {name: "sw", format: FormatS, class: ClassStore, opcode: 0b0100011, funct3: 0b010, size: 4},

	OpADDI:  {name: "addi", format: FormatI, class: ClassALUImm, opcode: 0b0010011, funct3: 0b000},
	OpSLTI:  {name: "slti", format: FormatI, class: ClassALUImm, opcode: 0b0010011, funct3: 0b010},
	OpSLTIU: {name: "sltiu", format: FormatI, class: ClassALUImm, opcode: 0b0010011, funct3: 0b011},
	OpXORI:  {name: "xori", format: FormatI, class: ClassALUImm, opcode: 0b0010011, funct3: 0b100},
	OpORI:   {name: "ori", format: FormatI, class: ClassALUImm, opcode: 0b0010011, funct3: 0b110},
	OpANDI:  {name: "andi", format: FormatI, class: ClassALUImm, opcode: 0b0010011, funct3: 0b111},
	OpSLLI:  {name: "slli", format: FormatI, class: ClassALUImm, opcode: 0b0010011, funct3: 0b001},
	OpSRLI:  {name: "srli", format: FormatI, class: ClassALUImm, opcode: 0b0010011, funct3: 0b101},
	OpSRAI:  {name: "srai", format: FormatI, class: ClassALUImm, opcode: 0b0010011, funct3: 0b101, funct7: 0b0100000},

	OpADD:  {name: "add", format: FormatR, class: ClassALUReg, opcode: 0b0110011, funct3: 0b000},
	OpSUB:  {name: "sub", format: FormatR, class: ClassALUReg, opcode: 0b0110011, funct3: 0b000, funct7: 0b0100000},
	OpSLL:  {name: "sll", format: FormatR, class: ClassALUReg, opcode: 0b0110011, funct3: 0b001},
	OpSLT:  {name: "slt", format: FormatR, class: ClassALUReg, opcode: 0b0110011, funct3: 0b010},
	OpSLTU: {name: "sltu", format: FormatR, class: ClassALUReg, opcode: 0b0110011, funct3: 0b011},
	OpXOR:  {name: "xor", format: FormatR, class: ClassALUReg, opcode: 0b0110011, funct3: 0b100},
	OpSRL:  {name: "srl", format: FormatR, class: ClassALUReg, opcode: 0b0110011, funct3: 0b101},
	OpSRA:  {name: "sra", format: FormatR, class: ClassALUReg, opcode: 0b0110011, funct3: 0b101, funct7: 0b0100000},
	OpOR:   {name: "or", format: FormatR, class: ClassALUReg, opcode: 0b0110011, funct3: 0b110},
	OpAND:  {name: "and", format: FormatR, class: ClassALUReg, opcode: 0b0110011, funct3: 0b111},

	OpCNOP:  {name: "c.nop", format: FormatCI, class: ClassNop, opcode: 0b01, funct3: 0b000},
	OpCADDI: {name: "c.addi", format: FormatCI, class: ClassALUImm, opcode: 0b01, funct3: 0b000},
	OpCLI:   {name: "c.li", format: FormatCI, class: ClassALUImm, opcode: 0b01, funct3: 0b010},
	OpCLUI:  {name: "c.lui", format: FormatCI, class: ClassUpper, opcode: 0b01, funct3: 0b011},
	OpCSLLI: {name: "c.slli", format: FormatCI, class: ClassALUImm, opcode: 0b10, funct3: 0b000},
	OpCSRLI: {name: "c.srli", format: FormatCB, class: ClassALUImm, opcode: 0b01, funct3: 0b100, funct7: 0b00},
	OpCSRAI: {name: "c.srai", format: FormatCB, class: ClassALUImm, opcode: 0b01, funct3: 0b100, funct7: 0b01},
	OpCANDI: {name: "c.andi", format: FormatCB, class: ClassALUImm, opcode: 0b01, funct3: 0b100, funct7: 0b10},
	OpCMV:   {name: "c.mv", format: FormatCR, class: ClassALUReg, opcode: 0b10, funct3: 0b100, funct7: 0b1000},
	OpCADD:  {name: "c.add", format: FormatCR, class: ClassALUReg, opcode: 0b10, funct3: 0b100, funct7: 0b1001},
	OpCSUB:  {name: "c.sub", format: FormatCA, class: ClassALUReg, opcode: 0b01, funct7: 0b100011, funct3: 0b00},
	OpCXOR:  {name: "c.xor", format: FormatCA, class: ClassALUReg, opcode: 0b01, funct7: 0b100011, funct3: 0b01},
	OpCOR:   {name: "c.or", format: FormatCA, class: ClassALUReg, opcode: 0b01, funct7: 0b100011, funct3: 0b10},
	OpCAND:  {name: "c.and", format: FormatCA, class: ClassALUReg, opcode: 0b01, funct7: 0b100011, funct3: 0b11},
	OpCMUL:  {name: "c.mul", format: FormatCA, class: ClassALUReg, opcode: 0b01, funct7: 0b100111, funct3: 0b10},
	OpCLW:   {name: "c.lw", format: FormatCL, class: ClassLoad, opcode: 0b00, funct3: 0b010, size: 4, signed: true},
	OpCSW:   {name: "c.sw", format: FormatCS, class: ClassStore, opcode: 0b00, funct3: 0b110, size: 4},
	OpCLWSP: {name: "c.lwsp", format: FormatCI, class: ClassLoad, opcode: 0b10, funct3: 0b010, size: 4, signed: true},
	OpCSWSP: {name: "c.swsp", format: FormatCSS, class: ClassStore, opcode: 0b10, funct3: 0b110, size: 4},
	OpCLBU:  {name: "c.lbu", format: FormatCLB, class: ClassLoad, opcode: 0b00, funct7: 0b100000, size: 1},
	OpCLHU:  {name: "c.lhu", format: FormatCLH, class: ClassLoad, opcode: 0b00, funct7: 0b100001, funct3: 0, size: 2},
	OpCLH:   {name: "c.lh", format: FormatCLH, class: ClassLoad, opcode: 0b00, funct7: 0b100001, funct3: 1, size: 2, signed: true},
	OpCSB:   {name: "c.sb", format: FormatCSB, class: ClassStore, opcode: 0b00, funct7: 0b100010, size: 1},
	OpCSH:   {name: "c.sh", format: FormatCSH, class: ClassStore, opcode: 0b00, funct7: 0b100011, funct3: 0, size: 2},

	OpCZEXTB: {name: "c.zext.b", format: FormatCU, class: ClassALUImm, opcode: 0b01, funct7: 0b100111, funct3: 0b000},
	OpCSEXTB: {name: "c.sext.b", format: FormatCU, class: ClassALUImm, opcode: 0b01, funct7: 0b100111, funct3: 0b001},
	OpCZEXTH: {name: "c.zext.h", format: FormatCU, class: ClassALUImm, opcode: 0b01, funct7: 0b100111, funct3: 0b010},
	OpCSEXTH: {name: "c.sext.h", format: FormatCU, class: ClassALUImm, opcode: 0b01, funct7: 0b100111, funct3: 0b011},
	OpCNOT:   {name: "c.not", format: FormatCU, class: ClassALUImm, opcode: 0b01, funct7: 0b100111, funct3: 0b101},
	OpCJ:     {name: "c.j", format: FormatCJ, class: ClassJump, opcode: 0b01, funct3: 0b101},
	OpCJAL:   {name: "c.jal", format: FormatCJ, class: ClassJump, opcode: 0b01, funct3: 0b001},
	OpCBEQZ:  {name: "c.beqz", format: FormatCB, class: ClassBranch, opcode: 0b01, funct3: 0b110},
	OpCBNEZ:  {name: "c.bnez", format: FormatCB, class: ClassBranch, opcode: 0b01, funct3: 0b111},
}

func (o Op) info() opInfo {
	if o >= numOps {
		return opTable[OpUnknown]
	}
	return opTable[o]
}

// String returns the assembler mnemonic.
func (o Op) String() string {
	if o >= numOps {
		return fmt.Sprintf("op(%d)", uint16(o))
	}
	return opTable[o].name
}

// Format returns the encoding format of the opcode.
func (o Op) Format() Format {
	return o.info().format
}

// Class returns the effect class of the opcode.
func (o Op) Class() Class {
	return o.info().class
}

// IsCompressed reports whether the opcode has a 16-bit encoding.
func (o Op) IsCompressed() bool {
	return o.info().format >= FormatCR
}

// AccessSize returns the number of bytes a load or store moves, or 0.
func (o Op) AccessSize() int {
	return o.info().size
}

// SignExtends reports whether a load sign-extends its result.
func (o Op) SignExtends() bool {
	return o.info().signed
}

// Ops returns every defined opcode except OpUnknown.
func Ops() []Op {
	ops := make([]Op, 0, numOps-1)
	for o := OpUnknown + 1; o < numOps; o++ {
		ops = append(ops, o)
	}
	return ops
}
