// Package insts provides RV32E instruction definitions, encoding and decoding.
//
// The harness owns the golden truth, so encoding is the primary direction: a
// semantic Instruction is turned into the exact bit pattern fetched by the
// device. It supports:
//   - Standard 32-bit formats: R, I, S, B, U and J
//   - Compressed 16-bit formats: CR, CI, CSS, CL, CS, CA, CB, CJ
//   - Zcb compressed byte/half-word loads and stores, unary ops and c.mul
//
// Compressed immediates are scattered over non-contiguous bit positions; every
// family has a fixed layout table mapping logical immediate bits to physical
// bits. The same tables drive the Decoder, which reconstructs the instruction
// from a transferred word.
//
// Usage:
//
//	enc := insts.NewEncoder()
//	word, err := enc.Encode(insts.ADDI(8, 0, 0x102)) // addi x8, x0, 0x102
//	inst := insts.NewDecoder().Decode(word)
package insts
