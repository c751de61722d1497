package vm

import "encoding/binary"

// Word is an unsigned 32-bit cell. Arithmetic on it wraps modulo 2^32;
// bitwise operations treat it as an unstructured bit vector.
type Word = uint32

// Opcode identifies the operation encoded in the top 4 bits of an
// instruction word.
type Opcode uint8

const (
	OpCMov     Opcode = 0
	OpSegLoad  Opcode = 1
	OpSegStore Opcode = 2
	OpAdd      Opcode = 3
	OpMul      Opcode = 4
	OpDiv      Opcode = 5
	OpNand     Opcode = 6
	OpHalt     Opcode = 7
	OpMap      Opcode = 8
	OpUnmap    Opcode = 9
	OpOut      Opcode = 10
	OpIn       Opcode = 11
	OpLoadProg Opcode = 12
	OpImm      Opcode = 13

	// OpReserved14 and OpReserved15 are the two 4-bit opcode values this
	// machine leaves undefined. Release behavior treats them as a clean
	// Halt rather than a fault, so a future opcode assignment there
	// never turns an old, already-halting program into a crashing one.
	OpReserved14 Opcode = 14
	OpReserved15 Opcode = 15
)

// Instruction is a decoded VM word. For everything but OpImm, A/B/C hold
// the three 3-bit register indices and Imm is unused. For OpImm, A holds
// the destination register and Imm holds the zero-extended 25-bit
// immediate.
type Instruction struct {
	Op  Opcode
	A   uint8
	B   uint8
	C   uint8
	Imm Word
}

// Decode splits a raw 32-bit word into an Instruction per §3 of the
// machine's bit layout:
//
//	generic: [op:4][unused:19][A:3][B:3][C:3]
//	imm:     [op:4][A:3][imm25:25]
func Decode(word Word) Instruction {
	op := Opcode(word >> 28 & 0xF)
	if op == OpImm {
		return Instruction{
			Op:  op,
			A:   uint8(word >> 25 & 0x7),
			Imm: word & 0x01FFFFFF,
		}
	}
	return Instruction{
		Op: op,
		A:  uint8(word >> 6 & 0x7),
		B:  uint8(word >> 3 & 0x7),
		C:  uint8(word & 0x7),
	}
}

// Encode is the inverse of Decode, used by tests to build programs.
func Encode(instr Instruction) Word {
	if instr.Op == OpImm {
		return uint32(instr.Op)<<28 | uint32(instr.A)<<25 | instr.Imm&0x01FFFFFF
	}
	return uint32(instr.Op)<<28 | uint32(instr.A)<<6 | uint32(instr.B)<<3 | uint32(instr.C)
}

// WordsFromBytes converts a big-endian byte slice into words, per §6's
// "sequence of 4-byte big-endian 32-bit words" image format. The caller
// must ensure len(b) is a positive multiple of 4.
func WordsFromBytes(b []byte) []Word {
	words := make([]Word, len(b)/4)
	for i := range words {
		words[i] = binary.BigEndian.Uint32(b[i*4:])
	}
	return words
}

// BytesFromWords is the inverse of WordsFromBytes.
func BytesFromWords(words []Word) []byte {
	b := make([]byte, len(words)*4)
	for i, w := range words {
		binary.BigEndian.PutUint32(b[i*4:], w)
	}
	return b
}
