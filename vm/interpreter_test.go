package vm

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func assemble(words ...Word) []Word { return words }

func imm(reg uint8, v Word) Word {
	return Encode(Instruction{Op: OpImm, A: reg, Imm: v})
}

func generic(op Opcode, a, b, c uint8) Word {
	return Encode(Instruction{Op: op, A: a, B: b, C: c})
}

func runProgram(t *testing.T, prog []Word, stdin string) (*Context, string, error) {
	t.Helper()
	in := strings.NewReader(stdin)
	out := &bytes.Buffer{}
	ctx := NewContext(prog, in, out)

	err := Run(ctx)
	if flushErr := ctx.Flush(); flushErr != nil {
		t.Fatalf("flush: %v", flushErr)
	}
	return ctx, out.String(), err
}

func TestHaltStopsExecution(t *testing.T) {
	prog := assemble(generic(OpHalt, 0, 0, 0))
	_, _, err := runProgram(t, prog, "")
	if !errors.Is(err, ErrHalt) {
		t.Fatalf("err = %v, want ErrHalt", err)
	}
}

func TestReservedOpcodesHaltCleanly(t *testing.T) {
	for _, op := range []Opcode{14, 15} {
		prog := assemble(generic(op, 0, 0, 0))
		_, _, err := runProgram(t, prog, "")
		if !errors.Is(err, ErrHalt) {
			t.Fatalf("opcode %d: err = %v, want ErrHalt", op, err)
		}
	}
}

func TestImmAndAdd(t *testing.T) {
	prog := assemble(
		imm(0, 2),
		imm(1, 3),
		generic(OpAdd, 2, 0, 1),
		generic(OpHalt, 0, 0, 0),
	)
	ctx, _, err := runProgram(t, prog, "")
	if !errors.Is(err, ErrHalt) {
		t.Fatalf("err = %v, want ErrHalt", err)
	}
	if ctx.Regs[2] != 5 {
		t.Fatalf("r2 = %d, want 5", ctx.Regs[2])
	}
}

func TestMulWraps(t *testing.T) {
	prog := wordIntoReg(0, 0xFFFFFFFF)
	prog = append(prog,
		imm(1, 2),
		generic(OpMul, 2, 0, 1),
		generic(OpHalt, 0, 0, 0),
	)
	ctx, _, _ := runProgram(t, prog, "")
	if ctx.Regs[2] != 0xFFFFFFFE {
		t.Fatalf("r2 = %#x, want 0xfffffffe", ctx.Regs[2])
	}
}

func TestDivTruncates(t *testing.T) {
	prog := assemble(
		imm(0, 7),
		imm(1, 2),
		generic(OpDiv, 2, 0, 1),
		generic(OpHalt, 0, 0, 0),
	)
	ctx, _, _ := runProgram(t, prog, "")
	if ctx.Regs[2] != 3 {
		t.Fatalf("r2 = %d, want 3", ctx.Regs[2])
	}
}

func TestDivByZeroErrors(t *testing.T) {
	prog := assemble(
		imm(0, 7),
		imm(1, 0),
		generic(OpDiv, 2, 0, 1),
		generic(OpHalt, 0, 0, 0),
	)
	_, _, err := runProgram(t, prog, "")
	if err == nil || errors.Is(err, ErrHalt) {
		t.Fatalf("err = %v, want non-halt failure", err)
	}
}

func TestNand(t *testing.T) {
	prog := wordIntoReg(0, 0xFFFFFFFF)
	prog = append(prog, wordIntoReg(1, 0xFFFFFFFF)...)
	prog = append(prog,
		generic(OpNand, 2, 0, 1),
		generic(OpHalt, 0, 0, 0),
	)
	ctx, _, _ := runProgram(t, prog, "")
	if ctx.Regs[2] != 0 {
		t.Fatalf("r2 = %#x, want 0", ctx.Regs[2])
	}
}

func TestCMovTakesBranch(t *testing.T) {
	prog := assemble(
		imm(0, 11),
		imm(1, 22),
		imm(2, 1),
		generic(OpCMov, 1, 0, 2),
		generic(OpHalt, 0, 0, 0),
	)
	ctx, _, _ := runProgram(t, prog, "")
	if ctx.Regs[1] != 11 {
		t.Fatalf("r1 = %d, want 11", ctx.Regs[1])
	}
}

func TestCMovSkipsWhenConditionZero(t *testing.T) {
	prog := assemble(
		imm(0, 11),
		imm(1, 22),
		imm(2, 0),
		generic(OpCMov, 1, 0, 2),
		generic(OpHalt, 0, 0, 0),
	)
	ctx, _, _ := runProgram(t, prog, "")
	if ctx.Regs[1] != 22 {
		t.Fatalf("r1 = %d, want unchanged 22", ctx.Regs[1])
	}
}

func TestMapSegLoadSegStore(t *testing.T) {
	prog := assemble(
		imm(1, 4), // size
		generic(OpMap, 0, 0, 1), // r0 = new segment id
		imm(2, 99),
		imm(3, 1), // offset
		generic(OpSegStore, 0, 3, 2),
		generic(OpSegLoad, 4, 0, 3),
		generic(OpHalt, 0, 0, 0),
	)
	ctx, _, _ := runProgram(t, prog, "")
	if ctx.Regs[4] != 99 {
		t.Fatalf("r4 = %d, want 99", ctx.Regs[4])
	}
}

func TestUnmapThenLoadIsSegFaultViaInterpreter(t *testing.T) {
	prog := assemble(
		imm(1, 4),
		generic(OpMap, 0, 0, 1),
		generic(OpUnmap, 0, 0, 0),
		generic(OpSegLoad, 2, 0, 0),
		generic(OpHalt, 0, 0, 0),
	)
	_, _, err := runProgram(t, prog, "")
	if !errors.Is(err, ErrSegFault) {
		t.Fatalf("err = %v, want ErrSegFault", err)
	}
}

func TestOutWritesByte(t *testing.T) {
	prog := assemble(
		imm(0, 'A'),
		generic(OpOut, 0, 0, 0),
		generic(OpHalt, 0, 0, 0),
	)
	_, out, err := runProgram(t, prog, "")
	if !errors.Is(err, ErrHalt) {
		t.Fatalf("err = %v, want ErrHalt", err)
	}
	if out != "A" {
		t.Fatalf("out = %q, want %q", out, "A")
	}
}

func TestInReadsByte(t *testing.T) {
	prog := assemble(
		generic(OpIn, 0, 0, 0),
		generic(OpHalt, 0, 0, 0),
	)
	ctx, _, _ := runProgram(t, prog, "Z")
	if ctx.Regs[0] != 'Z' {
		t.Fatalf("r0 = %d, want %d", ctx.Regs[0], 'Z')
	}
}

func TestInAtEOFReturnsAllOnes(t *testing.T) {
	prog := assemble(
		generic(OpIn, 0, 0, 0),
		generic(OpHalt, 0, 0, 0),
	)
	ctx, _, _ := runProgram(t, prog, "")
	if ctx.Regs[0] != 0xFFFFFFFF {
		t.Fatalf("r0 = %#x, want 0xffffffff", ctx.Regs[0])
	}
}

// wordIntoReg emits instructions that load an arbitrary 32-bit value
// into dest, since a single Imm instruction can only carry a 25-bit
// immediate. It splits the value into a 7-bit high part and a 25-bit
// low part and reconstructs it with Mul/Add, using scratch registers 5
// and 6.
func wordIntoReg(dest uint8, v Word) []Word {
	const scratchA, scratchB uint8 = 5, 6
	high := v >> 25
	low := v & 0x01FFFFFF

	return []Word{
		imm(scratchA, 1<<12),
		imm(scratchB, 1<<13),
		generic(OpMul, scratchA, scratchA, scratchB), // scratchA = 2^25
		imm(scratchB, high),
		generic(OpMul, scratchB, scratchB, scratchA), // scratchB = high<<25
		imm(dest, low),
		generic(OpAdd, dest, dest, scratchB),
	}
}

func TestLoadProgramJumps(t *testing.T) {
	// Segment 1 holds: imm r0,7 ; halt
	seg1 := []Word{
		imm(0, 7),
		generic(OpHalt, 0, 0, 0),
	}

	var prog []Word
	prog = append(prog, imm(1, Word(len(seg1))))
	prog = append(prog, generic(OpMap, 0, 2, 1)) // r2 = new segment id

	for i, w := range seg1 {
		prog = append(prog, wordIntoReg(4, w)...)
		prog = append(prog, imm(3, Word(i)))
		prog = append(prog, generic(OpSegStore, 2, 3, 4))
	}

	prog = append(prog, imm(5, 0)) // jump target within segment 1
	prog = append(prog, generic(OpLoadProg, 0, 2, 5))

	ctx, _, err := runProgram(t, prog, "")
	if !errors.Is(err, ErrHalt) {
		t.Fatalf("err = %v, want ErrHalt", err)
	}
	if ctx.Regs[0] != 7 {
		t.Fatalf("r0 = %d, want 7", ctx.Regs[0])
	}
}
