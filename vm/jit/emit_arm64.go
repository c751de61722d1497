//go:build arm64

package jit

import "umjit/vm"

// Register binding for the arm64 backend: VM registers 0-7 are bound
// to W19-W26, all callee-saved under the platform ABI so nothing
// outside this package's own entry stub ever has a reason to touch
// them. X9 holds the *ExecutionContext pointer for the invocation. R18
// (platform-reserved), R27 (the Go assembler's own temp register), and
// R28 (the goroutine pointer g, which async preemption depends on
// finding valid) are deliberately never used by emitted code, since
// this buffer runs on a live Go-scheduled stack and a signal can land
// between any two emitted instructions.
const (
	wZR = 31
)

func vmReg(v uint8) uint32 { return uint32(19 + v) }

const ctxReg = 9

func (w *codeWriter) u32(v uint32) {
	w.u8(byte(v))
	w.u8(byte(v >> 8))
	w.u8(byte(v >> 16))
	w.u8(byte(v >> 24))
}

// emitLoadImm32 loads an arbitrary 32-bit constant into Wd using
// MOVZ+MOVK, the standard arm64 idiom for a 32-bit immediate that
// doesn't fit a single instruction's 16-bit field.
func emitLoadImm32(w *codeWriter, wd uint32, v uint32) {
	lo := v & 0xFFFF
	hi := v >> 16
	w.u32(0x52800000 | lo<<5 | wd) // MOVZ Wd, #lo
	if hi != 0 {
		w.u32(0x72A00000 | hi<<5 | wd) // MOVK Wd, #hi, LSL #16
	}
}

func emitStrWOffset(w *codeWriter, wt, xn uint32, byteOffset uint32) {
	w.u32(0xB9000000 | (byteOffset/4)<<10 | xn<<5 | wt)
}

func emitSpillAll(w *codeWriter) {
	for v := uint8(0); v < 8; v++ {
		emitStrWOffset(w, vmReg(v), ctxReg, uint32(ExecCtxSavedRegsOffset+int(v)*4))
	}
}

func emitStoreImm32Field(w *codeWriter, offset int, v uint32, scratch uint32) {
	emitLoadImm32(w, scratch, v)
	emitStrWOffset(w, scratch, ctxReg, uint32(offset))
}

// scratchReg is a register outside the W19-W26 VM bank and the X9 ctx
// pointer, free for emitters to burn through while computing a value
// that doesn't need to live across a trampoline exit.
const scratchReg = 0

func emitExit(w *codeWriter, code ExitCode, nextPC uint32, a, b, c uint32) {
	emitSpillAll(w)
	emitStoreImm32Field(w, ExecCtxNextPCOffset, nextPC, scratchReg)
	emitStoreImm32Field(w, ExecCtxExitCodeOffset, uint32(code), scratchReg)
	emitStoreImm32Field(w, ExecCtxAOffset, a, scratchReg)
	emitStoreImm32Field(w, ExecCtxBOffset, b, scratchReg)
	emitStoreImm32Field(w, ExecCtxCOffset, c, scratchReg)
	w.u32(0xD65F03C0) // RET (branches to X30)
}

func emitInstruction(w *codeWriter, instr vm.Instruction, pc uint32) (fallsThrough bool) {
	a, b, c := vmReg(instr.A), vmReg(instr.B), vmReg(instr.C)

	switch instr.Op {
	case vm.OpImm:
		emitLoadImm32(w, a, instr.Imm)
		return true

	case vm.OpAdd:
		w.u32(0x0B000000 | c<<16 | b<<5 | a) // ADD Wa, Wb, Wc
		return true

	case vm.OpMul:
		w.u32(0x1B007C00 | c<<16 | b<<5 | a) // MUL Wa, Wb, Wc (MADD ...,WZR)
		return true

	case vm.OpNand:
		w.u32(0x0A000000 | c<<16 | b<<5 | a) // AND Wa, Wb, Wc
		w.u32(0x2A2003E0 | a<<16 | a)        // MVN Wa, Wa
		return true

	case vm.OpCMov:
		w.u32(0x71000000 | c<<5 | wZR)                // CMP Wc, #0  (SUBS WZR, Wc, #0)
		w.u32(0x1A800000 | a<<16 | 1<<12 | b<<5 | a) // CSEL Wa, Wb, Wa, NE (Rd=a, Rn=b, Rm=a, cond=NE)
		return true

	case vm.OpDiv:
		w.u32(0x71000000 | c<<5 | wZR) // CMP Wc, #0
		branchAt := w.len()
		w.u32(0x54000001) // B.NE +0 (patched below), cond=NE
		emitExit(w, ExitDivZero, pc, uint32(instr.A), uint32(instr.B), uint32(instr.C))
		patchBranch(w, branchAt, w.len())

		w.u32(0x1AC00800 | c<<16 | b<<5 | a) // UDIV Wa, Wb, Wc
		return true

	case vm.OpSegLoad:
		emitExit(w, ExitSegLoad, pc+1, uint32(instr.A), uint32(instr.B), uint32(instr.C))
		return false

	case vm.OpSegStore:
		emitExit(w, ExitSegStore, pc+1, uint32(instr.A), uint32(instr.B), uint32(instr.C))
		return false

	case vm.OpMap:
		emitExit(w, ExitMap, pc+1, uint32(instr.A), uint32(instr.B), uint32(instr.C))
		return false

	case vm.OpUnmap:
		emitExit(w, ExitUnmap, pc+1, uint32(instr.A), uint32(instr.B), uint32(instr.C))
		return false

	case vm.OpOut:
		emitExit(w, ExitOut, pc+1, uint32(instr.A), uint32(instr.B), uint32(instr.C))
		return false

	case vm.OpIn:
		emitExit(w, ExitIn, pc+1, uint32(instr.A), uint32(instr.B), uint32(instr.C))
		return false

	case vm.OpLoadProg:
		emitExit(w, ExitLoadProg, pc+1, uint32(instr.A), uint32(instr.B), uint32(instr.C))
		return false

	case vm.OpHalt, vm.OpReserved14, vm.OpReserved15:
		emitExit(w, ExitHalt, pc, uint32(instr.A), uint32(instr.B), uint32(instr.C))
		return false

	default:
		emitExit(w, ExitSegFault, pc, uint32(instr.A), uint32(instr.B), uint32(instr.C))
		return false
	}
}

// fillNop pads the rest of a fallthrough instruction's slot with
// 4-byte NOPs. CHUNK and every emitted arm64 sequence are multiples of
// 4 bytes, so the remainder is always itself a multiple of 4.
func fillNop(w *codeWriter) {
	for w.len()+4 <= len(w.slot) {
		w.u32(0xD503201F)
	}
}

// patchBranch fixes up a B.cond's imm19 field once the branch target
// is known, given the byte offset of the 4-byte instruction and the
// current write position (the target).
func patchBranch(w *codeWriter, branchAt, targetPos int) {
	delta := int32(targetPos-branchAt) / 4
	instrWord := uint32(w.slot[branchAt]) | uint32(w.slot[branchAt+1])<<8 | uint32(w.slot[branchAt+2])<<16 | uint32(w.slot[branchAt+3])<<24
	instrWord = (instrWord &^ (0x7FFFF << 5)) | (uint32(delta)&0x7FFFF)<<5
	w.patchU32le(branchAt, instrWord)
}
