//go:build amd64

package jit

import "umjit/vm"

// Register binding for the amd64 backend: VM registers 0-7 are bound
// to the host's r8-r15 for the lifetime of a code buffer invocation: no
// VM register ever round-trips through memory except across a
// trampoline exit. RBP holds the *ExecutionContext pointer for the
// whole invocation and is never treated as a general-purpose register
// by emitted code, matching the reserved-register convention the
// teacher's own assembler-adjacent pack members (tinyrange-rtg's
// backend_x64.go, launix-de/memcp's scm-jit) use for their frame/engine
// pointers.
//
// r8..r15 need a REX prefix on every access (their 4-bit register
// number does not fit the 3-bit ModRM/opcode register field), so nearly
// every emitter below carries one; vmLow3 and the REX bit constants
// exist so the pattern reads the same way across emitters rather than
// each recomputing it.
const (
	rexW    = 0x08
	rexR    = 0x04
	rexX    = 0x02
	rexB    = 0x01
	rexBase = 0x40
)

// vmLow3 is the low 3 bits of the host register r8+v that VM register v
// is bound to; combined with a REX.R/B bit of 1 it addresses r8+v.
func vmLow3(v uint8) byte { return v & 0x7 }

func modrmReg(mod, reg, rm byte) byte {
	return mod<<6 | (reg&0x7)<<3 | (rm & 0x7)
}

// emitSpillAll stores all eight bound VM registers back into
// ExecutionContext.SavedRegs via RBP-relative stores, which every
// trampoline exit and Halt must do before RET so the driver loop's copy
// of the registers is current.
func emitSpillAll(w *codeWriter) {
	for v := uint8(0); v < 8; v++ {
		// MOV [RBP+disp8], r32 (store r8+v)
		w.bytes(rexBase|rexR, 0x89, modrmReg(1, vmLow3(v), 5), byte(ExecCtxSavedRegsOffset+int(v)*4))
	}
}

// emitStoreImm32Field writes a compile-time-known constant into one
// uint32 field of ExecutionContext at the given byte offset.
func emitStoreImm32Field(w *codeWriter, offset int, v uint32) {
	// MOV [RBP+disp8], imm32
	w.bytes(0xC7, modrmReg(1, 0, 5), byte(offset))
	w.u32le(v)
}

// emitExit spills every register, stamps the fixed fields a given exit
// code needs, and returns to the entry stub.
func emitExit(w *codeWriter, code ExitCode, nextPC uint32, a, b, c uint32) {
	emitSpillAll(w)
	emitStoreImm32Field(w, ExecCtxNextPCOffset, nextPC)
	emitStoreImm32Field(w, ExecCtxExitCodeOffset, uint32(code))
	emitStoreImm32Field(w, ExecCtxAOffset, a)
	emitStoreImm32Field(w, ExecCtxBOffset, b)
	emitStoreImm32Field(w, ExecCtxCOffset, c)
	w.u8(0xC3) // RET
}

// emitInstruction writes pc's native code into w's slot. It returns
// true if the instruction can fall through to the next slot, false if
// every path out of the emitted code already ends in RET (a trampoline
// exit or Halt).
func emitInstruction(w *codeWriter, instr vm.Instruction, pc uint32) (fallsThrough bool) {
	a, b, c := vmLow3(instr.A), vmLow3(instr.B), vmLow3(instr.C)

	switch instr.Op {
	case vm.OpImm:
		// MOV r32(a), imm32
		w.bytes(rexBase|rexB, 0xB8+a)
		w.u32le(instr.Imm)
		return true

	case vm.OpAdd:
		// mov a,b ; add a,c
		emitMovRR(w, a, b)
		emitAddRR(w, a, c)
		return true

	case vm.OpMul:
		// mov a,b ; imul a,c
		emitMovRR(w, a, b)
		emitImulRR(w, a, c)
		return true

	case vm.OpNand:
		// mov a,b ; and a,c ; not a
		emitMovRR(w, a, b)
		emitAndRR(w, a, c)
		emitNotR(w, a)
		return true

	case vm.OpCMov:
		// test c,c ; cmovne a,b
		emitTestRR(w, c, c)
		emitCmovneRR(w, a, b)
		return true

	case vm.OpDiv:
		// test c,c ; jne L1 ; <zero exit> ; L1: mov eax,b ; xor edx,edx ; div c ; mov a,eax
		emitTestRR(w, c, c)
		w.bytes(0x75, 0) // JNE rel8, patched below
		patchAt := w.len() - 1
		emitExit(w, ExitDivZero, pc, uint32(instr.A), uint32(instr.B), uint32(instr.C))
		w.slot[patchAt] = byte(w.len() - (patchAt + 1))

		return emitDivTail(w, a, b, c)

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

// emitMovRR: MOV r/m32(dst), r32(src), both bound to r8-15.
func emitMovRR(w *codeWriter, dst, src byte) {
	w.bytes(rexBase|rexR|rexB, 0x89, modrmReg(3, src, dst))
}

// emitAddRR: ADD r/m32(dst), r32(src).
func emitAddRR(w *codeWriter, dst, src byte) {
	w.bytes(rexBase|rexR|rexB, 0x01, modrmReg(3, src, dst))
}

// emitAndRR: AND r/m32(dst), r32(src).
func emitAndRR(w *codeWriter, dst, src byte) {
	w.bytes(rexBase|rexR|rexB, 0x21, modrmReg(3, src, dst))
}

// emitNotR: NOT r/m32(dst).
func emitNotR(w *codeWriter, dst byte) {
	w.bytes(rexBase|rexB, 0xF7, modrmReg(3, 2, dst))
}

// emitImulRR: IMUL r32(dst), r/m32(src) (dst *= src); low 32 bits match
// an unsigned multiply's low 32 bits, which is all this machine's Mul
// instruction specifies.
func emitImulRR(w *codeWriter, dst, src byte) {
	w.bytes(rexBase|rexR|rexB, 0x0F, 0xAF, modrmReg(3, dst, src))
}

// emitTestRR: TEST r/m32(x), r32(y).
func emitTestRR(w *codeWriter, x, y byte) {
	w.bytes(rexBase|rexR|rexB, 0x85, modrmReg(3, y, x))
}

// emitCmovneRR: CMOVNE r32(dst), r/m32(src).
func emitCmovneRR(w *codeWriter, dst, src byte) {
	w.bytes(rexBase|rexR|rexB, 0x0F, 0x45, modrmReg(3, dst, src))
}

// emitDivTail writes the unsigned-division sequence once the
// divide-by-zero check has passed: EAX/EDX are used as scratch since
// hardware DIV requires them, which is safe here because nothing in
// the entry stub or the emitted code relies on their value surviving a
// CALL into this buffer.
func emitDivTail(w *codeWriter, a, b, c byte) bool {
	// MOV EAX, r32(b): dest=EAX in the rm field (no extension), src=r8+b
	// in the reg field (REX.R).
	w.bytes(rexBase|rexR, 0x89, modrmReg(3, b, 0))
	// XOR EDX, EDX
	w.bytes(0x31, modrmReg(3, 2, 2))
	// DIV r/m32(c): rm field is r8+c (REX.B).
	w.bytes(rexBase|rexB, 0xF7, modrmReg(3, 6, c))
	// MOV r32(a), EAX: dest=r8+a in the rm field (REX.B), src=EAX in
	// the reg field (no extension).
	w.bytes(rexBase|rexB, 0x89, modrmReg(3, 0, a))
	return true
}

// fillNop pads the rest of a fallthrough instruction's slot with
// single-byte NOPs, so the next slot always starts at a fixed CHUNK
// boundary regardless of how short the emitted sequence was.
func fillNop(w *codeWriter) {
	for w.len() < len(w.slot) {
		w.u8(0x90)
	}
}
