package jit

import (
	"errors"
	"fmt"
	"os"
	"runtime/debug"
	"strconv"

	"umjit/vm"
)

// translate builds a fresh CodeBuffer for prog, one CHUNK-byte slot per
// instruction, and finalizes it read+execute. It never mutates prog.
func translate(prog []vm.Word) (*CodeBuffer, error) {
	buf, err := NewCodeBuffer(len(prog))
	if err != nil {
		return nil, err
	}
	writeSlots(buf, prog)
	if err := buf.Finalize(); err != nil {
		buf.Close()
		return nil, err
	}
	return buf, nil
}

// writeSlots emits every instruction in prog into buf's backing memory,
// which must already be writable and at least len(prog)*CHUNK bytes.
func writeSlots(buf *CodeBuffer, prog []vm.Word) {
	mem := buf.Bytes()
	for pc, word := range prog {
		start := slotOffset(uint32(pc))
		slot := mem[start : start+CHUNK]
		w := newCodeWriter(slot)
		instr := vm.Decode(word)
		if emitInstruction(w, instr, uint32(pc)) {
			fillNop(w)
		}
	}
}

// retranslate rewrites buf in place when prog's new length still fits
// the slots already reserved, reopening it for writing and finalizing
// again; otherwise it closes buf and allocates a new one sized for
// prog. Either way the caller gets back the buffer to resume from.
func retranslate(buf *CodeBuffer, prog []vm.Word) (*CodeBuffer, error) {
	if len(buf.Bytes()) >= len(prog)*CHUNK {
		if err := buf.Reopen(); err != nil {
			return nil, err
		}
		writeSlots(buf, prog)
		if err := buf.Finalize(); err != nil {
			return nil, err
		}
		return buf, nil
	}

	buf.Close()
	return translate(prog)
}

// Run executes ctx's program through the native-code backend until a
// Halt instruction runs, an error occurs, or the host panics. Its
// return contract matches vm.Run exactly (ErrHalt on normal
// termination, the same sentinel errors on failure), so callers can
// choose either execution strategy over the same *vm.Context. Run
// returns ErrUnsupportedArch immediately on architectures with no
// native backend; callers should fall back to vm.Run in that case.
func Run(ctx *vm.Context) (err error) {
	if !Supported() {
		return ErrUnsupportedArch
	}

	prevGOGC := readGOGCPercent()
	debug.SetGCPercent(-1)
	defer debug.SetGCPercent(prevGOGC)

	buf, err := translate(ctx.Segs.Program())
	if err != nil {
		return err
	}
	defer buf.Close()

	execCtx := &ExecutionContext{}
	copy(execCtx.SavedRegs[:], ctx.Regs[:])
	pc := ctx.PC

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("jit: panic at pc=%d: %v", pc, r)
		}
	}()

	for {
		jitEntry(execCtx, buf.Base()+uintptr(slotOffset(pc)))

		svcErr := service(ctx, execCtx)
		switch {
		case svcErr == nil:
			pc = execCtx.NextPC

		case errors.Is(svcErr, errReloadSegmentZero):
			buf, err = retranslate(buf, ctx.Segs.Program())
			if err != nil {
				return err
			}
			pc = execCtx.NextPC

		default:
			copy(ctx.Regs[:], execCtx.SavedRegs[:])
			ctx.PC = pc
			return svcErr
		}
	}
}

// readGOGCPercent mirrors vm.Run's own helper; the jit and interpreter
// packages each disable GC around their hot loop independently since
// neither imports the other for this one idiom.
func readGOGCPercent() int {
	if v, ok := os.LookupEnv("GOGC"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return 100
}
