package vm

import (
	"fmt"
	"os"
	"runtime/debug"
	"strconv"
)

// Run executes ctx's program on the direct-threaded interpreter until a
// Halt instruction runs, an error occurs, or the host panics. It
// disables garbage collection for the duration of the run, mirroring
// the teacher's RunProgram: the loop allocates only when a Map or
// LoadProg instruction needs new segment storage, and a GC pause
// mid-loop would only cost latency for no benefit. The previous GOGC percentage is restored before returning.
func Run(ctx *Context) (err error) {
	prevGOGC := readGOGCPercent()
	debug.SetGCPercent(-1)
	defer debug.SetGCPercent(prevGOGC)

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("vm: interpreter panic at pc=%d: %v", ctx.PC, r)
		}
	}()

	prog := ctx.Segs.Program()
	for {
		if int(ctx.PC) >= len(prog) {
			return ErrSegFault
		}

		instr := Decode(prog[ctx.PC])
		ctx.PC++

		switch instr.Op {
		case OpCMov:
			if ctx.Regs[instr.C] != 0 {
				ctx.Regs[instr.A] = ctx.Regs[instr.B]
			}

		case OpSegLoad:
			v, err := ctx.Segs.Load(ctx.Regs[instr.B], ctx.Regs[instr.C])
			if err != nil {
				return err
			}
			ctx.Regs[instr.A] = v

		case OpSegStore:
			if err := ctx.Segs.Store(ctx.Regs[instr.A], ctx.Regs[instr.B], ctx.Regs[instr.C]); err != nil {
				return err
			}

		case OpAdd:
			ctx.Regs[instr.A] = ctx.Regs[instr.B] + ctx.Regs[instr.C]

		case OpMul:
			ctx.Regs[instr.A] = ctx.Regs[instr.B] * ctx.Regs[instr.C]

		case OpDiv:
			if ctx.Regs[instr.C] == 0 {
				return ErrDivideByZero
			}
			ctx.Regs[instr.A] = ctx.Regs[instr.B] / ctx.Regs[instr.C]

		case OpNand:
			ctx.Regs[instr.A] = ^(ctx.Regs[instr.B] & ctx.Regs[instr.C])

		case OpHalt, OpReserved14, OpReserved15:
			return ErrHalt

		case OpMap:
			ctx.Regs[instr.B] = ctx.Segs.Map(ctx.Regs[instr.C])

		case OpUnmap:
			if err := ctx.Segs.Unmap(ctx.Regs[instr.C]); err != nil {
				return err
			}

		case OpOut:
			if err := ctx.Out(ctx.Regs[instr.C]); err != nil {
				return err
			}

		case OpIn:
			v, err := ctx.In()
			if err != nil {
				return err
			}
			ctx.Regs[instr.C] = v

		case OpLoadProg:
			if err := ctx.Segs.LoadProgram(ctx.Regs[instr.B]); err != nil {
				return err
			}
			ctx.PC = ctx.Regs[instr.C]
			prog = ctx.Segs.Program()

		case OpImm:
			ctx.Regs[instr.A] = instr.Imm

		default:
			return ErrUnknownOpcode
		}
	}
}

// readGOGCPercent mirrors the teacher's approach of reading back the
// live GOGC percentage (rather than assuming the default of 100) before
// disabling the collector, so that restoring it afterwards matches
// whatever the host process was actually configured with.
func readGOGCPercent() int {
	if v, ok := os.LookupEnv("GOGC"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return 100
}
