package jit

import "umjit/vm"

// ExitCode says why emitted code returned control to the driver loop in
// translator.go. ExitNone never actually reaches the driver; it exists
// so the zero value of ExecutionContext is not mistaken for a real
// reason to stop.
type ExitCode uint32

const (
	ExitNone ExitCode = iota
	ExitHalt
	ExitMap
	ExitUnmap
	ExitOut
	ExitIn
	ExitLoadProg
	ExitDivZero
	ExitSegFault
	ExitSegLoad
	ExitSegStore
)

// ExecutionContext is the fixed-layout struct both emitted code and the
// per-architecture entry stub (entry_amd64.s, entry_arm64.s) address by
// raw byte offset. Go's assembler has no notion of struct field names,
// so every field below has a paired *Offset constant the assembly
// hardcodes; changing field order or width here requires updating both
// .s files to match. This mirrors wazero's wazevo backend, which uses
// the same "shared context struct + exit code" shape to let emitted
// native code call back into host-language logic without the emitted
// code itself containing an unsafe direct call to a Go function value.
type ExecutionContext struct {
	// SavedRegs holds the eight VM registers. The entry stub loads
	// these into the bound host registers before jumping into the code
	// buffer; emitted code spills them back here before every
	// trampoline exit and before Halt.
	SavedRegs [8]uint32

	// NextPC is the VM instruction index to resume at after the driver
	// loop services the exit. For Halt it is left at the halting
	// instruction's index; for LoadProg it is set to the requested
	// entry point.
	NextPC uint32

	// ExitCode says which trampoline operation (or terminal condition)
	// the driver loop must service.
	ExitCode ExitCode

	// A, B, C mirror the exiting instruction's own A/B/C register
	// indices verbatim, so the driver loop does not need to re-decode
	// it; service interprets them per ExitCode the same way the
	// interpreter's switch in vm/interpreter.go does for the matching
	// opcode.
	A, B, C uint32
}

// Field byte offsets used by the emitters in emit_*.go; the entry stubs
// hardcode the SavedRegs offsets directly. SavedRegs is 8 uint32s (32
// bytes), followed by five more uint32 fields.
const (
	ExecCtxSavedRegsOffset = 0
	ExecCtxNextPCOffset    = 32
	ExecCtxExitCodeOffset  = 36
	ExecCtxAOffset         = 40
	ExecCtxBOffset         = 44
	ExecCtxCOffset         = 48
	ExecCtxSize            = 52
)

// errReloadSegmentZero is returned internally by service to tell the
// driver loop that LoadProgram replaced segment 0, so it must
// re-translate before resuming rather than jump back into the old code
// buffer contents. It never escapes the jit package.
var errReloadSegmentZero = vmErrSentinel("jit: segment zero reloaded")

type vmErrSentinel string

func (e vmErrSentinel) Error() string { return string(e) }

// service performs the host-side effect of one trampoline exit against
// vmCtx, mutating execCtx.SavedRegs/NextPC as needed before the driver
// loop resumes the code buffer. A non-nil error is either
// errReloadSegmentZero (handled by the driver loop, not the caller) or
// a terminal condition the caller should propagate.
func service(vmCtx *vm.Context, execCtx *ExecutionContext) error {
	switch execCtx.ExitCode {
	case ExitHalt:
		copy(vmCtx.Regs[:], execCtx.SavedRegs[:])
		return vm.ErrHalt

	case ExitDivZero:
		copy(vmCtx.Regs[:], execCtx.SavedRegs[:])
		return vm.ErrDivideByZero

	case ExitSegFault:
		copy(vmCtx.Regs[:], execCtx.SavedRegs[:])
		return vm.ErrSegFault

	case ExitSegLoad:
		v, err := vmCtx.Segs.Load(execCtx.SavedRegs[execCtx.B], execCtx.SavedRegs[execCtx.C])
		if err != nil {
			return err
		}
		execCtx.SavedRegs[execCtx.A] = v
		return nil

	case ExitSegStore:
		return vmCtx.Segs.Store(execCtx.SavedRegs[execCtx.A], execCtx.SavedRegs[execCtx.B], execCtx.SavedRegs[execCtx.C])

	case ExitMap:
		size := execCtx.SavedRegs[execCtx.C]
		id := vmCtx.Segs.Map(size)
		execCtx.SavedRegs[execCtx.B] = id
		return nil

	case ExitUnmap:
		id := execCtx.SavedRegs[execCtx.C]
		return vmCtx.Segs.Unmap(id)

	case ExitOut:
		return vmCtx.Out(execCtx.SavedRegs[execCtx.C])

	case ExitIn:
		v, err := vmCtx.In()
		if err != nil {
			return err
		}
		execCtx.SavedRegs[execCtx.C] = v
		return nil

	case ExitLoadProg:
		id := execCtx.SavedRegs[execCtx.B]
		if err := vmCtx.Segs.LoadProgram(id); err != nil {
			return err
		}
		execCtx.NextPC = execCtx.SavedRegs[execCtx.C]
		return errReloadSegmentZero

	default:
		return vm.ErrUnknownOpcode
	}
}
