//go:build amd64

package jit

// Supported reports whether this build of the jit package can
// translate and execute native code on the running architecture.
func Supported() bool { return true }

// jitEntry loads ctx.SavedRegs into the bound host registers, jumps to
// code, and returns once emitted code has spilled its registers back
// into ctx and RET'd. See entry_amd64.s.
//
//go:noescape
func jitEntry(ctx *ExecutionContext, code uintptr)
