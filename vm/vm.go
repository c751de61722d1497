// Package vm implements the register machine: its word encoding,
// segmented memory, and a direct-threaded interpreter. The vm/jit
// subpackage provides a second, interchangeable execution strategy for
// the same Context.
package vm

import "io"

// VM bundles a Context with the strategy used to run it. Run always
// uses the interpreter; the jit package operates on the same *Context
// directly rather than through this type, since the JIT driver loop
// needs access to the segment table and register file that Context
// already exposes.
type VM struct {
	Ctx *Context
}

// New builds a VM from a program image already decoded into words, with
// I/O bound to in/out.
func New(prog []Word, in io.Reader, out io.Writer) *VM {
	return &VM{Ctx: NewContext(prog, in, out)}
}

// Load reads a program image from r and builds a VM around it.
func Load(r io.Reader, in io.Reader, out io.Writer) (*VM, error) {
	prog, err := LoadImage(r)
	if err != nil {
		return nil, err
	}
	return New(prog, in, out), nil
}

// Run executes the program to completion using the interpreter and
// flushes buffered output before returning, regardless of outcome.
// ErrHalt is the expected "clean" termination and is returned as-is so
// callers can distinguish it from a genuine failure with errors.Is.
func (v *VM) Run() error {
	runErr := Run(v.Ctx)
	if flushErr := v.Ctx.Flush(); flushErr != nil && runErr == nil {
		return flushErr
	}
	return runErr
}
