package main

import (
	"errors"
	"fmt"
	"os"

	"umjit/vm"
	"umjit/vm/jit"
)

// Out of scope per the spec: flag parsing, a REPL, a debugger. This
// driver takes exactly one positional argument (a program image path)
// and runs it to Halt, matching the teacher's plain os.Args handling
// in the paths that don't need package flag.
func main() {
	if len(os.Args) != 2 {
		fmt.Fprintln(os.Stderr, "usage:", os.Args[0], "<program-image>")
		os.Exit(1)
	}

	if err := run(os.Args[1]); err != nil {
		if errors.Is(err, vm.ErrHalt) {
			os.Exit(0)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// run loads the image at path and executes it to completion, preferring
// the native-code backend and falling back to the interpreter on
// architectures jit.Supported reports false for or on any host-level
// failure standing up the code buffer (mmap/mprotect exhaustion).
func run(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("umjit: %w", err)
	}
	defer file.Close()

	prog, err := vm.LoadImage(file)
	if err != nil {
		return fmt.Errorf("umjit: %w", err)
	}

	ctx := vm.NewContext(prog, os.Stdin, os.Stdout)

	runErr := jit.Run(ctx)
	if errors.Is(runErr, jit.ErrUnsupportedArch) || errors.Is(runErr, jit.ErrCodeBuffer) {
		runErr = vm.Run(ctx)
	}

	if flushErr := ctx.Flush(); flushErr != nil && runErr == nil {
		return fmt.Errorf("umjit: %w", flushErr)
	}
	return runErr
}
