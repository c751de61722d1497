//go:build darwin && arm64

package jit

import "golang.org/x/sys/unix"

// mapFlagsForAlloc adds MAP_JIT on Darwin/arm64, which is required to
// obtain a mapping that can ever be marked executable under that
// platform's hardened runtime, per macOS-arm64-container/superjit's use
// of mmap with MAP_JIT in the original C checkpoints.
func mapFlagsForAlloc() int {
	return unix.MAP_JIT
}
