//go:build !(darwin && arm64)

package jit

// mapFlagsForAlloc is a no-op everywhere outside Darwin/arm64, which is
// the only target in this module's supported set requiring MAP_JIT.
func mapFlagsForAlloc() int {
	return 0
}
