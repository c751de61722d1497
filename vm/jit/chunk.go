// Package jit translates segment 0 of a program into native machine
// code ahead of executing it, rather than fetching and dispatching one
// decoded instruction at a time. It supports amd64 and arm64; other
// architectures fall back to the vm package's interpreter (see
// entry_other.go and Supported).
package jit

// CHUNK is the fixed byte stride reserved for each translated VM
// instruction's native code. A fixed stride means PC maps to a code
// buffer offset by simple multiplication (base + PC*CHUNK) with no
// per-instruction length table, at the cost of reserving enough room
// for the largest emitter on each architecture and NOP-padding the
// rest. The largest emitted sequence on either architecture is OpDiv's
// trampoline-exit path: a register test, a conditional branch around
// the zero-divisor exit, the exit itself (spill all eight bound
// registers plus five stamped ExecutionContext fields, each field a
// MOVZ+MOVK load followed by a store in the worst case), and the
// divide tail. That comes to 84 bytes on amd64 and, accounting for the
// widest per-field immediate load, up to 108 bytes on arm64; 128 covers
// both with headroom and keeps every slot a whole number of cache
// lines.
const CHUNK = 128

// slotOffset returns the byte offset of VM instruction pc's reserved
// slot within the code buffer.
func slotOffset(pc uint32) int {
	return int(pc) * CHUNK
}
