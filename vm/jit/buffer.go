package jit

import (
	"errors"
	"runtime"
	"unsafe"

	"golang.org/x/sys/unix"
)

// ErrCodeBuffer is returned when the host refuses to allocate or
// reprotect the anonymous executable mapping the translator writes
// native code into.
var ErrCodeBuffer = errors.New("jit: code buffer allocation failed")

// ErrUnsupportedArch is returned by Run when GOARCH has no
// emitter backend; callers should fall back to vm.Run's interpreter.
var ErrUnsupportedArch = errors.New("jit: unsupported architecture")

// CodeBuffer is an anonymous, page-aligned block of memory big enough
// to hold one CHUNK-sized slot per translated instruction. Most
// platforms allow a mapping to be simultaneously writable and
// executable, so NewCodeBuffer allocates RWX up front; write-protected
// platforms go through Finalize's write-then-reprotect discipline
// instead (see requiresReprotect).
type CodeBuffer struct {
	mem   []byte
	dirty bool
}

// NewCodeBuffer reserves an executable mapping sized to hold n
// CHUNK-byte instruction slots.
func NewCodeBuffer(n int) (*CodeBuffer, error) {
	size := n * CHUNK
	if size == 0 {
		size = CHUNK
	}
	size = pageAlign(size)

	mem, err := unix.Mmap(-1, 0, size, protForAlloc(), unix.MAP_ANON|unix.MAP_PRIVATE|mapFlagsForAlloc())
	if err != nil {
		return nil, errors.Join(ErrCodeBuffer, err)
	}

	return &CodeBuffer{mem: mem}, nil
}

// Bytes returns the buffer's backing slice for the translator to write
// emitted instructions into.
func (b *CodeBuffer) Bytes() []byte { return b.mem }

// Base returns the address of slot 0, used to compute PC-relative
// branch targets and the entry point the driver loop jumps to.
func (b *CodeBuffer) Base() uintptr {
	if len(b.mem) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(&b.mem[0]))
}

// Finalize marks the buffer read+execute once translation has written
// every instruction's code into it. On RWX-capable platforms this is a
// no-op; on strict W^X platforms it performs the mprotect reprotection
// the code buffer lifecycle requires before any jump into the buffer.
func (b *CodeBuffer) Finalize() error {
	if !requiresReprotect() {
		return nil
	}
	if err := unix.Mprotect(b.mem, unix.PROT_READ|unix.PROT_EXEC); err != nil {
		return errors.Join(ErrCodeBuffer, err)
	}
	b.dirty = false
	return nil
}

// Reopen marks the buffer writable again so the translator can patch an
// already-finalized region (used only when re-translating segment 0
// after LoadProgram; see translator.go). On RWX platforms this is a
// no-op since the mapping was never reprotected away from write access.
func (b *CodeBuffer) Reopen() error {
	if !requiresReprotect() {
		return nil
	}
	if err := unix.Mprotect(b.mem, unix.PROT_READ|unix.PROT_WRITE); err != nil {
		return errors.Join(ErrCodeBuffer, err)
	}
	b.dirty = true
	return nil
}

// Close releases the mapping. The translator closes a buffer it is
// replacing or discarding, and Run closes its buffer on return; calling
// Close again after the first call does nothing.
func (b *CodeBuffer) Close() error {
	if b.mem == nil {
		return nil
	}
	err := unix.Munmap(b.mem)
	b.mem = nil
	return err
}

func pageAlign(size int) int {
	pageSize := unix.Getpagesize()
	if rem := size % pageSize; rem != 0 {
		size += pageSize - rem
	}
	return size
}

// requiresReprotect reports whether the host needs the two-phase
// write-then-execute discipline. Darwin/arm64's MAP_JIT convention is
// the documented case (§4.6); every other platform this module targets
// allows RWX in one mapping.
func requiresReprotect() bool {
	return runtime.GOOS == "darwin" && runtime.GOARCH == "arm64"
}

func protForAlloc() int {
	if requiresReprotect() {
		return unix.PROT_READ | unix.PROT_WRITE
	}
	return unix.PROT_READ | unix.PROT_WRITE | unix.PROT_EXEC
}
