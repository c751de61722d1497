package vm

import "errors"

// Sentinel errors returned by the vm and jit packages. Callers should use
// errors.Is against these rather than string-matching error text.
var (
	// ErrHalt is returned by Run when the program executed a Halt
	// instruction. It is the only clean, expected way for execution to
	// stop and is not itself a failure.
	ErrHalt = errors.New("vm: halted")

	// ErrBadImage is returned by the loader when a program image's byte
	// length is not a positive multiple of 4.
	ErrBadImage = errors.New("vm: malformed program image")

	// ErrSegFault is returned when an instruction addresses a segment id
	// that is not currently mapped, or an offset beyond a mapped
	// segment's length.
	ErrSegFault = errors.New("vm: segmentation fault")

	// ErrUnmapped is returned when Unmap is applied to the zero segment
	// or to a segment id that is not currently mapped.
	ErrUnmapped = errors.New("vm: unmap of unmapped segment")

	// ErrUnknownOpcode is returned when a decoded opcode does not
	// correspond to one of the fourteen defined operations.
	ErrUnknownOpcode = errors.New("vm: unknown opcode")

	// ErrIO is returned when an Out instruction's value is outside the
	// single-byte range the host stream protocol requires.
	ErrIO = errors.New("vm: io value out of range")

	// ErrDivideByZero is returned when a Div instruction's divisor
	// register holds zero.
	ErrDivideByZero = errors.New("vm: division by zero")
)
