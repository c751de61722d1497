package vm

import (
	"bufio"
	"io"
)

// Context is the mutable state shared by every execution strategy: the
// register file, the segment table, the program counter, and the host
// I/O streams. Both the interpreter and the JIT driver loop operate on
// the same Context shape so that a program's observable behavior does
// not depend on which strategy ran it.
type Context struct {
	Regs Registers
	Segs *Segments
	PC   Word

	in  *bufio.Reader
	out *bufio.Writer
}

// NewContext builds a Context with segment 0 loaded from prog and I/O
// bound to in/out.
func NewContext(prog []Word, in io.Reader, out io.Writer) *Context {
	return &Context{
		Segs: NewSegments(prog),
		in:   bufio.NewReader(in),
		out:  bufio.NewWriter(out),
	}
}

// Flush drains any buffered output. Callers must invoke this before the
// process exits, since buffered writes are otherwise lost.
func (c *Context) Flush() error {
	return c.out.Flush()
}

// Out writes a single byte to the host output stream, per §5's Out
// instruction. Values outside 0-255 are a host protocol violation.
func (c *Context) Out(v Word) error {
	if v > 0xFF {
		return ErrIO
	}
	return c.out.WriteByte(byte(v))
}

// In blocks until a single byte is available on the host input stream
// and returns it zero-extended, or returns ^Word(0) (all bits set) on
// end of input, per §5's In instruction. This is one of the machine's
// two documented suspension points.
func (c *Context) In() (Word, error) {
	b, err := c.in.ReadByte()
	if err == io.EOF {
		return ^Word(0), nil
	}
	if err != nil {
		return 0, err
	}
	return Word(b), nil
}
