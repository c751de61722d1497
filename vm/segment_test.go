package vm

import "testing"

func TestNewSegmentsSeedsSegmentZero(t *testing.T) {
	prog := []Word{1, 2, 3}
	segs := NewSegments(prog)

	v, err := segs.Load(0, 1)
	if err != nil {
		t.Fatalf("Load(0,1) error: %v", err)
	}
	if v != 2 {
		t.Fatalf("Load(0,1) = %d, want 2", v)
	}
}

func TestMapZeroInitialized(t *testing.T) {
	segs := NewSegments([]Word{0})
	id := segs.Map(4)

	for i := Word(0); i < 4; i++ {
		v, err := segs.Load(id, i)
		if err != nil {
			t.Fatalf("Load(%d,%d) error: %v", id, i, err)
		}
		if v != 0 {
			t.Errorf("Load(%d,%d) = %d, want 0", id, i, v)
		}
	}
}

func TestStoreThenLoad(t *testing.T) {
	segs := NewSegments([]Word{0})
	id := segs.Map(2)

	if err := segs.Store(id, 1, 42); err != nil {
		t.Fatalf("Store error: %v", err)
	}
	v, err := segs.Load(id, 1)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if v != 42 {
		t.Fatalf("Load = %d, want 42", v)
	}
}

func TestLoadOutOfRangeIsSegFault(t *testing.T) {
	segs := NewSegments([]Word{0})
	id := segs.Map(2)

	if _, err := segs.Load(id, 5); err != ErrSegFault {
		t.Fatalf("err = %v, want ErrSegFault", err)
	}
}

func TestLoadUnmappedSegmentIsSegFault(t *testing.T) {
	segs := NewSegments([]Word{0})

	if _, err := segs.Load(99, 0); err != ErrSegFault {
		t.Fatalf("err = %v, want ErrSegFault", err)
	}
}

func TestUnmapZeroSegmentFails(t *testing.T) {
	segs := NewSegments([]Word{0})
	if err := segs.Unmap(0); err != ErrUnmapped {
		t.Fatalf("err = %v, want ErrUnmapped", err)
	}
}

func TestUnmapThenLoadIsSegFault(t *testing.T) {
	segs := NewSegments([]Word{0})
	id := segs.Map(4)

	if err := segs.Unmap(id); err != nil {
		t.Fatalf("Unmap error: %v", err)
	}
	if _, err := segs.Load(id, 0); err != ErrSegFault {
		t.Fatalf("err = %v, want ErrSegFault", err)
	}
}

func TestUnmapTwiceFails(t *testing.T) {
	segs := NewSegments([]Word{0})
	id := segs.Map(4)

	if err := segs.Unmap(id); err != nil {
		t.Fatalf("first Unmap error: %v", err)
	}
	if err := segs.Unmap(id); err != ErrUnmapped {
		t.Fatalf("second Unmap err = %v, want ErrUnmapped", err)
	}
}

func TestMapRecyclesUnmappedID(t *testing.T) {
	segs := NewSegments([]Word{0})
	a := segs.Map(4)

	if err := segs.Unmap(a); err != nil {
		t.Fatalf("Unmap error: %v", err)
	}

	b := segs.Map(4)
	if b != a {
		t.Fatalf("Map after Unmap = %d, want recycled id %d", b, a)
	}
}

func TestMapRetainsBackingStoreOnReuse(t *testing.T) {
	segs := NewSegments([]Word{0})
	a := segs.Map(8)
	if err := segs.Store(a, 7, 0xFEED); err != nil {
		t.Fatalf("Store error: %v", err)
	}
	if err := segs.Unmap(a); err != nil {
		t.Fatalf("Unmap error: %v", err)
	}

	// Re-mapping a smaller size should still zero the segment, even
	// though the backing array is the same one reused from a.
	b := segs.Map(4)
	if b != a {
		t.Fatalf("Map id = %d, want recycled %d", b, a)
	}
	if c := cap(segs.table[b].words); c != 8 {
		t.Fatalf("cap = %d, want 8 (backing array of a retained)", c)
	}
	v, err := segs.Load(b, 3)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if v != 0 {
		t.Fatalf("Load = %d, want 0 (reused segment must be zeroed)", v)
	}
}

func TestLoadProgramDuplicatesSegment(t *testing.T) {
	segs := NewSegments([]Word{0xAAAA})
	id := segs.Map(2)
	if err := segs.Store(id, 0, 111); err != nil {
		t.Fatalf("Store error: %v", err)
	}
	if err := segs.Store(id, 1, 222); err != nil {
		t.Fatalf("Store error: %v", err)
	}

	if err := segs.LoadProgram(id); err != nil {
		t.Fatalf("LoadProgram error: %v", err)
	}

	prog := segs.Program()
	if len(prog) != 2 || prog[0] != 111 || prog[1] != 222 {
		t.Fatalf("Program() = %v, want [111 222]", prog)
	}

	// Segment id must be unaffected, and must be an independent copy.
	if err := segs.Store(id, 0, 999); err != nil {
		t.Fatalf("Store error: %v", err)
	}
	prog = segs.Program()
	if prog[0] != 111 {
		t.Fatalf("Program()[0] = %d, want unaffected 111", prog[0])
	}
}

func TestLoadProgramZeroIsNoOp(t *testing.T) {
	segs := NewSegments([]Word{1, 2, 3})
	if err := segs.LoadProgram(0); err != nil {
		t.Fatalf("LoadProgram(0) error: %v", err)
	}
	prog := segs.Program()
	if len(prog) != 3 || prog[0] != 1 {
		t.Fatalf("Program() = %v, want [1 2 3] unchanged", prog)
	}
}
