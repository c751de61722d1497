package vm

// segment is one entry of the segment table: a slice of words plus a
// liveness flag. The backing array is never shrunk; Map reuses it in
// place when it is already large enough for the new request, per the
// retention discipline §4.2 requires and StockUM/memory.c's map_segment
// demonstrates concretely.
type segment struct {
	words []Word
	live  bool
}

// Segments is the VM's segment table: segment 0 plus a growable,
// recyclable set of data segments. The zero value is not usable; use
// NewSegments.
type Segments struct {
	table []segment
	free  []Word
}

// NewSegments builds a segment table with segment 0 already mapped to
// hold prog (the loaded program image).
func NewSegments(prog []Word) *Segments {
	s := &Segments{
		table: make([]segment, 1, 16),
	}
	s.table[0] = segment{words: prog, live: true}
	return s
}

// Map allocates a new segment of size words, all zero-initialized, and
// returns its identifier. Identifiers are recycled LIFO from Unmap, so a
// program that maps and unmaps in a stack-like pattern sees small,
// reused ids.
func (s *Segments) Map(size Word) Word {
	if n := len(s.free); n > 0 {
		id := s.free[n-1]
		s.free = s.free[:n-1]

		words := s.table[id].words
		if cap(words) >= int(size) {
			words = words[:size]
			for i := range words {
				words[i] = 0
			}
		} else {
			words = make([]Word, size)
		}
		s.table[id] = segment{words: words, live: true}
		return id
	}

	words := make([]Word, size)
	id := Word(len(s.table))
	s.table = append(s.table, segment{words: words, live: true})
	return id
}

// Unmap retires segment id, making it eligible for reuse by a later Map.
// Unmapping segment 0 or an id that is not currently live fails with
// ErrUnmapped.
func (s *Segments) Unmap(id Word) error {
	if id == 0 {
		return ErrUnmapped
	}
	if int(id) >= len(s.table) || !s.table[id].live {
		return ErrUnmapped
	}

	s.table[id].live = false
	s.free = append(s.free, id)
	return nil
}

// Load reads the word at offset within segment id.
func (s *Segments) Load(id, offset Word) (Word, error) {
	seg, err := s.live(id)
	if err != nil {
		return 0, err
	}
	if int(offset) >= len(seg.words) {
		return 0, ErrSegFault
	}
	return seg.words[offset], nil
}

// Store writes value to offset within segment id.
func (s *Segments) Store(id, offset, value Word) error {
	seg, err := s.liveIndex(id)
	if err != nil {
		return err
	}
	if int(offset) >= len(s.table[seg].words) {
		return ErrSegFault
	}
	s.table[seg].words[offset] = value
	return nil
}

// LoadProgram replaces segment 0 with a duplicate of segment id's
// current contents, leaving segment id itself untouched. Duplicating
// segment 0 onto itself is a no-op, matching load_program in
// StockUM/memory.c.
func (s *Segments) LoadProgram(id Word) error {
	if id == 0 {
		return nil
	}
	seg, err := s.live(id)
	if err != nil {
		return err
	}

	dup := make([]Word, len(seg.words))
	copy(dup, seg.words)
	s.table[0] = segment{words: dup, live: true}
	return nil
}

// Program returns the live backing slice of segment 0, used by the
// interpreter's fetch step and the JIT translator's decode pass.
func (s *Segments) Program() []Word {
	return s.table[0].words
}

func (s *Segments) live(id Word) (segment, error) {
	if int(id) >= len(s.table) || !s.table[id].live {
		return segment{}, ErrSegFault
	}
	return s.table[id], nil
}

func (s *Segments) liveIndex(id Word) (Word, error) {
	if int(id) >= len(s.table) || !s.table[id].live {
		return 0, ErrSegFault
	}
	return id, nil
}
