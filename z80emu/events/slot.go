package events

type entry[T any] struct {
	id      uint64
	fn      T
	removed bool
}

// slot is a copy-on-write listener list: add and remove replace the slice,
// so a broadcast keeps iterating the list it started with.
type slot[T any] struct {
	entries []*entry[T]
}

func (s *slot[T]) add(id uint64, fn T) {
	next := make([]*entry[T], len(s.entries), len(s.entries)+1)
	copy(next, s.entries)
	s.entries = append(next, &entry[T]{id: id, fn: fn})
}

func (s *slot[T]) remove(id uint64) bool {
	for i, e := range s.entries {
		if e.id != id {
			continue
		}
		e.removed = true
		next := make([]*entry[T], 0, len(s.entries)-1)
		next = append(next, s.entries[:i]...)
		s.entries = append(next, s.entries[i+1:]...)
		return true
	}
	return false
}

func (s *slot[T]) each(fn func(T)) {
	for _, e := range s.entries {
		if e.removed {
			continue
		}
		fn(e.fn)
	}
}

func (s *slot[T]) len() int {
	return len(s.entries)
}
