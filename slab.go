package relay

// Handle addresses a slab slot. The upper 32 bits carry the slot generation,
// so a handle to a freed or reused slot never resolves.
type Handle uint64

const NoHandle Handle = 0

type slot[T any] struct {
	gen  uint32
	used bool
	val  T
}

// slab is an arena of reusable slots with a free list. Not safe for
// concurrent use; the reactor goroutine owns it.
type slab[T any] struct {
	slots []slot[T]
	free  []uint32
	live  int
}

func newSlab[T any](capacity int) *slab[T] {
	return &slab[T]{
		slots: make([]slot[T], 0, capacity),
		free:  make([]uint32, 0, capacity),
	}
}

func makeHandle(idx uint32, gen uint32) Handle {
	return Handle(uint64(gen)<<32 | uint64(idx+1))
}

func (s *slab[T]) split(h Handle) (uint32, uint32, bool) {
	var low = uint32(h)
	if low == 0 {
		return 0, 0, false
	}
	var idx = low - 1
	if int(idx) >= len(s.slots) {
		return 0, 0, false
	}
	return idx, uint32(h >> 32), true
}

func (s *slab[T]) Insert(v T) Handle {
	var idx uint32
	if n := len(s.free); n > 0 {
		idx = s.free[n-1]
		s.free = s.free[:n-1]
	} else {
		s.slots = append(s.slots, slot[T]{})
		idx = uint32(len(s.slots) - 1)
	}
	var sl = &s.slots[idx]
	sl.gen++
	sl.used = true
	sl.val = v
	s.live++
	return makeHandle(idx, sl.gen)
}

func (s *slab[T]) lookup(h Handle) *slot[T] {
	var idx, gen, ok = s.split(h)
	if !ok {
		return nil
	}
	var sl = &s.slots[idx]
	if !sl.used || sl.gen != gen {
		return nil
	}
	return sl
}

func (s *slab[T]) Get(h Handle) (T, bool) {
	if sl := s.lookup(h); sl != nil {
		return sl.val, true
	}
	var zero T
	return zero, false
}

func (s *slab[T]) Contains(h Handle) bool {
	return s.lookup(h) != nil
}

// Set replaces the value behind a live handle in place.
func (s *slab[T]) Set(h Handle, v T) bool {
	var sl = s.lookup(h)
	if sl == nil {
		return false
	}
	sl.val = v
	return true
}

func (s *slab[T]) Remove(h Handle) (T, bool) {
	var zero T
	var sl = s.lookup(h)
	if sl == nil {
		return zero, false
	}
	var v = sl.val
	sl.val = zero
	sl.used = false
	var idx, _, _ = s.split(h)
	s.free = append(s.free, idx)
	s.live--
	return v, true
}

func (s *slab[T]) Len() int {
	return s.live
}
