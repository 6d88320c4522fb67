package container

// handle addresses a cell in an arena. A handle outlives its cell only as a
// stale value: once the cell is released the generation no longer matches.
type handle struct {
	slot uint32
	gen  uint32
}

type slot[T any] struct {
	value T
	gen   uint32
	live  bool
}

// arena owns every matrix cell. Indices refer to cells by handle.
type arena[T any] struct {
	slots []slot[T]
	free  []uint32
	live  int
}

func (a *arena[T]) alloc(v T) handle {
	a.live++
	if n := len(a.free); n > 0 {
		i := a.free[n-1]
		a.free = a.free[:n-1]
		s := &a.slots[i]
		s.value = v
		s.live = true
		return handle{slot: i, gen: s.gen}
	}
	a.slots = append(a.slots, slot[T]{value: v, live: true})
	return handle{slot: uint32(len(a.slots) - 1)}
}

func (a *arena[T]) lookup(h handle) *slot[T] {
	if int(h.slot) >= len(a.slots) {
		return nil
	}
	s := &a.slots[h.slot]
	if !s.live || s.gen != h.gen {
		return nil
	}
	return s
}

func (a *arena[T]) get(h handle) (T, bool) {
	s := a.lookup(h)
	if s == nil {
		var zero T
		return zero, false
	}
	return s.value, true
}

func (a *arena[T]) set(h handle, v T) bool {
	s := a.lookup(h)
	if s == nil {
		return false
	}
	s.value = v
	return true
}

func (a *arena[T]) release(h handle) bool {
	s := a.lookup(h)
	if s == nil {
		return false
	}
	var zero T
	s.value = zero
	s.live = false
	s.gen++
	a.free = append(a.free, h.slot)
	a.live--
	return true
}

func (a *arena[T]) len() int {
	return a.live
}
