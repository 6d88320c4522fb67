package container

import (
	"cmp"
	"iter"

	"github.com/google/btree"
)

type ref[K cmp.Ordered] struct {
	key K
	h   handle
}

func lessRef[K cmp.Ordered](a, b ref[K]) bool {
	return cmp.Less(a.key, b.key)
}

type bucket[O, I cmp.Ordered] struct {
	key   O
	cells *btree.BTreeG[ref[I]]
}

func lessBucket[O, I cmp.Ordered](a, b *bucket[O, I]) bool {
	return cmp.Less(a.key, b.key)
}

// index is one of the two sorted views of a matrix: outer key, then inner
// key, then cell handle. Buckets never stay empty.
type index[O, I cmp.Ordered] struct {
	tree *btree.BTreeG[*bucket[O, I]]
}

func newIndex[O, I cmp.Ordered]() *index[O, I] {
	return &index[O, I]{tree: btree.NewG[*bucket[O, I]](btreeDegree, lessBucket[O, I])}
}

func (x *index[O, I]) find(o O) (*bucket[O, I], bool) {
	return x.tree.Get(&bucket[O, I]{key: o})
}

func (x *index[O, I]) put(o O, i I, h handle) {
	b, ok := x.find(o)
	if !ok {
		b = &bucket[O, I]{key: o, cells: btree.NewG[ref[I]](btreeDegree, lessRef[I])}
		x.tree.ReplaceOrInsert(b)
	}
	b.cells.ReplaceOrInsert(ref[I]{key: i, h: h})
}

func (x *index[O, I]) remove(o O, i I) {
	b, ok := x.find(o)
	if !ok {
		return
	}
	b.cells.Delete(ref[I]{key: i})
	if b.cells.Len() == 0 {
		x.tree.Delete(b)
	}
}

// Axis is a read-only ordered view of a matrix by one coordinate: rows
// (outer R, inner C) or columns (outer C, inner R). It reflects later
// changes to the matrix.
type Axis[O, I cmp.Ordered, T any] struct {
	idx   *index[O, I]
	cells *arena[T]
}

// Empty reports whether the axis has no lines.
func (a *Axis[O, I, T]) Empty() bool { return a.idx.tree.Len() == 0 }

// Size returns the number of non-empty lines.
func (a *Axis[O, I, T]) Size() int { return a.idx.tree.Len() }

// Has reports whether line key has at least one cell.
func (a *Axis[O, I, T]) Has(key O) bool {
	_, ok := a.idx.find(key)
	return ok
}

// Get returns the line for key.
func (a *Axis[O, I, T]) Get(key O) (*Line[O, I, T], bool) {
	b, ok := a.idx.find(key)
	if !ok {
		return nil, false
	}
	return &Line[O, I, T]{b: b, cells: a.cells}, true
}

// All yields lines in ascending key order.
func (a *Axis[O, I, T]) All() iter.Seq2[O, *Line[O, I, T]] {
	return func(yield func(O, *Line[O, I, T]) bool) {
		a.idx.tree.Ascend(func(b *bucket[O, I]) bool {
			return yield(b.key, &Line[O, I, T]{b: b, cells: a.cells})
		})
	}
}

// Range yields lines with from <= key < to.
func (a *Axis[O, I, T]) Range(from, to O) iter.Seq2[O, *Line[O, I, T]] {
	return func(yield func(O, *Line[O, I, T]) bool) {
		a.idx.tree.AscendRange(&bucket[O, I]{key: from}, &bucket[O, I]{key: to}, func(b *bucket[O, I]) bool {
			return yield(b.key, &Line[O, I, T]{b: b, cells: a.cells})
		})
	}
}

// Line is one row (or column) of a matrix. A Line obtained before its last
// cell is deleted is detached from the matrix and reads as empty.
type Line[O, I cmp.Ordered, T any] struct {
	b     *bucket[O, I]
	cells *arena[T]
}

// Key returns the line's outer key.
func (l *Line[O, I, T]) Key() O { return l.b.key }

// Empty reports whether the line has no cells.
func (l *Line[O, I, T]) Empty() bool { return l.b.cells.Len() == 0 }

// Size returns the number of cells.
func (l *Line[O, I, T]) Size() int { return l.b.cells.Len() }

// Has reports whether the line has a cell at key.
func (l *Line[O, I, T]) Has(key I) bool {
	return l.b.cells.Has(ref[I]{key: key})
}

// Get returns the cell at key.
func (l *Line[O, I, T]) Get(key I) (T, bool) {
	r, ok := l.b.cells.Get(ref[I]{key: key})
	if !ok {
		var zero T
		return zero, false
	}
	return l.cells.get(r.h)
}

// All yields cells in ascending inner key order.
func (l *Line[O, I, T]) All() iter.Seq2[I, T] {
	return func(yield func(I, T) bool) {
		l.b.cells.Ascend(func(r ref[I]) bool {
			v, ok := l.cells.get(r.h)
			if !ok {
				return true
			}
			return yield(r.key, v)
		})
	}
}

// Range yields cells with from <= key < to.
func (l *Line[O, I, T]) Range(from, to I) iter.Seq2[I, T] {
	return func(yield func(I, T) bool) {
		l.b.cells.AscendRange(ref[I]{key: from}, ref[I]{key: to}, func(r ref[I]) bool {
			v, ok := l.cells.get(r.h)
			if !ok {
				return true
			}
			return yield(r.key, v)
		})
	}
}
