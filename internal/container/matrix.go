package container

import (
	"cmp"
	"fmt"
	"iter"

	"github.com/sompylasar/Current/internal/journal"
)

type coord[R, C cmp.Ordered] struct {
	row R
	col C
}

// Matrix is a sparse set of records addressed by (row, col), with a forward
// index (row, then col) and a transposed index (col, then row). Both indices
// refer to the same arena cell, and a row or column disappears from its
// index with its last cell.
//
// Journal payloads:
//
//	<name>.add	<record>
//	<name>.delete	<row>\t<col>
type Matrix[R, C cmp.Ordered, T any] struct {
	name  string
	p     journal.Persister
	rowOf func(T) R
	colOf func(T) C

	cells      arena[T]
	byCoord    map[coord[R, C]]handle
	forward    *index[R, C]
	transposed *index[C, R]

	addHook    string
	deleteHook string
}

// NewMatrix creates a matrix of records that carry their own coordinates.
func NewMatrix[R, C cmp.Ordered, T Celled[R, C]](name string, p journal.Persister) (*Matrix[R, C, T], error) {
	return NewMatrixFunc(name, p,
		func(v T) R { return v.Row() },
		func(v T) C { return v.Col() })
}

// NewMatrixFunc creates a matrix whose coordinates are extracted by rowOf
// and colOf.
func NewMatrixFunc[R, C cmp.Ordered, T any](name string, p journal.Persister, rowOf func(T) R, colOf func(T) C) (*Matrix[R, C, T], error) {
	m := &Matrix[R, C, T]{
		name:       name,
		p:          p,
		rowOf:      rowOf,
		colOf:      colOf,
		byCoord:    make(map[coord[R, C]]handle),
		forward:    newIndex[R, C](),
		transposed: newIndex[C, R](),
		addHook:    journal.HookName(name, "add"),
		deleteHook: journal.HookName(name, "delete"),
	}
	if err := p.RegisterHook(m.addHook, m.replayAdd); err != nil {
		return nil, fmt.Errorf("register matrix %s: %w", name, err)
	}
	if err := p.RegisterHook(m.deleteHook, m.replayDelete); err != nil {
		return nil, fmt.Errorf("register matrix %s: %w", name, err)
	}
	return m, nil
}

// Name returns the container name.
func (m *Matrix[R, C, T]) Name() string { return m.name }

// Empty reports whether the matrix has no cells.
func (m *Matrix[R, C, T]) Empty() bool { return len(m.byCoord) == 0 }

// Size returns the number of cells.
func (m *Matrix[R, C, T]) Size() int { return len(m.byCoord) }

// Has reports whether (row, col) holds a cell.
func (m *Matrix[R, C, T]) Has(row R, col C) bool {
	_, ok := m.byCoord[coord[R, C]{row, col}]
	return ok
}

// Get returns the cell at (row, col).
func (m *Matrix[R, C, T]) Get(row R, col C) (T, bool) {
	h, ok := m.byCoord[coord[R, C]{row, col}]
	if !ok {
		var zero T
		return zero, false
	}
	return m.cells.get(h)
}

// Rows returns the view by row.
func (m *Matrix[R, C, T]) Rows() *Axis[R, C, T] {
	return &Axis[R, C, T]{idx: m.forward, cells: &m.cells}
}

// Cols returns the view by column.
func (m *Matrix[R, C, T]) Cols() *Axis[C, R, T] {
	return &Axis[C, R, T]{idx: m.transposed, cells: &m.cells}
}

// All yields every cell in row-major order.
func (m *Matrix[R, C, T]) All() iter.Seq[T] {
	return func(yield func(T) bool) {
		for _, line := range m.Rows().All() {
			for _, v := range line.All() {
				if !yield(v) {
					return
				}
			}
		}
	}
}

// Add persists then stores value at its coordinates, replacing any cell
// already there.
func (m *Matrix[R, C, T]) Add(value T) error {
	mut, err := m.addMutation(value)
	if err != nil {
		return err
	}
	if err := m.p.Persist(mut); err != nil {
		return err
	}
	m.put(value)
	return nil
}

// Delete persists then removes the cell at (row, col). Deleting an absent
// cell is journaled and leaves the matrix unchanged.
func (m *Matrix[R, C, T]) Delete(row R, col C) error {
	mut, err := m.deleteMutation(row, col)
	if err != nil {
		return err
	}
	if err := m.p.Persist(mut); err != nil {
		return err
	}
	m.remove(row, col)
	return nil
}

// StageAdd records an add of value in b.
func (m *Matrix[R, C, T]) StageAdd(b Batch, value T) error {
	mut, err := m.addMutation(value)
	if err != nil {
		return err
	}
	return b.Stage(mut)
}

// StageDelete records a delete of (row, col) in b.
func (m *Matrix[R, C, T]) StageDelete(b Batch, row R, col C) error {
	mut, err := m.deleteMutation(row, col)
	if err != nil {
		return err
	}
	return b.Stage(mut)
}

func (m *Matrix[R, C, T]) put(value T) {
	row, col := m.rowOf(value), m.colOf(value)
	key := coord[R, C]{row, col}
	if h, ok := m.byCoord[key]; ok {
		m.cells.set(h, value)
		return
	}
	h := m.cells.alloc(value)
	m.byCoord[key] = h
	m.forward.put(row, col, h)
	m.transposed.put(col, row, h)
}

func (m *Matrix[R, C, T]) remove(row R, col C) {
	key := coord[R, C]{row, col}
	h, ok := m.byCoord[key]
	if !ok {
		return
	}
	m.forward.remove(row, col)
	m.transposed.remove(col, row)
	delete(m.byCoord, key)
	m.cells.release(h)
}

func (m *Matrix[R, C, T]) addMutation(value T) (journal.Mutation, error) {
	data, err := m.p.Codec().Marshal(value)
	if err != nil {
		return journal.Mutation{}, fmt.Errorf("add %s: %w", m.name, err)
	}
	return journal.Mutation{Hook: m.addHook, Payload: data}, nil
}

func (m *Matrix[R, C, T]) deleteMutation(row R, col C) (journal.Mutation, error) {
	c := m.p.Codec()
	r, err := c.Marshal(row)
	if err != nil {
		return journal.Mutation{}, fmt.Errorf("delete %s: %w", m.name, err)
	}
	k, err := c.Marshal(col)
	if err != nil {
		return journal.Mutation{}, fmt.Errorf("delete %s: %w", m.name, err)
	}
	return journal.Mutation{Hook: m.deleteHook, Payload: r + "\t" + k}, nil
}

func (m *Matrix[R, C, T]) replayAdd(payload string) error {
	var value T
	if err := m.p.Codec().Unmarshal(payload, &value); err != nil {
		return badPayload("decode record: %v", err)
	}
	m.put(value)
	return nil
}

func (m *Matrix[R, C, T]) replayDelete(payload string) error {
	rs, cs, err := splitPair(payload)
	if err != nil {
		return err
	}
	var (
		row R
		col C
	)
	if err := m.p.Codec().Unmarshal(rs, &row); err != nil {
		return badPayload("decode row: %v", err)
	}
	if err := m.p.Codec().Unmarshal(cs, &col); err != nil {
		return badPayload("decode col: %v", err)
	}
	m.remove(row, col)
	return nil
}
