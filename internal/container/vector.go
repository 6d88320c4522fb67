package container

import (
	"fmt"
	"iter"
	"strconv"

	"github.com/sompylasar/Current/internal/journal"
)

// Vector is an ordered sequence mutated only at the tail.
//
// Journal payloads carry the size before the operation:
//
//	<name>.push_back	<size>\t<record>
//	<name>.pop_back	<size>
//
// Replay checks that size against the vector and fails with SIZE_MISMATCH
// when they differ.
type Vector[T any] struct {
	name  string
	p     journal.Persister
	items []T

	pushHook string
	popHook  string
}

// NewVector creates an empty vector and registers its hooks on p.
func NewVector[T any](name string, p journal.Persister) (*Vector[T], error) {
	v := &Vector[T]{
		name:     name,
		p:        p,
		pushHook: journal.HookName(name, "push_back"),
		popHook:  journal.HookName(name, "pop_back"),
	}
	if err := p.RegisterHook(v.pushHook, v.replayPushBack); err != nil {
		return nil, fmt.Errorf("register vector %s: %w", name, err)
	}
	if err := p.RegisterHook(v.popHook, v.replayPopBack); err != nil {
		return nil, fmt.Errorf("register vector %s: %w", name, err)
	}
	return v, nil
}

// Name returns the container name.
func (v *Vector[T]) Name() string { return v.name }

// Empty reports whether the vector has no elements.
func (v *Vector[T]) Empty() bool { return len(v.items) == 0 }

// Size returns the number of elements.
func (v *Vector[T]) Size() int { return len(v.items) }

// Get returns the element at i, or false when i is out of range.
func (v *Vector[T]) Get(i int) (T, bool) {
	if i < 0 || i >= len(v.items) {
		var zero T
		return zero, false
	}
	return v.items[i], true
}

// Last returns the last element, or false when the vector is empty.
func (v *Vector[T]) Last() (T, bool) {
	return v.Get(len(v.items) - 1)
}

// All yields the elements in index order.
func (v *Vector[T]) All() iter.Seq2[int, T] {
	return func(yield func(int, T) bool) {
		for i, item := range v.items {
			if !yield(i, item) {
				return
			}
		}
	}
}

// PushBack persists then appends value.
func (v *Vector[T]) PushBack(value T) error {
	m, err := v.pushMutation(len(v.items), value)
	if err != nil {
		return err
	}
	if err := v.p.Persist(m); err != nil {
		return err
	}
	v.items = append(v.items, value)
	return nil
}

// PopBack persists then removes the last element. It returns
// ErrEmptyContainer, and journals nothing, when the vector is empty.
func (v *Vector[T]) PopBack() error {
	if len(v.items) == 0 {
		return ErrEmptyContainer
	}
	if err := v.p.Persist(v.popMutation(len(v.items))); err != nil {
		return err
	}
	v.pop()
	return nil
}

// StagePushBack records a push of value in b. The index it carries accounts
// for pushes and pops already staged in b, and b is guarded against the
// vector changing before it commits.
func (v *Vector[T]) StagePushBack(b Batch, value T) error {
	size, tracked := v.pendingSize(b)
	m, err := v.pushMutation(size, value)
	if err != nil {
		return err
	}
	return v.stage(b, m, tracked, size+1)
}

// StagePopBack records a pop in b. It returns ErrEmptyContainer when the
// vector would be empty at that point of the batch.
func (v *Vector[T]) StagePopBack(b Batch) error {
	size, tracked := v.pendingSize(b)
	if size == 0 {
		return ErrEmptyContainer
	}
	return v.stage(b, v.popMutation(size), tracked, size-1)
}

func (v *Vector[T]) stage(b Batch, m journal.Mutation, tracked bool, next int) error {
	if err := b.Stage(m); err != nil {
		return err
	}
	if !tracked {
		b.Guard(v.name, len(v.items), v.Size)
	}
	b.SetPending(v.name, next)
	return nil
}

func (v *Vector[T]) pendingSize(b Batch) (int, bool) {
	if size, ok := b.Pending(v.name); ok {
		return size, true
	}
	return len(v.items), false
}

func (v *Vector[T]) pushMutation(size int, value T) (journal.Mutation, error) {
	data, err := v.p.Codec().Marshal(value)
	if err != nil {
		return journal.Mutation{}, fmt.Errorf("push_back %s: %w", v.name, err)
	}
	return journal.Mutation{Hook: v.pushHook, Payload: encodeIndexed(size, data)}, nil
}

func (v *Vector[T]) popMutation(size int) journal.Mutation {
	return journal.Mutation{Hook: v.popHook, Payload: strconv.Itoa(size)}
}

func (v *Vector[T]) pop() {
	var zero T
	v.items[len(v.items)-1] = zero
	v.items = v.items[:len(v.items)-1]
}

func (v *Vector[T]) replayPushBack(payload string) error {
	idx, data, err := splitPair(payload)
	if err != nil {
		return err
	}
	size, err := parseIndex(idx)
	if err != nil {
		return err
	}
	if size != len(v.items) {
		return sizeMismatch("push_back recorded size %d, vector has %d", size, len(v.items))
	}
	var value T
	if err := v.p.Codec().Unmarshal(data, &value); err != nil {
		return badPayload("decode record: %v", err)
	}
	v.items = append(v.items, value)
	return nil
}

func (v *Vector[T]) replayPopBack(payload string) error {
	size, err := parseIndex(payload)
	if err != nil {
		return err
	}
	if len(v.items) == 0 {
		return sizeMismatch("pop_back on empty vector")
	}
	if size != len(v.items) {
		return sizeMismatch("pop_back recorded size %d, vector has %d", size, len(v.items))
	}
	v.pop()
	return nil
}
