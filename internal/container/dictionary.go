package container

import (
	"cmp"
	"fmt"
	"iter"

	"github.com/google/btree"

	"github.com/sompylasar/Current/internal/journal"
)

// btreeDegree is the branching factor of every ordered index.
const btreeDegree = 32

type pair[K cmp.Ordered, T any] struct {
	key   K
	value T
}

func lessPair[K cmp.Ordered, T any](a, b pair[K, T]) bool {
	return cmp.Less(a.key, b.key)
}

// Dictionary maps keys to records, iterating in ascending key order.
// A record's key is taken from the record itself.
//
// Journal payloads:
//
//	<name>.insert	<record>
//	<name>.erase	<key>
type Dictionary[K cmp.Ordered, T any] struct {
	name  string
	p     journal.Persister
	keyOf func(T) K
	tree  *btree.BTreeG[pair[K, T]]

	insertHook string
	eraseHook  string
}

// NewDictionary creates a dictionary of records that carry their own key.
func NewDictionary[K cmp.Ordered, T Keyed[K]](name string, p journal.Persister) (*Dictionary[K, T], error) {
	return NewDictionaryFunc(name, p, func(v T) K { return v.Key() })
}

// NewDictionaryFunc creates a dictionary whose keys are extracted by keyOf.
func NewDictionaryFunc[K cmp.Ordered, T any](name string, p journal.Persister, keyOf func(T) K) (*Dictionary[K, T], error) {
	d := &Dictionary[K, T]{
		name:       name,
		p:          p,
		keyOf:      keyOf,
		tree:       btree.NewG[pair[K, T]](btreeDegree, lessPair[K, T]),
		insertHook: journal.HookName(name, "insert"),
		eraseHook:  journal.HookName(name, "erase"),
	}
	if err := p.RegisterHook(d.insertHook, d.replayInsert); err != nil {
		return nil, fmt.Errorf("register dictionary %s: %w", name, err)
	}
	if err := p.RegisterHook(d.eraseHook, d.replayErase); err != nil {
		return nil, fmt.Errorf("register dictionary %s: %w", name, err)
	}
	return d, nil
}

// Name returns the container name.
func (d *Dictionary[K, T]) Name() string { return d.name }

// Empty reports whether the dictionary has no entries.
func (d *Dictionary[K, T]) Empty() bool { return d.tree.Len() == 0 }

// Size returns the number of entries.
func (d *Dictionary[K, T]) Size() int { return d.tree.Len() }

// KeyOf returns the key v would be stored under.
func (d *Dictionary[K, T]) KeyOf(v T) K { return d.keyOf(v) }

// Get returns the record stored under key.
func (d *Dictionary[K, T]) Get(key K) (T, bool) {
	p, ok := d.tree.Get(pair[K, T]{key: key})
	return p.value, ok
}

// Has reports whether key is present.
func (d *Dictionary[K, T]) Has(key K) bool {
	return d.tree.Has(pair[K, T]{key: key})
}

// Insert persists then stores value under its key, replacing any previous
// record with the same key.
func (d *Dictionary[K, T]) Insert(value T) error {
	m, err := d.insertMutation(value)
	if err != nil {
		return err
	}
	if err := d.p.Persist(m); err != nil {
		return err
	}
	d.put(value)
	return nil
}

// Erase persists then removes key. Erasing an absent key is journaled and
// leaves the dictionary unchanged.
func (d *Dictionary[K, T]) Erase(key K) error {
	m, err := d.eraseMutation(key)
	if err != nil {
		return err
	}
	if err := d.p.Persist(m); err != nil {
		return err
	}
	d.tree.Delete(pair[K, T]{key: key})
	return nil
}

// StageInsert records an insert of value in b.
func (d *Dictionary[K, T]) StageInsert(b Batch, value T) error {
	m, err := d.insertMutation(value)
	if err != nil {
		return err
	}
	return b.Stage(m)
}

// StageErase records an erase of key in b.
func (d *Dictionary[K, T]) StageErase(b Batch, key K) error {
	m, err := d.eraseMutation(key)
	if err != nil {
		return err
	}
	return b.Stage(m)
}

// All yields entries in ascending key order.
func (d *Dictionary[K, T]) All() iter.Seq2[K, T] {
	return func(yield func(K, T) bool) {
		d.tree.Ascend(func(p pair[K, T]) bool {
			return yield(p.key, p.value)
		})
	}
}

// Keys yields keys in ascending order.
func (d *Dictionary[K, T]) Keys() iter.Seq[K] {
	return func(yield func(K) bool) {
		d.tree.Ascend(func(p pair[K, T]) bool {
			return yield(p.key)
		})
	}
}

// Range yields entries with from <= key < to.
func (d *Dictionary[K, T]) Range(from, to K) iter.Seq2[K, T] {
	return func(yield func(K, T) bool) {
		d.tree.AscendRange(pair[K, T]{key: from}, pair[K, T]{key: to}, func(p pair[K, T]) bool {
			return yield(p.key, p.value)
		})
	}
}

// LowerBound yields entries starting at the first key not less than key.
func (d *Dictionary[K, T]) LowerBound(key K) iter.Seq2[K, T] {
	return func(yield func(K, T) bool) {
		d.tree.AscendGreaterOrEqual(pair[K, T]{key: key}, func(p pair[K, T]) bool {
			return yield(p.key, p.value)
		})
	}
}

// UpperBound yields entries starting at the first key greater than key.
func (d *Dictionary[K, T]) UpperBound(key K) iter.Seq2[K, T] {
	return func(yield func(K, T) bool) {
		d.tree.AscendGreaterOrEqual(pair[K, T]{key: key}, func(p pair[K, T]) bool {
			if p.key == key {
				return true
			}
			return yield(p.key, p.value)
		})
	}
}

func (d *Dictionary[K, T]) put(value T) {
	d.tree.ReplaceOrInsert(pair[K, T]{key: d.keyOf(value), value: value})
}

func (d *Dictionary[K, T]) insertMutation(value T) (journal.Mutation, error) {
	data, err := d.p.Codec().Marshal(value)
	if err != nil {
		return journal.Mutation{}, fmt.Errorf("insert %s: %w", d.name, err)
	}
	return journal.Mutation{Hook: d.insertHook, Payload: data}, nil
}

func (d *Dictionary[K, T]) eraseMutation(key K) (journal.Mutation, error) {
	data, err := d.p.Codec().Marshal(key)
	if err != nil {
		return journal.Mutation{}, fmt.Errorf("erase %s: %w", d.name, err)
	}
	return journal.Mutation{Hook: d.eraseHook, Payload: data}, nil
}

func (d *Dictionary[K, T]) replayInsert(payload string) error {
	var value T
	if err := d.p.Codec().Unmarshal(payload, &value); err != nil {
		return badPayload("decode record: %v", err)
	}
	d.put(value)
	return nil
}

func (d *Dictionary[K, T]) replayErase(payload string) error {
	var key K
	if err := d.p.Codec().Unmarshal(payload, &key); err != nil {
		return badPayload("decode key: %v", err)
	}
	d.tree.Delete(pair[K, T]{key: key})
	return nil
}
