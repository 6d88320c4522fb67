// Package txn batches mutations for several containers into one journal
// entry.
//
// A Tx collects mutations through the containers' Stage methods. Commit
// writes the whole batch, with its timing and metadata, as a single
// "<name>.transaction" entry and then applies the mutations in order through
// the same hooks replay uses. On replay the entry is decoded and its
// mutations are dispatched again in the same order, so a batch is either
// fully present or, when the entry was torn away, absent.
package txn

import (
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"

	"github.com/sompylasar/Current/internal/journal"
)

// ErrCommitted is returned when a committed Tx is used again.
var ErrCommitted = errors.New("transaction already committed")

// ErrStale is returned by Commit when a container the batch was staged
// against changed size in the meantime. Nothing is journaled.
var ErrStale = errors.New("transaction staged against a stale container")

const op = "transaction"

// Meta is the timing and metadata envelope of a transaction.
type Meta struct {
	BeginUS uint64            `json:"begin_us" jsonschema:"description=Microseconds when the batch was begun"`
	EndUS   uint64            `json:"end_us" jsonschema:"description=Microseconds when the batch was committed; never before begin_us"`
	Fields  map[string]string `json:"fields,omitempty" jsonschema:"description=Caller metadata passed through unchanged"`
}

// Transaction is the payload of a transaction entry.
type Transaction struct {
	Meta      Meta               `json:"meta"`
	Mutations []journal.Mutation `json:"mutations"`
}

// Option configures a Committer.
type Option func(*Committer)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *Committer) { c.logger = l }
}

// Committer owns the transaction hook of one persister.
type Committer struct {
	p      journal.Persister
	name   string
	hook   string
	logger *slog.Logger

	observers []func(Transaction)
	last      Meta
	hasLast   bool
}

// NewCommitter registers "<name>.transaction" on p. Like container
// constructors it must be called before the engine starts.
func NewCommitter(p journal.Persister, name string, opts ...Option) (*Committer, error) {
	c := &Committer{
		p:      p,
		name:   name,
		hook:   journal.HookName(name, op),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if err := p.RegisterHook(c.hook, c.replay); err != nil {
		return nil, fmt.Errorf("register transactions %s: %w", name, err)
	}
	return c, nil
}

// Hook returns the transaction hook name.
func (c *Committer) Hook() string {
	return c.hook
}

// OnCommit adds an observer called after each transaction is applied, both
// on commit and on replay.
func (c *Committer) OnCommit(fn func(Transaction)) {
	c.observers = append(c.observers, fn)
}

// Last returns the meta of the most recently applied transaction.
func (c *Committer) Last() (Meta, bool) {
	return c.last, c.hasLast
}

// Begin starts a batch stamped with the persister's current time.
func (c *Committer) Begin() *Tx {
	return &Tx{
		c:  c,
		tr: Transaction{Meta: Meta{BeginUS: c.p.NowMicros()}},
	}
}

func (c *Committer) apply(tr Transaction) error {
	for i, m := range tr.Mutations {
		if err := c.p.Apply(m); err != nil {
			return fmt.Errorf("transaction mutation %d: %w", i, err)
		}
	}
	c.last = tr.Meta
	c.hasLast = true
	for _, fn := range c.observers {
		fn(tr)
	}
	return nil
}

func (c *Committer) replay(payload string) error {
	var tr Transaction
	if err := c.p.Codec().Unmarshal(payload, &tr); err != nil {
		return journal.NewError(journal.CodeBadPayload, "decode transaction: %v", err)
	}
	if tr.Meta.EndUS < tr.Meta.BeginUS {
		return journal.NewError(journal.CodeBadPayload, "transaction ends at %d before it begins at %d", tr.Meta.EndUS, tr.Meta.BeginUS)
	}
	for i, m := range tr.Mutations {
		if isTransactionHook(m.Hook) {
			return &journal.Error{
				Code:    journal.CodeBadPayload,
				Message: fmt.Sprintf("transaction mutation %d is itself a transaction", i),
				Hook:    m.Hook,
			}
		}
	}
	return c.apply(tr)
}

func isTransactionHook(hook string) bool {
	return strings.HasSuffix(hook, "."+op)
}

// Tx is a batch under construction. It implements container.Batch.
type Tx struct {
	c       *Committer
	tr      Transaction
	pending map[string]int
	guards  []guard
	done    bool
}

type guard struct {
	container string
	base      int
	live      func() int
}

// SetField sets a metadata field.
func (t *Tx) SetField(key, value string) error {
	if t.done {
		return ErrCommitted
	}
	if t.tr.Meta.Fields == nil {
		t.tr.Meta.Fields = make(map[string]string)
	}
	t.tr.Meta.Fields[key] = value
	return nil
}

// Meta returns the batch's meta so far.
func (t *Tx) Meta() Meta {
	m := t.tr.Meta
	m.Fields = maps.Clone(m.Fields)
	return m
}

// Len returns the number of staged mutations.
func (t *Tx) Len() int {
	return len(t.tr.Mutations)
}

// Mutations returns the staged mutations in order.
func (t *Tx) Mutations() []journal.Mutation {
	return slices.Clone(t.tr.Mutations)
}

// Stage appends m. Transactions cannot be nested.
func (t *Tx) Stage(m journal.Mutation) error {
	if t.done {
		return ErrCommitted
	}
	if isTransactionHook(m.Hook) {
		return &journal.Error{Code: journal.CodeBadPayload, Message: "cannot stage a transaction inside a transaction", Hook: m.Hook}
	}
	t.tr.Mutations = append(t.tr.Mutations, m)
	return nil
}

// Pending returns the size container will have after the mutations staged
// so far, when a container recorded one.
func (t *Tx) Pending(container string) (int, bool) {
	n, ok := t.pending[container]
	return n, ok
}

// SetPending records the size container will have after the last staged
// mutation.
func (t *Tx) SetPending(container string, size int) {
	if t.pending == nil {
		t.pending = make(map[string]int)
	}
	t.pending[container] = size
}

// Guard records the size container had when it was first staged.
func (t *Tx) Guard(container string, base int, live func() int) {
	for _, g := range t.guards {
		if g.container == container {
			return
		}
	}
	t.guards = append(t.guards, guard{container: container, base: base, live: live})
}

func (t *Tx) checkGuards() error {
	for _, g := range t.guards {
		if n := g.live(); n != g.base {
			return fmt.Errorf("%w: %s staged at size %d, now %d", ErrStale, g.container, g.base, n)
		}
	}
	return nil
}

// Commit stamps end_us, persists the batch as one entry, then applies its
// mutations in order. An empty batch is still journaled. A batch whose
// containers changed since staging fails with ErrStale before anything is
// persisted. After a successful persist the Tx is spent, and further use
// returns ErrCommitted. If applying fails after the persist, the persister
// is failed since the journal no longer matches memory.
func (t *Tx) Commit() (Transaction, error) {
	if t.done {
		return Transaction{}, ErrCommitted
	}
	if err := t.checkGuards(); err != nil {
		return Transaction{}, err
	}
	c := t.c
	tr := t.tr
	tr.Meta.EndUS = max(c.p.NowMicros(), tr.Meta.BeginUS)

	payload, err := c.p.Codec().Marshal(tr)
	if err != nil {
		return Transaction{}, fmt.Errorf("encode transaction: %w", err)
	}
	if err := c.p.Persist(journal.Mutation{Hook: c.hook, Payload: payload}); err != nil {
		return Transaction{}, err
	}
	t.done = true
	t.tr = tr

	if err := c.apply(tr); err != nil {
		c.logger.Error("transaction persisted but not applied", "hook", c.hook, "error", err)
		c.p.Fail(err)
		return tr, err
	}
	c.logger.Debug("transaction committed",
		"hook", c.hook,
		"mutations", len(tr.Mutations),
		"begin_us", tr.Meta.BeginUS,
		"end_us", tr.Meta.EndUS)
	return tr, nil
}
