package journal

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/sompylasar/Current/internal/codec"
)

// Persister is the contract between containers and their persistence
// strategy. Engine is the only implementation; the strategy itself is the
// Backend the engine was built with.
type Persister interface {
	// RegisterHook adds the replay hook for one operation kind.
	RegisterHook(name string, hook Hook) error

	// Persist durably records m. The caller applies m to memory afterwards.
	Persist(m Mutation) error

	// Apply runs the hook for m against memory without persisting it.
	Apply(m Mutation) error

	// Codec returns the payload codec.
	Codec() codec.Codec

	// NowMicros returns the engine's current timestamp.
	NowMicros() uint64

	// Fail stops further persists after memory and the journal have
	// diverged.
	Fail(err error)
}

// State is the engine lifecycle state.
type State int

const (
	StateUninitialized State = iota
	StateReplaying
	StateRunning
	StateFailed
	StateClosed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateReplaying:
		return "replaying"
	case StateRunning:
		return "running"
	case StateFailed:
		return "failed"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Stats counts the entries an engine has processed.
type Stats struct {
	Replayed int64
	Appended int64
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock sets the timestamp source. The default is a MonotonicClock over
// the wall clock.
func WithClock(c Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithCodec sets the payload codec. The default is codec.JSON.
func WithCodec(c codec.Codec) Option {
	return func(e *Engine) { e.codec = c }
}

// Engine binds a hook registry to a Backend and runs the startup protocol.
// It is not safe for concurrent use.
type Engine struct {
	id      string
	backend Backend
	hooks   *Registry
	clock   Clock
	codec   codec.Codec
	logger  *slog.Logger

	state State
	stats Stats
}

// New creates an Uninitialized engine over backend.
func New(backend Backend, opts ...Option) *Engine {
	e := &Engine{
		id:      uuid.Must(uuid.NewV7()).String(),
		backend: backend,
		hooks:   NewRegistry(),
		clock:   NewMonotonicClock(WallClock{}),
		codec:   codec.JSON{},
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With("journal_id", e.id)
	if s, ok := backend.(interface{ setLogger(*slog.Logger) }); ok {
		s.setLogger(e.logger)
	}
	return e
}

// NewInMemory creates an engine over the null backend.
func NewInMemory(opts ...Option) *Engine {
	return New(Memory(), opts...)
}

// NewFile creates an engine over a synced FileBackend at path.
func NewFile(path string, opts ...Option) *Engine {
	return New(NewFileBackend(path, true), opts...)
}

// ID returns the UUIDv7 identifying this engine instance in logs.
func (e *Engine) ID() string {
	return e.id
}

// State returns the lifecycle state.
func (e *Engine) State() State {
	return e.state
}

// Stats returns entry counters.
func (e *Engine) Stats() Stats {
	return e.stats
}

// Hooks returns the registered hook names in ascending order.
func (e *Engine) Hooks() []string {
	return e.hooks.Names()
}

// Backend returns the engine's backend.
func (e *Engine) Backend() Backend {
	return e.backend
}

// Codec implements Persister.
func (e *Engine) Codec() codec.Codec {
	return e.codec
}

// NowMicros implements Persister.
func (e *Engine) NowMicros() uint64 {
	return e.clock.NowMicros()
}

// RegisterHook implements Persister. Hooks can only be registered before
// Start.
func (e *Engine) RegisterHook(name string, hook Hook) error {
	if e.state != StateUninitialized {
		return &Error{Code: CodeAlreadyStarted, Message: "hooks must be registered before start", Hook: name}
	}
	if err := e.hooks.Register(name, hook); err != nil {
		e.logger.Error("hook registration failed", "hook", name, "error", err)
		return err
	}
	return nil
}

// Start replays the backend into the registered hooks and then opens it for
// appending. It must be called exactly once.
func (e *Engine) Start(ctx context.Context) error {
	if e.state != StateUninitialized {
		return NewError(CodeAlreadyStarted, "engine is %s", e.state)
	}
	e.state = StateReplaying
	e.logger.Info("journal replay starting", "backend", e.backend.String(), "hooks", e.hooks.Len())
	began := time.Now()

	err := e.backend.Replay(ctx, func(line int64, entry Entry) error {
		hook, ok := e.hooks.Lookup(entry.Hook)
		if !ok {
			return &Error{Code: CodeUnknownHook, Message: "entry references an unregistered hook", Hook: entry.Hook, Line: line}
		}
		if err := hook(entry.Payload); err != nil {
			return annotate(err, entry.Hook, line)
		}
		e.stats.Replayed++
		return nil
	})
	if err == nil {
		err = e.backend.OpenAppend(ctx)
	}
	if err != nil {
		e.state = StateFailed
		e.logger.Error("journal replay failed", "backend", e.backend.String(), "replayed", e.stats.Replayed, "error", err)
		return fmt.Errorf("start journal: %w", err)
	}

	e.state = StateRunning
	e.logger.Info("journal replay finished",
		"backend", e.backend.String(),
		"entries", e.stats.Replayed,
		"duration", time.Since(began))
	return nil
}

// Persist implements Persister. The mutation's hook must be registered so
// that the entry can be replayed later. A backend failure leaves the engine
// Failed because the file may now end in a partial line.
func (e *Engine) Persist(m Mutation) error {
	if e.state != StateRunning {
		return &Error{Code: CodeNotRunning, Message: fmt.Sprintf("engine is %s", e.state), Hook: m.Hook}
	}
	if _, ok := e.hooks.Lookup(m.Hook); !ok {
		return &Error{Code: CodeUnknownHook, Message: "persisting an unregistered hook", Hook: m.Hook}
	}
	entry := Entry{TimestampUS: e.clock.NowMicros(), Hook: m.Hook, Payload: m.Payload}
	if err := entry.Validate(); err != nil {
		return err
	}
	if err := e.backend.Append(entry); err != nil {
		e.state = StateFailed
		e.logger.Error("journal append failed", "hook", m.Hook, "error", err)
		return fmt.Errorf("persist %s: %w", m.Hook, err)
	}
	e.stats.Appended++
	e.logger.Debug("journal entry appended", "hook", m.Hook, "timestamp_us", entry.TimestampUS)
	return nil
}

// Apply implements Persister. It is allowed while replaying (transactions
// dispatch their nested mutations this way) and while Running.
func (e *Engine) Apply(m Mutation) error {
	if e.state != StateRunning && e.state != StateReplaying {
		return &Error{Code: CodeNotRunning, Message: fmt.Sprintf("engine is %s", e.state), Hook: m.Hook}
	}
	hook, ok := e.hooks.Lookup(m.Hook)
	if !ok {
		return &Error{Code: CodeUnknownHook, Message: "applying an unregistered hook", Hook: m.Hook}
	}
	if err := hook(m.Payload); err != nil {
		return annotate(err, m.Hook, 0)
	}
	return nil
}

// Fail implements Persister. The engine moves to Failed and rejects
// later persists with NOT_RUNNING.
func (e *Engine) Fail(err error) {
	if e.state == StateClosed {
		return
	}
	e.state = StateFailed
	e.logger.Error("journal and memory diverged", "error", err)
}

// Close releases the backend. The engine cannot be restarted; open a new
// engine over the same journal instead.
func (e *Engine) Close() error {
	if e.state == StateClosed {
		return nil
	}
	e.state = StateClosed
	if err := e.backend.Close(); err != nil {
		return fmt.Errorf("close journal: %w", err)
	}
	return nil
}
