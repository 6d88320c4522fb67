package journal

import "context"

// ReplayFunc receives each stored entry in order. line is the 1-based
// position of the entry within the backend.
type ReplayFunc func(line int64, e Entry) error

// Backend stores journal entries for one engine.
type Backend interface {
	// Replay calls fn for every stored entry, in append order, stopping at
	// the first error.
	Replay(ctx context.Context, fn ReplayFunc) error

	// OpenAppend prepares the backend for Append. It is called once, after
	// a successful Replay.
	OpenAppend(ctx context.Context) error

	// Append durably stores e. It returns only once e would survive a
	// process crash (subject to the backend's sync policy).
	Append(e Entry) error

	// Close releases the backend's resources.
	Close() error

	// String describes the backend for logs.
	String() string
}

// memoryBackend is the null strategy: nothing to replay, appends vanish.
type memoryBackend struct{}

// Memory returns the null backend used for pure in-memory containers.
func Memory() Backend {
	return memoryBackend{}
}

func (memoryBackend) Replay(context.Context, ReplayFunc) error { return nil }
func (memoryBackend) OpenAppend(context.Context) error         { return nil }
func (memoryBackend) Append(Entry) error                       { return nil }
func (memoryBackend) Close() error                             { return nil }
func (memoryBackend) String() string                           { return "memory" }
