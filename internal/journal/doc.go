// Package journal implements the replay-then-append persistence engine that
// backs every container in this module.
//
// A journal is an append-only sequence of entries, one per mutation. Each
// entry on disk is a single line:
//
//	<timestamp_us> TAB <hook_name> TAB <payload> NEWLINE
//
// Hook names are "<container>.<operation>" (for example "orders.push_back").
// The payload shape is owned by the hook that consumes it.
//
// # Lifecycle
//
// An Engine is created Uninitialized. Containers register one hook per
// operation kind while the engine is Uninitialized; registering a name twice
// is an error. Start replays the backend entry by entry, dispatching each
// payload to its hook, then opens the backend for appending and moves the
// engine to Running. There is no way back:
//
//	Uninitialized -> Running -> Closed
//	Uninitialized -> Failed
//
// A replay that hits an unknown hook, a malformed line or a hook error leaves
// the engine Failed. A Failed engine refuses every further call.
//
// # Persist then apply
//
// Containers call Persist before touching in-memory state. Persist returns
// only once the backend has accepted (and, for the file backend, synced) the
// line, so the order on disk always matches the order in memory. Hooks
// invoked during replay mutate memory directly and never persist.
//
// # Backends
//
//   - Memory: replays nothing and discards appends (pure in-memory containers)
//   - FileBackend: one append-only text file per engine
//   - store.Store (package store): the same entries kept in SQLite
//
// The engine provides no locking. One owner drives it, or callers serialize
// access themselves.
package journal
