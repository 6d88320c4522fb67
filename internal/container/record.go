package container

import (
	"cmp"

	"github.com/sompylasar/Current/internal/journal"
)

// Keyed is a record stored in a Dictionary under its own key.
type Keyed[K cmp.Ordered] interface {
	Key() K
}

// Celled is a record stored in a Matrix at its own (row, col) coordinate.
type Celled[R, C cmp.Ordered] interface {
	Row() R
	Col() C
}

// Batch collects staged mutations for later commit as one unit.
// *txn.Tx implements it.
type Batch interface {
	// Stage appends m to the batch.
	Stage(m journal.Mutation) error

	// Pending returns the size a container will have once the mutations
	// already staged for it are applied, if any were staged.
	Pending(container string) (int, bool)

	// SetPending records the size a container will have after the last
	// staged mutation.
	SetPending(container string, size int)

	// Guard records, on the first stage for a container, the size the
	// batch was staged against. Commit compares it with live() before
	// anything is persisted and rejects the batch when they differ.
	Guard(container string, base int, live func() int)
}
