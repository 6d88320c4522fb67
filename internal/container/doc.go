// Package container provides the three journaled in-memory containers:
// Vector (append-only at the tail), Dictionary (ordered by key) and Matrix
// (sparse, indexed by row and by column).
//
// Each container is bound to a journal.Persister. A mutating call persists
// the mutation first and changes memory only after the persister returns, so
// the journal order always matches the order state changed. Constructors
// register one replay hook per operation under "<name>.<op>"; the engine must
// be started after all containers sharing it are constructed.
//
// Containers are not safe for concurrent use, and must not be mutated while
// one of their iterators is running. Get and the iterators return stored
// values by assignment, so records with reference fields share them.
package container
