package schema

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/sompylasar/Current/internal/codec"
	"github.com/sompylasar/Current/internal/container"
	"github.com/sompylasar/Current/internal/journal"
	"github.com/sompylasar/Current/internal/store"
	"github.com/sompylasar/Current/internal/txn"
)

// Instance is a started engine with one Document container per schema
// entry.
type Instance struct {
	Schema       *Schema
	Engine       *journal.Engine
	Vectors      map[string]*container.Vector[Document]
	Dictionaries map[string]*container.Dictionary[Key, Document]
	Matrices     map[string]*container.Matrix[Key, Key, Document]

	// Transactions is nil unless the schema names a transaction hook.
	Transactions *txn.Committer
}

// NewBackend builds the backend the schema selects.
func (s *Schema) NewBackend() (journal.Backend, error) {
	switch s.Backend {
	case BackendFile:
		return journal.NewFileBackend(s.JournalPath(), s.SyncEnabled()), nil
	case BackendSQLite:
		path := s.JournalPath()
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create directory for %s: %w", path, err)
		}
		st, err := store.Open(path, store.WithSync(s.SyncEnabled()))
		if err != nil {
			return nil, fmt.Errorf("open sqlite journal: %w", err)
		}
		return st, nil
	case BackendMemory:
		return journal.Memory(), nil
	default:
		return nil, fmt.Errorf("unknown backend %q", s.Backend)
	}
}

// Open builds the engine and containers described by s and replays the
// journal into them. A nil logger means slog.Default().
func (s *Schema) Open(ctx context.Context, logger *slog.Logger) (*Instance, error) {
	if logger == nil {
		logger = slog.Default()
	}
	c, err := codec.ByName(s.Codec)
	if err != nil {
		return nil, err
	}
	backend, err := s.NewBackend()
	if err != nil {
		return nil, err
	}

	e := journal.New(backend, journal.WithCodec(c), journal.WithLogger(logger))
	in := &Instance{
		Schema:       s,
		Engine:       e,
		Vectors:      make(map[string]*container.Vector[Document]),
		Dictionaries: make(map[string]*container.Dictionary[Key, Document]),
		Matrices:     make(map[string]*container.Matrix[Key, Key, Document]),
	}
	if err := in.register(logger); err != nil {
		return nil, errors.Join(err, e.Close())
	}
	if err := e.Start(ctx); err != nil {
		return nil, errors.Join(err, e.Close())
	}
	return in, nil
}

func (in *Instance) register(logger *slog.Logger) error {
	for _, c := range in.Schema.Containers {
		var err error
		switch c.Kind {
		case KindVector:
			in.Vectors[c.Name], err = container.NewVector[Document](c.Name, in.Engine)
		case KindDictionary:
			in.Dictionaries[c.Name], err = container.NewDictionaryFunc(c.Name, in.Engine, field(c.Key))
		case KindMatrix:
			in.Matrices[c.Name], err = container.NewMatrixFunc(c.Name, in.Engine, field(c.Row), field(c.Col))
		default:
			err = fmt.Errorf("container %s: unknown kind %q", c.Name, c.Kind)
		}
		if err != nil {
			return err
		}
	}
	if name := in.Schema.Transactions; name != "" {
		committer, err := txn.NewCommitter(in.Engine, name, txn.WithLogger(logger))
		if err != nil {
			return err
		}
		in.Transactions = committer
	}
	return nil
}

// Close releases the journal backend.
func (in *Instance) Close() error {
	return in.Engine.Close()
}
