package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"

	"github.com/sompylasar/Current/internal/journal"
)

// Ensure interface compliance at compile time.
var _ journal.Backend = (*Store)(nil)

// Replay implements journal.Backend. Entries are read in seq order.
func (s *Store) Replay(ctx context.Context, fn journal.ReplayFunc) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT ts_us, hook, payload
		FROM entries
		ORDER BY seq ASC
	`)
	if err != nil {
		return journal.WrapError(journal.CodeIO, "query entries", err)
	}
	defer rows.Close()

	var line int64
	for rows.Next() {
		line++
		e, err := scanEntry(rows)
		if err != nil {
			return &journal.Error{Code: journal.CodeMalformedLine, Message: "scan entry", Line: line, Err: err}
		}
		if err := fn(line, e); err != nil {
			return err
		}
	}

	if err := rows.Err(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return journal.WrapError(journal.CodeIO, "iterate entries", err)
	}
	return nil
}

// OpenAppend implements journal.Backend. The database is always writable
// once open.
func (s *Store) OpenAppend(context.Context) error {
	if s.db == nil {
		return journal.NewError(journal.CodeNotRunning, "store is closed")
	}
	return nil
}

// Append implements journal.Backend. Each entry is its own implicit
// transaction, committed before Append returns.
func (s *Store) Append(e journal.Entry) error {
	if s.db == nil {
		return journal.NewError(journal.CodeNotRunning, "store is closed")
	}
	if e.TimestampUS > math.MaxInt64 {
		return journal.NewError(journal.CodeMalformedLine, "timestamp %d does not fit an SQLite integer", e.TimestampUS)
	}
	_, err := s.db.Exec(`
		INSERT INTO entries (ts_us, hook, payload)
		VALUES (?, ?, ?)
	`, int64(e.TimestampUS), e.Hook, e.Payload)
	if err != nil {
		return journal.WrapError(journal.CodeIO, "insert entry", err)
	}
	return nil
}

// Count returns the number of stored entries.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM entries`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count entries: %w", err)
	}
	return n, nil
}

// LastTimestamp returns the timestamp of the most recently appended entry.
// ok is false for an empty journal.
func (s *Store) LastTimestamp(ctx context.Context) (ts uint64, ok bool, err error) {
	var us int64
	err = s.db.QueryRowContext(ctx, `
		SELECT ts_us FROM entries ORDER BY seq DESC LIMIT 1
	`).Scan(&us)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("last timestamp: %w", err)
	}
	return uint64(us), true, nil
}

// HookCounts returns the number of entries per hook name.
func (s *Store) HookCounts(ctx context.Context) (map[string]int64, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT hook, COUNT(*) FROM entries GROUP BY hook ORDER BY hook ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query hook counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var (
			hook string
			n    int64
		)
		if err := rows.Scan(&hook, &n); err != nil {
			return nil, fmt.Errorf("scan hook count: %w", err)
		}
		counts[hook] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate hook counts: %w", err)
	}
	return counts, nil
}

// scanner abstracts sql.Row and sql.Rows for shared scanning logic.
type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(s scanner) (journal.Entry, error) {
	var (
		us int64
		e  journal.Entry
	)
	if err := s.Scan(&us, &e.Hook, &e.Payload); err != nil {
		return journal.Entry{}, err
	}
	if us < 0 {
		return journal.Entry{}, fmt.Errorf("negative timestamp %d", us)
	}
	e.TimestampUS = uint64(us)
	return e, nil
}
