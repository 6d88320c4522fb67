package journal

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sompylasar/Current/internal/testutil"
)

func writeJournal(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "journal.log")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func startFile(t *testing.T, path string, rec *recorder, opts ...Option) (*Engine, error) {
	t.Helper()
	e := New(NewFileBackend(path, false), opts...)
	require.NoError(t, e.RegisterHook("v.push_back", rec.hook("push")))
	require.NoError(t, e.RegisterHook("v.pop_back", rec.hook("pop")))
	return e, e.Start(context.Background())
}

func TestFileBackend_MissingFileIsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "journal.log")
	var rec recorder
	e, err := startFile(t, path, &rec)
	require.NoError(t, err)
	defer e.Close()

	assert.Empty(t, rec.got)
	assert.FileExists(t, path)
}

func TestFileBackend_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.log")
	clock := testutil.NewClock(100, 1)

	var rec recorder
	e, err := startFile(t, path, &rec, WithClock(clock))
	require.NoError(t, err)
	require.NoError(t, e.Persist(Mutation{Hook: "v.push_back", Payload: "0\t\"a\""}))
	require.NoError(t, e.Persist(Mutation{Hook: "v.push_back", Payload: "1\t\"b\""}))
	require.NoError(t, e.Persist(Mutation{Hook: "v.pop_back", Payload: "2"}))
	require.NoError(t, e.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "100\tv.push_back\t0\t\"a\"\n101\tv.push_back\t1\t\"b\"\n102\tv.pop_back\t2\n", string(data))

	var again recorder
	e2, err := startFile(t, path, &again)
	require.NoError(t, err)
	defer e2.Close()
	assert.Equal(t, []string{"push:0\t\"a\"", "push:1\t\"b\"", "pop:2"}, again.got)
	assert.Equal(t, int64(3), e2.Stats().Replayed)
}

func TestFileBackend_UnknownHookAborts(t *testing.T) {
	path := writeJournal(t, "1\tv.push_back\t0\tx\n2\tother.insert\t{}\n3\tv.pop_back\t1\n")

	var rec recorder
	_, err := startFile(t, path, &rec)
	require.Error(t, err)
	assert.Equal(t, CodeUnknownHook, CodeOf(err))
	assert.Contains(t, err.Error(), "line=2")
	assert.Contains(t, err.Error(), "hook=other.insert")
	assert.Equal(t, []string{"push:0\tx"}, rec.got)
}

func TestFileBackend_MalformedLineAborts(t *testing.T) {
	path := writeJournal(t, "1\tv.push_back\t0\tx\ngarbage\n")

	var rec recorder
	e, err := startFile(t, path, &rec)
	require.Error(t, err)
	assert.Equal(t, CodeMalformedLine, CodeOf(err))
	assert.Contains(t, err.Error(), "line=2")
	assert.Equal(t, StateFailed, e.State())
}

func TestFileBackend_TornTailIsDiscarded(t *testing.T) {
	path := writeJournal(t, "1\tv.push_back\t0\tx\n2\tv.push_ba")

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	var rec recorder
	e, err := startFile(t, path, &rec, WithLogger(logger), WithClock(testutil.NewClock(5, 1)))
	require.NoError(t, err)
	assert.Equal(t, []string{"push:0\tx"}, rec.got)
	assert.Contains(t, buf.String(), "discarding incomplete journal line")

	require.NoError(t, e.Persist(Mutation{Hook: "v.push_back", Payload: "1\ty"}))
	require.NoError(t, e.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "1\tv.push_back\t0\tx\n5\tv.push_back\t1\ty\n", string(data))
}

func TestFileBackend_TornTailReported(t *testing.T) {
	path := writeJournal(t, "1\tv.push_back\t0\tx\n2\tv.push_ba")
	b := NewFileBackend(path, false)
	ctx := context.Background()

	require.NoError(t, b.Replay(ctx, func(int64, Entry) error { return nil }))
	assert.Equal(t, 11, b.TornTail())

	b.setLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, b.OpenAppend(ctx))
	defer b.Close()
	assert.Zero(t, b.TornTail())
}

func TestFileBackend_LongLine(t *testing.T) {
	payload := "0\t" + string(bytes.Repeat([]byte("z"), 1<<20))
	path := writeJournal(t, "1\tv.push_back\t"+payload+"\n")

	var rec recorder
	e, err := startFile(t, path, &rec)
	require.NoError(t, err)
	defer e.Close()
	require.Len(t, rec.got, 1)
	assert.Equal(t, "push:"+payload, rec.got[0])
}

func TestFileBackend_AppendBeforeOpen(t *testing.T) {
	b := NewFileBackend(filepath.Join(t.TempDir(), "j.log"), true)
	err := b.Append(Entry{TimestampUS: 1, Hook: "a.b"})
	assert.Equal(t, CodeNotRunning, CodeOf(err))
	assert.Equal(t, "file:"+b.Path(), b.String())
	require.NoError(t, b.Close())
}

func TestFileBackend_OpenAppendTwice(t *testing.T) {
	b := NewFileBackend(filepath.Join(t.TempDir(), "j.log"), true)
	require.NoError(t, b.OpenAppend(context.Background()))
	defer b.Close()
	assert.Equal(t, CodeAlreadyStarted, CodeOf(b.OpenAppend(context.Background())))
}
