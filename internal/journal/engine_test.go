package journal

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sompylasar/Current/internal/codec"
	"github.com/sompylasar/Current/internal/testutil"
)

// recorder collects payloads per hook.
type recorder struct {
	got []string
}

func (r *recorder) hook(prefix string) Hook {
	return func(payload string) error {
		r.got = append(r.got, prefix+":"+payload)
		return nil
	}
}

// failingBackend accepts replay and fails every append.
type failingBackend struct {
	memoryBackend
	err error
}

func (b failingBackend) Append(Entry) error { return b.err }

func TestEngine_Lifecycle(t *testing.T) {
	e := NewInMemory()
	assert.Equal(t, StateUninitialized, e.State())
	assert.NotEmpty(t, e.ID())

	var rec recorder
	require.NoError(t, e.RegisterHook("v.push_back", rec.hook("push")))

	err := e.Persist(Mutation{Hook: "v.push_back", Payload: "0\t1"})
	assert.Equal(t, CodeNotRunning, CodeOf(err))

	require.NoError(t, e.Start(context.Background()))
	assert.Equal(t, StateRunning, e.State())

	err = e.Start(context.Background())
	assert.Equal(t, CodeAlreadyStarted, CodeOf(err))

	err = e.RegisterHook("v.pop_back", rec.hook("pop"))
	assert.Equal(t, CodeAlreadyStarted, CodeOf(err))

	require.NoError(t, e.Persist(Mutation{Hook: "v.push_back", Payload: "0\t1"}))
	assert.Equal(t, Stats{Appended: 1}, e.Stats())
	assert.Empty(t, rec.got, "persist must not apply")

	require.NoError(t, e.Apply(Mutation{Hook: "v.push_back", Payload: "0\t1"}))
	assert.Equal(t, []string{"push:0\t1"}, rec.got)

	require.NoError(t, e.Close())
	assert.Equal(t, StateClosed, e.State())
	require.NoError(t, e.Close())

	err = e.Persist(Mutation{Hook: "v.push_back", Payload: "1\t2"})
	assert.Equal(t, CodeNotRunning, CodeOf(err))
	err = e.Apply(Mutation{Hook: "v.push_back", Payload: "1\t2"})
	assert.Equal(t, CodeNotRunning, CodeOf(err))
}

func TestEngine_DuplicateHook(t *testing.T) {
	e := NewInMemory()
	require.NoError(t, e.RegisterHook("d.insert", nopHook))
	err := e.RegisterHook("d.insert", nopHook)
	assert.Equal(t, CodeDuplicateHook, CodeOf(err))
	assert.Equal(t, []string{"d.insert"}, e.Hooks())
}

func TestEngine_PersistUnknownHook(t *testing.T) {
	e := NewInMemory()
	require.NoError(t, e.Start(context.Background()))
	err := e.Persist(Mutation{Hook: "nobody.add", Payload: "{}"})
	assert.Equal(t, CodeUnknownHook, CodeOf(err))
	assert.Equal(t, StateRunning, e.State())
}

func TestEngine_PersistRejectsLineBreak(t *testing.T) {
	e := NewInMemory()
	require.NoError(t, e.RegisterHook("d.insert", nopHook))
	require.NoError(t, e.Start(context.Background()))
	err := e.Persist(Mutation{Hook: "d.insert", Payload: "a\nb"})
	assert.Equal(t, CodeMalformedLine, CodeOf(err))
	assert.Equal(t, StateRunning, e.State())
}

func TestEngine_AppendFailureFails(t *testing.T) {
	cause := errors.New("disk full")
	e := New(failingBackend{err: WrapError(CodeIO, "write journal entry", cause)})
	require.NoError(t, e.RegisterHook("d.insert", nopHook))
	require.NoError(t, e.Start(context.Background()))

	err := e.Persist(Mutation{Hook: "d.insert", Payload: "{}"})
	require.Error(t, err)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, CodeIO, CodeOf(err))
	assert.Equal(t, StateFailed, e.State())

	err = e.Persist(Mutation{Hook: "d.insert", Payload: "{}"})
	assert.Equal(t, CodeNotRunning, CodeOf(err))
}

func TestEngine_Fail(t *testing.T) {
	var buf bytes.Buffer
	e := NewInMemory(WithLogger(slog.New(slog.NewTextHandler(&buf, nil))))
	var rec recorder
	require.NoError(t, e.RegisterHook("v.push_back", rec.hook("push")))
	require.NoError(t, e.Start(context.Background()))

	e.Fail(errors.New("boom"))
	assert.Equal(t, StateFailed, e.State())
	assert.Contains(t, buf.String(), "journal and memory diverged")
	assert.Equal(t, CodeNotRunning, CodeOf(e.Persist(Mutation{Hook: "v.push_back"})))

	require.NoError(t, e.Close())
	e.Fail(errors.New("late"))
	assert.Equal(t, StateClosed, e.State())
}

func TestEngine_ApplyWrapsHookErrors(t *testing.T) {
	e := NewInMemory()
	require.NoError(t, e.RegisterHook("d.insert", func(string) error { return errors.New("nope") }))
	require.NoError(t, e.Start(context.Background()))

	err := e.Apply(Mutation{Hook: "d.insert", Payload: "{}"})
	assert.Equal(t, CodeBadPayload, CodeOf(err))
	assert.Equal(t, CodeUnknownHook, CodeOf(e.Apply(Mutation{Hook: "x.y"})))
}

func TestEngine_Options(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	clock := testutil.NewClock(1000, 10)

	e := NewInMemory(WithClock(clock), WithCodec(codec.Canonical{}), WithLogger(logger))
	assert.Equal(t, "canonical", e.Codec().Name())
	assert.Equal(t, uint64(1000), e.NowMicros())

	require.NoError(t, e.Start(context.Background()))
	assert.Contains(t, buf.String(), "journal_id="+e.ID())
	assert.Contains(t, buf.String(), "journal replay finished")
}

func TestEngine_StartHonoursContext(t *testing.T) {
	path := writeJournal(t, "1\ta.b\tx\n")
	e := NewFile(path)
	require.NoError(t, e.RegisterHook("a.b", nopHook))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := e.Start(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StateFailed, e.State())
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "replaying", StateReplaying.String())
	assert.Equal(t, "unknown", State(42).String())
}
