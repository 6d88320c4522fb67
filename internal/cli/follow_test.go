package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sompylasar/Current/internal/journal"
)

const (
	line1 = "1\torders.push_back\t0\t{}\n"
	line2 = "2\torders.push_back\t1\t{}\n"
	line3 = "3\torders.pop_back\t2\n"
)

func appendTo(t *testing.T, path, text string) {
	t.Helper()
	require.NoError(t, appendText(path, text))
}

func appendText(path, text string) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.WriteString(text); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// startFollow runs follow in the background and returns its output and a
// channel receiving its result.
func startFollow(t *testing.T, args ...string) (*syncBuffer, <-chan error, context.CancelFunc) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	out := &syncBuffer{}
	done := make(chan error, 1)
	go func() {
		done <- executeContext(ctx, out, append([]string{"follow"}, args...)...)
	}()
	return out, done, cancel
}

func wait(t *testing.T, done <-chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(10 * time.Second):
		t.Fatal("follow did not return")
		return nil
	}
}

func TestFollow_PrintsExistingEntries(t *testing.T) {
	path := writeFile(t, t.TempDir(), "app.journal", line1+line2+"3\torders.pop")

	out, err := execute(t, "follow", "--journal", path, "--max", "2")
	require.NoError(t, err)
	assert.Equal(t, line1+line2, out)
}

func TestFollow_PicksUpAppends(t *testing.T) {
	path := writeFile(t, t.TempDir(), "app.journal", line1+line2)

	out, done, _ := startFollow(t, "--journal", path, "--max", "3")
	require.Eventually(t, func() bool { return out.String() == line1+line2 }, 5*time.Second, 10*time.Millisecond)

	// The entry arrives in two writes; nothing is printed until its newline.
	appendTo(t, path, line3[:5])
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, line1+line2, out.String())
	appendTo(t, path, line3[5:])

	require.NoError(t, wait(t, done))
	assert.Equal(t, line1+line2+line3, out.String())
}

func TestFollow_TailSkipsHistory(t *testing.T) {
	path := writeFile(t, t.TempDir(), "app.journal", line1+line2)

	out, done, _ := startFollow(t, "--journal", path, "--tail", "--max", "1", "--format", "json")
	// Appends until follow has its watch in place and picks one up.
	require.Eventually(t, func() bool {
		_ = appendText(path, line3)
		return out.String() != ""
	}, 5*time.Second, 50*time.Millisecond)
	require.NoError(t, wait(t, done))

	var got FollowedEntry
	first, _, _ := strings.Cut(out.String(), "\n")
	require.NoError(t, json.Unmarshal([]byte(first), &got))
	assert.GreaterOrEqual(t, got.Line, int64(3))
	assert.Equal(t, journal.Entry{TimestampUS: 3, Hook: "orders.pop_back", Payload: "2"}, got.Entry)
}

func TestFollow_StopsOnCancel(t *testing.T) {
	path := writeFile(t, t.TempDir(), "app.journal", line1)

	out, done, cancel := startFollow(t, "--journal", path)
	require.Eventually(t, func() bool { return out.String() == line1 }, 5*time.Second, 10*time.Millisecond)
	cancel()
	require.NoError(t, wait(t, done))
}

func TestFollow_MalformedLine(t *testing.T) {
	path := writeFile(t, t.TempDir(), "app.journal", line1+"garbage\n")

	out, err := execute(t, "follow", "--journal", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "line 2")
	assert.Equal(t, line1, out)
}

func TestFollow_MissingJournal(t *testing.T) {
	_, err := execute(t, "follow", "--journal", filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestTailer_RestartsAfterTruncation(t *testing.T) {
	path := writeFile(t, t.TempDir(), "app.journal", line1+line2)
	tl := &tailer{path: path}
	require.NoError(t, tl.open())
	defer tl.close()

	var lines []int64
	collect := func(line int64, e journal.Entry) error {
		lines = append(lines, line)
		return nil
	}
	require.NoError(t, tl.drain(collect))
	assert.Equal(t, []int64{1, 2}, lines)

	require.NoError(t, os.WriteFile(path, []byte(line3), 0o644))
	lines = nil
	require.NoError(t, tl.drain(collect))
	assert.Equal(t, []int64{1}, lines)
}

func TestTailer_TornTailRewritten(t *testing.T) {
	path := writeFile(t, t.TempDir(), "app.journal", line1+"2\torders.push_ba")
	tl := &tailer{path: path}
	require.NoError(t, tl.open())
	defer tl.close()

	var got []string
	collect := func(line int64, e journal.Entry) error {
		got = append(got, fmt.Sprintf("%d:%s", line, e.Hook))
		return nil
	}
	require.NoError(t, tl.drain(collect))
	assert.Equal(t, []string{"1:orders.push_back"}, got)

	// The torn bytes are cut off and a longer entry lands in their place.
	require.NoError(t, os.WriteFile(path, []byte(line1+"5\torders.push_back\t1\t{\"id\":\"o2\"}\n"), 0o644))
	got = nil
	require.NoError(t, tl.drain(collect))
	assert.Equal(t, []string{"2:orders.push_back"}, got)
}

func TestTailer_TornTailCutBeforeAppend(t *testing.T) {
	path := writeFile(t, t.TempDir(), "app.journal", line1+"2\torders.pop")
	tl := &tailer{path: path}
	require.NoError(t, tl.open())
	defer tl.close()

	var lines []int64
	collect := func(line int64, e journal.Entry) error {
		lines = append(lines, line)
		return nil
	}
	require.NoError(t, tl.drain(collect))

	require.NoError(t, os.Truncate(path, int64(len(line1))))
	require.NoError(t, tl.drain(collect))
	assert.Equal(t, []int64{1}, lines, "cutting a torn tail does not replay earlier entries")

	appendTo(t, path, line2)
	require.NoError(t, tl.drain(collect))
	assert.Equal(t, []int64{1, 2}, lines)
}

func TestTailer_ReopenAfterReplace(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "app.journal", line1)
	tl := &tailer{path: path}
	require.NoError(t, tl.open())
	defer tl.close()
	require.NoError(t, tl.drain(func(int64, journal.Entry) error { return nil }))

	replacement := writeFile(t, dir, "next.journal", line2+line3)
	require.NoError(t, os.Rename(replacement, path))
	require.NoError(t, tl.reopen())

	var got []journal.Entry
	require.NoError(t, tl.drain(func(_ int64, e journal.Entry) error {
		got = append(got, e)
		return nil
	}))
	require.Len(t, got, 2)
	assert.Equal(t, uint64(2), got[0].TimestampUS)
}
