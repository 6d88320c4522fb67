package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

const sampleJournal = "1\torders.push_back\t0\t{\"id\":\"o1\",\"qty\":2}\n" +
	"2\torders.push_back\t1\t{\"id\":\"o2\"}\n" +
	"3\torders.pop_back\t2\n" +
	"4\tusers.insert\t{\"id\":\"u2\",\"name\":\"Bob\"}\n" +
	"5\tusers.insert\t{\"name\":\"Ann\",\"id\":\"u1\"}\n" +
	"6\tusers.erase\t\"u9\"\n" +
	"7\tlinks.add\t{\"from\":\"a\",\"to\":\"b\",\"w\":1}\n" +
	"8\tlinks.add\t{\"from\":\"a\",\"to\":\"c\",\"w\":2}\n" +
	"9\tlinks.delete\t\"a\"\t\"b\"\n" +
	"10\tapp.transaction\t{\"meta\":{\"begin_us\":10,\"end_us\":12,\"fields\":{\"req\":\"r1\"}},\"mutations\":[{\"hook\":\"users.insert\",\"payload\":\"{\\\"id\\\":\\\"u3\\\"}\"}]}\n"

const sampleSchema = `journal: app.journal
backend: file
codec: json
transactions: app
containers:
  - {name: orders, kind: vector}
  - {name: users, kind: dictionary, key: id}
  - {name: links, kind: matrix, row: from, col: to}
`

// writeFile writes content to name under dir and returns the path.
func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// writeApp writes sampleSchema next to a journal holding content and
// returns both paths.
func writeApp(t *testing.T, content string) (schemaPath, journalPath string) {
	t.Helper()
	dir := t.TempDir()
	return writeFile(t, dir, "app.yaml", sampleSchema), writeFile(t, dir, "app.journal", content)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// execute runs the root command with args and returns its stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	err := executeContext(context.Background(), out, args...)
	return out.String(), err
}

func executeContext(ctx context.Context, out io.Writer, args ...string) error {
	cmd := NewRootCommandWithLogger(discardLogger())
	cmd.SetOut(out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	return cmd.ExecuteContext(ctx)
}

// decodeResponse decodes a CLIResponse whose data is a T.
func decodeResponse[T any](t *testing.T, out string) (CLIResponse, T) {
	t.Helper()
	var raw struct {
		CLIResponse
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &raw), out)
	var data T
	if len(raw.Data) > 0 {
		require.NoError(t, json.Unmarshal(raw.Data, &data))
	}
	return raw.CLIResponse, data
}

// syncBuffer is a bytes.Buffer safe for one writer and one reader.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
