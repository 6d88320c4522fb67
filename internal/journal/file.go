package journal

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
)

// FileBackend keeps the journal in one append-only text file.
//
// Replay reads the file line by line with no line length limit. A missing
// file is an empty journal. A last line without its newline is a write that
// never completed: it is dropped from replay and cut off before the file is
// reopened for appending, so the next entry starts on a fresh line.
type FileBackend struct {
	path   string
	sync   bool
	logger *slog.Logger

	f         *os.File
	tornAt    int64
	tornBytes int
}

// NewFileBackend creates a backend for path. When sync is true every Append
// is followed by an fsync.
func NewFileBackend(path string, sync bool) *FileBackend {
	return &FileBackend{
		path:   path,
		sync:   sync,
		logger: slog.Default(),
		tornAt: -1,
	}
}

// Path returns the journal file path.
func (b *FileBackend) Path() string {
	return b.path
}

// String implements Backend.
func (b *FileBackend) String() string {
	return "file:" + b.path
}

// TornTail reports the size of an incomplete last line seen by the most
// recent Replay. It is zero after OpenAppend has cut the line away.
func (b *FileBackend) TornTail() int {
	if b.tornAt < 0 {
		return 0
	}
	return b.tornBytes
}

func (b *FileBackend) setLogger(l *slog.Logger) {
	b.logger = l
}

// Replay implements Backend.
func (b *FileBackend) Replay(ctx context.Context, fn ReplayFunc) error {
	f, err := os.Open(b.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return WrapError(CodeIO, "open journal for replay", err)
	}
	defer func() {
		_ = f.Close()
	}()

	r := bufio.NewReaderSize(f, 64<<10)
	var offset, line int64
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		text, err := r.ReadString('\n')
		if errors.Is(err, io.EOF) {
			if text != "" {
				b.tornAt = offset
				b.tornBytes = len(text)
			}
			return nil
		}
		if err != nil {
			return WrapError(CodeIO, "read journal", err)
		}
		line++
		entry, err := ParseLine(text)
		if err != nil {
			var je *Error
			if errors.As(err, &je) {
				je.Line = line
			}
			return err
		}
		if err := fn(line, entry); err != nil {
			return err
		}
		offset += int64(len(text))
	}
}

// OpenAppend implements Backend.
func (b *FileBackend) OpenAppend(context.Context) error {
	if b.f != nil {
		return NewError(CodeAlreadyStarted, "journal file already open")
	}
	if err := os.MkdirAll(filepath.Dir(b.path), 0o755); err != nil {
		return WrapError(CodeIO, fmt.Sprintf("create directory for %s", b.path), err)
	}
	if b.tornAt >= 0 {
		b.logger.Warn("discarding incomplete journal line",
			"path", b.path, "offset", b.tornAt, "bytes", b.tornBytes)
		if err := os.Truncate(b.path, b.tornAt); err != nil {
			return WrapError(CodeIO, "truncate incomplete journal line", err)
		}
		b.tornAt = -1
	}
	f, err := os.OpenFile(b.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return WrapError(CodeIO, "open journal for append", err)
	}
	b.f = f
	return nil
}

// Append implements Backend. The line goes out in a single write.
func (b *FileBackend) Append(e Entry) error {
	if b.f == nil {
		return NewError(CodeNotRunning, "journal file not open for append")
	}
	if _, err := b.f.Write(AppendLine(nil, e)); err != nil {
		return WrapError(CodeIO, "write journal entry", err)
	}
	if b.sync {
		if err := b.f.Sync(); err != nil {
			return WrapError(CodeIO, "sync journal", err)
		}
	}
	return nil
}

// Close implements Backend.
func (b *FileBackend) Close() error {
	if b.f == nil {
		return nil
	}
	err := b.f.Close()
	b.f = nil
	if err != nil {
		return WrapError(CodeIO, "close journal", err)
	}
	return nil
}
