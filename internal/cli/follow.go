package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/sompylasar/Current/internal/journal"
)

// FollowOptions holds flags for the follow command.
type FollowOptions struct {
	*RootOptions
	Journal string
	Tail    bool // skip entries already in the journal
	Max     int  // stop after this many entries; 0 means until interrupted
}

// FollowedEntry is one entry printed by follow in JSON format.
type FollowedEntry struct {
	Line int64 `json:"line"`
	journal.Entry
}

var errFollowLimit = errors.New("entry limit reached")

// NewFollowCommand creates the follow command.
func NewFollowCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &FollowOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "follow",
		Short: "Print journal entries as they are appended",
		Long: `Print the entries of a file journal, then keep printing new entries as
they are appended. Text output is the raw journal line; JSON output is one
object per line.

An incomplete last line is held back until its newline arrives. When the
journal is truncated or replaced, following restarts from its first line.

Examples:
  current follow --journal ./data/app.journal
  current follow --journal ./data/app.journal --tail --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFollow(cmd.Context(), opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Journal, "journal", "", "path to the journal file (required)")
	_ = cmd.MarkFlagRequired("journal")
	cmd.Flags().BoolVar(&opts.Tail, "tail", false, "only print entries appended from now on")
	cmd.Flags().IntVar(&opts.Max, "max", 0, "stop after this many entries")

	return cmd
}

func runFollow(ctx context.Context, opts *FollowOptions, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := opts.formatter(cmd)
	logger := opts.logger().With("follow_id", uuid.NewString(), "path", opts.Journal)

	path, err := filepath.Abs(opts.Journal)
	if err != nil {
		return WrapExitError(ExitCommandError, "resolve journal path", err)
	}
	t := &tailer{path: path}
	if err := t.open(); err != nil {
		_ = formatter.Error(ErrCodeNotFound, fmt.Sprintf("journal not found: %s", opts.Journal), nil)
		return WrapExitError(ExitCommandError, "journal not found", err)
	}
	defer t.close()

	// The watch goes on the directory so a replaced journal is noticed.
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return WrapExitError(ExitCommandError, "create watcher", err)
	}
	defer func() { _ = w.Close() }()
	if err := w.Add(filepath.Dir(path)); err != nil {
		return WrapExitError(ExitCommandError, "watch journal directory", err)
	}

	printed := 0
	emit := func(line int64, e journal.Entry) error {
		if err := writeFollowed(formatter, line, e); err != nil {
			return err
		}
		printed++
		if opts.Max > 0 && printed >= opts.Max {
			return errFollowLimit
		}
		return nil
	}

	if opts.Tail {
		err = t.drain(func(int64, journal.Entry) error { return nil })
	} else {
		err = t.drain(emit)
	}
	if done, err := followDone(err); done {
		return err
	}
	logger.Debug("following journal", "line", t.line)

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != path {
				continue
			}
			switch {
			case event.Has(fsnotify.Create):
				logger.Info("journal replaced, restarting from the first line")
				if err := t.reopen(); err != nil {
					return WrapExitError(ExitCommandError, "reopen journal", err)
				}
			case event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename):
				logger.Info("journal removed, waiting for it to reappear")
				continue
			case !event.Has(fsnotify.Write):
				continue
			}
			if done, err := followDone(t.drain(emit)); done {
				return err
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Warn("error watching journal", "err", err)
		}
	}
}

// followDone maps a drain result to whether following stops, and with what.
func followDone(err error) (bool, error) {
	switch {
	case err == nil:
		return false, nil
	case errors.Is(err, errFollowLimit):
		return true, nil
	}
	var je *journal.Error
	if errors.As(err, &je) && je.Code != journal.CodeIO {
		return true, WrapExitError(ExitFailure, fmt.Sprintf("journal corrupt at line %d", je.Line), err)
	}
	return true, WrapExitError(ExitCommandError, "read journal", err)
}

func writeFollowed(formatter *OutputFormatter, line int64, e journal.Entry) error {
	if formatter.JSON() {
		return json.NewEncoder(formatter.Writer).Encode(FollowedEntry{Line: line, Entry: e})
	}
	_, err := formatter.Writer.Write(journal.AppendLine(nil, e))
	return err
}

// tailer reads complete lines from a growing file.
type tailer struct {
	path    string
	f       *os.File
	r       *bufio.Reader
	pending string
	offset  int64
	line    int64
}

func (t *tailer) open() error {
	f, err := os.Open(t.path)
	if err != nil {
		return err
	}
	t.f = f
	t.r = bufio.NewReader(f)
	t.pending = ""
	t.offset = 0
	t.line = 0
	return nil
}

func (t *tailer) reopen() error {
	t.close()
	return t.open()
}

func (t *tailer) close() {
	if t.f != nil {
		_ = t.f.Close()
		t.f = nil
	}
}

func (t *tailer) seek(offset int64) error {
	if _, err := t.f.Seek(offset, io.SeekStart); err != nil {
		return err
	}
	t.r.Reset(t.f)
	t.pending, t.offset = "", offset
	return nil
}

// drain passes every complete line after the current position to fn.
func (t *tailer) drain(fn journal.ReplayFunc) error {
	if t.f == nil {
		if err := t.open(); errors.Is(err, fs.ErrNotExist) {
			return nil
		} else if err != nil {
			return journal.WrapError(journal.CodeIO, "open journal", err)
		}
	}
	// A held back partial line may have been cut off and rewritten since,
	// so it is always read again from the file.
	committed := t.offset - int64(len(t.pending))
	if fi, err := t.f.Stat(); err == nil && fi.Size() < committed {
		if err := t.seek(0); err != nil {
			return journal.WrapError(journal.CodeIO, "rewind truncated journal", err)
		}
		t.line = 0
	} else if t.pending != "" {
		if err := t.seek(committed); err != nil {
			return journal.WrapError(journal.CodeIO, "reread partial line", err)
		}
	}

	for {
		text, err := t.r.ReadString('\n')
		t.offset += int64(len(text))
		if errors.Is(err, io.EOF) {
			t.pending += text
			return nil
		}
		if err != nil {
			return journal.WrapError(journal.CodeIO, "read journal", err)
		}
		text = t.pending + text
		t.pending = ""
		t.line++
		e, err := journal.ParseLine(text)
		if err != nil {
			var je *journal.Error
			if errors.As(err, &je) {
				je.Line = t.line
			}
			return err
		}
		if err := fn(t.line, e); err != nil {
			return err
		}
	}
}
