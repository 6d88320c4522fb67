package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/sompylasar/Current/internal/codec"
	"github.com/sompylasar/Current/internal/journal"
	"github.com/sompylasar/Current/internal/store"
	"github.com/sompylasar/Current/internal/txn"
)

// InspectOptions holds flags for the inspect command.
type InspectOptions struct {
	*RootOptions
	Journal string
	Backend string // "file" | "sqlite"
}

// HookCount is the number of entries for one hook.
type HookCount struct {
	Hook  string `json:"hook"`
	Count int64  `json:"count"`
}

// InspectResult summarizes a journal without applying it.
type InspectResult struct {
	Journal    string      `json:"journal"`
	Backend    string      `json:"backend"`
	Entries    int64       `json:"entries"`
	FirstUS    uint64      `json:"first_us,omitempty"`
	LastUS     uint64      `json:"last_us,omitempty"`
	OutOfOrder int64       `json:"out_of_order"`
	TornBytes  int         `json:"torn_bytes,omitempty"`
	Containers []string    `json:"containers"`
	Hooks      []HookCount `json:"hooks"`

	Transactions       int64 `json:"transactions"`
	NestedMutations    int64 `json:"nested_mutations"`
	NestedTransactions int64 `json:"nested_transactions"`
}

// NewInspectCommand creates the inspect command.
func NewInspectCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InspectOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Summarize a journal without replaying it",
		Long: `Scan a journal and report entry counts per hook, the first and last
timestamps, and transaction statistics. Only the line framing and
transaction envelopes are decoded; no container state is built.

Exit codes:
  0 - Journal scanned cleanly
  1 - Journal is corrupt (the failing line is reported)
  2 - Command error (journal not found, etc.)

Examples:
  current inspect --journal ./data/app.journal
  current inspect --journal ./data/app.db --backend sqlite --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(cmd.Context(), opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Journal, "journal", "", "path to the journal (required)")
	_ = cmd.MarkFlagRequired("journal")
	cmd.Flags().StringVar(&opts.Backend, "backend", "file", "journal backend (file|sqlite)")

	return cmd
}

func runInspect(ctx context.Context, opts *InspectOptions, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := opts.formatter(cmd)

	if _, err := os.Stat(opts.Journal); err != nil {
		_ = formatter.Error(ErrCodeNotFound, fmt.Sprintf("journal not found: %s", opts.Journal), nil)
		return WrapExitError(ExitCommandError, "journal not found", err)
	}

	var backend journal.Backend
	switch opts.Backend {
	case "file":
		backend = journal.NewFileBackend(opts.Journal, false)
	case "sqlite":
		st, err := store.Open(opts.Journal)
		if err != nil {
			_ = formatter.Error(ErrCodeOpenFailed, err.Error(), nil)
			return WrapExitError(ExitCommandError, "failed to open database", err)
		}
		backend = st
	default:
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid backend %q: must be file or sqlite", opts.Backend))
	}
	defer backend.Close()

	formatter.VerboseLog("Scanning %s", backend)
	result, err := scanJournal(ctx, backend)
	result.Journal = opts.Journal
	result.Backend = opts.Backend
	if fb, ok := backend.(*journal.FileBackend); ok {
		result.TornBytes = fb.TornTail()
	}
	if err != nil {
		return inspectFailure(formatter, result, err)
	}

	if formatter.JSON() {
		return formatter.Success(result)
	}
	writeInspectText(formatter.Writer, result)
	return nil
}

// scanJournal reads every entry of backend and tallies it. On a corrupt
// line the partial tally is returned with the error.
func scanJournal(ctx context.Context, backend journal.Backend) (InspectResult, error) {
	var result InspectResult
	counts := make(map[string]int64)
	containers := make(map[string]struct{})
	dec := codec.JSON{}
	const suffix = ".transaction"

	err := backend.Replay(ctx, func(line int64, e journal.Entry) error {
		if result.Entries == 0 {
			result.FirstUS = e.TimestampUS
		} else if e.TimestampUS < result.LastUS {
			result.OutOfOrder++
		}
		result.Entries++
		result.LastUS = max(result.LastUS, e.TimestampUS)
		counts[e.Hook]++

		if !strings.HasSuffix(e.Hook, suffix) {
			containers[containerOf(e.Hook)] = struct{}{}
			return nil
		}
		var t txn.Transaction
		if err := dec.Unmarshal(e.Payload, &t); err != nil {
			return &journal.Error{Code: journal.CodeBadPayload, Message: "decode transaction", Hook: e.Hook, Line: line, Err: err}
		}
		result.Transactions++
		for _, m := range t.Mutations {
			result.NestedMutations++
			if strings.HasSuffix(m.Hook, suffix) {
				result.NestedTransactions++
				continue
			}
			containers[containerOf(m.Hook)] = struct{}{}
		}
		return nil
	})

	result.Containers = slices.Sorted(maps.Keys(containers))
	result.Hooks = make([]HookCount, 0, len(counts))
	for _, hook := range slices.Sorted(maps.Keys(counts)) {
		result.Hooks = append(result.Hooks, HookCount{Hook: hook, Count: counts[hook]})
	}
	return result, err
}

func containerOf(hook string) string {
	if i := strings.LastIndexByte(hook, '.'); i > 0 {
		return hook[:i]
	}
	return hook
}

func inspectFailure(formatter *OutputFormatter, result InspectResult, err error) error {
	var je *journal.Error
	if !errors.As(err, &je) {
		_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to scan journal", err)
	}
	if je.Code == journal.CodeIO {
		_ = formatter.Error(string(je.Code), je.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to read journal", err)
	}

	if formatter.JSON() {
		_ = formatter.Fail(string(je.Code), je.Error(), result)
	} else {
		writeInspectText(formatter.Writer, result)
		fmt.Fprintf(formatter.Writer, "\n✗ line %d: %s\n", je.Line, je.Error())
	}
	return WrapExitError(ExitFailure, fmt.Sprintf("journal corrupt at line %d", je.Line), err)
}

func writeInspectText(w io.Writer, r InspectResult) {
	fmt.Fprintf(w, "Journal: %s (%s)\n", r.Journal, r.Backend)
	fmt.Fprintf(w, "Entries: %d\n", r.Entries)
	if r.Entries > 0 {
		fmt.Fprintf(w, "First:   %s\n", formatMicros(r.FirstUS))
		fmt.Fprintf(w, "Last:    %s\n", formatMicros(r.LastUS))
	}
	if r.OutOfOrder > 0 {
		fmt.Fprintf(w, "Out of order timestamps: %d\n", r.OutOfOrder)
	}
	if r.TornBytes > 0 {
		fmt.Fprintf(w, "Incomplete last line: %d bytes (cut off when the journal is next opened)\n", r.TornBytes)
	}
	if len(r.Hooks) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Hooks:")
		for _, h := range r.Hooks {
			fmt.Fprintf(w, "  %-32s %d\n", h.Hook, h.Count)
		}
	}
	if r.Transactions > 0 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Transactions: %d (%d nested mutations)\n", r.Transactions, r.NestedMutations)
	}
	if r.NestedTransactions > 0 {
		fmt.Fprintf(w, "  Warning: %d nested transaction(s) will fail replay\n", r.NestedTransactions)
	}
}

func formatMicros(us uint64) string {
	return fmt.Sprintf("%d (%s)", us, time.UnixMicro(int64(us)).UTC().Format(time.RFC3339Nano))
}
