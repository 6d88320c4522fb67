package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/sompylasar/Current/internal/journal"
	"github.com/sompylasar/Current/internal/schema"
	"github.com/sompylasar/Current/internal/txn"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Schema  string
	Journal string // optional override of the schema's journal path
}

// ReplayContainerResult is the replayed state of one container.
type ReplayContainerResult struct {
	Name          string      `json:"name"`
	Kind          schema.Kind `json:"kind"`
	Size          int         `json:"size"`
	Deterministic bool        `json:"deterministic"`
}

// ReplayResult holds the overall replay result.
type ReplayResult struct {
	Journal          string                  `json:"journal"`
	Backend          string                  `json:"backend"`
	Entries          int64                   `json:"entries"`
	Containers       []ReplayContainerResult `json:"containers"`
	Differences      []string                `json:"differences,omitempty"`
	LastTransaction  *txn.Meta               `json:"last_transaction,omitempty"`
	AllDeterministic bool                    `json:"all_deterministic"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay a journal and verify determinism",
		Long: `Replay the journal described by a schema file into fresh containers,
twice, and verify that both replays produce identical state.

A file journal whose last line is incomplete is cut back to the last full
line, exactly as opening it from an application would.

Exit codes:
  0 - Both replays agree
  1 - Determinism verification failed (differences detected)
  2 - Command error (schema not found, journal corrupt, etc.)

Examples:
  current replay --schema ./app.yaml
  current replay --schema ./app.cue --journal ./backup/app.journal
  current replay --schema ./app.yaml --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(cmd.Context(), opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Schema, "schema", "", "path to the schema file (required)")
	_ = cmd.MarkFlagRequired("schema")
	cmd.Flags().StringVar(&opts.Journal, "journal", "", "journal path, overriding the schema")

	return cmd
}

func runReplay(ctx context.Context, opts *ReplayOptions, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := opts.formatter(cmd)

	sch, err := schema.Load(opts.Schema)
	if err != nil {
		_ = formatter.Error(ErrCodeOpenFailed, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to load schema", err)
	}
	if opts.Journal != "" {
		sch.SetJournal(opts.Journal)
	}

	first, err := replayOnce(ctx, sch, opts, formatter)
	if err != nil {
		return replayFailure(formatter, "first replay failed", err)
	}
	second, err := replayOnce(ctx, sch, opts, formatter)
	if err != nil {
		return replayFailure(formatter, "second replay failed", err)
	}

	result := ReplayResult{
		Journal:          sch.JournalPath(),
		Backend:          sch.Backend,
		Entries:          first.Entries,
		Differences:      schema.Diff(first, second),
		LastTransaction:  first.LastTransaction,
		AllDeterministic: true,
	}
	if len(result.Differences) > 0 || first.Entries != second.Entries {
		result.AllDeterministic = false
	}
	for _, c := range first.Containers {
		ok := containerAgrees(c, second)
		result.Containers = append(result.Containers, ReplayContainerResult{
			Name:          c.Name,
			Kind:          c.Kind,
			Size:          c.Size,
			Deterministic: ok,
		})
	}

	if formatter.JSON() {
		if !result.AllDeterministic {
			_ = formatter.Fail(ErrCodeDeterminism, "determinism verification failed", result)
			return NewExitError(ExitFailure, "determinism verification failed")
		}
		return formatter.Success(result)
	}
	return outputReplayText(formatter.Writer, result, opts.Verbose)
}

// replayOnce opens a fresh instance, snapshots it and closes it again.
func replayOnce(ctx context.Context, sch *schema.Schema, opts *ReplayOptions, formatter *OutputFormatter) (schema.Snapshot, error) {
	start := time.Now()
	in, err := sch.Open(ctx, opts.logger())
	if err != nil {
		return schema.Snapshot{}, err
	}
	defer in.Close()

	snap, err := in.Snapshot()
	if err != nil {
		return schema.Snapshot{}, err
	}
	formatter.VerboseLog("Replayed %d entries from %s in %s", snap.Entries, in.Engine.Backend(), time.Since(start))
	return snap, nil
}

func containerAgrees(c schema.ContainerSnapshot, other schema.Snapshot) bool {
	for _, o := range other.Containers {
		if o.Name == c.Name {
			return len(schema.Diff(
				schema.Snapshot{Containers: []schema.ContainerSnapshot{c}},
				schema.Snapshot{Containers: []schema.ContainerSnapshot{o}},
			)) == 0
		}
	}
	return false
}

func replayFailure(formatter *OutputFormatter, message string, err error) error {
	code := ErrCodeReplay
	var details any
	var je *journal.Error
	if errors.As(err, &je) {
		code = string(je.Code)
		if je.Line > 0 {
			details = map[string]any{"line": je.Line, "hook": je.Hook}
		}
	}
	_ = formatter.Error(code, fmt.Sprintf("%s: %v", message, err), details)
	return WrapExitError(ExitCommandError, message, err)
}

// outputReplayText outputs the replay result as text.
func outputReplayText(w io.Writer, result ReplayResult, verbose bool) error {
	fmt.Fprintf(w, "Replay Summary: %d entries from %s (%s)\n", result.Entries, result.Journal, result.Backend)
	fmt.Fprintln(w)

	for _, c := range result.Containers {
		status := "✓"
		if !c.Deterministic {
			status = "✗"
		}
		fmt.Fprintf(w, "%s %s %s: %d\n", status, c.Kind, c.Name, c.Size)
	}
	if verbose {
		for _, d := range result.Differences {
			fmt.Fprintf(w, "  %s\n", d)
		}
	}
	fmt.Fprintln(w)

	if result.AllDeterministic {
		fmt.Fprintln(w, "✓ Replay verified deterministic")
		return nil
	}

	fmt.Fprintln(w, "✗ Determinism verification failed")
	return NewExitError(ExitFailure, "determinism verification failed")
}
