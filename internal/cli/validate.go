package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"github.com/sompylasar/Current/internal/schema"
)

// ValidationError is one problem in a schema file.
type ValidationError struct {
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid      bool              `json:"valid"`
	Schema     string            `json:"schema"`
	Journal    string            `json:"journal,omitempty"`
	Containers int               `json:"containers"`
	Errors     []ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a schema file",
		Long: `Parse a YAML or CUE schema file and check it without opening the journal.

Every problem is reported, not only the first one.

Exit codes:
  0 - Schema is valid
  1 - Schema is invalid
  2 - Command error (schema file not found)`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, path, cmd)
		},
	}

	cmd.Flags().StringVar(&path, "schema", "", "path to the schema file (required)")
	_ = cmd.MarkFlagRequired("schema")

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		_ = formatter.Error(ErrCodeNotFound, fmt.Sprintf("schema file not found: %s", path), nil)
		return WrapExitError(ExitCommandError, "schema file not found", err)
	}

	result := ValidationResult{Schema: path}
	sch, err := schema.Parse(path)
	if err != nil {
		result.Errors = []ValidationError{{Message: err.Error(), Code: ErrCodeGeneric}}
		return outputValidationErrors(formatter, result)
	}
	formatter.VerboseLog("Parsed %s: %d container(s), backend %s, codec %s",
		path, len(sch.Containers), sch.Backend, sch.Codec)

	result.Containers = len(sch.Containers)
	for _, p := range sch.Check() {
		result.Errors = append(result.Errors, ValidationError{Field: p.Field, Message: p.Message, Code: ErrCodeInvalid})
	}
	if len(result.Errors) > 0 {
		return outputValidationErrors(formatter, result)
	}

	result.Valid = true
	if sch.Backend != schema.BackendMemory {
		result.Journal = sch.JournalPath()
	}
	if formatter.JSON() {
		return formatter.Success(result)
	}
	fmt.Fprintf(formatter.Writer, "✓ %s valid (%d container(s))\n", path, result.Containers)
	return nil
}

// outputValidationErrors outputs every problem in result.
func outputValidationErrors(formatter *OutputFormatter, result ValidationResult) error {
	exitErr := NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(result.Errors)))

	if formatter.JSON() {
		first := result.Errors[0]
		if err := formatter.Fail(first.Code, first.Message, result); err != nil {
			return err
		}
		return exitErr
	}

	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)
	for _, e := range result.Errors {
		if e.Field != "" {
			fmt.Fprintf(formatter.Writer, "  %s: %s: %s\n", e.Code, e.Field, e.Message)
			continue
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s\n", e.Code, e.Message)
	}
	return exitErr
}
