package cli

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/invopop/jsonschema"
	"github.com/spf13/cobra"

	"github.com/sompylasar/Current/internal/journal"
	"github.com/sompylasar/Current/internal/txn"
)

// envelopeTypes lists the documents the envelope command can describe.
var envelopeTypes = []string{"entry", "transaction"}

// NewEnvelopeCommand creates the envelope command.
func NewEnvelopeCommand(rootOpts *RootOptions) *cobra.Command {
	var only string

	cmd := &cobra.Command{
		Use:   "envelope",
		Short: "Print the JSON Schema of journal entries and transactions",
		Long: `Print the JSON Schema of a journal entry and of the payload of a
"<name>.transaction" entry, for tools that consume journals.

Examples:
  current envelope
  current envelope --type transaction`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			schemas, err := envelopeSchemas(only)
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid type", err)
			}
			f := rootOpts.formatter(cmd)
			if f.JSON() {
				return f.Success(schemas)
			}
			out, err := json.MarshalIndent(schemas, "", "  ")
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(f.Writer, string(out))
			return err
		},
	}

	cmd.Flags().StringVar(&only, "type", "", "only print one schema (entry|transaction)")

	return cmd
}

// envelopeSchemas reflects the requested envelope types, all of them when
// only is empty.
func envelopeSchemas(only string) (map[string]*jsonschema.Schema, error) {
	if only != "" && !slices.Contains(envelopeTypes, only) {
		return nil, fmt.Errorf("unknown type %q: must be one of %v", only, envelopeTypes)
	}
	r := jsonschema.Reflector{DoNotReference: true}
	out := make(map[string]*jsonschema.Schema)
	if only == "" || only == "entry" {
		out["entry"] = r.Reflect(&journal.Entry{})
	}
	if only == "" || only == "transaction" {
		out["transaction"] = r.Reflect(&txn.Transaction{})
	}
	return out, nil
}
