package journal

import (
	"strconv"
	"strings"
)

// Entry is one journal line.
type Entry struct {
	TimestampUS uint64 `json:"timestamp_us" jsonschema:"description=Wall-clock microseconds since the Unix epoch"`
	Hook        string `json:"hook" jsonschema:"description=Hook name <container>.<operation>"`
	Payload     string `json:"payload" jsonschema:"description=Operation-specific payload which may contain TABs"`
}

// Mutation is a hook invocation that has not been stamped yet.
// It is the unit shared by direct persistence and transactions.
type Mutation struct {
	Hook    string `json:"hook" jsonschema:"description=Hook name <container>.<operation>"`
	Payload string `json:"payload" jsonschema:"description=Operation-specific payload"`
}

// Validate checks that the entry survives a FormatLine/ParseLine round trip.
func (e Entry) Validate() error {
	if e.Hook == "" {
		return NewError(CodeMalformedLine, "empty hook name")
	}
	if strings.ContainsAny(e.Hook, "\t\r\n") {
		return &Error{Code: CodeMalformedLine, Message: "hook name contains a separator", Hook: e.Hook}
	}
	if strings.ContainsAny(e.Payload, "\r\n") {
		return &Error{Code: CodeMalformedLine, Message: "payload contains a line break", Hook: e.Hook}
	}
	return nil
}

// AppendLine appends the framed line for e, including the trailing newline.
// It does not validate e.
func AppendLine(dst []byte, e Entry) []byte {
	dst = strconv.AppendUint(dst, e.TimestampUS, 10)
	dst = append(dst, '\t')
	dst = append(dst, e.Hook...)
	dst = append(dst, '\t')
	dst = append(dst, e.Payload...)
	return append(dst, '\n')
}

// FormatLine returns the framed line for e.
func FormatLine(e Entry) (string, error) {
	if err := e.Validate(); err != nil {
		return "", err
	}
	return string(AppendLine(nil, e)), nil
}

// ParseLine splits a journal line into its three fields. Only the first two
// TABs are separators; the payload keeps any further TABs. A trailing line
// break is ignored.
func ParseLine(line string) (Entry, error) {
	line = strings.TrimSuffix(line, "\n")
	line = strings.TrimSuffix(line, "\r")

	ts, rest, ok := strings.Cut(line, "\t")
	if !ok {
		return Entry{}, NewError(CodeMalformedLine, "missing TAB after timestamp")
	}
	hook, payload, ok := strings.Cut(rest, "\t")
	if !ok {
		return Entry{}, NewError(CodeMalformedLine, "missing TAB after hook name")
	}
	if hook == "" {
		return Entry{}, NewError(CodeMalformedLine, "empty hook name")
	}
	us, err := strconv.ParseUint(ts, 10, 64)
	if err != nil {
		return Entry{}, WrapError(CodeMalformedLine, "invalid timestamp", err)
	}
	return Entry{TimestampUS: us, Hook: hook, Payload: payload}, nil
}

// HookName joins a container name and an operation.
func HookName(container, op string) string {
	return container + "." + op
}
