package journal

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCode categorizes journal errors.
type ErrorCode string

const (
	// CodeDuplicateHook indicates a hook name was registered twice.
	CodeDuplicateHook ErrorCode = "DUPLICATE_HOOK"

	// CodeUnknownHook indicates an entry references a hook nobody registered.
	CodeUnknownHook ErrorCode = "UNKNOWN_HOOK"

	// CodeMalformedLine indicates a line that does not follow the framing.
	CodeMalformedLine ErrorCode = "MALFORMED_LINE"

	// CodeSizeMismatch indicates a vector entry whose recorded size differs
	// from the container's size at replay time.
	CodeSizeMismatch ErrorCode = "SIZE_MISMATCH"

	// CodeBadPayload indicates a payload its hook could not decode or apply.
	CodeBadPayload ErrorCode = "BAD_PAYLOAD"

	// CodeAlreadyStarted indicates Start (or registration) after startup.
	CodeAlreadyStarted ErrorCode = "ALREADY_STARTED"

	// CodeNotRunning indicates a mutation against an engine that is not Running.
	CodeNotRunning ErrorCode = "NOT_RUNNING"

	// CodeIO indicates the backend failed to read or write.
	CodeIO ErrorCode = "IO"
)

// Error is a journal failure. Every Error is fatal for the engine that
// produced it: the process is expected to stop rather than continue with
// state that may have diverged from the log.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Hook is the hook name involved, if any.
	Hook string

	// Line is the 1-based position of the entry in the backend, or 0.
	Line int64

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Code))
	b.WriteString(": ")
	b.WriteString(e.Message)
	var ctx []string
	if e.Line > 0 {
		ctx = append(ctx, fmt.Sprintf("line=%d", e.Line))
	}
	if e.Hook != "" {
		ctx = append(ctx, "hook="+e.Hook)
	}
	if len(ctx) > 0 {
		b.WriteString(" (")
		b.WriteString(strings.Join(ctx, ", "))
		b.WriteString(")")
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates an Error with a formatted message.
func NewError(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WrapError creates an Error around an underlying cause.
func WrapError(code ErrorCode, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// CodeOf returns the code of the first Error in err's chain, or "".
func CodeOf(err error) ErrorCode {
	var je *Error
	if errors.As(err, &je) {
		return je.Code
	}
	return ""
}

// IsFatal reports whether err is a journal Error.
func IsFatal(err error) bool {
	var je *Error
	return errors.As(err, &je)
}

// IsCorruption reports whether err means the log content cannot be trusted:
// unknown hooks, malformed lines, size mismatches and undecodable payloads.
func IsCorruption(err error) bool {
	switch CodeOf(err) {
	case CodeUnknownHook, CodeMalformedLine, CodeSizeMismatch, CodeBadPayload:
		return true
	default:
		return false
	}
}

// annotate fills the position of a hook failure. Errors that are not journal
// Errors are reported as bad payloads.
func annotate(err error, hook string, line int64) error {
	var je *Error
	if !errors.As(err, &je) {
		return &Error{Code: CodeBadPayload, Message: "hook failed", Hook: hook, Line: line, Err: err}
	}
	if je.Hook == "" {
		je.Hook = hook
	}
	if je.Line == 0 {
		je.Line = line
	}
	return err
}
