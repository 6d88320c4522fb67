package container

import (
	"errors"

	"github.com/sompylasar/Current/internal/journal"
)

// ErrEmptyContainer is returned by PopBack on an empty Vector. The vector
// and its journal are left unchanged.
var ErrEmptyContainer = errors.New("container is empty")

func badPayload(format string, args ...any) error {
	return journal.NewError(journal.CodeBadPayload, format, args...)
}

func sizeMismatch(format string, args ...any) error {
	return journal.NewError(journal.CodeSizeMismatch, format, args...)
}
