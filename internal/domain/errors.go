package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned, wrapped, when an identifier does not reference a
// present record.
var ErrNotFound = errors.New("todo not found")

// FieldError describes one rejected input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError reports input the caller must fix before retrying.
type ValidationError struct {
	Message string
	Fields  []FieldError
}

// NewValidationError builds a ValidationError without field details.
func NewValidationError(format string, args ...any) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return e.Message
	}
	msgs := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		msgs = append(msgs, f.Message)
	}
	return e.Message + ": " + strings.Join(msgs, "; ")
}

// InternalError wraps a datastore failure. Its message names only the
// operation; the cause is reachable through Unwrap for logging.
type InternalError struct {
	Op  string
	Err error
}

func (e *InternalError) Error() string {
	return "failed to " + e.Op
}

func (e *InternalError) Unwrap() error {
	return e.Err
}

// NotFound wraps ErrNotFound with the identifier that was looked up.
func NotFound(id uint64) error {
	return fmt.Errorf("todo with ID %d: %w", id, ErrNotFound)
}
