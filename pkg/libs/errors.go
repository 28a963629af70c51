package libs

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

var ErrNoSession = errors.New("no active session")

// ValidationError carries per-field messages. Nothing was changed.
type ValidationError struct {
	Fields map[string]string
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: message}}
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for field, msg := range e.Fields {
		parts = append(parts, field+": "+msg)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

type RateLimitedError struct {
	Field      string
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return FormatRetryAfter(e.RetryAfter)
}

// FormatRetryAfter renders the wait in whole minutes, rounded up.
func FormatRetryAfter(d time.Duration) string {
	n := int(math.Ceil(d.Minutes()))
	if n < 1 {
		n = 1
	}
	unit := "minutes"
	if n == 1 {
		unit = "minute"
	}
	return fmt.Sprintf("Wait ~%d %s. Too many requests", n, unit)
}

type AuthenticationError struct {
	Field   string
	Message string
}

func (e *AuthenticationError) Error() string {
	return e.Message
}

type ConflictError struct {
	Field   string
	Message string
}

func (e *ConflictError) Error() string {
	return e.Message
}

// StateTransitionError means a unit of work that moves a session between
// states failed. It is not recoverable by the caller.
type StateTransitionError struct {
	Op  string
	Err error
}

func (e *StateTransitionError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *StateTransitionError) Unwrap() error {
	return e.Err
}

// FieldMessage extracts the field and message a form should show for err.
// ok is false for errors that are not meant for the user.
func FieldMessage(err error) (field, message string, ok bool) {
	var (
		validation *ValidationError
		limited    *RateLimitedError
		authErr    *AuthenticationError
		conflict   *ConflictError
	)
	switch {
	case errors.As(err, &validation):
		for f, m := range validation.Fields {
			return f, m, true
		}
		return "", "Invalid input", true
	case errors.As(err, &limited):
		return limited.Field, limited.Error(), true
	case errors.As(err, &authErr):
		return authErr.Field, authErr.Message, true
	case errors.As(err, &conflict):
		return conflict.Field, conflict.Message, true
	}
	return "", "", false
}
