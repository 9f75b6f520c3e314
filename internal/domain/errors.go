package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound      = errors.New("session not found")
	ErrAlreadyJoined = errors.New("user already in session")
	ErrNotInSession  = errors.New("user not in session")
	ErrInvalidID     = errors.New("invalid identifier")
	ErrNoFields      = errors.New("at least one field must be updated")
)

// ValidationError reports a single malformed input field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}
