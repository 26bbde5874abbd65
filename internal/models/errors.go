package models

import (
	"errors"
	"fmt"
)

var (
	ErrInsufficientFunds = errors.New("insufficient balance")
	ErrUnknownCurrency   = errors.New("unknown currency")

	// ErrSeedNotFound means a seed the lifecycle guarantees should exist is
	// missing. It is an internal invariant violation, not a user error.
	ErrSeedNotFound    = errors.New("seed not found")
	ErrSeedNotRevealed = errors.New("server seed has not been revealed")

	// ErrPersistenceConflict marks a transaction aborted by contention. No
	// partial state survives it, so the whole operation may be retried.
	ErrPersistenceConflict = errors.New("persistence conflict")
	ErrTryAgain            = errors.New("please try again")
)

type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func NewValidationError(field, format string, args ...interface{}) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
