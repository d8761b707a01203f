package catalog

import (
	"errors"
	"fmt"
)

// ApologyText is the only thing a user sees when infrastructure fails.
const ApologyText = "Sorry, something went wrong. Please try again later."

var (
	// ErrNotFound is returned when a requested catalog row does not exist.
	ErrNotFound = errors.New("catalog: not found")
	// ErrKindMismatch is returned when a node belongs to another catalog tree.
	ErrKindMismatch = errors.New("catalog: kind mismatch")
)

// RepositoryError wraps storage failures with the failing operation name.
type RepositoryError struct {
	Op  string
	Err error
}

func (e *RepositoryError) Error() string {
	return fmt.Sprintf("repository %s: %v", e.Op, e.Err)
}

// Unwrap exposes the underlying cause to errors.Is/As.
func (e *RepositoryError) Unwrap() error { return e.Err }

// Code is picked up by the handler summary logs.
func (e *RepositoryError) Code() string { return "REPOSITORY_ERROR" }

// WrapRepo wraps err into a RepositoryError unless it is nil.
func WrapRepo(op string, err error) error {
	if err == nil {
		return nil
	}
	return &RepositoryError{Op: op, Err: err}
}
