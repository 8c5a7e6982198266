package database

import (
	"errors"
	"fmt"
)

var (
	// ErrDimensionMismatch is returned when a vector length differs from the database dimension
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrEmptyLabel is returned when a record has no label
	ErrEmptyLabel = errors.New("empty label")

	// ErrInvalidLabel is returned when a store cannot represent a label
	ErrInvalidLabel = errors.New("invalid label")

	// ErrInvalidValue is returned when a vector holds NaN or an infinity
	ErrInvalidValue = errors.New("non-finite embedding value")
)

// validationError reports whether a store rejected a record before writing it.
func validationError(err error) bool {
	return errors.Is(err, ErrInvalidLabel) || errors.Is(err, ErrInvalidValue) || errors.Is(err, ErrDimensionMismatch)
}

// ParseError describes a stored record that could not be decoded.
type ParseError struct {
	Line   int // 1-based line or record number
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("line %d: %s: %v", e.Line, e.Reason, e.Err)
	}
	return fmt.Sprintf("line %d: %s", e.Line, e.Reason)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// LoadError is returned when the template store cannot be read at startup.
type LoadError struct {
	Source string
	Err    error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("failed to load templates from %s: %v", e.Source, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// PersistError is returned when an appended record could not be written.
// The in-memory database is unchanged when it is returned.
type PersistError struct {
	Label string
	Err   error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("failed to persist template for %q: %v", e.Label, e.Err)
}

func (e *PersistError) Unwrap() error {
	return e.Err
}
