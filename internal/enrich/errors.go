package enrich

import (
	"errors"
	"fmt"
)

// ErrNotFound reports that the local entity does not exist. No remote call is
// made for it.
var ErrNotFound = errors.New("not found")

// ErrInvalid reports a local entity that cannot be stored as given.
var ErrInvalid = errors.New("invalid entity")

// DependencyError is a failed lookup of a mandatory dependency.
type DependencyError struct {
	Dependency string
	ID         int64
	Err        error
}

func (e *DependencyError) Error() string {
	return fmt.Sprintf("resolve %s %d: %v", e.Dependency, e.ID, e.Err)
}

func (e *DependencyError) Unwrap() error { return e.Err }

// NotFoundf wraps ErrNotFound with an entity specific message.
func NotFoundf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

// Invalidf wraps ErrInvalid with a validation message.
func Invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}
