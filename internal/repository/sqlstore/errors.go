package sqlstore

import (
	"errors"
	"fmt"
)

var (
	// ErrFatal matches every *FatalError via errors.Is
	ErrFatal = errors.New("fatal database error")

	// ErrInvalid is returned when an entity is rejected before anything is
	// written. The connection stays open for these.
	ErrInvalid = errors.New("invalid entity")

	errNotStarted = errors.New("store is not initialized")
)

// FatalError is the single storage failure kind raised by the store: lost
// connectivity after the reconnect attempts, malformed persisted data or a
// failed statement. The connection has already been killed when it is
// returned, so the next call starts from a fresh connection.
type FatalError struct {
	Op    string // Repository operation that failed
	Cause error  // Underlying driver or decode error
}

// Error implements the error interface.
func (e *FatalError) Error() string {
	return fmt.Sprintf("fatal database error: %s: %v", e.Op, e.Cause)
}

// Unwrap returns the underlying cause for error chain traversal.
func (e *FatalError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is ErrFatal or another *FatalError.
func (e *FatalError) Is(target error) bool {
	if target == ErrFatal {
		return true
	}
	_, ok := target.(*FatalError)
	return ok
}

// IsFatal reports whether err is a fatal storage error
func IsFatal(err error) bool {
	return errors.Is(err, ErrFatal)
}

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}
