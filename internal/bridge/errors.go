package bridge

import (
	"errors"
	"fmt"
)

// Sentinel errors for bridge operations.
var (
	// ErrClosed is returned for commands that were still queued or in flight
	// when the host loop stopped, and for every submission after that.
	ErrClosed = errors.New("bridge: closed")

	// ErrDuplicateOutcome is returned when an outcome is published twice
	// for the same request ID.
	ErrDuplicateOutcome = errors.New("bridge: outcome already published")

	// ErrUnexpectedResult is returned by the typed helpers when a task
	// produced a value of a different type than the caller asked for.
	ErrUnexpectedResult = errors.New("bridge: unexpected result type")
)

// PanicError is the failure recorded when a task or completion predicate
// panics on the main loop. Stack holds the goroutine trace at the point of
// the panic.
type PanicError struct {
	Command string
	Value   any
	Stack   []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("bridge: %s panicked: %v", e.Command, e.Value)
}

// Unwrap exposes the panic value when it was itself an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}
