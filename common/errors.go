package common

import (
	"context"
	"errors"
)

// Common error constants
var (
	// ErrInvalidConfig is returned when an invalid configuration is provided
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrInFlight is returned when the same operation is already running for an entity
	ErrInFlight = errors.New("operation already in flight")

	// ErrBusy is returned when a coarse-grained action is already running
	ErrBusy = errors.New("action already running")

	// ErrNotFound is returned when an entity is not part of the current view
	ErrNotFound = errors.New("not found")

	// ErrClosed is returned by components after teardown
	ErrClosed = errors.New("component closed")
)

// Cancelled reports whether ctx ended, either by cancellation or deadline.
// A failed request on such a context is the caller going away, not a backend
// failure, and must not be reported or change any state.
func Cancelled(ctx context.Context) bool {
	return ctx.Err() != nil
}
