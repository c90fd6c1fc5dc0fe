package types

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrNotFound is returned for lookups by an id the store has never seen.
	ErrNotFound = errors.New("bridge transaction not found")

	// ErrUnsupportedPair is returned when no registry entry exists for a
	// (source, destination) pair. The reverse pair's entry is never used.
	ErrUnsupportedPair = errors.New("unsupported network pair")

	// ErrAmountOutOfBounds is returned when the amount violates the pair's
	// min/max transfer bounds.
	ErrAmountOutOfBounds = errors.New("amount outside transfer bounds")

	// ErrInvalidTransition is returned when the current status does not
	// permit the requested transition. Nothing is mutated.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrConflict is returned when a concurrent mutation won the race on a
	// status check-and-set. Callers should re-fetch and decide, the core
	// never retries internally.
	ErrConflict = errors.New("concurrent status update conflict")
)

// AdapterError wraps a network adapter failure and carries the
// transient/permanent distinction callers need to decide on retries.
type AdapterError struct {
	Network   Network
	Op        string
	Transient bool
	Err       error
}

func (e *AdapterError) Error() string {
	kind := "permanent"
	if e.Transient {
		kind = "transient"
	}
	return fmt.Sprintf("%s adapter %s failed (%s): %v", e.Network, e.Op, kind, e.Err)
}

func (e *AdapterError) Unwrap() error { return e.Err }

// NewTransientAdapterError marks a failure as retryable (timeouts,
// unreachable RPC).
func NewTransientAdapterError(network Network, op string, err error) *AdapterError {
	return &AdapterError{Network: network, Op: op, Transient: true, Err: err}
}

// NewPermanentAdapterError marks a failure the network itself rejected.
func NewPermanentAdapterError(network Network, op string, err error) *AdapterError {
	return &AdapterError{Network: network, Op: op, Transient: false, Err: err}
}

// IsTransient reports whether err is an adapter failure worth retrying.
func IsTransient(err error) bool {
	var ae *AdapterError
	if errors.As(err, &ae) {
		return ae.Transient
	}
	return false
}
