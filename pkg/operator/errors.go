package operator

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrTransient marks failures worth retrying on the next tick: timeouts,
	// temporary unavailability, not-currently-primary responses
	ErrTransient = errors.New("transient operator failure")

	// ErrClusterNameTaken is terminal for a create attempt; the caller gives
	// up the record and a fresh one is created on the next balance pass
	ErrClusterNameTaken = errors.New("cluster name already taken")

	// ErrImageStoreNotReady means the cluster's artifact store is not
	// accepting uploads yet; the copy stage is retried as-is
	ErrImageStoreNotReady = fmt.Errorf("image store not ready: %w", ErrTransient)

	// ErrApplicationAlreadyRegistered is returned by RegisterApplication when
	// the type is already registered; callers treat it as success
	ErrApplicationAlreadyRegistered = errors.New("application type already registered")

	// ErrApplicationAlreadyExists is returned by CreateApplication when the
	// instance already exists; callers treat it as success
	ErrApplicationAlreadyExists = errors.New("application instance already exists")
)

// IsTransient reports whether err should be retried rather than escalated.
// Cooperative cancellation is never transient; it must stop the loop.
// Per-call deadline overruns count as transient timeouts.
func IsTransient(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	return errors.Is(err, ErrTransient) || errors.Is(err, context.DeadlineExceeded)
}
