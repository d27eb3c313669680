package types

import (
	"errors"
	"fmt"
)

// Sentinel errors classifying every failure the core can surface. Callers
// match them with errors.Is after any amount of %w wrapping.
var (
	// ErrConfig marks invalid or missing configuration. Fatal at startup.
	ErrConfig = errors.New("invalid configuration")

	// ErrTransport marks a network failure talking to the identity
	// provider or a storage backend.
	ErrTransport = errors.New("transport error")

	// ErrPermissionDenied marks a 403 from the identity provider.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrNotFound marks a missing snapshot or storage object.
	ErrNotFound = errors.New("not found")

	// ErrCyclicDependency marks a cycle in the kind dependency graph.
	ErrCyclicDependency = errors.New("cyclic dependency")

	// ErrInvalidEntity marks a decode or validation failure on a single
	// entity. Isolated to that entity.
	ErrInvalidEntity = errors.New("invalid entity")

	// ErrAlreadyExists marks a 409 on import. Soft; reported, never fatal.
	ErrAlreadyExists = errors.New("already exists")

	// ErrDegraded marks an operation that completed with per-kind
	// failures.
	ErrDegraded = errors.New("degraded")
)

// StatusError carries the HTTP status of a failed identity-provider call so
// the importer can distinguish 409, other 4xx and 5xx.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("unexpected status %d", e.Status)
	}
	return fmt.Sprintf("unexpected status %d: %s", e.Status, e.Body)
}

// StatusOf extracts the HTTP status from an error chain, or 0.
func StatusOf(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Status
	}
	return 0
}
