package store

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds surfaced by the retrieval core.
var (
	// ErrMalformedInput is returned before any mutation when arguments are invalid.
	ErrMalformedInput = errors.New("malformed input")
	// ErrPersistence is returned when durable state could not be written or removed.
	// In-memory state keeps the mutation.
	ErrPersistence = errors.New("persistence failure")
	// ErrStoreClosed is returned when mutating a store whose tenant was deleted.
	ErrStoreClosed = errors.New("tenant store closed")
	// ErrSnapshotNotFound is returned by a Persister when a tenant has no snapshot.
	ErrSnapshotNotFound = errors.New("snapshot not found")
)

// ValidateTenantID checks that id is usable as a single path segment.
func ValidateTenantID(id string) error {
	switch {
	case strings.TrimSpace(id) == "":
		return fmt.Errorf("%w: tenant id is empty", ErrMalformedInput)
	case id == "." || id == "..":
		return fmt.Errorf("%w: tenant id %q is reserved", ErrMalformedInput, id)
	case strings.ContainsAny(id, `/\`+"\x00"):
		return fmt.Errorf("%w: tenant id %q contains a path separator", ErrMalformedInput, id)
	}
	return nil
}
