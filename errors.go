package roster

import (
	"errors"
	"fmt"
)

// Common errors returned by the Roster client.
var (
	// ErrNotFound is returned when a record is not found.
	ErrNotFound = errors.New("record not found")

	// ErrInvalidEntityType is returned when an unknown entity type is provided.
	ErrInvalidEntityType = errors.New("invalid entity type")

	// ErrEmptyName is returned when a project or skill name is empty.
	ErrEmptyName = errors.New("name cannot be empty")

	// ErrStoreClosed is returned when operating on a closed store.
	ErrStoreClosed = errors.New("store is closed")

	// ErrOffline is returned when a network operation is attempted in
	// offline-only mode (no Atlas URL configured).
	ErrOffline = errors.New("operation unavailable in offline mode")

	// ErrNoSnapshot is returned when a fallback read finds no cached snapshot.
	ErrNoSnapshot = errors.New("no cached snapshot available")
)

// ValidationError is returned when configuration validation fails.
// Extractable via errors.As().
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

// SyncError is returned when a sync operation fails with details.
// Extractable via errors.As(). Supports Unwrap().
//
// StatusCode zero means the request never produced an HTTP response:
// the failure happened at the transport layer (connection refused,
// timeout, DNS). Anything else is an application-level rejection from
// a server that was actually reached.
type SyncError struct {
	Operation  string
	StatusCode int
	Err        error
}

func (e *SyncError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("sync: %s failed: %v", e.Operation, e.Err)
	}
	return fmt.Sprintf("sync: %s failed (status %d): %v", e.Operation, e.StatusCode, e.Err)
}

func (e *SyncError) Unwrap() error { return e.Err }

// Transient reports whether the failure is transport-level, meaning the
// request may succeed if simply retried and reads may fall back to a
// cached snapshot. Application-level errors are never transient.
func (e *SyncError) Transient() bool { return e.StatusCode == 0 }

// IsTransport reports whether err represents a transport-level failure
// rather than an application-level rejection.
func IsTransport(err error) bool {
	var se *SyncError
	if errors.As(err, &se) {
		return se.Transient()
	}
	return false
}
