package scanstore

import "errors"

// Sentinel errors for scan store failure modes.
// Callers should use errors.Is() to check for these.
var (
	// ErrNotFound indicates no scan has the requested id.
	ErrNotFound = errors.New("scanstore: scan not found")

	// ErrInvalidRequest indicates a submission that cannot start, such
	// as one without a URL.
	ErrInvalidRequest = errors.New("scanstore: invalid scan request")

	// ErrFinished indicates the scan already reached a terminal state.
	ErrFinished = errors.New("scanstore: scan already finished")

	// ErrStopped indicates the manager no longer accepts scans.
	ErrStopped = errors.New("scanstore: manager stopped")
)
