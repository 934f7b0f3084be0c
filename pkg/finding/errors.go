package finding

import "errors"

// Sentinel errors for finding handling.
// Callers should use errors.Is() to check for these.
var (
	// ErrUnknownSeverity indicates a severity string outside the
	// info..critical scale.
	ErrUnknownSeverity = errors.New("finding: unknown severity")
)
