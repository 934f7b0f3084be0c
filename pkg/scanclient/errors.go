package scanclient

import (
	"context"
	"errors"
	"fmt"

	"github.com/vulnscan/vulnscan/pkg/budget"
)

var (
	// ErrInvalidTarget is returned for a base URL that is not absolute
	// http or https. It is raised before any network activity.
	ErrInvalidTarget = errors.New("scanclient: invalid target")

	// ErrNetwork marks a request that failed at the transport level. The
	// attempt still counted against the budget and was recorded as a
	// failed outcome.
	ErrNetwork = errors.New("scanclient: network error")
)

// RequestError describes a failed request. It matches ErrNetwork, the
// httpclient sentinel in Kind, and the underlying cause via errors.Is.
type RequestError struct {
	Method string
	URL    string
	Kind   error
	Err    error
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Method, e.URL, e.Err)
}

func (e *RequestError) Unwrap() []error {
	errs := []error{ErrNetwork}
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	return append(errs, e.Err)
}

// Fatal reports whether err must end the current check: the request budget
// is spent or the scan was cancelled. Any other request error degrades to
// an informational finding.
func Fatal(err error) bool {
	// A per-request timeout matches context.DeadlineExceeded too.
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		return false
	}
	return errors.Is(err, budget.ErrExhausted) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}
