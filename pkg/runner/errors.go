package runner

import (
	"errors"
	"fmt"

	"github.com/vulnscan/vulnscan/pkg/modules"
)

// Sentinel errors for runner failure modes.
// Callers should use errors.Is() to check for these.
var (
	// ErrInvalidTarget indicates the target is not an absolute http(s)
	// URL. No request has been sent when it is returned.
	ErrInvalidTarget = errors.New("runner: invalid target")

	// ErrNoModules indicates the scan selected nothing to run.
	ErrNoModules = errors.New("runner: no modules selected")

	// ErrModulePanic marks a module that panicked; the panic value is in
	// the wrapping message.
	ErrModulePanic = errors.New("runner: module panicked")
)

// ModuleError records a module that stopped early. Findings it produced
// before failing are still part of the report.
type ModuleError struct {
	Module modules.ID
	Err    error
}

func (e *ModuleError) Error() string {
	return fmt.Sprintf("module %s: %v", e.Module, e.Err)
}

func (e *ModuleError) Unwrap() error {
	return e.Err
}
