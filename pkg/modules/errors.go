package modules

import "errors"

var (
	// ErrUnknownModule is returned for a name outside the module set.
	ErrUnknownModule = errors.New("modules: unknown module")

	// ErrUnknownProfile is returned for a profile name with no module list.
	ErrUnknownProfile = errors.New("modules: unknown profile")

	// ErrDuplicate is returned when an ID is registered twice.
	ErrDuplicate = errors.New("modules: module already registered")
)
