package defaults

// Exit codes for the CLI.
const (
	ExitSuccess       = 0 // Scan completed
	ExitRuntimeError  = 1 // Scan or server failed at runtime
	ExitUserError     = 2 // Invalid arguments, configuration or target
	ExitInternalError = 4 // Unexpected internal error
)
