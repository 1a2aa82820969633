package scan

import "errors"

var (
	// ErrSetup is returned when a context could not acquire the resources a
	// strategy needs.
	ErrSetup = errors.New("setup failed")

	// ErrTransport is returned when a worker's results could not be received
	// intact.
	ErrTransport = errors.New("result transfer failed")

	// ErrTimeout is returned when a worker did not finish within its budget.
	ErrTimeout = errors.New("scan timed out")

	ErrAlreadyActive  = errors.New("scan already active")
	ErrNotInitialized = errors.New("context not initialized")
	ErrReceiverBusy   = errors.New("signal receiver already claimed")
	ErrBusy           = errors.New("execute already in progress")
)
