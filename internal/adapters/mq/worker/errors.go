package worker

import "errors"

// Sentinel errors for the scheduler lifecycle.
var (
	ErrAlreadyRunning = errors.New("scheduler already running")
	ErrNotRunning     = errors.New("scheduler not running")
)
