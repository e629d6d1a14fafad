package simulate

import "errors"

// Sentinel errors returned by the simulator.
var (
	ErrInvalidLog = errors.New("invalid drink log")
	ErrRemote     = errors.New("remote evaluation failed")
	ErrMismatch   = errors.New("remote result differs")
)
