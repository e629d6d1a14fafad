package repository

import "errors"

// Sentinel kinds for store errors.
var (
	ErrNotFound      = errors.New("not found")
	ErrNoOpenSession = errors.New("no open session")
	ErrConflict      = errors.New("conflict")
)
