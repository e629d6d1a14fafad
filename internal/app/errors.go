package service

import (
	"errors"
	"time"
)

// Sentinel errors returned by the service. Store and engine sentinels are
// passed through wrapped.
var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNoSnapshot   = errors.New("no snapshot yet")
)

// Input bounds enforced before anything reaches the engine or the store.
const (
	MinWeightKg  = 1.0
	MaxWeightKg  = 1000.0
	MaxStandards = 20.0

	// MaxDrinkAge and MaxDrinkLead bound finished_at around now.
	MaxDrinkAge  = 7 * 24 * time.Hour
	MaxDrinkLead = 24 * time.Hour
)
