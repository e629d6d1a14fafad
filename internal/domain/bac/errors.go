package bac

import "errors"

// Sentinel error kinds for this package. These allow errors.Is/As from callers.
var (
	ErrInvalidProfile = errors.New("invalid profile")
	ErrInvalidDrink   = errors.New("invalid drink")
)

// NotReached is returned by TimeToTarget when no crossing exists within the
// configured horizon.
const NotReached = -1.0
