package bac

import (
	"math"
	"time"
)

// roundScale suppresses float noise before values are compared.
const roundScale = 1e4

func round4(x float64) float64 {
	return math.Round(x*roundScale) / roundScale
}

// TotalAbsorbed sums every drink's absorbed contribution at t.
func (e *Engine) TotalAbsorbed(drinks []Drink, p Profile, t time.Time) float64 {
	total := 0.0
	for _, d := range drinks {
		total += e.Absorbed(d, p, t)
	}
	return total
}

// BACAt returns the blood alcohol concentration at t, rounded to four decimal
// places and never negative. t may be queried in any order.
func (e *Engine) BACAt(drinks []Drink, p Profile, t time.Time) float64 {
	if len(drinks) == 0 {
		return 0
	}
	v := e.TotalAbsorbed(drinks, p, t) - e.Eliminated(drinks, t)
	return round4(math.Max(0, v))
}

// IsRising reports whether at least one drink is still absorbing at t.
func (e *Engine) IsRising(drinks []Drink, t time.Time) bool {
	for _, d := range drinks {
		if e.absorbing(d, t) {
			return true
		}
	}
	return false
}
