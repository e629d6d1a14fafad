package bac

import (
	"math"
	"time"
)

// firstExposure returns the earliest completion time of the set.
func firstExposure(drinks []Drink) (time.Time, bool) {
	if len(drinks) == 0 {
		return time.Time{}, false
	}
	first := drinks[0].CompletedAt
	for _, d := range drinks[1:] {
		if d.CompletedAt.Before(first) {
			first = d.CompletedAt
		}
	}
	return first, true
}

// lastAbsorbed returns the instant at which the last drink finishes absorbing.
func (e *Engine) lastAbsorbed(drinks []Drink) (time.Time, bool) {
	if len(drinks) == 0 {
		return time.Time{}, false
	}
	last := drinks[0].CompletedAt
	for _, d := range drinks[1:] {
		if d.CompletedAt.After(last) {
			last = d.CompletedAt
		}
	}
	return last.Add(e.cfg.AbsorptionWindow), true
}

// Eliminated returns the total BAC removed by t under zero-order kinetics.
// Elimination runs at a constant rate from the first drink's completion,
// independently of absorption phase.
func (e *Engine) Eliminated(drinks []Drink, t time.Time) float64 {
	first, ok := firstExposure(drinks)
	if !ok {
		return 0
	}
	hours := math.Max(0, t.Sub(first).Hours())
	return e.cfg.EliminationRatePerHour * hours
}
