package bac

import (
	"math"
	"time"
)

// distributionRatio returns the Widmark r for the profile's sex.
func (e *Engine) distributionRatio(sex Sex) float64 {
	if sex == SexFemale {
		return e.cfg.FemaleDistributionRatio
	}
	return e.cfg.MaleDistributionRatio
}

// WidmarkPeak returns the theoretical peak BAC of a single drink, before any
// elimination.
func (e *Engine) WidmarkPeak(d Drink, p Profile) float64 {
	alcoholGrams := d.Standards * e.cfg.GramsPerStandard
	bodyWaterGrams := p.WeightKg * 1000 * e.distributionRatio(p.Sex)
	return alcoholGrams / bodyWaterGrams * 100
}

// Absorbed returns the drink's contribution to BAC at t, before elimination.
// The contribution rises along 1-e^(-k*progress) during the absorption window
// and stays at the Widmark peak afterwards.
func (e *Engine) Absorbed(d Drink, p Profile, t time.Time) float64 {
	elapsed := t.Sub(d.CompletedAt)
	switch {
	case elapsed < 0:
		return 0
	case elapsed <= e.cfg.AbsorptionWindow:
		progress := elapsed.Minutes() / e.cfg.AbsorptionWindow.Minutes()
		factor := 1 - math.Exp(-e.cfg.AbsorptionCurveSharpness*progress)
		return e.WidmarkPeak(d, p) * factor
	default:
		return e.WidmarkPeak(d, p)
	}
}

// absorbing reports whether the drink is inside its absorption window at t.
func (e *Engine) absorbing(d Drink, t time.Time) bool {
	elapsed := t.Sub(d.CompletedAt)
	return elapsed >= 0 && elapsed <= e.cfg.AbsorptionWindow
}
