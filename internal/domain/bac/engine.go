package bac

import (
	"fmt"
	"math"
	"time"
)

// Engine evaluates BAC curves under an immutable Config.
type Engine struct {
	cfg Config
}

// NewEngine creates an engine with default constants overridden by opts.
func NewEngine(opts ...Option) *Engine {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Engine{cfg: cfg}
}

// Config returns a copy of the engine constants.
func (e *Engine) Config() Config {
	return e.cfg
}

// Validate checks the whole input set. Any invalid record rejects the call.
func Validate(drinks []Drink, p Profile) error {
	if math.IsNaN(p.WeightKg) || math.IsInf(p.WeightKg, 0) || p.WeightKg <= 0 {
		return fmt.Errorf("%w: weight must be positive, got %v", ErrInvalidProfile, p.WeightKg)
	}
	if p.Sex != SexMale && p.Sex != SexFemale {
		return fmt.Errorf("%w: unrecognised sex %q", ErrInvalidProfile, p.Sex)
	}
	for i, d := range drinks {
		if math.IsNaN(d.Standards) || math.IsInf(d.Standards, 0) || d.Standards <= 0 {
			return fmt.Errorf("%w: drink[%d] standards must be positive, got %v", ErrInvalidDrink, i, d.Standards)
		}
		if d.CompletedAt.IsZero() {
			return fmt.Errorf("%w: drink[%d] missing completion time", ErrInvalidDrink, i)
		}
	}
	return nil
}

// Evaluate computes the full result at now. An empty drink list yields a zero
// result; a horizon miss on either threshold is reported as the horizon itself.
func (e *Engine) Evaluate(drinks []Drink, p Profile, now time.Time) (Result, error) {
	if err := Validate(drinks, p); err != nil {
		return Result{}, err
	}
	if len(drinks) == 0 {
		return Result{Timeline: []Sample{}}, nil
	}

	peak := e.FindPeak(drinks, p, now)
	return Result{
		CurrentBAC:       e.BACAt(drinks, p, now),
		TimeToSoberHours: e.ceiling(e.TimeToTarget(drinks, p, now, 0)),
		TimeToLegalHours: e.ceiling(e.TimeToTarget(drinks, p, now, e.cfg.LegalLimit)),
		PeakBAC:          peak.BAC,
		TimeToPeakHours:  peak.HoursFromNow,
		IsRising:         e.IsRising(drinks, now),
		Timeline:         e.BuildTimeline(drinks, p, now),
	}, nil
}

// ceiling maps the NotReached sentinel onto the search horizon.
func (e *Engine) ceiling(hours float64) float64 {
	if hours == NotReached {
		return e.cfg.ThresholdHorizon.Hours()
	}
	return hours
}

// HorizonExceeded reports whether a result field was capped at the horizon.
func (e *Engine) HorizonExceeded(hours float64) bool {
	return hours >= e.cfg.ThresholdHorizon.Hours()
}
