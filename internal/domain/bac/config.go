// Package bac implements the blood alcohol concentration simulation engine:
// Widmark absorption, zero-order elimination, peak search, threshold solving
// and timeline discretization.
//
// Conventions:
//   - Every function takes the instant it reasons about as an argument; the
//     package never reads the wall clock.
//   - Model constants live in Config and are passed through the whole call graph.
//   - Engine values are immutable and safe for concurrent use.
package bac

import "time"

// Default engine constants.
const (
	defaultGramsPerStandard         = 10.0
	defaultAbsorptionWindow         = 30 * time.Minute
	defaultAbsorptionCurveSharpness = 3.0
	defaultEliminationRatePerHour   = 0.015
	defaultMaleDistributionRatio    = 0.68
	defaultFemaleDistributionRatio  = 0.55
	defaultLegalLimit               = 0.05
	defaultThresholdHorizon         = 48 * time.Hour
	defaultPeakHorizon              = 2 * time.Hour
	defaultPeakStep                 = 5 * time.Minute
	defaultTimelineAfterNow         = 8 * time.Hour

	// GramsPerStandardAU is the AU/UK standard drink (10g of ethanol).
	GramsPerStandardAU = 10.0
	// GramsPerStandardUS is the US standard drink (14g of ethanol).
	GramsPerStandardUS = 14.0
)

// Config holds every model constant used by the engine.
type Config struct {
	// GramsPerStandard is the mass of pure alcohol in one standard drink.
	GramsPerStandard float64
	// AbsorptionWindow is how long after completion a drink keeps absorbing.
	AbsorptionWindow time.Duration
	// AbsorptionCurveSharpness shapes the saturating exponential of absorption.
	AbsorptionCurveSharpness float64
	// EliminationRatePerHour is the zero-order elimination rate in %BAC/hour.
	EliminationRatePerHour float64
	// MaleDistributionRatio and FemaleDistributionRatio are Widmark r values.
	MaleDistributionRatio   float64
	FemaleDistributionRatio float64
	// LegalLimit is the driving threshold reported as TimeToLegalHours.
	LegalLimit float64
	// ThresholdHorizon bounds threshold searches and doubles as display ceiling.
	ThresholdHorizon time.Duration
	// PeakHorizon and PeakStep define the forward peak search grid.
	PeakHorizon time.Duration
	PeakStep    time.Duration
	// TimelineAfterNow is how far past "now" the timeline extends.
	TimelineAfterNow time.Duration
	// Location is used for clock labels and hour rounding of the timeline.
	Location *time.Location
}

// DefaultConfig returns the documented engine defaults.
func DefaultConfig() Config {
	return Config{
		GramsPerStandard:         defaultGramsPerStandard,
		AbsorptionWindow:         defaultAbsorptionWindow,
		AbsorptionCurveSharpness: defaultAbsorptionCurveSharpness,
		EliminationRatePerHour:   defaultEliminationRatePerHour,
		MaleDistributionRatio:    defaultMaleDistributionRatio,
		FemaleDistributionRatio:  defaultFemaleDistributionRatio,
		LegalLimit:               defaultLegalLimit,
		ThresholdHorizon:         defaultThresholdHorizon,
		PeakHorizon:              defaultPeakHorizon,
		PeakStep:                 defaultPeakStep,
		TimelineAfterNow:         defaultTimelineAfterNow,
		Location:                 time.UTC,
	}
}

// Option applies a configuration option to the engine Config.
type Option func(*Config)

// WithGramsPerStandard sets the grams of alcohol per standard drink.
func WithGramsPerStandard(grams float64) Option {
	return func(c *Config) {
		if grams > 0 {
			c.GramsPerStandard = grams
		}
	}
}

// WithAbsorptionWindow sets the absorption window.
func WithAbsorptionWindow(window time.Duration) Option {
	return func(c *Config) {
		if window > 0 {
			c.AbsorptionWindow = window
		}
	}
}

// WithAbsorptionCurveSharpness sets the exponent of the absorption curve.
func WithAbsorptionCurveSharpness(k float64) Option {
	return func(c *Config) {
		if k > 0 {
			c.AbsorptionCurveSharpness = k
		}
	}
}

// WithEliminationRate sets the elimination rate in %BAC per hour.
func WithEliminationRate(ratePerHour float64) Option {
	return func(c *Config) {
		if ratePerHour > 0 {
			c.EliminationRatePerHour = ratePerHour
		}
	}
}

// WithDistributionRatios overrides the Widmark ratios.
func WithDistributionRatios(male, female float64) Option {
	return func(c *Config) {
		if male > 0 && female > 0 {
			c.MaleDistributionRatio = male
			c.FemaleDistributionRatio = female
		}
	}
}

// WithLegalLimit sets the legal driving threshold.
func WithLegalLimit(limit float64) Option {
	return func(c *Config) {
		if limit > 0 {
			c.LegalLimit = limit
		}
	}
}

// WithThresholdHorizon bounds how far ahead threshold crossings are searched.
func WithThresholdHorizon(horizon time.Duration) Option {
	return func(c *Config) {
		if horizon > 0 {
			c.ThresholdHorizon = horizon
		}
	}
}

// WithPeakSearch sets the forward horizon and grid step of the peak search.
func WithPeakSearch(horizon, step time.Duration) Option {
	return func(c *Config) {
		if horizon > 0 && step > 0 && step <= horizon {
			c.PeakHorizon = horizon
			c.PeakStep = step
		}
	}
}

// WithTimelineAfterNow sets how far past "now" the timeline extends.
func WithTimelineAfterNow(d time.Duration) Option {
	return func(c *Config) {
		if d > 0 {
			c.TimelineAfterNow = d
		}
	}
}

// WithLocation sets the time zone used for clock labels.
func WithLocation(loc *time.Location) Option {
	return func(c *Config) {
		if loc != nil {
			c.Location = loc
		}
	}
}
