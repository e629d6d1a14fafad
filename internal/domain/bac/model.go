package bac

import (
	"fmt"
	"strings"
	"time"
)

// Sex selects the Widmark distribution ratio.
type Sex string

// Recognised biological sexes.
const (
	SexMale   Sex = "male"
	SexFemale Sex = "female"
)

// ParseSex parses a sex value case-insensitively.
func ParseSex(s string) (Sex, error) {
	switch Sex(strings.ToLower(strings.TrimSpace(s))) {
	case SexMale:
		return SexMale, nil
	case SexFemale:
		return SexFemale, nil
	default:
		return "", fmt.Errorf("%w: unrecognised sex %q", ErrInvalidProfile, s)
	}
}

// Drink is a single drink as seen by the engine.
type Drink struct {
	Standards   float64   // standard drinks, fractional allowed
	CompletedAt time.Time // when the drink was finished, not started
}

// Profile describes the subject.
type Profile struct {
	WeightKg float64
	Sex      Sex
}

// Sample is one point of the plotted BAC curve.
type Sample struct {
	OffsetHours        float64   `json:"offset_hours"`
	OffsetFromNowHours float64   `json:"offset_from_now_hours"`
	BAC                float64   `json:"bac"`
	ClockTime          string    `json:"clock_time"`
	At                 time.Time `json:"at"`
}

// Peak is the forecast maximum of the curve.
type Peak struct {
	BAC          float64
	At           time.Time
	HoursFromNow float64
}

// Result is the full evaluation returned to callers.
type Result struct {
	CurrentBAC       float64  `json:"current_bac"`
	TimeToSoberHours float64  `json:"time_to_sober_hours"`
	TimeToLegalHours float64  `json:"time_to_legal_hours"`
	PeakBAC          float64  `json:"peak_bac"`
	TimeToPeakHours  float64  `json:"time_to_peak_hours"`
	IsRising         bool     `json:"is_rising"`
	Timeline         []Sample `json:"timeline"`
}
