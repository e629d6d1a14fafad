// Package types contains the JSON request and response shapes shared by the
// HTTP API and its clients.
package types

import (
	"time"

	"github.com/okian/baculator/internal/domain/bac"
)

// DrinkInput is a drink as submitted by clients.
type DrinkInput struct {
	ID         string    `json:"id,omitempty" yaml:"id" koanf:"id"`
	Standards  float64   `json:"standards" yaml:"standards" koanf:"standards"`
	FinishedAt time.Time `json:"finished_at" yaml:"finished_at" koanf:"finished_at"`
}

// EvaluateRequest is the body of the stateless evaluation endpoint.
type EvaluateRequest struct {
	WeightKg float64      `json:"weight_kg"`
	Sex      string       `json:"sex"`
	Now      *time.Time   `json:"now,omitempty"`
	Drinks   []DrinkInput `json:"drinks"`
}

// ProfileRequest is the body of a profile update.
type ProfileRequest struct {
	WeightKg float64 `json:"weight_kg"`
	Sex      string  `json:"sex"`
}

// StartSessionRequest optionally names a new session.
type StartSessionRequest struct {
	Name string `json:"name,omitempty"`
}

// EvaluationResponse wraps an engine result with display helpers.
type EvaluationResponse struct {
	bac.Result
	EvaluatedAt     time.Time         `json:"evaluated_at"`
	SoberExceeded   bool              `json:"sober_horizon_exceeded"`
	LegalExceeded   bool              `json:"legal_horizon_exceeded"`
	Markers         []bac.Marker      `json:"markers,omitempty"`
	DrinkStatuses   []bac.DrinkStatus `json:"drink_statuses,omitempty"`
	TimeToSoberText string            `json:"time_to_sober_text"`
	TimeToLegalText string            `json:"time_to_legal_text"`
}

// Drinks converts client drinks to engine drinks.
func Drinks(in []DrinkInput) []bac.Drink {
	out := make([]bac.Drink, len(in))
	for i, d := range in {
		out[i] = bac.Drink{Standards: d.Standards, CompletedAt: d.FinishedAt}
	}
	return out
}
