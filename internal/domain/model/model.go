// Package model contains domain models passed between layers.
package model

import (
	"time"

	"github.com/google/uuid"

	"github.com/okian/baculator/internal/domain/bac"
)

// UserProfile is the stored subject data for a user.
type UserProfile struct {
	UserID    string    `json:"user_id"`
	WeightKg  float64   `json:"weight_kg"`
	Sex       string    `json:"sex"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Engine converts the stored profile to the engine input.
func (p UserProfile) Engine() (bac.Profile, error) {
	sex, err := bac.ParseSex(p.Sex)
	if err != nil {
		return bac.Profile{}, err
	}
	return bac.Profile{WeightKg: p.WeightKg, Sex: sex}, nil
}

// Session is one drinking session ("tab"). At most one per user is open.
type Session struct {
	ID          uuid.UUID  `json:"id"`
	UserID      string     `json:"user_id"`
	Name        string     `json:"name"`
	StartedAt   time.Time  `json:"started_at"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
	LastDrinkAt *time.Time `json:"last_drink_at,omitempty"`
}

// Open reports whether the session has not been finished.
func (s Session) Open() bool {
	return s.FinishedAt == nil
}

// LastActivity is the later of the start and the last drink time. Backdated
// drinks never move activity before the session opened.
func (s Session) LastActivity() time.Time {
	if s.LastDrinkAt != nil && s.LastDrinkAt.After(s.StartedAt) {
		return *s.LastDrinkAt
	}
	return s.StartedAt
}

// Idle reports whether an open session has seen no activity for longer than
// timeout at now.
func (s Session) Idle(now time.Time, timeout time.Duration) bool {
	return s.Open() && timeout > 0 && now.Sub(s.LastActivity()) > timeout
}

// DrinkEntry is a drink logged into a session.
type DrinkEntry struct {
	ID         uuid.UUID `json:"id"`
	SessionID  uuid.UUID `json:"session_id"`
	Standards  float64   `json:"standards"`
	FinishedAt time.Time `json:"finished_at"`
	CreatedAt  time.Time `json:"created_at"`
}

// Drinks converts entries to engine drinks, keeping order.
func Drinks(entries []DrinkEntry) []bac.Drink {
	out := make([]bac.Drink, len(entries))
	for i, e := range entries {
		out[i] = bac.Drink{Standards: e.Standards, CompletedAt: e.FinishedAt}
	}
	return out
}

// RefreshJob asks a worker to re-evaluate a user's open session at Now.
type RefreshJob struct {
	UserID    string
	SessionID uuid.UUID
	Now       time.Time
}

// Snapshot is the last result computed for a session.
type Snapshot struct {
	UserID     string     `json:"user_id"`
	SessionID  uuid.UUID  `json:"session_id"`
	ComputedAt time.Time  `json:"computed_at"`
	Result     bac.Result `json:"result"`
}
