// Package repository defines the session store interface, its errors and an
// in-memory implementation.
package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/okian/baculator/internal/domain/model"
)

// Store persists profiles, sessions and drinks.
//
// Every method that depends on the idle rule takes now explicitly; a session
// whose last activity is older than the idle timeout is closed the first time
// it is looked at.
type Store interface {
	// SaveProfile creates or replaces a user's profile.
	SaveProfile(ctx context.Context, p model.UserProfile) error
	// GetProfile returns ErrNotFound if the user has no profile.
	GetProfile(ctx context.Context, userID string) (model.UserProfile, error)

	// OpenSession starts a session unless one is already open, in which case
	// the open one is returned with created=false.
	OpenSession(ctx context.Context, userID, name string, now time.Time) (s model.Session, created bool, err error)
	// CloseSession finishes the open session at now. Returns ErrNoOpenSession
	// when there is none.
	CloseSession(ctx context.Context, userID string, now time.Time) (model.Session, error)
	// CurrentSession returns the open, non-idle session or ErrNoOpenSession.
	CurrentSession(ctx context.Context, userID string, now time.Time) (model.Session, error)
	// ListSessions returns a user's sessions, newest first.
	ListSessions(ctx context.Context, userID string) ([]model.Session, error)

	// AddDrink appends a drink to the current session and advances its last
	// activity. A zero entry ID is assigned; a reused ID returns ErrConflict.
	AddDrink(ctx context.Context, userID string, entry model.DrinkEntry, now time.Time) (model.DrinkEntry, error)
	// UpdateDrink replaces the standards and finish time of a drink in the
	// current session. Returns ErrNotFound for a drink outside it.
	UpdateDrink(ctx context.Context, userID string, entry model.DrinkEntry, now time.Time) (model.DrinkEntry, error)
	// DeleteDrink removes a drink from the current session. Returns
	// ErrNotFound for a drink outside it.
	DeleteDrink(ctx context.Context, userID string, drinkID uuid.UUID, now time.Time) error
	// ListDrinks returns a session's drinks ordered by FinishedAt.
	ListDrinks(ctx context.Context, sessionID uuid.UUID) ([]model.DrinkEntry, error)

	// ActiveSessions returns every open, non-idle session.
	ActiveSessions(ctx context.Context, now time.Time) ([]model.Session, error)
	// CloseIdleSessions closes every idle session and returns how many.
	CloseIdleSessions(ctx context.Context, now time.Time) (int, error)
	// Count returns the number of open sessions.
	Count(ctx context.Context) (int, error)
}
