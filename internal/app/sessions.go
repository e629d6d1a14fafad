package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/okian/baculator/internal/adapters/repository"
	"github.com/okian/baculator/internal/domain/bac"
	"github.com/okian/baculator/internal/domain/dedupe"
	"github.com/okian/baculator/internal/domain/model"
	"github.com/okian/baculator/internal/domain/types"
	"github.com/okian/baculator/pkg/logger"
	"github.com/okian/baculator/pkg/metrics"
)

// drinkNamespace scopes client drink ids that are not UUIDs.
var drinkNamespace = uuid.MustParse("6f1c1b2e-2f6a-4c41-9a55-4b3a8d0c7e21")

func validUserID(userID string) error {
	if strings.TrimSpace(userID) == "" {
		return fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	return nil
}

// ValidateProfile checks a profile update and returns the engine profile.
func ValidateProfile(req types.ProfileRequest) (bac.Profile, error) {
	if math.IsNaN(req.WeightKg) || req.WeightKg < MinWeightKg || req.WeightKg > MaxWeightKg {
		return bac.Profile{}, fmt.Errorf("%w: weight_kg must be between %g and %g", ErrInvalidInput, MinWeightKg, MaxWeightKg)
	}
	sex, err := bac.ParseSex(req.Sex)
	if err != nil {
		return bac.Profile{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return bac.Profile{WeightKg: req.WeightKg, Sex: sex}, nil
}

// ValidateDrink checks a submitted drink against the instant it is evaluated at.
func ValidateDrink(d types.DrinkInput, now time.Time) error {
	if math.IsNaN(d.Standards) || d.Standards <= 0 || d.Standards > MaxStandards {
		return fmt.Errorf("%w: standards must be in (0, %g]", ErrInvalidInput, MaxStandards)
	}
	if d.FinishedAt.IsZero() {
		return fmt.Errorf("%w: finished_at is required", ErrInvalidInput)
	}
	if d.FinishedAt.Before(now.Add(-MaxDrinkAge)) {
		return fmt.Errorf("%w: finished_at is more than %s before now", ErrInvalidInput, MaxDrinkAge)
	}
	if d.FinishedAt.After(now.Add(MaxDrinkLead)) {
		return fmt.Errorf("%w: finished_at is more than %s after now", ErrInvalidInput, MaxDrinkLead)
	}
	return nil
}

// DrinkID maps a client id to the stored drink id. UUIDs are kept, anything
// else is hashed per user so the same client id always maps to the same row.
func DrinkID(userID, clientID string) uuid.UUID {
	if clientID == "" {
		return uuid.New()
	}
	if id, err := uuid.Parse(clientID); err == nil {
		return id
	}
	return uuid.NewSHA1(drinkNamespace, []byte(dedupe.Key(userID, clientID)))
}

// SaveProfile validates and stores a user's weight and sex.
func (s *Service) SaveProfile(ctx context.Context, userID string, req types.ProfileRequest) (model.UserProfile, error) {
	if err := validUserID(userID); err != nil {
		return model.UserProfile{}, err
	}
	p, err := ValidateProfile(req)
	if err != nil {
		return model.UserProfile{}, err
	}
	profile := model.UserProfile{UserID: userID, WeightKg: p.WeightKg, Sex: string(p.Sex), UpdatedAt: s.clock()}
	if err := s.store.SaveProfile(ctx, profile); err != nil {
		return model.UserProfile{}, err
	}
	s.dropSnapshot(userID)
	return profile, nil
}

// Profile returns the stored profile.
func (s *Service) Profile(ctx context.Context, userID string) (model.UserProfile, error) {
	if err := validUserID(userID); err != nil {
		return model.UserProfile{}, err
	}
	return s.store.GetProfile(ctx, userID)
}

// StartSession opens a session, or returns the one already open.
func (s *Service) StartSession(ctx context.Context, userID, name string) (model.Session, bool, error) {
	if err := validUserID(userID); err != nil {
		return model.Session{}, false, err
	}
	sess, created, err := s.store.OpenSession(ctx, userID, strings.TrimSpace(name), s.clock())
	if err != nil {
		return model.Session{}, false, err
	}
	if created {
		metrics.RecordSessionStarted()
		s.log().Info(ctx, "session started", logger.String("session_id", sess.ID.String()))
	}
	return sess, created, nil
}

// StopSession closes the open session.
func (s *Service) StopSession(ctx context.Context, userID string) (model.Session, error) {
	if err := validUserID(userID); err != nil {
		return model.Session{}, err
	}
	sess, err := s.store.CloseSession(ctx, userID, s.clock())
	if err != nil {
		return model.Session{}, err
	}
	s.dropSnapshot(userID)
	s.log().Info(ctx, "session stopped", logger.String("session_id", sess.ID.String()))
	return sess, nil
}

// CurrentSession returns the open session, applying the idle rule.
func (s *Service) CurrentSession(ctx context.Context, userID string) (model.Session, error) {
	if err := validUserID(userID); err != nil {
		return model.Session{}, err
	}
	return s.store.CurrentSession(ctx, userID, s.clock())
}

// Sessions lists every session of the user, newest first.
func (s *Service) Sessions(ctx context.Context, userID string) ([]model.Session, error) {
	if err := validUserID(userID); err != nil {
		return nil, err
	}
	return s.store.ListSessions(ctx, userID)
}

// AddDrink logs a drink into the open session. A repeated client id is
// reported as a duplicate and not stored twice.
func (s *Service) AddDrink(ctx context.Context, userID string, in types.DrinkInput) (model.DrinkEntry, bool, error) {
	if err := validUserID(userID); err != nil {
		return model.DrinkEntry{}, false, err
	}
	now := s.clock()
	if err := ValidateDrink(in, now); err != nil {
		return model.DrinkEntry{}, false, err
	}

	entry := model.DrinkEntry{ID: DrinkID(userID, in.ID), Standards: in.Standards, FinishedAt: in.FinishedAt}
	key := dedupe.Key(userID, entry.ID.String())
	if in.ID != "" && s.deduper.SeenAndRecord(ctx, key) {
		if prev, ok := s.storedDrink(ctx, userID, entry.ID); ok {
			metrics.RecordDrinkDuplicate()
			return prev, true, nil
		}
	}

	stored, err := s.store.AddDrink(ctx, userID, entry, now)
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			metrics.RecordDrinkDuplicate()
			prev, _ := s.storedDrink(ctx, userID, entry.ID)
			return prev, true, nil
		}
		if in.ID != "" {
			s.deduper.Unrecord(ctx, key)
		}
		return model.DrinkEntry{}, false, err
	}

	metrics.RecordDrinkRecorded()
	s.dropSnapshot(userID)
	s.RefreshNow()
	s.log().Debug(ctx, "drink recorded",
		logger.String("drink_id", stored.ID.String()),
		logger.Float64("standards", stored.Standards),
	)
	return stored, false, nil
}

// storedDrink finds a drink of the user's open session.
func (s *Service) storedDrink(ctx context.Context, userID string, id uuid.UUID) (model.DrinkEntry, bool) {
	drinks, err := s.Drinks(ctx, userID)
	if err != nil {
		return model.DrinkEntry{}, false
	}
	for _, d := range drinks {
		if d.ID == id {
			return d, true
		}
	}
	return model.DrinkEntry{}, false
}

// drinkRef maps the {drink_id} of an edit to the stored id.
func drinkRef(userID, drinkID string) (uuid.UUID, error) {
	if strings.TrimSpace(drinkID) == "" {
		return uuid.Nil, fmt.Errorf("%w: drink id is required", ErrInvalidInput)
	}
	return DrinkID(userID, drinkID), nil
}

// UpdateDrink changes the standards and finish time of a drink in the open
// session. The id in the input is ignored.
func (s *Service) UpdateDrink(ctx context.Context, userID, drinkID string, in types.DrinkInput) (model.DrinkEntry, error) {
	if err := validUserID(userID); err != nil {
		return model.DrinkEntry{}, err
	}
	id, err := drinkRef(userID, drinkID)
	if err != nil {
		return model.DrinkEntry{}, err
	}
	now := s.clock()
	if err := ValidateDrink(in, now); err != nil {
		return model.DrinkEntry{}, err
	}

	entry := model.DrinkEntry{ID: id, Standards: in.Standards, FinishedAt: in.FinishedAt}
	stored, err := s.store.UpdateDrink(ctx, userID, entry, now)
	if err != nil {
		return model.DrinkEntry{}, err
	}
	metrics.RecordDrinkEdited("update")
	s.dropSnapshot(userID)
	s.RefreshNow()
	s.log().Debug(ctx, "drink updated",
		logger.String("drink_id", stored.ID.String()),
		logger.Float64("standards", stored.Standards),
	)
	return stored, nil
}

// DeleteDrink removes a drink from the open session. Its client id may be
// logged again afterwards.
func (s *Service) DeleteDrink(ctx context.Context, userID, drinkID string) error {
	if err := validUserID(userID); err != nil {
		return err
	}
	id, err := drinkRef(userID, drinkID)
	if err != nil {
		return err
	}
	if err := s.store.DeleteDrink(ctx, userID, id, s.clock()); err != nil {
		return err
	}
	s.deduper.Unrecord(ctx, dedupe.Key(userID, id.String()))
	metrics.RecordDrinkEdited("delete")
	s.dropSnapshot(userID)
	s.RefreshNow()
	s.log().Debug(ctx, "drink deleted", logger.String("drink_id", id.String()))
	return nil
}

// Drinks lists the drinks of the open session by finish time.
func (s *Service) Drinks(ctx context.Context, userID string) ([]model.DrinkEntry, error) {
	sess, err := s.CurrentSession(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.store.ListDrinks(ctx, sess.ID)
}
