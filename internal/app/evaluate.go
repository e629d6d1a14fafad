package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/okian/baculator/internal/domain/bac"
	"github.com/okian/baculator/internal/domain/model"
	"github.com/okian/baculator/internal/domain/types"
	"github.com/okian/baculator/pkg/logger"
	"github.com/okian/baculator/pkg/metrics"
)

// Evaluation sources, used as the metrics label.
const (
	sourceStateless = "stateless"
	sourceLive      = "live"
	sourceRefresh   = "refresh"
)

// evaluate runs the engine and records metrics for the call.
func (s *Service) evaluate(source string, drinks []bac.Drink, p bac.Profile, now time.Time) (bac.Result, error) {
	start := time.Now()
	res, err := s.engine.Evaluate(drinks, p, now)
	metrics.RecordEvaluationLatency(float64(time.Since(start).Microseconds()) / 1000)
	if err != nil {
		switch {
		case errors.Is(err, bac.ErrInvalidProfile):
			metrics.RecordEvaluationError("invalid_profile")
		case errors.Is(err, bac.ErrInvalidDrink):
			metrics.RecordEvaluationError("invalid_drink")
		default:
			metrics.RecordEvaluationError("other")
		}
		return bac.Result{}, err
	}

	metrics.RecordEvaluation(source)
	metrics.RecordCurrentBAC(res.CurrentBAC)
	if len(drinks) > 0 && (s.engine.HorizonExceeded(res.TimeToSoberHours) || s.engine.HorizonExceeded(res.TimeToLegalHours)) {
		metrics.RecordHorizonExceeded()
	}
	return res, nil
}

// respond decorates a result with display fields.
func (s *Service) respond(res bac.Result, drinks []bac.Drink, p bac.Profile, now time.Time) types.EvaluationResponse {
	out := types.EvaluationResponse{
		Result:          res,
		EvaluatedAt:     now,
		TimeToSoberText: bac.FormatOffset(res.TimeToSoberHours),
		TimeToLegalText: bac.FormatOffset(res.TimeToLegalHours),
	}
	if len(drinks) > 0 {
		out.SoberExceeded = s.engine.HorizonExceeded(res.TimeToSoberHours)
		out.LegalExceeded = s.engine.HorizonExceeded(res.TimeToLegalHours)
		start, _ := s.engine.TimelineStart(drinks, now)
		out.Markers = s.engine.DrinkMarkers(drinks, start)
		out.DrinkStatuses = s.engine.DrinkStatuses(drinks, p, now)
	}
	return out
}

// Evaluate runs a stateless evaluation of the request. A missing Now means the
// service clock.
func (s *Service) Evaluate(ctx context.Context, req types.EvaluateRequest) (types.EvaluationResponse, error) {
	sex, err := bac.ParseSex(req.Sex)
	if err != nil {
		metrics.RecordEvaluationError("invalid_profile")
		return types.EvaluationResponse{}, err
	}
	now := s.clock()
	if req.Now != nil {
		now = *req.Now
	}
	for i, d := range req.Drinks {
		if err := ValidateDrink(d, now); err != nil {
			metrics.RecordEvaluationError("invalid_drink")
			return types.EvaluationResponse{}, fmt.Errorf("drink[%d]: %w", i, err)
		}
	}
	p := bac.Profile{WeightKg: req.WeightKg, Sex: sex}
	drinks := types.Drinks(req.Drinks)

	res, err := s.evaluate(sourceStateless, drinks, p, now)
	if err != nil {
		return types.EvaluationResponse{}, err
	}
	return s.respond(res, drinks, p, now), nil
}

// sessionInputs loads the profile and the drinks of a session.
func (s *Service) sessionInputs(ctx context.Context, userID string, sess model.Session) (bac.Profile, []bac.Drink, error) {
	profile, err := s.store.GetProfile(ctx, userID)
	if err != nil {
		return bac.Profile{}, nil, err
	}
	p, err := profile.Engine()
	if err != nil {
		return bac.Profile{}, nil, err
	}
	entries, err := s.store.ListDrinks(ctx, sess.ID)
	if err != nil {
		return bac.Profile{}, nil, err
	}
	return p, model.Drinks(entries), nil
}

// CurrentBAC evaluates the user's open session at the given instant, or at
// the service clock when at is nil.
func (s *Service) CurrentBAC(ctx context.Context, userID string, at *time.Time) (types.EvaluationResponse, error) {
	now := s.clock()
	if at != nil {
		now = *at
	}
	sess, err := s.CurrentSession(ctx, userID)
	if err != nil {
		return types.EvaluationResponse{}, err
	}
	p, drinks, err := s.sessionInputs(ctx, userID, sess)
	if err != nil {
		return types.EvaluationResponse{}, err
	}
	res, err := s.evaluate(sourceLive, drinks, p, now)
	if err != nil {
		return types.EvaluationResponse{}, err
	}
	return s.respond(res, drinks, p, now), nil
}

// Refresh implements worker.Refresher: it evaluates a session at the job's
// instant and keeps the result as the user's snapshot.
func (s *Service) Refresh(ctx context.Context, job model.RefreshJob) error {
	sess := model.Session{ID: job.SessionID, UserID: job.UserID}
	p, drinks, err := s.sessionInputs(ctx, job.UserID, sess)
	if err != nil {
		return err
	}
	res, err := s.evaluate(sourceRefresh, drinks, p, job.Now)
	if err != nil {
		return err
	}

	snap := model.Snapshot{UserID: job.UserID, SessionID: job.SessionID, ComputedAt: job.Now, Result: res}
	s.snapMu.Lock()
	if prev, ok := s.snapshots[job.UserID]; ok && prev.ComputedAt.After(job.Now) {
		s.snapMu.Unlock()
		return nil
	}
	s.snapshots[job.UserID] = snap
	s.snapMu.Unlock()

	metrics.RecordSnapshotStored()
	s.log().Debug(ctx, "snapshot stored", logger.Float64("bac", res.CurrentBAC))
	return nil
}

// Snapshot returns the last result computed by the refresh loop.
func (s *Service) Snapshot(ctx context.Context, userID string) (model.Snapshot, error) {
	if err := validUserID(userID); err != nil {
		return model.Snapshot{}, err
	}
	s.snapMu.RLock()
	snap, ok := s.snapshots[userID]
	s.snapMu.RUnlock()
	if !ok {
		return model.Snapshot{}, ErrNoSnapshot
	}
	return snap, nil
}

func (s *Service) dropSnapshot(userID string) {
	s.snapMu.Lock()
	delete(s.snapshots, userID)
	s.snapMu.Unlock()
}
