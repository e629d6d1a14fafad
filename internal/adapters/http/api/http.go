// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/okian/baculator/internal/adapters/repository"
	service "github.com/okian/baculator/internal/app"
	"github.com/okian/baculator/internal/domain/bac"
	"github.com/okian/baculator/internal/domain/model"
	"github.com/okian/baculator/internal/domain/types"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// Evaluator runs stateless evaluations.
type Evaluator interface {
	Evaluate(ctx context.Context, req types.EvaluateRequest) (types.EvaluationResponse, error)
}

// UserDependencies covers the per-user profile, session and drink operations.
type UserDependencies interface {
	SaveProfile(ctx context.Context, userID string, req types.ProfileRequest) (model.UserProfile, error)
	Profile(ctx context.Context, userID string) (model.UserProfile, error)
	StartSession(ctx context.Context, userID, name string) (model.Session, bool, error)
	StopSession(ctx context.Context, userID string) (model.Session, error)
	CurrentSession(ctx context.Context, userID string) (model.Session, error)
	Sessions(ctx context.Context, userID string) ([]model.Session, error)
	AddDrink(ctx context.Context, userID string, in types.DrinkInput) (model.DrinkEntry, bool, error)
	UpdateDrink(ctx context.Context, userID, drinkID string, in types.DrinkInput) (model.DrinkEntry, error)
	DeleteDrink(ctx context.Context, userID, drinkID string) error
	Drinks(ctx context.Context, userID string) ([]model.DrinkEntry, error)
	CurrentBAC(ctx context.Context, userID string, at *time.Time) (types.EvaluationResponse, error)
	Snapshot(ctx context.Context, userID string) (model.Snapshot, error)
}

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	Evaluator
	UserDependencies
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler   *HealthHandler
	statsHandler    *StatsHandler
	evaluateHandler *EvaluateHandler
	usersHandler    *UsersHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider) *Server {
	return &Server{
		healthHandler:   NewHealthHandler(),
		statsHandler:    NewStatsHandler(statsProvider),
		evaluateHandler: NewEvaluateHandler(deps),
		usersHandler:    NewUsersHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	if mux == nil {
		panic("mux is nil")
	}
	u := s.usersHandler

	mux.HandleFunc("GET /healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("GET /stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("POST /evaluate", MetricsMiddleware(s.evaluateHandler.HandleEvaluate, "evaluate"))

	mux.HandleFunc("GET /users/{user_id}/profile", MetricsMiddleware(u.HandleGetProfile, "profile"))
	mux.HandleFunc("PUT /users/{user_id}/profile", MetricsMiddleware(u.HandlePutProfile, "profile"))
	mux.HandleFunc("POST /users/{user_id}/sessions", MetricsMiddleware(u.HandleStartSession, "sessions"))
	mux.HandleFunc("GET /users/{user_id}/sessions", MetricsMiddleware(u.HandleListSessions, "sessions"))
	mux.HandleFunc("POST /users/{user_id}/sessions/stop", MetricsMiddleware(u.HandleStopSession, "sessions_stop"))
	mux.HandleFunc("GET /users/{user_id}/sessions/current", MetricsMiddleware(u.HandleCurrentSession, "sessions_current"))
	mux.HandleFunc("POST /users/{user_id}/drinks", MetricsMiddleware(u.HandleAddDrink, "drinks"))
	mux.HandleFunc("GET /users/{user_id}/drinks", MetricsMiddleware(u.HandleListDrinks, "drinks"))
	mux.HandleFunc("PUT /users/{user_id}/drinks/{drink_id}", MetricsMiddleware(u.HandleUpdateDrink, "drink"))
	mux.HandleFunc("DELETE /users/{user_id}/drinks/{drink_id}", MetricsMiddleware(u.HandleDeleteDrink, "drink"))
	mux.HandleFunc("GET /users/{user_id}/bac", MetricsMiddleware(u.HandleCurrentBAC, "bac"))
	mux.HandleFunc("GET /users/{user_id}/bac/snapshot", MetricsMiddleware(u.HandleSnapshot, "bac_snapshot"))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeFailure maps err to a status and writes it.
func writeFailure(w http.ResponseWriter, op string, err error) {
	switch {
	case isBadRequest(err):
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
	case isNotFound(err):
		writeError(w, http.StatusNotFound, "not_found", WrapKind(op, ErrNotFound, err))
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
	}
}

func isBadRequest(err error) bool {
	return errors.Is(err, ErrBadRequest) ||
		errors.Is(err, service.ErrInvalidInput) ||
		errors.Is(err, bac.ErrInvalidProfile) ||
		errors.Is(err, bac.ErrInvalidDrink)
}

// isNotFound translates store and service lookups that found nothing.
func isNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, repository.ErrNotFound) ||
		errors.Is(err, repository.ErrNoOpenSession) ||
		errors.Is(err, service.ErrNoSnapshot)
}

// decodeJSON reads a single JSON document from the request body.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: invalid json: %v", ErrBadRequest, err)
	}
	return nil
}

// userID extracts the {user_id} path segment.
func userID(r *http.Request) (string, error) {
	id := strings.TrimSpace(r.PathValue("user_id"))
	if id == "" {
		return "", fmt.Errorf("%w: missing user_id", ErrBadRequest)
	}
	return id, nil
}

// atParam parses the optional ?at= RFC3339 instant.
func atParam(r *http.Request) (*time.Time, error) {
	raw := r.URL.Query().Get("at")
	if raw == "" {
		return nil, nil
	}
	at, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid at; must be RFC3339", ErrBadRequest)
	}
	return &at, nil
}
