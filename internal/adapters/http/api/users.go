package api

import (
	"net/http"

	"github.com/okian/baculator/internal/domain/model"
	"github.com/okian/baculator/internal/domain/types"
)

// UsersHandler handles the /users/{user_id}/... routes.
type UsersHandler struct {
	deps UserDependencies
}

// NewUsersHandler creates a new users handler.
func NewUsersHandler(deps UserDependencies) *UsersHandler {
	return &UsersHandler{deps: deps}
}

type sessionResponse struct {
	Session model.Session `json:"session"`
	Created bool          `json:"created"`
}

type drinkResponse struct {
	Drink     model.DrinkEntry `json:"drink"`
	Duplicate bool             `json:"duplicate"`
}

// HandleGetProfile handles GET /users/{user_id}/profile.
func (h *UsersHandler) HandleGetProfile(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_profile"
	id, err := userID(r)
	if err != nil {
		writeFailure(w, op, err)
		return
	}
	p, err := h.deps.Profile(r.Context(), id)
	if err != nil {
		writeFailure(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// HandlePutProfile handles PUT /users/{user_id}/profile.
func (h *UsersHandler) HandlePutProfile(w http.ResponseWriter, r *http.Request) {
	const op = "api.put_profile"
	id, err := userID(r)
	if err != nil {
		writeFailure(w, op, err)
		return
	}
	var req types.ProfileRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeFailure(w, op, err)
		return
	}
	p, err := h.deps.SaveProfile(r.Context(), id, req)
	if err != nil {
		writeFailure(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// HandleStartSession handles POST /users/{user_id}/sessions. The body is
// optional.
func (h *UsersHandler) HandleStartSession(w http.ResponseWriter, r *http.Request) {
	const op = "api.start_session"
	id, err := userID(r)
	if err != nil {
		writeFailure(w, op, err)
		return
	}
	var req types.StartSessionRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			writeFailure(w, op, err)
			return
		}
	}
	sess, created, err := h.deps.StartSession(r.Context(), id, req.Name)
	if err != nil {
		writeFailure(w, op, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, sessionResponse{Session: sess, Created: created})
}

// HandleStopSession handles POST /users/{user_id}/sessions/stop.
func (h *UsersHandler) HandleStopSession(w http.ResponseWriter, r *http.Request) {
	const op = "api.stop_session"
	id, err := userID(r)
	if err != nil {
		writeFailure(w, op, err)
		return
	}
	sess, err := h.deps.StopSession(r.Context(), id)
	if err != nil {
		writeFailure(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

// HandleListSessions handles GET /users/{user_id}/sessions.
func (h *UsersHandler) HandleListSessions(w http.ResponseWriter, r *http.Request) {
	const op = "api.list_sessions"
	id, err := userID(r)
	if err != nil {
		writeFailure(w, op, err)
		return
	}
	sessions, err := h.deps.Sessions(r.Context(), id)
	if err != nil {
		writeFailure(w, op, err)
		return
	}
	if sessions == nil {
		sessions = []model.Session{}
	}
	writeJSON(w, http.StatusOK, sessions)
}

// HandleCurrentSession handles GET /users/{user_id}/sessions/current.
func (h *UsersHandler) HandleCurrentSession(w http.ResponseWriter, r *http.Request) {
	const op = "api.current_session"
	id, err := userID(r)
	if err != nil {
		writeFailure(w, op, err)
		return
	}
	sess, err := h.deps.CurrentSession(r.Context(), id)
	if err != nil {
		writeFailure(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

// HandleAddDrink handles POST /users/{user_id}/drinks. A repeated client id
// answers 200 with duplicate set.
func (h *UsersHandler) HandleAddDrink(w http.ResponseWriter, r *http.Request) {
	const op = "api.add_drink"
	id, err := userID(r)
	if err != nil {
		writeFailure(w, op, err)
		return
	}
	var in types.DrinkInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeFailure(w, op, err)
		return
	}
	entry, dup, err := h.deps.AddDrink(r.Context(), id, in)
	if err != nil {
		writeFailure(w, op, err)
		return
	}
	status := http.StatusCreated
	if dup {
		status = http.StatusOK
	}
	writeJSON(w, status, drinkResponse{Drink: entry, Duplicate: dup})
}

// HandleUpdateDrink handles PUT /users/{user_id}/drinks/{drink_id}.
func (h *UsersHandler) HandleUpdateDrink(w http.ResponseWriter, r *http.Request) {
	const op = "api.update_drink"
	id, err := userID(r)
	if err != nil {
		writeFailure(w, op, err)
		return
	}
	var in types.DrinkInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeFailure(w, op, err)
		return
	}
	entry, err := h.deps.UpdateDrink(r.Context(), id, r.PathValue("drink_id"), in)
	if err != nil {
		writeFailure(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// HandleDeleteDrink handles DELETE /users/{user_id}/drinks/{drink_id}.
func (h *UsersHandler) HandleDeleteDrink(w http.ResponseWriter, r *http.Request) {
	const op = "api.delete_drink"
	id, err := userID(r)
	if err != nil {
		writeFailure(w, op, err)
		return
	}
	if err := h.deps.DeleteDrink(r.Context(), id, r.PathValue("drink_id")); err != nil {
		writeFailure(w, op, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleListDrinks handles GET /users/{user_id}/drinks.
func (h *UsersHandler) HandleListDrinks(w http.ResponseWriter, r *http.Request) {
	const op = "api.list_drinks"
	id, err := userID(r)
	if err != nil {
		writeFailure(w, op, err)
		return
	}
	drinks, err := h.deps.Drinks(r.Context(), id)
	if err != nil {
		writeFailure(w, op, err)
		return
	}
	if drinks == nil {
		drinks = []model.DrinkEntry{}
	}
	writeJSON(w, http.StatusOK, drinks)
}

// HandleCurrentBAC handles GET /users/{user_id}/bac[?at=RFC3339].
func (h *UsersHandler) HandleCurrentBAC(w http.ResponseWriter, r *http.Request) {
	const op = "api.current_bac"
	id, err := userID(r)
	if err != nil {
		writeFailure(w, op, err)
		return
	}
	at, err := atParam(r)
	if err != nil {
		writeFailure(w, op, err)
		return
	}
	res, err := h.deps.CurrentBAC(r.Context(), id, at)
	if err != nil {
		writeFailure(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// HandleSnapshot handles GET /users/{user_id}/bac/snapshot.
func (h *UsersHandler) HandleSnapshot(w http.ResponseWriter, r *http.Request) {
	const op = "api.snapshot"
	id, err := userID(r)
	if err != nil {
		writeFailure(w, op, err)
		return
	}
	snap, err := h.deps.Snapshot(r.Context(), id)
	if err != nil {
		writeFailure(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}
