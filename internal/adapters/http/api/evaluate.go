package api

import (
	"net/http"

	"github.com/okian/baculator/internal/domain/types"
)

// EvaluateHandler handles stateless evaluation requests.
type EvaluateHandler struct {
	deps Evaluator
}

// NewEvaluateHandler creates a new evaluate handler.
func NewEvaluateHandler(deps Evaluator) *EvaluateHandler {
	return &EvaluateHandler{deps: deps}
}

// HandleEvaluate handles POST /evaluate requests.
func (h *EvaluateHandler) HandleEvaluate(w http.ResponseWriter, r *http.Request) {
	const op = "api.evaluate"
	var req types.EvaluateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeFailure(w, op, err)
		return
	}
	res, err := h.deps.Evaluate(r.Context(), req)
	if err != nil {
		writeFailure(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
