package handler

import (
	"net/http"
	"time"

	"github.com/oddsmith/platform/internal/domain"
	"github.com/oddsmith/platform/internal/parlay"
)

// ParlayHandler serves parlay construction and the attempt-log aggregate.
type ParlayHandler struct {
	svc *parlay.Service
}

// NewParlayHandler creates the handler.
func NewParlayHandler(svc *parlay.Service) *ParlayHandler {
	return &ParlayHandler{svc: svc}
}

// Generate handles POST /api/parlay/generate. A FAIL outcome is still a 200:
// it is a documented result, not an error.
func (h *ParlayHandler) Generate(w http.ResponseWriter, r *http.Request) {
	var req domain.ParlayRequest
	if err := DecodeJSON(r, &req); err != nil {
		RespondError(w, domain.ErrValidation("malformed request body"))
		return
	}
	if req.Legs < 2 || req.Legs > 8 {
		RespondError(w, domain.ErrValidation("legs must be between 2 and 8"))
		return
	}

	res, err := h.svc.Generate(r.Context(), req)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, res)
}

// Stats handles GET /api/parlay/stats.
func (h *ParlayHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.Stats(r.Context(), 7*24*time.Hour)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, stats)
}
