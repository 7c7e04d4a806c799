package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oddsmith/platform/internal/audit"
	"github.com/oddsmith/platform/internal/domain"
	"github.com/oddsmith/platform/internal/repository"
)

// DecisionHandler serves the composed GameDecisions triple. The payload is
// rendered verbatim from storage; no field is recomputed here.
type DecisionHandler struct {
	pool      *pgxpool.Pool
	decisions repository.DecisionRepository
	events    repository.EventRepository
	auditor   *audit.Service
}

// NewDecisionHandler creates the handler.
func NewDecisionHandler(pool *pgxpool.Pool, decisions repository.DecisionRepository, events repository.EventRepository, auditor *audit.Service) *DecisionHandler {
	return &DecisionHandler{pool: pool, decisions: decisions, events: events, auditor: auditor}
}

// GetGame handles GET /api/games/{league}/{eventID}/decisions.
func (h *DecisionHandler) GetGame(w http.ResponseWriter, r *http.Request) {
	league, err := domain.ParseLeague(chi.URLParam(r, "league"))
	if err != nil {
		RespondError(w, err)
		return
	}
	eventID := chi.URLParam(r, "eventID")

	gd, err := h.decisions.GetGame(r.Context(), h.pool, eventID)
	if err != nil {
		RespondError(w, err)
		return
	}
	if gd == nil || gd.Meta.League != league {
		RespondError(w, domain.ErrNotFound("decisions for event", eventID))
		return
	}

	h.auditor.Record(r.Context(), audit.KindDecisionServed, eventID, gd.Meta.InputsHash, nil)
	RespondJSON(w, http.StatusOK, gd)
}

// ListUpcoming handles GET /api/games?league=NBA.
func (h *DecisionHandler) ListUpcoming(w http.ResponseWriter, r *http.Request) {
	league, err := domain.ParseLeague(r.URL.Query().Get("league"))
	if err != nil {
		RespondError(w, err)
		return
	}

	events, err := h.events.ListUpcoming(r.Context(), h.pool, league, maxListHorizon(r))
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, map[string]any{"events": events})
}
