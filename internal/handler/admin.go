package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oddsmith/platform/internal/domain"
	"github.com/oddsmith/platform/internal/guard"
	"github.com/oddsmith/platform/internal/repository"
	"github.com/oddsmith/platform/internal/settlement"
)

// PickGrader grades one pick. Satisfied by *settlement.Engine.
type PickGrader interface {
	Grade(ctx context.Context, pickID string, opts settlement.GradeOptions) (*domain.GradingRecord, error)
}

// AdminHandler exposes the operator console: manual grading with override,
// feature flag control, and mapping-drift reconciliation.
type AdminHandler struct {
	pool    *pgxpool.Pool
	settler PickGrader
	flags   repository.FlagRepository
	events  repository.EventRepository
	alerts  repository.AlertRepository
}

// NewAdminHandler creates the handler.
func NewAdminHandler(pool *pgxpool.Pool, settler PickGrader, flags repository.FlagRepository, events repository.EventRepository, alerts repository.AlertRepository) *AdminHandler {
	return &AdminHandler{pool: pool, settler: settler, flags: flags, events: events, alerts: alerts}
}

type gradeRequest struct {
	AdminOverride string `json:"admin_override,omitempty"`
	AdminNote     string `json:"admin_note,omitempty"`
}

// GradePick handles POST /api/grading/pick/{pickID}.
func (h *AdminHandler) GradePick(w http.ResponseWriter, r *http.Request) {
	pickID := chi.URLParam(r, "pickID")

	var req gradeRequest
	if err := DecodeJSON(r, &req); err != nil {
		RespondError(w, domain.ErrValidation("malformed request body"))
		return
	}

	opts := settlement.GradeOptions{GradeSource: "admin", AdminNote: req.AdminNote}
	if req.AdminOverride != "" {
		outcome, err := domain.ParseSettlementOutcome(req.AdminOverride)
		if err != nil {
			RespondError(w, err)
			return
		}
		opts.Override = &outcome
	}

	rec, err := h.settler.Grade(r.Context(), pickID, opts)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, rec)
}

type flagRequest struct {
	Enabled bool `json:"enabled"`
}

// SetFlag handles PATCH /admin/flags/{name}.
func (h *AdminHandler) SetFlag(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	var req flagRequest
	if err := DecodeJSON(r, &req); err != nil {
		RespondError(w, domain.ErrValidation("malformed request body"))
		return
	}
	if err := h.flags.Set(r.Context(), h.pool, guard.ModuleAdmin, name, req.Enabled); err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, map[string]any{"name": name, "enabled": req.Enabled})
}

type reconcileRequest struct {
	HomeName string `json:"home_name"`
	AwayName string `json:"away_name"`
}

// ReconcileEvent handles POST /admin/events/{eventID}/reconcile: fixes the
// canonical names after mapping drift and unfreezes grading.
func (h *AdminHandler) ReconcileEvent(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventID")

	var req reconcileRequest
	if err := DecodeJSON(r, &req); err != nil {
		RespondError(w, domain.ErrValidation("malformed request body"))
		return
	}
	if req.HomeName == "" || req.AwayName == "" {
		RespondError(w, domain.ErrValidation("home_name and away_name are required"))
		return
	}

	// ReconcileNames also lifts the grading freeze.
	if err := h.events.ReconcileNames(r.Context(), h.pool, guard.ModuleAdmin, eventID, req.HomeName, req.AwayName); err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, map[string]string{"event_id": eventID, "status": "reconciled"})
}
