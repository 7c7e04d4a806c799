package handler

import (
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oddsmith/platform/internal/domain"
	"github.com/oddsmith/platform/internal/repository"
	"github.com/oddsmith/platform/internal/signal"
)

// maxListHorizon bounds GET /api/games listings.
func maxListHorizon(_ *http.Request) time.Time {
	return time.Now().Add(48 * time.Hour)
}

// SimulationHandler triggers on-demand wave evaluations.
type SimulationHandler struct {
	pool     *pgxpool.Pool
	events   repository.EventRepository
	pipeline *signal.Pipeline
}

// NewSimulationHandler creates the handler.
func NewSimulationHandler(pool *pgxpool.Pool, events repository.EventRepository, pipeline *signal.Pipeline) *SimulationHandler {
	return &SimulationHandler{pool: pool, events: events, pipeline: pipeline}
}

type runSimulationRequest struct {
	EventID          string `json:"event_id"`
	Iterations       int    `json:"iterations,omitempty"`
	MarketType       string `json:"market_type,omitempty"`
	MarketSettlement string `json:"market_settlement"`
	Wave             string `json:"wave,omitempty"`
}

// Run handles POST /api/simulations/run. The market contract is checked at
// this boundary: an invalid (league, settlement) pair is a 409 and never
// reaches the engine.
func (h *SimulationHandler) Run(w http.ResponseWriter, r *http.Request) {
	var req runSimulationRequest
	if err := DecodeJSON(r, &req); err != nil {
		RespondError(w, domain.ErrValidation("malformed request body"))
		return
	}
	if req.EventID == "" {
		RespondError(w, domain.ErrValidation("event_id is required"))
		return
	}

	ev, err := h.events.FindByID(r.Context(), h.pool, req.EventID)
	if err != nil {
		RespondError(w, err)
		return
	}
	if ev == nil {
		RespondError(w, domain.ErrNotFound("event", req.EventID))
		return
	}

	settlement := domain.MarketSettlement(req.MarketSettlement)
	if settlement == "" {
		settlement = domain.SettleFullGame
	}
	marketType := "all"
	if req.MarketType != "" {
		mt, err := domain.ParseMarketType(req.MarketType)
		if err != nil {
			RespondError(w, err)
			return
		}
		marketType = string(mt)
	}
	if !ev.League.SupportsSettlement(settlement) {
		RespondError(w, domain.ErrMarketContractMismatch(string(ev.League), marketType, string(settlement)))
		return
	}

	wave := domain.Wave(req.Wave)
	switch wave {
	case domain.WaveDiscovery, domain.WaveValidation, domain.WavePublish:
	case "":
		wave = domain.WaveValidation
	default:
		RespondError(w, domain.ErrValidation("unknown wave"))
		return
	}

	iterations := req.Iterations
	if iterations == 0 {
		iterations = int(domain.Tier25K)
	}

	out, err := h.pipeline.RunWaveIterations(r.Context(), ev, wave, iterations)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, map[string]any{
		"sim_run_id": out.Run.SimRunID,
		"converged":  out.Run.Converged,
		"decisions":  out.Game,
	})
}
