package parlay

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oddsmith/platform/internal/domain"
	"github.com/oddsmith/platform/internal/guard"
	"github.com/oddsmith/platform/internal/repository"
)

const (
	candidateWindow = 24 * time.Hour
	candidateLimit  = 500
)

// Service gathers the candidate pool, runs construction, and records every
// attempt in the append-only log.
type Service struct {
	pool      *pgxpool.Pool
	decisions repository.DecisionRepository
	attempts  repository.ParlayAttemptRepository
	flags     repository.FlagRepository
	logger    *slog.Logger
}

// NewService wires the parlay service.
func NewService(pool *pgxpool.Pool, decisions repository.DecisionRepository, attempts repository.ParlayAttemptRepository, flags repository.FlagRepository, logger *slog.Logger) *Service {
	return &Service{pool: pool, decisions: decisions, attempts: attempts, flags: flags, logger: logger}
}

// Generate builds one parlay for the request. Every outcome, success or
// fail, lands in parlay_attempts.
func (s *Service) Generate(ctx context.Context, req domain.ParlayRequest) (*domain.ParlayResult, error) {
	enabled, err := s.flags.Get(ctx, s.pool, domain.FlagParlayEnabled)
	if err != nil {
		return nil, err
	}
	if !enabled {
		return nil, domain.ErrValidation("parlay generation is disabled")
	}

	recent, err := s.decisions.ListRecent(ctx, s.pool, time.Now().Add(-candidateWindow), candidateLimit)
	if err != nil {
		return nil, err
	}

	var audit domain.ParlayAudit
	pool := Candidates(recent, &audit)
	res := Build(req, pool, audit)

	if err := s.attempts.Append(ctx, s.pool, guard.ModuleSignal, res); err != nil {
		s.logger.Error("parlay attempt log write failed", "attempt_id", res.AttemptID, "error", err)
	}

	s.logger.Info("parlay attempt",
		"attempt_id", res.AttemptID,
		"profile", req.Profile,
		"legs", req.Legs,
		"status", res.Status,
		"reason_code", res.ReasonCode,
	)
	return res, nil
}

// Stats aggregates the trailing attempt log.
func (s *Service) Stats(ctx context.Context, window time.Duration) (repository.ParlayStats, error) {
	return s.attempts.Stats(ctx, s.pool, time.Now().Add(-window))
}
