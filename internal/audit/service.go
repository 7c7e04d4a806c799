package audit

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oddsmith/platform/internal/domain"
	"github.com/oddsmith/platform/internal/guard"
	"github.com/oddsmith/platform/internal/repository"
)

// Entry kinds.
const (
	KindDecisionServed = "decision_served"
	KindPublished      = "published"
	KindGraded         = "graded"
	KindParlayAttempt  = "parlay_attempt"
	KindCalibration    = "calibration"
)

// Service is the only writer of the audit log.
type Service struct {
	pool   *pgxpool.Pool
	repo   repository.AuditRepository
	logger *slog.Logger
}

// NewService wires the audit service.
func NewService(pool *pgxpool.Pool, repo repository.AuditRepository, logger *slog.Logger) *Service {
	return &Service{pool: pool, repo: repo, logger: logger}
}

// Record appends one audit entry. Failures are logged, never propagated:
// audit is observability, not control flow.
func (s *Service) Record(ctx context.Context, kind, eventID, refID string, payload any) {
	var raw []byte
	if payload != nil {
		var err error
		raw, err = json.Marshal(payload)
		if err != nil {
			s.logger.Error("audit payload marshal failed", "kind", kind, "error", err)
			return
		}
	}
	entry := &domain.AuditEntry{
		AuditID:   uuid.NewString(),
		Kind:      kind,
		EventID:   eventID,
		RefID:     refID,
		Payload:   raw,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.repo.Append(ctx, s.pool, guard.ModuleAudit, entry); err != nil {
		s.logger.Error("audit append failed", "kind", kind, "error", err)
	}
}
