package orchestrator

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oddsmith/platform/internal/domain"
	"github.com/oddsmith/platform/internal/guard"
	"github.com/oddsmith/platform/internal/repository"
)

// riskyFlags are disabled wholesale on an integrity rollback. The publisher
// kill switch is flipped by the sentinel itself before this runs.
var riskyFlags = []string{
	domain.FlagLLMCopyAgent,
	domain.FlagParlayEnabled,
}

// Rollbacker is the sentinel's rollback controller. It pins the system to
// its conservative configuration; queued publish items age out through the
// publisher's freshness gate.
type Rollbacker struct {
	pool   *pgxpool.Pool
	flags  repository.FlagRepository
	alerts repository.AlertRepository
	logger *slog.Logger
}

// NewRollbacker wires the rollback controller.
func NewRollbacker(pool *pgxpool.Pool, flags repository.FlagRepository, alerts repository.AlertRepository, logger *slog.Logger) *Rollbacker {
	return &Rollbacker{pool: pool, flags: flags, alerts: alerts, logger: logger}
}

// Rollback disables the risky feature flags and records what it did.
func (r *Rollbacker) Rollback(ctx context.Context, reason string) error {
	for _, name := range riskyFlags {
		if err := r.flags.Set(ctx, r.pool, guard.ModuleSentinel, name, false); err != nil {
			r.logger.Error("rollback flag disable failed", "flag", name, "error", err)
			return err
		}
		r.logger.Warn("rollback disabled flag", "flag", name, "reason", reason)
	}
	alert := domain.NewOpsAlert(domain.AlertSentinelBreach, domain.SeverityCritical, "",
		"rollback executed: "+reason)
	return r.alerts.Insert(ctx, r.pool, guard.ModuleSentinel, &alert)
}
