package settlement

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oddsmith/platform/internal/domain"
	"github.com/oddsmith/platform/internal/guard"
	"github.com/oddsmith/platform/internal/repository"
)

// ScoreProvider fetches a final score by exact provider event id. Team-name
// lookup is not part of this interface on purpose; fuzzy matching lives only
// in the offline backfill tool.
type ScoreProvider interface {
	FetchScore(ctx context.Context, league domain.League, providerEventID string) (*domain.FinalScore, error)
}

// GradeOptions carries the optional admin override.
type GradeOptions struct {
	GradeSource string
	Override    *domain.SettlementOutcome
	AdminNote   string
}

// Engine grades locked picks. Grading is idempotent under the rules-versioned
// key; duplicate calls are successful no-ops returning the stored record.
type Engine struct {
	pool      *pgxpool.Pool
	signals   repository.SignalRepository
	events    repository.EventRepository
	snapshots repository.SnapshotRepository
	grading   repository.GradingRepository
	alerts    repository.AlertRepository
	scores    ScoreProvider
	logger    *slog.Logger
	now       func() time.Time
}

// NewEngine wires the settlement engine.
func NewEngine(
	pool *pgxpool.Pool,
	signals repository.SignalRepository,
	events repository.EventRepository,
	snapshots repository.SnapshotRepository,
	grading repository.GradingRepository,
	alerts repository.AlertRepository,
	scores ScoreProvider,
	logger *slog.Logger,
) *Engine {
	return &Engine{
		pool:      pool,
		signals:   signals,
		events:    events,
		snapshots: snapshots,
		grading:   grading,
		alerts:    alerts,
		scores:    scores,
		logger:    logger,
		now:       time.Now,
	}
}

// Grade runs the settlement pipeline for one pick.
func (e *Engine) Grade(ctx context.Context, pickID string, opts GradeOptions) (*domain.GradingRecord, error) {
	if opts.GradeSource == "" {
		opts.GradeSource = "auto"
	}
	if opts.Override != nil && opts.AdminNote == "" {
		return nil, domain.ErrValidation("admin_override requires a non-empty admin_note")
	}

	sig, err := e.signals.FindByID(ctx, e.pool, pickID)
	if err != nil {
		return nil, err
	}
	if sig == nil {
		return nil, domain.ErrNotFound("pick", pickID)
	}

	ev, err := e.events.FindByID(ctx, e.pool, sig.EventID)
	if err != nil {
		return nil, err
	}
	if ev == nil {
		return nil, domain.ErrNotFound("event", sig.EventID)
	}
	if ev.GradingFrozen {
		return nil, domain.ErrMappingDrift(ev.EventID, "grading frozen pending operator reconciliation")
	}

	// Exact provider id only. No runtime name matching.
	providerID := ev.ProviderEventID(domain.ProviderOddsAPI)
	if providerID == "" {
		e.alert(ctx, domain.AlertProviderIDMissing, domain.SeverityCritical, ev.EventID,
			fmt.Sprintf("pick %s cannot grade: no %s event id", pickID, domain.ProviderOddsAPI))
		return nil, domain.ErrMissingProviderID(ev.EventID, domain.ProviderOddsAPI)
	}

	score, err := e.scores.FetchScore(ctx, ev.League, providerID)
	if err != nil {
		return nil, err
	}
	if score == nil || !score.Completed {
		return nil, domain.ErrGameNotCompleted(ev.EventID)
	}

	// Mapping drift check: the provider payload's canonical names must match
	// ours exactly. Drift freezes grading for the event.
	if score.HomeName != ev.HomeName || score.AwayName != ev.AwayName {
		detail := fmt.Sprintf("provider names %q/%q vs canonical %q/%q",
			score.HomeName, score.AwayName, ev.HomeName, ev.AwayName)
		e.alert(ctx, domain.AlertMappingDrift, domain.SeverityCritical, ev.EventID, detail)
		if err := e.events.SetGradingFrozen(ctx, e.pool, guard.ModuleSettlement, ev.EventID, true); err != nil {
			e.logger.Error("failed to freeze grading", "event_id", ev.EventID, "error", err)
		}
		return nil, domain.ErrMappingDrift(ev.EventID, detail)
	}

	// A verified final score completes the event lifecycle.
	if ev.Status != domain.EventCompleted {
		if err := e.events.SetStatus(ctx, e.pool, guard.ModuleSettlement, ev.EventID, domain.EventCompleted); err != nil {
			e.logger.Error("failed to mark event completed", "event_id", ev.EventID, "error", err)
		} else {
			ev.Status = domain.EventCompleted
		}
	}

	pick := e.pickFor(sig)
	if pick == nil {
		return nil, domain.ErrValidation(fmt.Sprintf("pick %s has no graded selection", pickID))
	}

	outcome := Settle(ev.League, sig.MarketType, pick, score)
	if opts.Override != nil {
		outcome = *opts.Override
	}

	clv, alertIDs := e.computeCLV(ctx, ev, sig)

	key := domain.GradingIdempotencyKey(pickID, opts.GradeSource, SettlementRulesVersion, CLVRulesVersion)
	rec := &domain.GradingRecord{
		PickID:          pickID,
		EventID:         ev.EventID,
		ProviderEventID: providerID,
		IdempotencyKey:  key,
		Settlement:      outcome,
		CLV:             clv,
		ScorePayloadRef: domain.ScorePayloadRef{
			ProviderEventID: providerID,
			PayloadHash:     payloadHash(score),
			Snapshot:        *score,
		},
		OpsAlerts:              alertIDs,
		AdminOverride:          opts.Override,
		AdminNote:              opts.AdminNote,
		SettlementRulesVersion: SettlementRulesVersion,
		CLVRulesVersion:        CLVRulesVersion,
		GradedAt:               e.now().UTC(),
	}

	stored, inserted, err := e.grading.Upsert(ctx, e.pool, guard.ModuleSettlement, rec)
	if err != nil {
		return nil, err
	}
	if !inserted {
		e.logger.Info("duplicate grading call", "pick_id", pickID, "idempotency_key", key)
		return stored, nil
	}

	e.markSettled(ctx, sig, key)

	e.logger.Info("pick graded",
		"pick_id", pickID,
		"event_id", ev.EventID,
		"settlement", stored.Settlement,
		"clv_null", stored.CLV == nil,
		"override", opts.Override != nil,
	)
	return stored, nil
}

// pickFor resolves the graded selection: frozen entry terms when published,
// otherwise the latest wave decision.
func (e *Engine) pickFor(sig *domain.Signal) *domain.Pick {
	var d *domain.MarketDecision
	for i := len(sig.Waves) - 1; i >= 0; i-- {
		if sig.Waves[i].Decision != nil && sig.Waves[i].Decision.Pick != nil {
			d = sig.Waves[i].Decision
			break
		}
	}
	if d == nil {
		return nil
	}
	pick := *d.Pick
	if sig.Entry != nil {
		pick.Line = sig.Entry.EntryLine
	}
	return &pick
}

// computeCLV returns the closing line value, or nil with a warning alert
// when the closing snapshot is missing. Grading continues either way.
func (e *Engine) computeCLV(ctx context.Context, ev *domain.Event, sig *domain.Signal) (*float64, []string) {
	if sig.Entry == nil {
		return nil, nil
	}
	closing, err := e.snapshots.Closing(ctx, e.pool, ev.EventID, ev.StartTime)
	if err != nil {
		e.logger.Error("closing snapshot lookup failed", "event_id", ev.EventID, "error", err)
		return nil, nil
	}
	if closing == nil {
		id := e.alert(ctx, domain.AlertCloseSnapshotMissing, domain.SeverityWarning, ev.EventID,
			fmt.Sprintf("no closing snapshot for pick %s; clv recorded null", sig.SignalID))
		return nil, []string{id}
	}

	side := domain.SideHome
	if rec := sig.WaveResult(domain.WavePublish); rec != nil && rec.Decision != nil && rec.Decision.Pick != nil {
		side = rec.Decision.Pick.Side
	}
	v := CLV(sig.Entry.EntryOdds, closingOddsFor(sig.MarketType, side, closing))
	return &v, nil
}

// markSettled advances the signal; failure here does not undo the grade.
func (e *Engine) markSettled(ctx context.Context, sig *domain.Signal, gradingID string) {
	prior := sig.Status
	if prior != domain.SignalLocked && prior != domain.SignalPublished {
		return
	}
	sig.Status = domain.SignalSettled
	sig.GradingID = gradingID
	if err := e.signals.Update(ctx, e.pool, guard.ModuleSettlement, sig, prior); err != nil {
		e.logger.Error("failed to mark signal settled", "signal_id", sig.SignalID, "error", err)
	}
}

func (e *Engine) alert(ctx context.Context, kind domain.AlertKind, sev domain.AlertSeverity, eventID, detail string) string {
	a := domain.NewOpsAlert(kind, sev, eventID, detail)
	if err := e.alerts.Insert(ctx, e.pool, guard.ModuleSettlement, &a); err != nil {
		e.logger.Error("alert write failed", "kind", kind, "error", err)
	}
	return a.AlertID
}

func payloadHash(score *domain.FinalScore) string {
	payload, _ := json.Marshal(score)
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}
