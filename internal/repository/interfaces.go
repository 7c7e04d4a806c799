package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oddsmith/platform/internal/domain"
	"github.com/oddsmith/platform/internal/guard"
)

// DBTX abstracts pgx.Tx and pgxpool.Pool so repositories work with both.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

// Every mutating method names its caller module; the repository refuses the
// write unless the Writer Matrix lists that module for the collection.

// EventRepository provides access to events.
type EventRepository interface {
	// Upsert inserts or refreshes an event keyed by event_id. It never
	// overwrites canonical names after the event is frozen.
	Upsert(ctx context.Context, db DBTX, caller guard.Module, ev *domain.Event) error

	FindByID(ctx context.Context, db DBTX, eventID string) (*domain.Event, error)

	// FindByProviderID resolves an event by exact provider event id.
	FindByProviderID(ctx context.Context, db DBTX, provider, providerEventID string) (*domain.Event, error)

	// ListUpcoming returns scheduled events for a league starting after now.
	ListUpcoming(ctx context.Context, db DBTX, league domain.League, until time.Time) ([]domain.Event, error)

	// ListStarted returns frozen events whose start time has passed.
	ListStarted(ctx context.Context, db DBTX, limit int) ([]domain.Event, error)

	SetStatus(ctx context.Context, db DBTX, caller guard.Module, eventID string, status domain.EventStatus) error

	// SetGradingFrozen toggles the mapping-drift freeze.
	SetGradingFrozen(ctx context.Context, db DBTX, caller guard.Module, eventID string, frozen bool) error

	// ReconcileNames updates canonical team names after operator review.
	ReconcileNames(ctx context.Context, db DBTX, caller guard.Module, eventID, homeName, awayName string) error

	// ListMissingProviderID returns scheduled events with no id mapped for
	// the provider (backfill tool input).
	ListMissingProviderID(ctx context.Context, db DBTX, league domain.League, provider string) ([]domain.Event, error)

	// SetProviderID records one provider event id in the mapping.
	SetProviderID(ctx context.Context, db DBTX, caller guard.Module, eventID, provider, providerEventID string) error
}

// SnapshotRepository is the append-only market snapshot store.
type SnapshotRepository interface {
	// Record appends a snapshot. (event_id, observed_at) collisions are
	// rejected: snapshots are never overwritten.
	Record(ctx context.Context, db DBTX, caller guard.Module, snap *domain.MarketSnapshot) error

	Latest(ctx context.Context, db DBTX, eventID string) (*domain.MarketSnapshot, error)

	AtWave(ctx context.Context, db DBTX, eventID string, wave domain.Wave) (*domain.MarketSnapshot, error)

	// Closing returns the last snapshot observed before startTime, or
	// (nil, nil) when none exists. Absence is non-fatal.
	Closing(ctx context.Context, db DBTX, eventID string, startTime time.Time) (*domain.MarketSnapshot, error)
}

// SimRunRepository stores immutable simulation runs.
type SimRunRepository interface {
	Insert(ctx context.Context, db DBTX, caller guard.Module, run *domain.SimulationRun) error
	FindByID(ctx context.Context, db DBTX, simRunID string) (*domain.SimulationRun, error)
	FindByEventWave(ctx context.Context, db DBTX, eventID string, wave domain.Wave) (*domain.SimulationRun, error)
}

// DecisionRepository stores the latest decision per (event, market).
type DecisionRepository interface {
	// ReplaceGame writes all three decisions of a GameDecisions triple in
	// one transaction with a compare-and-set on decision_version. There is
	// no partial refresh.
	ReplaceGame(ctx context.Context, tx pgx.Tx, caller guard.Module, gd *domain.GameDecisions) error

	// GetGame composes the stored triple for an event.
	GetGame(ctx context.Context, db DBTX, eventID string) (*domain.GameDecisions, error)

	// LatestVersion returns the stored decision_version for an event (0 when none).
	LatestVersion(ctx context.Context, db DBTX, eventID string) (int64, error)

	// ListRecent returns the latest stored decisions computed after the
	// cutoff (parlay candidate pool input).
	ListRecent(ctx context.Context, db DBTX, since time.Time, limit int) ([]domain.MarketDecision, error)
}

// SignalRepository stores signal lifecycle documents.
type SignalRepository interface {
	Insert(ctx context.Context, db DBTX, caller guard.Module, sig *domain.Signal) error

	FindByID(ctx context.Context, db DBTX, signalID string) (*domain.Signal, error)

	FindByEventMarket(ctx context.Context, db DBTX, eventID string, mt domain.MarketType) (*domain.Signal, error)

	// Update persists the signal document with a compare-and-set on the
	// prior status. Published signals only ever move forward.
	Update(ctx context.Context, db DBTX, caller guard.Module, sig *domain.Signal, expectStatus domain.SignalStatus) error

	// ListByStatus returns signals in a status ordered by start time.
	ListByStatus(ctx context.Context, db DBTX, status domain.SignalStatus, limit int) ([]domain.Signal, error)
}

// GradingRepository stores grading records, unique on idempotency key.
type GradingRepository interface {
	// Upsert inserts the record; on an existing idempotency key it returns
	// the stored record and inserted=false.
	Upsert(ctx context.Context, db DBTX, caller guard.Module, rec *domain.GradingRecord) (stored *domain.GradingRecord, inserted bool, err error)

	FindByKey(ctx context.Context, db DBTX, idempotencyKey string) (*domain.GradingRecord, error)

	FindByPick(ctx context.Context, db DBTX, pickID string) (*domain.GradingRecord, error)

	// ListSince returns records graded after the cutoff (calibration input).
	ListSince(ctx context.Context, db DBTX, since time.Time) ([]domain.GradingRecord, error)
}

// AlertRepository stores ops alerts.
type AlertRepository interface {
	Insert(ctx context.Context, db DBTX, caller guard.Module, alert *domain.OpsAlert) error
	ListByKindSince(ctx context.Context, db DBTX, kind domain.AlertKind, since time.Time) ([]domain.OpsAlert, error)
	Resolve(ctx context.Context, db DBTX, caller guard.Module, alertID string) error
}

// AuditRepository is the append-only audit log.
type AuditRepository interface {
	Append(ctx context.Context, db DBTX, caller guard.Module, entry *domain.AuditEntry) error
}

// ParlayAttemptRepository is the append-only parlay attempt log.
type ParlayAttemptRepository interface {
	Append(ctx context.Context, db DBTX, caller guard.Module, res *domain.ParlayResult) error

	// Stats aggregates success/fail counters and a fail-reason histogram
	// over the trailing window.
	Stats(ctx context.Context, db DBTX, since time.Time) (ParlayStats, error)
}

// ParlayStats is the aggregate served by GET /api/parlay/stats.
type ParlayStats struct {
	Success     int            `json:"success"`
	Fail        int            `json:"fail"`
	FailReasons map[string]int `json:"fail_reasons"`
}

// FlagRepository reads and writes database-backed feature flags.
type FlagRepository interface {
	// Get reads a flag through a short-TTL cache.
	Get(ctx context.Context, db DBTX, name string) (bool, error)
	Set(ctx context.Context, db DBTX, caller guard.Module, name string, enabled bool) error
}

// PublishLogRepository is the append-only outbound attempt log.
type PublishLogRepository interface {
	Append(ctx context.Context, db DBTX, caller guard.Module, att *domain.PublishAttempt) error

	// SeenRendering reports whether the dedupe key (signal, template,
	// rendered hash) was already attempted.
	SeenRendering(ctx context.Context, db DBTX, signalID, templateID, renderedHash string) (bool, error)

	// PostedWithin reports whether a post for (event, market) exists inside
	// the window.
	PostedWithin(ctx context.Context, db DBTX, eventID string, mt domain.MarketType, window time.Duration) (bool, error)
}
