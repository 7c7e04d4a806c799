package settlement

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oddsmith/platform/internal/domain"
	"github.com/oddsmith/platform/internal/guard"
	"github.com/oddsmith/platform/internal/repository"
)

// --- Grading Pipeline Tests ---

type fakeSignals struct {
	byID    map[string]*domain.Signal
	updates []domain.SignalStatus
}

func (f *fakeSignals) Insert(context.Context, repository.DBTX, guard.Module, *domain.Signal) error {
	return nil
}

func (f *fakeSignals) FindByID(_ context.Context, _ repository.DBTX, id string) (*domain.Signal, error) {
	return f.byID[id], nil
}

func (f *fakeSignals) FindByEventMarket(context.Context, repository.DBTX, string, domain.MarketType) (*domain.Signal, error) {
	return nil, nil
}

func (f *fakeSignals) Update(_ context.Context, _ repository.DBTX, _ guard.Module, sig *domain.Signal, _ domain.SignalStatus) error {
	f.updates = append(f.updates, sig.Status)
	f.byID[sig.SignalID] = sig
	return nil
}

func (f *fakeSignals) ListByStatus(context.Context, repository.DBTX, domain.SignalStatus, int) ([]domain.Signal, error) {
	return nil, nil
}

type fakeEvents struct {
	ev       *domain.Event
	statuses []domain.EventStatus
	frozen   []bool
}

func (f *fakeEvents) Upsert(context.Context, repository.DBTX, guard.Module, *domain.Event) error {
	return nil
}

func (f *fakeEvents) FindByID(_ context.Context, _ repository.DBTX, id string) (*domain.Event, error) {
	if f.ev != nil && f.ev.EventID == id {
		return f.ev, nil
	}
	return nil, nil
}

func (f *fakeEvents) FindByProviderID(context.Context, repository.DBTX, string, string) (*domain.Event, error) {
	return nil, nil
}

func (f *fakeEvents) ListUpcoming(context.Context, repository.DBTX, domain.League, time.Time) ([]domain.Event, error) {
	return nil, nil
}

func (f *fakeEvents) ListStarted(context.Context, repository.DBTX, int) ([]domain.Event, error) {
	return nil, nil
}

func (f *fakeEvents) SetStatus(_ context.Context, _ repository.DBTX, _ guard.Module, _ string, status domain.EventStatus) error {
	f.statuses = append(f.statuses, status)
	f.ev.Status = status
	return nil
}

func (f *fakeEvents) SetGradingFrozen(_ context.Context, _ repository.DBTX, _ guard.Module, _ string, frozen bool) error {
	f.frozen = append(f.frozen, frozen)
	f.ev.GradingFrozen = frozen
	return nil
}

func (f *fakeEvents) ReconcileNames(context.Context, repository.DBTX, guard.Module, string, string, string) error {
	return nil
}

func (f *fakeEvents) ListMissingProviderID(context.Context, repository.DBTX, domain.League, string) ([]domain.Event, error) {
	return nil, nil
}

func (f *fakeEvents) SetProviderID(context.Context, repository.DBTX, guard.Module, string, string, string) error {
	return nil
}

type fakeSnapshots struct {
	closing *domain.MarketSnapshot
}

func (f *fakeSnapshots) Record(context.Context, repository.DBTX, guard.Module, *domain.MarketSnapshot) error {
	return nil
}

func (f *fakeSnapshots) Latest(context.Context, repository.DBTX, string) (*domain.MarketSnapshot, error) {
	return nil, nil
}

func (f *fakeSnapshots) AtWave(context.Context, repository.DBTX, string, domain.Wave) (*domain.MarketSnapshot, error) {
	return nil, nil
}

func (f *fakeSnapshots) Closing(context.Context, repository.DBTX, string, time.Time) (*domain.MarketSnapshot, error) {
	return f.closing, nil
}

type fakeGrading struct {
	byKey map[string]*domain.GradingRecord
}

func (f *fakeGrading) Upsert(_ context.Context, _ repository.DBTX, _ guard.Module, rec *domain.GradingRecord) (*domain.GradingRecord, bool, error) {
	if existing, ok := f.byKey[rec.IdempotencyKey]; ok {
		return existing, false, nil
	}
	stored := *rec
	f.byKey[rec.IdempotencyKey] = &stored
	return &stored, true, nil
}

func (f *fakeGrading) FindByKey(_ context.Context, _ repository.DBTX, key string) (*domain.GradingRecord, error) {
	return f.byKey[key], nil
}

func (f *fakeGrading) FindByPick(context.Context, repository.DBTX, string) (*domain.GradingRecord, error) {
	return nil, nil
}

func (f *fakeGrading) ListSince(context.Context, repository.DBTX, time.Time) ([]domain.GradingRecord, error) {
	return nil, nil
}

type fakeAlertLog struct {
	alerts []domain.OpsAlert
}

func (f *fakeAlertLog) Insert(_ context.Context, _ repository.DBTX, _ guard.Module, alert *domain.OpsAlert) error {
	f.alerts = append(f.alerts, *alert)
	return nil
}

func (f *fakeAlertLog) ListByKindSince(context.Context, repository.DBTX, domain.AlertKind, time.Time) ([]domain.OpsAlert, error) {
	return nil, nil
}

func (f *fakeAlertLog) Resolve(context.Context, repository.DBTX, guard.Module, string) error {
	return nil
}

func (f *fakeAlertLog) kinds() []domain.AlertKind {
	out := make([]domain.AlertKind, 0, len(f.alerts))
	for _, a := range f.alerts {
		out = append(out, a.Kind)
	}
	return out
}

type fakeScores struct {
	score *domain.FinalScore
	err   error
}

func (f *fakeScores) FetchScore(context.Context, domain.League, string) (*domain.FinalScore, error) {
	return f.score, f.err
}

type engineFixture struct {
	engine  *Engine
	signals *fakeSignals
	events  *fakeEvents
	snaps   *fakeSnapshots
	grading *fakeGrading
	alerts  *fakeAlertLog
	scores  *fakeScores
}

func newEngineFixture(t *testing.T) *engineFixture {
	t.Helper()
	start := time.Date(2026, 3, 14, 23, 0, 0, 0, time.UTC)

	ev := &domain.Event{
		EventID:          "nba-5001",
		League:           domain.LeagueNBA,
		HomeTeamID:       "NYK",
		AwayTeamID:       "PHI",
		HomeName:         "New York Knicks",
		AwayName:         "Philadelphia 76ers",
		StartTime:        start,
		Status:           domain.EventFrozen,
		ProviderEventMap: map[string]string{domain.ProviderOddsAPI: "oa-77"},
	}

	pick := &domain.Pick{TeamID: "NYK", TeamName: "New York Knicks", Side: domain.SideHome, Line: -2.5}
	sig := &domain.Signal{
		SignalID:   "pick-1",
		EventID:    ev.EventID,
		League:     ev.League,
		MarketType: domain.MarketSpread,
		StartTime:  start,
		Status:     domain.SignalLocked,
		Waves: []domain.WaveRecord{{
			Wave:     domain.WavePublish,
			Decision: &domain.MarketDecision{MarketType: domain.MarketSpread, Pick: pick},
		}},
		Entry: &domain.Entry{
			SelectionID: "nba-5001:spread:home",
			MarketType:  domain.MarketSpread,
			EntryLine:   -2.5,
			EntryOdds:   -110,
		},
	}

	fx := &engineFixture{
		signals: &fakeSignals{byID: map[string]*domain.Signal{sig.SignalID: sig}},
		events:  &fakeEvents{ev: ev},
		snaps: &fakeSnapshots{closing: &domain.MarketSnapshot{
			EventID:         ev.EventID,
			SpreadHome:      -3.0,
			SpreadHomePrice: -125,
			SpreadAwayPrice: 105,
		}},
		grading: &fakeGrading{byKey: map[string]*domain.GradingRecord{}},
		alerts:  &fakeAlertLog{},
		scores: &fakeScores{score: &domain.FinalScore{
			ProviderEventID: "oa-77",
			HomeName:        "New York Knicks",
			AwayName:        "Philadelphia 76ers",
			HomeScore:       114,
			AwayScore:       104,
			Completed:       true,
		}},
	}
	fx.engine = NewEngine(nil, fx.signals, fx.events, fx.snaps, fx.grading, fx.alerts, fx.scores, slog.Default())
	fx.engine.now = func() time.Time { return start.Add(3 * time.Hour) }
	return fx
}

func TestEngineGrade(t *testing.T) {
	ctx := context.Background()

	t.Run("grades a completed pick and settles the signal", func(t *testing.T) {
		fx := newEngineFixture(t)

		rec, err := fx.engine.Grade(ctx, "pick-1", GradeOptions{})
		require.NoError(t, err)

		assert.Equal(t, domain.SettleWin, rec.Settlement)
		assert.Equal(t, "oa-77", rec.ProviderEventID)
		assert.NotEmpty(t, rec.IdempotencyKey)
		assert.Equal(t, SettlementRulesVersion, rec.SettlementRulesVersion)

		require.NotNil(t, rec.CLV)
		assert.InDelta(t, 0.0317, *rec.CLV, 0.001)
		assert.Empty(t, rec.OpsAlerts)

		sig := fx.signals.byID["pick-1"]
		assert.Equal(t, domain.SignalSettled, sig.Status)
		assert.Equal(t, rec.IdempotencyKey, sig.GradingID)
	})

	t.Run("completes the event once the score is verified", func(t *testing.T) {
		fx := newEngineFixture(t)

		_, err := fx.engine.Grade(ctx, "pick-1", GradeOptions{})
		require.NoError(t, err)

		assert.Equal(t, []domain.EventStatus{domain.EventCompleted}, fx.events.statuses)
		assert.Equal(t, domain.EventCompleted, fx.events.ev.Status)

		// Already-completed events are not written again.
		_, err = fx.engine.Grade(ctx, "pick-1", GradeOptions{})
		require.NoError(t, err)
		assert.Len(t, fx.events.statuses, 1)
	})

	t.Run("missing closing snapshot records null clv with a warning", func(t *testing.T) {
		fx := newEngineFixture(t)
		fx.snaps.closing = nil

		rec, err := fx.engine.Grade(ctx, "pick-1", GradeOptions{})
		require.NoError(t, err)

		assert.Nil(t, rec.CLV)
		assert.Equal(t, domain.SettleWin, rec.Settlement)

		require.Len(t, fx.alerts.alerts, 1)
		alert := fx.alerts.alerts[0]
		assert.Equal(t, domain.AlertCloseSnapshotMissing, alert.Kind)
		assert.Equal(t, domain.SeverityWarning, alert.Severity)
		assert.Equal(t, []string{alert.AlertID}, rec.OpsAlerts)
	})

	t.Run("provider name mismatch freezes grading for the event", func(t *testing.T) {
		fx := newEngineFixture(t)
		fx.scores.score.HomeName = "NY Knicks"

		_, err := fx.engine.Grade(ctx, "pick-1", GradeOptions{})
		var appErr *domain.AppError
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, "MAPPING_DRIFT", appErr.Code)

		assert.Equal(t, []bool{true}, fx.events.frozen)
		assert.True(t, fx.events.ev.GradingFrozen)
		assert.Contains(t, fx.alerts.kinds(), domain.AlertMappingDrift)
		assert.Empty(t, fx.grading.byKey)
		assert.Equal(t, domain.SignalLocked, fx.signals.byID["pick-1"].Status)

		// Frozen events reject further grading until operator reconciliation.
		_, err = fx.engine.Grade(ctx, "pick-1", GradeOptions{})
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, "MAPPING_DRIFT", appErr.Code)
		assert.Empty(t, fx.grading.byKey)
	})

	t.Run("duplicate grade is a successful no-op", func(t *testing.T) {
		fx := newEngineFixture(t)

		first, err := fx.engine.Grade(ctx, "pick-1", GradeOptions{})
		require.NoError(t, err)

		second, err := fx.engine.Grade(ctx, "pick-1", GradeOptions{})
		require.NoError(t, err)

		assert.Equal(t, first.IdempotencyKey, second.IdempotencyKey)
		assert.Equal(t, first.Settlement, second.Settlement)
		assert.Len(t, fx.grading.byKey, 1)
		assert.Equal(t, []domain.SignalStatus{domain.SignalSettled}, fx.signals.updates)
	})

	t.Run("override without a note is rejected", func(t *testing.T) {
		fx := newEngineFixture(t)
		loss := domain.SettleLoss

		_, err := fx.engine.Grade(ctx, "pick-1", GradeOptions{GradeSource: "admin", Override: &loss})
		var appErr *domain.AppError
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, "VALIDATION_ERROR", appErr.Code)
	})

	t.Run("override with a note replaces the computed outcome", func(t *testing.T) {
		fx := newEngineFixture(t)
		void := domain.SettleVoid

		rec, err := fx.engine.Grade(ctx, "pick-1", GradeOptions{
			GradeSource: "admin",
			Override:    &void,
			AdminNote:   "game suspended in the fourth",
		})
		require.NoError(t, err)

		assert.Equal(t, domain.SettleVoid, rec.Settlement)
		require.NotNil(t, rec.AdminOverride)
		assert.Equal(t, domain.SettleVoid, *rec.AdminOverride)
		assert.Equal(t, "game suspended in the fourth", rec.AdminNote)
	})

	t.Run("missing provider id blocks grading with a critical alert", func(t *testing.T) {
		fx := newEngineFixture(t)
		fx.events.ev.ProviderEventMap = nil

		_, err := fx.engine.Grade(ctx, "pick-1", GradeOptions{})
		var appErr *domain.AppError
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, "PROVIDER_ID_MISSING", appErr.Code)

		require.Len(t, fx.alerts.alerts, 1)
		assert.Equal(t, domain.AlertProviderIDMissing, fx.alerts.alerts[0].Kind)
		assert.Equal(t, domain.SeverityCritical, fx.alerts.alerts[0].Severity)
	})

	t.Run("incomplete score is retryable and leaves the event untouched", func(t *testing.T) {
		fx := newEngineFixture(t)
		fx.scores.score.Completed = false

		_, err := fx.engine.Grade(ctx, "pick-1", GradeOptions{})
		var appErr *domain.AppError
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, "GAME_NOT_COMPLETED", appErr.Code)
		assert.True(t, appErr.Retryable)

		assert.Empty(t, fx.events.statuses)
		assert.Equal(t, domain.EventFrozen, fx.events.ev.Status)
	})

	t.Run("unknown pick is a 404", func(t *testing.T) {
		fx := newEngineFixture(t)

		_, err := fx.engine.Grade(ctx, "pick-404", GradeOptions{})
		var appErr *domain.AppError
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, "NOT_FOUND", appErr.Code)
	})
}
