package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/oddsmith/platform/internal/audit"
	"github.com/oddsmith/platform/internal/domain"
	"github.com/oddsmith/platform/internal/guard"
	"github.com/oddsmith/platform/internal/integrity"
	"github.com/oddsmith/platform/internal/provider"
	"github.com/oddsmith/platform/internal/repository"
	"github.com/oddsmith/platform/internal/settlement"
	"github.com/oddsmith/platform/internal/signal"
)

const (
	backoffMin = 10 * time.Second
	backoffMax = 10 * time.Minute

	upcomingHorizon = 7 * time.Hour
	sweepBatch      = 100
)

// Orchestrator owns every periodic loop: odds polling per league, wave
// timers, signal locking, settlement sweeps, the nightly calibration
// snapshot, and the sentinel. It drives the components and never bypasses
// them.
type Orchestrator struct {
	pool      *pgxpool.Pool
	events    repository.EventRepository
	snapshots repository.SnapshotRepository
	signals   repository.SignalRepository
	grading   repository.GradingRepository
	odds      *provider.OddsAPIClient
	machine   *signal.Machine
	settler   *settlement.Engine
	sentinel  *integrity.Sentinel
	auditor   *audit.Service
	logger    *slog.Logger

	pollInterval  time.Duration
	sweepInterval time.Duration
	now           func() time.Time
}

// NewOrchestrator wires the scheduler.
func NewOrchestrator(
	pool *pgxpool.Pool,
	events repository.EventRepository,
	snapshots repository.SnapshotRepository,
	signals repository.SignalRepository,
	grading repository.GradingRepository,
	odds *provider.OddsAPIClient,
	machine *signal.Machine,
	settler *settlement.Engine,
	sentinel *integrity.Sentinel,
	auditor *audit.Service,
	pollInterval, sweepInterval time.Duration,
	logger *slog.Logger,
) *Orchestrator {
	if pollInterval <= 0 {
		pollInterval = time.Minute
	}
	if sweepInterval <= 0 {
		sweepInterval = 15 * time.Minute
	}
	return &Orchestrator{
		pool:          pool,
		events:        events,
		snapshots:     snapshots,
		signals:       signals,
		grading:       grading,
		odds:          odds,
		machine:       machine,
		settler:       settler,
		sentinel:      sentinel,
		auditor:       auditor,
		logger:        logger,
		pollInterval:  pollInterval,
		sweepInterval: sweepInterval,
		now:           time.Now,
	}
}

// Run blocks until the context ends. One worker per league polling loop, one
// wave scheduler, one settlement worker, one sentinel loop.
func (o *Orchestrator) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	for _, league := range domain.Leagues {
		league := league
		g.Go(func() error { return o.pollLoop(ctx, league) })
	}
	g.Go(func() error { return o.waveLoop(ctx) })
	g.Go(func() error { return o.settlementLoop(ctx) })
	g.Go(func() error { return o.calibrationLoop(ctx) })
	g.Go(func() error { return o.sentinel.Run(ctx) })

	return g.Wait()
}

// pollLoop fetches odds for one league on the poll interval with bounded
// exponential backoff after provider failures.
func (o *Orchestrator) pollLoop(ctx context.Context, league domain.League) error {
	limiter := rate.NewLimiter(rate.Every(o.pollInterval), 1)
	backoff := backoffMin

	for {
		if err := limiter.Wait(ctx); err != nil {
			return err
		}
		if err := o.pollOnce(ctx, league); err != nil {
			o.logger.Warn("odds poll failed", "league", league, "backoff", backoff, "error", err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > backoffMax {
				backoff = backoffMax
			}
			continue
		}
		backoff = backoffMin
	}
}

func (o *Orchestrator) pollOnce(ctx context.Context, league domain.League) error {
	pairs, err := o.odds.FetchOdds(ctx, league)
	if err != nil {
		return err
	}

	now := o.now().UTC()
	recorded := 0
	for _, p := range pairs {
		if p.Event.StartTime.Before(now) {
			continue
		}
		if err := o.events.Upsert(ctx, o.pool, guard.ModuleOrchestr, p.Event); err != nil {
			o.logger.Error("event upsert failed", "event_id", p.Event.EventID, "error", err)
			continue
		}
		p.Snapshot.Wave = waveFor(p.Event.StartTime, now)
		if err := o.snapshots.Record(ctx, o.pool, guard.ModuleOrchestr, p.Snapshot); err != nil {
			o.logger.Debug("snapshot not recorded", "event_id", p.Event.EventID, "error", err)
			continue
		}
		recorded++
	}
	o.logger.Info("odds poll complete", "league", league, "events", len(pairs), "snapshots", recorded)
	return nil
}

// waveFor labels a snapshot by distance to start.
func waveFor(start, observed time.Time) domain.Wave {
	until := start.Sub(observed)
	switch {
	case until > 3*time.Hour:
		return domain.WaveDiscovery
	case until > 90*time.Minute:
		return domain.WaveValidation
	case until > 30*time.Minute:
		return domain.WavePublish
	}
	return domain.WaveClosing
}

// waveLoop fires due wave evaluations and locks published signals at start
// time. Waves are idempotent, so re-firing a completed wave is a no-op.
func (o *Orchestrator) waveLoop(ctx context.Context) error {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		now := o.now().UTC()
		for _, league := range domain.Leagues {
			events, err := o.events.ListUpcoming(ctx, o.pool, league, now.Add(upcomingHorizon))
			if err != nil {
				o.logger.Error("upcoming events query failed", "league", league, "error", err)
				continue
			}
			for i := range events {
				o.fireDueWaves(ctx, &events[i], now)
			}
		}

		o.lockStartedSignals(ctx, now)
		o.freezeStartedEvents(ctx, now)
	}
}

func (o *Orchestrator) fireDueWaves(ctx context.Context, ev *domain.Event, now time.Time) {
	type boundary struct {
		wave domain.Wave
		at   time.Time
	}
	boundaries := []boundary{
		{domain.WaveDiscovery, ev.StartTime.Add(-6 * time.Hour)},
		{domain.WaveValidation, ev.StartTime.Add(-120 * time.Minute)},
		{domain.WavePublish, ev.StartTime.Add(-60 * time.Minute)},
	}
	for _, b := range boundaries {
		if now.Before(b.at) || now.After(ev.StartTime) {
			continue
		}
		for _, mt := range domain.MarketTypes {
			if _, err := o.machine.EvaluateWave(ctx, ev, mt, b.wave); err != nil {
				o.logger.Warn("wave evaluation failed",
					"event_id", ev.EventID, "market_type", mt, "wave", b.wave, "error", err)
			}
		}
	}
}

func (o *Orchestrator) lockStartedSignals(ctx context.Context, now time.Time) {
	sigs, err := o.signals.ListByStatus(ctx, o.pool, domain.SignalPublished, sweepBatch)
	if err != nil {
		o.logger.Error("published signals query failed", "error", err)
		return
	}
	for i := range sigs {
		if sigs[i].StartTime.After(now) {
			continue
		}
		if err := o.machine.Lock(ctx, sigs[i].SignalID); err != nil {
			o.logger.Error("signal lock failed", "signal_id", sigs[i].SignalID, "error", err)
		}
	}
}

func (o *Orchestrator) freezeStartedEvents(ctx context.Context, now time.Time) {
	events, err := o.events.ListStarted(ctx, o.pool, sweepBatch)
	if err != nil {
		o.logger.Error("started events query failed", "error", err)
		return
	}
	for i := range events {
		if events[i].Status != domain.EventScheduled || events[i].StartTime.After(now) {
			continue
		}
		if err := o.events.SetStatus(ctx, o.pool, guard.ModuleOrchestr, events[i].EventID, domain.EventFrozen); err != nil {
			o.logger.Error("event freeze failed", "event_id", events[i].EventID, "error", err)
		}
	}
}

// settlementLoop grades locked signals every sweep. GameNotCompleted is
// expected and retried on the next sweep; everything else is logged and
// moves on.
func (o *Orchestrator) settlementLoop(ctx context.Context) error {
	ticker := time.NewTicker(o.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		sigs, err := o.signals.ListByStatus(ctx, o.pool, domain.SignalLocked, sweepBatch)
		if err != nil {
			o.logger.Error("locked signals query failed", "error", err)
			continue
		}
		for i := range sigs {
			rec, err := o.settler.Grade(ctx, sigs[i].SignalID, settlement.GradeOptions{GradeSource: "auto"})
			if err != nil {
				var appErr *domain.AppError
				if errors.As(err, &appErr) && appErr.Retryable {
					continue
				}
				o.logger.Error("grading failed", "signal_id", sigs[i].SignalID, "error", err)
				continue
			}
			o.auditor.Record(ctx, audit.KindGraded, rec.EventID, rec.IdempotencyKey, rec)
		}
	}
}

// calibrationLoop writes a nightly accuracy snapshot over the last day of
// grading into the audit log.
func (o *Orchestrator) calibrationLoop(ctx context.Context) error {
	for {
		next := nextRunAt(o.now().UTC(), 4, 10)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(next.Sub(o.now().UTC())):
		}

		records, err := o.grading.ListSince(ctx, o.pool, o.now().Add(-24*time.Hour))
		if err != nil {
			o.logger.Error("calibration query failed", "error", err)
			continue
		}
		snap := calibrate(records)
		o.auditor.Record(ctx, audit.KindCalibration, "", "", snap)
		o.logger.Info("calibration snapshot recorded",
			"graded", snap.Graded, "wins", snap.Wins, "mean_clv", snap.MeanCLV)
	}
}

// CalibrationSnapshot is the nightly settlement aggregate.
type CalibrationSnapshot struct {
	Graded  int     `json:"graded"`
	Wins    int     `json:"wins"`
	Losses  int     `json:"losses"`
	Pushes  int     `json:"pushes"`
	Voids   int     `json:"voids"`
	MeanCLV float64 `json:"mean_clv"`
	Window  string  `json:"window"`
}

func calibrate(records []domain.GradingRecord) CalibrationSnapshot {
	snap := CalibrationSnapshot{Window: "24h"}
	clvSum := 0.0
	clvN := 0
	for i := range records {
		snap.Graded++
		switch records[i].Settlement {
		case domain.SettleWin:
			snap.Wins++
		case domain.SettleLoss:
			snap.Losses++
		case domain.SettlePush:
			snap.Pushes++
		case domain.SettleVoid:
			snap.Voids++
		}
		if records[i].CLV != nil {
			clvSum += *records[i].CLV
			clvN++
		}
	}
	if clvN > 0 {
		snap.MeanCLV = clvSum / float64(clvN)
	}
	return snap
}

// nextRunAt returns the next daily occurrence of hh:mm UTC after now.
func nextRunAt(now time.Time, hour, minute int) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, time.UTC)
	if !next.After(now) {
		next = next.Add(24 * time.Hour)
	}
	return next
}
