package integrity

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/oddsmith/platform/internal/domain"
	"github.com/oddsmith/platform/internal/guard"
	"github.com/oddsmith/platform/internal/repository"
)

// Sentinel thresholds over the rolling window.
const (
	thresholdViolationRate   = 0.005
	thresholdMissingSelRate  = 0.001
	thresholdMissingHashRate = 0.001
	thresholdPostFailRate    = 0.01
	thresholdEdgeCollapse    = 0.90
)

// RollbackController is invoked on a critical breach when the
// autorollback_on_integrity flag is on. Implementations pin model and rules
// versions to last known good and purge the recent publish queue.
type RollbackController interface {
	Rollback(ctx context.Context, reason string) error
}

// Sentinel samples the engine counters on a fixed cadence, computes rates
// over a rolling window, and flips publisher_autopublish off on a critical
// breach. It also drains the writer matrix violation feed into
// WRITER_UNAUTHORIZED ops alerts.
type Sentinel struct {
	db       repository.DBTX
	flags    repository.FlagRepository
	alerts   repository.AlertRepository
	metrics  *Metrics
	matrix   *guard.WriterMatrix
	rollback RollbackController
	logger   *slog.Logger

	cadence  time.Duration
	window   time.Duration
	baseline time.Duration

	samples []timedSample
}

type timedSample struct {
	at time.Time
	s  Sample
}

// NewSentinel builds a sentinel with the default 60s cadence, 5 minute
// window, and 30 minute edge-rate baseline. rollback may be nil.
func NewSentinel(db repository.DBTX, flags repository.FlagRepository, alerts repository.AlertRepository, metrics *Metrics, matrix *guard.WriterMatrix, rollback RollbackController, logger *slog.Logger) *Sentinel {
	return &Sentinel{
		db:       db,
		flags:    flags,
		alerts:   alerts,
		metrics:  metrics,
		matrix:   matrix,
		rollback: rollback,
		logger:   logger,
		cadence:  60 * time.Second,
		window:   5 * time.Minute,
		baseline: 30 * time.Minute,
	}
}

// Run loops until the context ends. The integrity_sentinel flag gates each
// tick so operators can pause monitoring without a deploy.
func (s *Sentinel) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.cadence)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case v := <-s.matrix.Violations():
			s.reportViolation(ctx, v)
		case <-ticker.C:
			enabled, err := s.flags.Get(ctx, s.db, domain.FlagIntegritySentinel)
			if err != nil {
				s.logger.Error("sentinel flag read failed", "error", err)
				continue
			}
			if !enabled {
				continue
			}
			s.Tick(ctx, time.Now().UTC())
		}
	}
}

// Tick takes one sample and evaluates every threshold against the rolling
// window. Exposed for tests.
func (s *Sentinel) Tick(ctx context.Context, now time.Time) {
	s.samples = append(s.samples, timedSample{at: now, s: s.metrics.Snapshot()})
	s.prune(now)

	cur := s.samples[len(s.samples)-1].s
	winStart := s.sampleBefore(now.Add(-s.window))
	baseStart := s.sampleBefore(now.Add(-s.baseline))

	decisions := cur.Decisions - winStart.Decisions
	attempts := cur.PublishAttempts - winStart.PublishAttempts

	type breach struct {
		name     string
		rate     float64
		limit    float64
		critical bool
	}
	var breaches []breach

	if decisions > 0 {
		if r := rate(cur.Violations-winStart.Violations, decisions); r > thresholdViolationRate {
			breaches = append(breaches, breach{"integrity_violation_rate", r, thresholdViolationRate, true})
		}
		if r := rate(cur.MissingSelectionID-winStart.MissingSelectionID, decisions); r > thresholdMissingSelRate {
			breaches = append(breaches, breach{"missing_selection_id_rate", r, thresholdMissingSelRate, true})
		}
		if r := rate(cur.MissingSnapshotHash-winStart.MissingSnapshotHash, decisions); r > thresholdMissingHashRate {
			breaches = append(breaches, breach{"missing_snapshot_hash_rate", r, thresholdMissingHashRate, true})
		}
	}
	if attempts > 0 {
		if r := rate(cur.PostValidationFails-winStart.PostValidationFails, attempts); r > thresholdPostFailRate {
			breaches = append(breaches, breach{"post_validation_fail_rate", r, thresholdPostFailRate, true})
		}
	}

	// Edge collapse compares the windowed edge rate against the 30 minute
	// baseline rate. A sharp collapse usually means an upstream feed or
	// config regression rather than a quiet slate.
	baseDecisions := cur.Decisions - baseStart.Decisions
	if baseDecisions > 0 && decisions > 0 {
		baseRate := rate(cur.EdgeDecisions-baseStart.EdgeDecisions, baseDecisions)
		curRate := rate(cur.EdgeDecisions-winStart.EdgeDecisions, decisions)
		if baseRate > 0 && (baseRate-curRate)/baseRate > thresholdEdgeCollapse {
			breaches = append(breaches, breach{"edge_rate_collapse", (baseRate - curRate) / baseRate, thresholdEdgeCollapse, false})
		}
	}

	critical := false
	for _, b := range breaches {
		sev := domain.SeverityWarning
		if b.critical {
			sev = domain.SeverityCritical
			critical = true
		}
		alert := domain.NewOpsAlert(domain.AlertSentinelBreach, sev, "",
			fmt.Sprintf("%s %.4f exceeds %.4f over %s", b.name, b.rate, b.limit, s.window))
		if err := s.alerts.Insert(ctx, s.db, guard.ModuleSentinel, &alert); err != nil {
			s.logger.Error("sentinel alert write failed", "metric", b.name, "error", err)
		}
		s.logger.Warn("sentinel threshold breached",
			"metric", b.name, "rate", b.rate, "limit", b.limit, "severity", sev)
	}

	if critical {
		s.killAutopublish(ctx)
	}
}

// killAutopublish flips the publisher off and optionally triggers the
// rollback controller.
func (s *Sentinel) killAutopublish(ctx context.Context) {
	if err := s.flags.Set(ctx, s.db, guard.ModuleSentinel, domain.FlagPublisherAutopublish, false); err != nil {
		s.logger.Error("failed to disable autopublish", "error", err)
		return
	}
	s.logger.Warn("autopublish disabled by sentinel")

	if s.rollback == nil {
		return
	}
	auto, err := s.flags.Get(ctx, s.db, domain.FlagAutorollbackOnIntegrity)
	if err != nil || !auto {
		return
	}
	if err := s.rollback.Rollback(ctx, "sentinel critical breach"); err != nil {
		s.logger.Error("rollback controller failed", "error", err)
	}
}

func (s *Sentinel) reportViolation(ctx context.Context, v guard.Violation) {
	alert := domain.NewOpsAlert(domain.AlertWriterUnauthorized, domain.SeverityCritical, "",
		fmt.Sprintf("module %s attempted write to %s", v.Caller, v.Collection))
	if err := s.alerts.Insert(ctx, s.db, guard.ModuleSentinel, &alert); err != nil {
		s.logger.Error("writer violation alert failed", "error", err)
	}
}

// sampleBefore returns the newest sample at or before the cutoff, or a zero
// sample when history does not reach back that far.
func (s *Sentinel) sampleBefore(cutoff time.Time) Sample {
	var best Sample
	for _, ts := range s.samples {
		if ts.at.After(cutoff) {
			break
		}
		best = ts.s
	}
	return best
}

// prune drops samples older than the baseline horizon plus slack.
func (s *Sentinel) prune(now time.Time) {
	cutoff := now.Add(-s.baseline - 2*s.cadence)
	i := 0
	for i < len(s.samples) && s.samples[i].at.Before(cutoff) {
		i++
	}
	if i > 0 {
		s.samples = s.samples[i:]
	}
}

func rate(num, den int64) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}
