package signal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oddsmith/platform/internal/decision"
	"github.com/oddsmith/platform/internal/domain"
	"github.com/oddsmith/platform/internal/guard"
	"github.com/oddsmith/platform/internal/integrity"
	"github.com/oddsmith/platform/internal/repository"
	"github.com/oddsmith/platform/internal/sim"
)

// WaveOutput is everything one wave evaluation produced for an event.
type WaveOutput struct {
	Snapshot *domain.MarketSnapshot
	Run      *domain.SimulationRun
	Game     *domain.GameDecisions
}

// Pipeline runs the snapshot -> simulation -> decision -> validation chain
// for one event at one wave and persists the results. Re-running a wave
// reuses the stored simulation run; the run id is deterministic so the
// decisions it yields are too.
type Pipeline struct {
	pool       *pgxpool.Pool
	events     repository.EventRepository
	snapshots  repository.SnapshotRepository
	simRuns    repository.SimRunRepository
	decisions  repository.DecisionRepository
	engine     *sim.Engine
	computer   *decision.Computer
	validator  *integrity.Validator
	iterations int
	logger     *slog.Logger
}

// NewPipeline wires the wave pipeline.
func NewPipeline(
	pool *pgxpool.Pool,
	events repository.EventRepository,
	snapshots repository.SnapshotRepository,
	simRuns repository.SimRunRepository,
	decisions repository.DecisionRepository,
	engine *sim.Engine,
	computer *decision.Computer,
	validator *integrity.Validator,
	iterations int,
	logger *slog.Logger,
) *Pipeline {
	if !domain.ValidTier(iterations) {
		iterations = int(domain.Tier25K)
	}
	return &Pipeline{
		pool:       pool,
		events:     events,
		snapshots:  snapshots,
		simRuns:    simRuns,
		decisions:  decisions,
		engine:     engine,
		computer:   computer,
		validator:  validator,
		iterations: iterations,
		logger:     logger,
	}
}

// RunWave evaluates one event at one wave and stores the decision triple.
func (p *Pipeline) RunWave(ctx context.Context, ev *domain.Event, wave domain.Wave) (*WaveOutput, error) {
	return p.RunWaveIterations(ctx, ev, wave, p.iterations)
}

// RunWaveIterations is RunWave with an explicit iteration tier, for
// on-demand API runs.
func (p *Pipeline) RunWaveIterations(ctx context.Context, ev *domain.Event, wave domain.Wave, iterations int) (*WaveOutput, error) {
	if !domain.ValidTier(iterations) {
		return nil, domain.ErrValidation(fmt.Sprintf("iterations %d is not a supported tier", iterations))
	}

	snap, err := p.snapshots.AtWave(ctx, p.pool, ev.EventID, wave)
	if err != nil {
		return nil, err
	}
	if snap == nil {
		snap, err = p.snapshots.Latest(ctx, p.pool, ev.EventID)
		if err != nil {
			return nil, err
		}
	}
	if snap == nil {
		return nil, domain.ErrStaleSnapshot(ev.EventID)
	}

	cfg, err := domain.ConfigFor(ev.League)
	if err != nil {
		return nil, err
	}

	run, err := p.simRuns.FindByEventWave(ctx, p.pool, ev.EventID, wave)
	if err != nil {
		return nil, err
	}
	if run == nil {
		run, err = p.engine.Run(ctx, ev, cfg, snap, wave, iterations)
		if err != nil {
			var appErr *domain.AppError
			// A timed-out run still carries usable statistics; it is stored
			// non-converged and the decisions hold at market.
			if !(errors.As(err, &appErr) && appErr.Code == "SIM_TIMEOUT") {
				return nil, err
			}
			p.logger.Warn("simulation hit wall clock", "event_id", ev.EventID, "wave", wave)
		}
		if insErr := p.simRuns.Insert(ctx, p.pool, guard.ModuleSignal, run); insErr != nil {
			return nil, insErr
		}
	}

	version, err := p.decisions.LatestVersion(ctx, p.pool, ev.EventID)
	if err != nil {
		return nil, err
	}

	traceID := uuid.NewString()
	gd, err := p.computer.ComputeGame(ev, snap, run, cfg, version+1, traceID)
	if err != nil {
		return nil, err
	}
	if err := p.validator.ValidateGame(ctx, p.pool, ev, snap, run, gd); err != nil {
		return nil, err
	}

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin decision tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := p.decisions.ReplaceGame(ctx, tx, guard.ModuleSignal, gd); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit decision tx: %w", err)
	}

	p.logger.Info("wave evaluated",
		"event_id", ev.EventID,
		"wave", wave,
		"sim_run_id", run.SimRunID,
		"decision_version", gd.Meta.DecisionVersion,
		"converged", run.Converged,
	)
	return &WaveOutput{Snapshot: snap, Run: run, Game: gd}, nil
}
