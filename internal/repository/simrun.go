package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/oddsmith/platform/internal/domain"
	"github.com/oddsmith/platform/internal/guard"
)

type simRunRepo struct {
	matrix *guard.WriterMatrix
}

// NewSimRunRepository returns the pgx-backed simulation run store.
func NewSimRunRepository(matrix *guard.WriterMatrix) SimRunRepository {
	return &simRunRepo{matrix: matrix}
}

func (r *simRunRepo) Insert(ctx context.Context, db DBTX, caller guard.Module, run *domain.SimulationRun) error {
	if err := r.matrix.Authorize(caller, guard.CollectionSimRuns); err != nil {
		return err
	}
	payload, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("marshal sim run: %w", err)
	}
	_, err = db.Exec(ctx, `
		INSERT INTO sim_runs (sim_run_id, event_id, wave, league, iterations, converged, payload)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		run.SimRunID, run.EventID, run.Wave, run.League, run.Iterations, run.Converged, payload)
	if err != nil {
		return fmt.Errorf("insert sim run: %w", err)
	}
	return nil
}

func (r *simRunRepo) FindByID(ctx context.Context, db DBTX, simRunID string) (*domain.SimulationRun, error) {
	row := db.QueryRow(ctx, `SELECT payload FROM sim_runs WHERE sim_run_id = $1`, simRunID)
	return scanSimRun(row)
}

func (r *simRunRepo) FindByEventWave(ctx context.Context, db DBTX, eventID string, wave domain.Wave) (*domain.SimulationRun, error) {
	row := db.QueryRow(ctx, `
		SELECT payload FROM sim_runs
		WHERE event_id = $1 AND wave = $2
		ORDER BY created_at DESC
		LIMIT 1`, eventID, wave)
	return scanSimRun(row)
}

func scanSimRun(row pgx.Row) (*domain.SimulationRun, error) {
	var payload []byte
	err := row.Scan(&payload)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan sim run: %w", err)
	}
	var run domain.SimulationRun
	if err := json.Unmarshal(payload, &run); err != nil {
		return nil, fmt.Errorf("unmarshal sim run: %w", err)
	}
	return &run, nil
}
