package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/oddsmith/platform/internal/domain"
	"github.com/oddsmith/platform/internal/guard"
)

type snapshotRepo struct {
	matrix *guard.WriterMatrix
}

// NewSnapshotRepository returns the pgx-backed market snapshot store.
func NewSnapshotRepository(matrix *guard.WriterMatrix) SnapshotRepository {
	return &snapshotRepo{matrix: matrix}
}

func (r *snapshotRepo) Record(ctx context.Context, db DBTX, caller guard.Module, snap *domain.MarketSnapshot) error {
	if err := r.matrix.Authorize(caller, guard.CollectionSnapshots); err != nil {
		return err
	}
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	// ON CONFLICT DO NOTHING: a snapshot is identified by (event_id,
	// observed_at) and never overwritten.
	_, err = db.Exec(ctx, `
		INSERT INTO market_snapshots (event_id, wave, observed_at, book_id, payload)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (event_id, observed_at) DO NOTHING`,
		snap.EventID, snap.Wave, snap.ObservedAt, snap.BookID, payload)
	if err != nil {
		return fmt.Errorf("record snapshot: %w", err)
	}
	return nil
}

func (r *snapshotRepo) Latest(ctx context.Context, db DBTX, eventID string) (*domain.MarketSnapshot, error) {
	row := db.QueryRow(ctx, `
		SELECT payload FROM market_snapshots
		WHERE event_id = $1
		ORDER BY observed_at DESC
		LIMIT 1`, eventID)
	return scanSnapshot(row)
}

func (r *snapshotRepo) AtWave(ctx context.Context, db DBTX, eventID string, wave domain.Wave) (*domain.MarketSnapshot, error) {
	row := db.QueryRow(ctx, `
		SELECT payload FROM market_snapshots
		WHERE event_id = $1 AND wave = $2
		ORDER BY observed_at DESC
		LIMIT 1`, eventID, wave)
	return scanSnapshot(row)
}

func (r *snapshotRepo) Closing(ctx context.Context, db DBTX, eventID string, startTime time.Time) (*domain.MarketSnapshot, error) {
	row := db.QueryRow(ctx, `
		SELECT payload FROM market_snapshots
		WHERE event_id = $1 AND observed_at < $2
		ORDER BY observed_at DESC
		LIMIT 1`, eventID, startTime)
	return scanSnapshot(row)
}

func scanSnapshot(row pgx.Row) (*domain.MarketSnapshot, error) {
	var payload []byte
	err := row.Scan(&payload)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan snapshot: %w", err)
	}
	var snap domain.MarketSnapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return &snap, nil
}
