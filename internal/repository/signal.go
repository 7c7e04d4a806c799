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

type signalRepo struct {
	matrix *guard.WriterMatrix
}

// NewSignalRepository returns the pgx-backed signal store.
func NewSignalRepository(matrix *guard.WriterMatrix) SignalRepository {
	return &signalRepo{matrix: matrix}
}

func (r *signalRepo) Insert(ctx context.Context, db DBTX, caller guard.Module, sig *domain.Signal) error {
	if err := r.matrix.Authorize(caller, guard.CollectionSignals); err != nil {
		return err
	}
	payload, err := json.Marshal(sig)
	if err != nil {
		return fmt.Errorf("marshal signal: %w", err)
	}
	_, err = db.Exec(ctx, `
		INSERT INTO signals (signal_id, event_id, league, market_type, status, start_time, payload)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		sig.SignalID, sig.EventID, sig.League, sig.MarketType, sig.Status, sig.StartTime, payload)
	if err != nil {
		return fmt.Errorf("insert signal: %w", err)
	}
	return nil
}

func (r *signalRepo) FindByID(ctx context.Context, db DBTX, signalID string) (*domain.Signal, error) {
	row := db.QueryRow(ctx, `SELECT payload FROM signals WHERE signal_id = $1`, signalID)
	return scanSignal(row)
}

func (r *signalRepo) FindByEventMarket(ctx context.Context, db DBTX, eventID string, mt domain.MarketType) (*domain.Signal, error) {
	row := db.QueryRow(ctx, `
		SELECT payload FROM signals WHERE event_id = $1 AND market_type = $2`, eventID, mt)
	return scanSignal(row)
}

func (r *signalRepo) Update(ctx context.Context, db DBTX, caller guard.Module, sig *domain.Signal, expectStatus domain.SignalStatus) error {
	if err := r.matrix.Authorize(caller, guard.CollectionSignals); err != nil {
		return err
	}
	sig.UpdatedAt = time.Now().UTC()
	payload, err := json.Marshal(sig)
	if err != nil {
		return fmt.Errorf("marshal signal: %w", err)
	}
	// Compare-and-set on the prior status serializes advancement: a worker
	// holding a stale view loses the write.
	tag, err := db.Exec(ctx, `
		UPDATE signals SET status = $3, payload = $4, updated_at = $5
		WHERE signal_id = $1 AND status = $2`,
		sig.SignalID, expectStatus, sig.Status, payload, sig.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update signal: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrValidation(fmt.Sprintf("signal %s is no longer in status %s", sig.SignalID, expectStatus))
	}
	return nil
}

func (r *signalRepo) ListByStatus(ctx context.Context, db DBTX, status domain.SignalStatus, limit int) ([]domain.Signal, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := db.Query(ctx, `
		SELECT payload FROM signals
		WHERE status = $1
		ORDER BY start_time ASC
		LIMIT $2`, status, limit)
	if err != nil {
		return nil, fmt.Errorf("query signals: %w", err)
	}
	defer rows.Close()

	var out []domain.Signal
	for rows.Next() {
		sig, err := scanSignal(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *sig)
	}
	return out, rows.Err()
}

func scanSignal(row pgx.Row) (*domain.Signal, error) {
	var payload []byte
	err := row.Scan(&payload)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan signal: %w", err)
	}
	var sig domain.Signal
	if err := json.Unmarshal(payload, &sig); err != nil {
		return nil, fmt.Errorf("unmarshal signal: %w", err)
	}
	return &sig, nil
}
