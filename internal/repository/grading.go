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

type gradingRepo struct {
	matrix *guard.WriterMatrix
}

// NewGradingRepository returns the pgx-backed grading store. The Writer
// Matrix lists the settlement engine as its only writer.
func NewGradingRepository(matrix *guard.WriterMatrix) GradingRepository {
	return &gradingRepo{matrix: matrix}
}

func (r *gradingRepo) Upsert(ctx context.Context, db DBTX, caller guard.Module, rec *domain.GradingRecord) (*domain.GradingRecord, bool, error) {
	if err := r.matrix.Authorize(caller, guard.CollectionGrading); err != nil {
		return nil, false, err
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		return nil, false, fmt.Errorf("marshal grading record: %w", err)
	}

	tag, err := db.Exec(ctx, `
		INSERT INTO grading
		  (idempotency_key, pick_id, event_id, provider_event_id, settlement, clv,
		   settlement_rules_version, clv_rules_version, payload, graded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (idempotency_key) DO NOTHING`,
		rec.IdempotencyKey, rec.PickID, rec.EventID, rec.ProviderEventID, rec.Settlement, rec.CLV,
		rec.SettlementRulesVersion, rec.CLVRulesVersion, payload, rec.GradedAt)
	if err != nil {
		return nil, false, fmt.Errorf("upsert grading record: %w", err)
	}

	if tag.RowsAffected() == 0 {
		// Duplicate call: return the stored record, a successful no-op.
		stored, err := r.FindByKey(ctx, db, rec.IdempotencyKey)
		if err != nil {
			return nil, false, err
		}
		return stored, false, nil
	}
	return rec, true, nil
}

func (r *gradingRepo) FindByKey(ctx context.Context, db DBTX, idempotencyKey string) (*domain.GradingRecord, error) {
	row := db.QueryRow(ctx, `SELECT payload FROM grading WHERE idempotency_key = $1`, idempotencyKey)
	return scanGrading(row)
}

func (r *gradingRepo) FindByPick(ctx context.Context, db DBTX, pickID string) (*domain.GradingRecord, error) {
	row := db.QueryRow(ctx, `
		SELECT payload FROM grading WHERE pick_id = $1
		ORDER BY graded_at DESC LIMIT 1`, pickID)
	return scanGrading(row)
}

func (r *gradingRepo) ListSince(ctx context.Context, db DBTX, since time.Time) ([]domain.GradingRecord, error) {
	rows, err := db.Query(ctx, `
		SELECT payload FROM grading WHERE graded_at >= $1 ORDER BY graded_at ASC`, since)
	if err != nil {
		return nil, fmt.Errorf("query grading records: %w", err)
	}
	defer rows.Close()

	var out []domain.GradingRecord
	for rows.Next() {
		rec, err := scanGrading(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

func scanGrading(row pgx.Row) (*domain.GradingRecord, error) {
	var payload []byte
	err := row.Scan(&payload)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan grading record: %w", err)
	}
	var rec domain.GradingRecord
	if err := json.Unmarshal(payload, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal grading record: %w", err)
	}
	return &rec, nil
}
