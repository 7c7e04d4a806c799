package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/oddsmith/platform/internal/domain"
	"github.com/oddsmith/platform/internal/guard"
)

type parlayAttemptRepo struct {
	matrix *guard.WriterMatrix
}

// NewParlayAttemptRepository returns the append-only parlay attempt log.
func NewParlayAttemptRepository(matrix *guard.WriterMatrix) ParlayAttemptRepository {
	return &parlayAttemptRepo{matrix: matrix}
}

func (r *parlayAttemptRepo) Append(ctx context.Context, db DBTX, caller guard.Module, res *domain.ParlayResult) error {
	if err := r.matrix.Authorize(caller, guard.CollectionParlayAttempts); err != nil {
		return err
	}
	payload, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("marshal parlay result: %w", err)
	}
	_, err = db.Exec(ctx, `
		INSERT INTO parlay_attempts (attempt_id, status, reason_code, payload, created_at)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5)`,
		res.AttemptID, res.Status, string(res.ReasonCode), payload, res.CreatedAt)
	if err != nil {
		return fmt.Errorf("append parlay attempt: %w", err)
	}
	return nil
}

func (r *parlayAttemptRepo) Stats(ctx context.Context, db DBTX, since time.Time) (ParlayStats, error) {
	stats := ParlayStats{FailReasons: map[string]int{}}

	rows, err := db.Query(ctx, `
		SELECT status, COALESCE(reason_code, ''), COUNT(*)
		FROM parlay_attempts
		WHERE created_at >= $1
		GROUP BY status, reason_code`, since)
	if err != nil {
		return stats, fmt.Errorf("query parlay stats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var status, reason string
		var n int
		if err := rows.Scan(&status, &reason, &n); err != nil {
			return stats, fmt.Errorf("scan parlay stats: %w", err)
		}
		if status == domain.ParlayStatusOK {
			stats.Success += n
		} else {
			stats.Fail += n
			if reason != "" {
				stats.FailReasons[reason] += n
			}
		}
	}
	return stats, rows.Err()
}
