package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/oddsmith/platform/internal/domain"
	"github.com/oddsmith/platform/internal/guard"
)

type alertRepo struct {
	matrix *guard.WriterMatrix
}

// NewAlertRepository returns the pgx-backed ops alert store.
func NewAlertRepository(matrix *guard.WriterMatrix) AlertRepository {
	return &alertRepo{matrix: matrix}
}

func (r *alertRepo) Insert(ctx context.Context, db DBTX, caller guard.Module, alert *domain.OpsAlert) error {
	if err := r.matrix.Authorize(caller, guard.CollectionOpsAlerts); err != nil {
		return err
	}
	_, err := db.Exec(ctx, `
		INSERT INTO ops_alerts (alert_id, kind, severity, event_id, details, reconciliation_status, created_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7)`,
		alert.AlertID, alert.Kind, alert.Severity, alert.EventID, alert.Details,
		alert.ReconciliationStatus, alert.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert ops alert: %w", err)
	}
	return nil
}

func (r *alertRepo) ListByKindSince(ctx context.Context, db DBTX, kind domain.AlertKind, since time.Time) ([]domain.OpsAlert, error) {
	rows, err := db.Query(ctx, `
		SELECT alert_id, kind, severity, COALESCE(event_id, ''), details, reconciliation_status, created_at
		FROM ops_alerts
		WHERE kind = $1 AND created_at >= $2
		ORDER BY created_at DESC`, kind, since)
	if err != nil {
		return nil, fmt.Errorf("query ops alerts: %w", err)
	}
	defer rows.Close()

	var out []domain.OpsAlert
	for rows.Next() {
		var a domain.OpsAlert
		if err := rows.Scan(&a.AlertID, &a.Kind, &a.Severity, &a.EventID, &a.Details, &a.ReconciliationStatus, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan ops alert: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *alertRepo) Resolve(ctx context.Context, db DBTX, caller guard.Module, alertID string) error {
	if err := r.matrix.Authorize(caller, guard.CollectionOpsAlerts); err != nil {
		return err
	}
	tag, err := db.Exec(ctx, `
		UPDATE ops_alerts SET reconciliation_status = 'resolved' WHERE alert_id = $1`, alertID)
	if err != nil {
		return fmt.Errorf("resolve ops alert: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound("ops alert", alertID)
	}
	return nil
}
