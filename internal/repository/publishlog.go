package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/oddsmith/platform/internal/domain"
	"github.com/oddsmith/platform/internal/guard"
)

type publishLogRepo struct {
	matrix *guard.WriterMatrix
}

// NewPublishLogRepository returns the append-only outbound attempt log.
func NewPublishLogRepository(matrix *guard.WriterMatrix) PublishLogRepository {
	return &publishLogRepo{matrix: matrix}
}

func (r *publishLogRepo) Append(ctx context.Context, db DBTX, caller guard.Module, att *domain.PublishAttempt) error {
	if err := r.matrix.Authorize(caller, guard.CollectionPublishLog); err != nil {
		return err
	}
	_, err := db.Exec(ctx, `
		INSERT INTO publish_log
		  (attempt_id, signal_id, event_id, market_type, template_id, rendered_hash,
		   posted, failure_reason, telegram_message_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''), NULLIF($9, ''), $10)
		ON CONFLICT (signal_id, template_id, rendered_hash) DO NOTHING`,
		att.AttemptID, att.SignalID, att.EventID, att.MarketType, att.TemplateID, att.RenderedHash,
		att.Posted, att.FailureReason, att.TelegramMessageID, att.CreatedAt)
	if err != nil {
		return fmt.Errorf("append publish attempt: %w", err)
	}
	return nil
}

func (r *publishLogRepo) SeenRendering(ctx context.Context, db DBTX, signalID, templateID, renderedHash string) (bool, error) {
	var exists bool
	err := db.QueryRow(ctx, `
		SELECT EXISTS (
		  SELECT 1 FROM publish_log
		  WHERE signal_id = $1 AND template_id = $2 AND rendered_hash = $3
		)`, signalID, templateID, renderedHash).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("query rendering dedupe: %w", err)
	}
	return exists, nil
}

func (r *publishLogRepo) PostedWithin(ctx context.Context, db DBTX, eventID string, mt domain.MarketType, window time.Duration) (bool, error) {
	var exists bool
	err := db.QueryRow(ctx, `
		SELECT EXISTS (
		  SELECT 1 FROM publish_log
		  WHERE event_id = $1 AND market_type = $2 AND posted AND created_at >= $3
		)`, eventID, mt, time.Now().Add(-window)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("query publish window: %w", err)
	}
	return exists, nil
}
