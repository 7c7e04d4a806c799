package repository

import (
	"context"
	"fmt"

	"github.com/oddsmith/platform/internal/domain"
	"github.com/oddsmith/platform/internal/guard"
)

type auditRepo struct {
	matrix *guard.WriterMatrix
}

// NewAuditRepository returns the append-only audit log store.
func NewAuditRepository(matrix *guard.WriterMatrix) AuditRepository {
	return &auditRepo{matrix: matrix}
}

func (r *auditRepo) Append(ctx context.Context, db DBTX, caller guard.Module, entry *domain.AuditEntry) error {
	if err := r.matrix.Authorize(caller, guard.CollectionAuditLog); err != nil {
		return err
	}
	_, err := db.Exec(ctx, `
		INSERT INTO audit_log (audit_id, kind, event_id, ref_id, payload, created_at)
		VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), $5, $6)`,
		entry.AuditID, entry.Kind, entry.EventID, entry.RefID, entry.Payload, entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("append audit entry: %w", err)
	}
	return nil
}
