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

type decisionRepo struct {
	matrix *guard.WriterMatrix
}

// NewDecisionRepository returns the pgx-backed latest-decision store.
func NewDecisionRepository(matrix *guard.WriterMatrix) DecisionRepository {
	return &decisionRepo{matrix: matrix}
}

func (r *decisionRepo) ReplaceGame(ctx context.Context, tx pgx.Tx, caller guard.Module, gd *domain.GameDecisions) error {
	if err := r.matrix.Authorize(caller, guard.CollectionDecisions); err != nil {
		return err
	}
	if !gd.Coherent() {
		return domain.ErrIntegrityViolation("game decisions triple is not hash-coherent")
	}

	for _, d := range gd.Children() {
		payload, err := json.Marshal(d)
		if err != nil {
			return fmt.Errorf("marshal decision: %w", err)
		}
		// Compare-and-set on the monotonic decision_version: a stale writer
		// loses and the whole transaction rolls back, so the triple is
		// replaced atomically or not at all.
		tag, err := tx.Exec(ctx, `
			INSERT INTO decisions (event_id, market_type, decision_version, inputs_hash, payload, computed_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (event_id, market_type) DO UPDATE SET
			  decision_version = EXCLUDED.decision_version,
			  inputs_hash      = EXCLUDED.inputs_hash,
			  payload          = EXCLUDED.payload,
			  computed_at      = EXCLUDED.computed_at
			WHERE decisions.decision_version < EXCLUDED.decision_version`,
			d.EventID, d.MarketType, d.Debug.DecisionVersion, d.Debug.InputsHash, payload, d.Debug.ComputedAt)
		if err != nil {
			return fmt.Errorf("replace decision: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return domain.ErrStaleSnapshot(d.EventID)
		}
	}
	return nil
}

func (r *decisionRepo) GetGame(ctx context.Context, db DBTX, eventID string) (*domain.GameDecisions, error) {
	rows, err := db.Query(ctx, `
		SELECT market_type, payload FROM decisions WHERE event_id = $1`, eventID)
	if err != nil {
		return nil, fmt.Errorf("query decisions: %w", err)
	}
	defer rows.Close()

	gd := &domain.GameDecisions{}
	found := false
	for rows.Next() {
		var mt string
		var payload []byte
		if err := rows.Scan(&mt, &payload); err != nil {
			return nil, fmt.Errorf("scan decision: %w", err)
		}
		var d domain.MarketDecision
		if err := json.Unmarshal(payload, &d); err != nil {
			return nil, fmt.Errorf("unmarshal decision: %w", err)
		}
		found = true
		switch domain.MarketType(mt) {
		case domain.MarketSpread:
			gd.Spread = &d
		case domain.MarketMoneyline:
			gd.Moneyline = &d
		case domain.MarketTotal:
			gd.Total = &d
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}

	first := gd.Children()[0]
	gd.Meta = domain.GameDecisionsMeta{
		InputsHash:      first.Debug.InputsHash,
		DecisionVersion: first.Debug.DecisionVersion,
		ComputedAt:      first.Debug.ComputedAt,
		League:          first.League,
		EventID:         first.EventID,
	}
	// A reader rejects a composed triple whose children disagree with the
	// stamped hash.
	if !gd.Coherent() {
		return nil, domain.ErrIntegrityViolation(fmt.Sprintf("stored decisions for event %s are hash-incoherent", eventID))
	}
	return gd, nil
}

func (r *decisionRepo) ListRecent(ctx context.Context, db DBTX, since time.Time, limit int) ([]domain.MarketDecision, error) {
	rows, err := db.Query(ctx, `
		SELECT payload FROM decisions
		WHERE computed_at > $1
		ORDER BY computed_at DESC
		LIMIT $2`, since, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent decisions: %w", err)
	}
	defer rows.Close()

	var out []domain.MarketDecision
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan decision: %w", err)
		}
		var d domain.MarketDecision
		if err := json.Unmarshal(payload, &d); err != nil {
			return nil, fmt.Errorf("unmarshal decision: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (r *decisionRepo) LatestVersion(ctx context.Context, db DBTX, eventID string) (int64, error) {
	var v *int64
	err := db.QueryRow(ctx, `
		SELECT MAX(decision_version) FROM decisions WHERE event_id = $1`, eventID).Scan(&v)
	if err != nil {
		return 0, fmt.Errorf("query latest version: %w", err)
	}
	if v == nil {
		return 0, nil
	}
	return *v, nil
}
