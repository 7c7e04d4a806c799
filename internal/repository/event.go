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

type eventRepo struct {
	matrix *guard.WriterMatrix
}

// NewEventRepository returns a pgx-backed EventRepository.
func NewEventRepository(matrix *guard.WriterMatrix) EventRepository {
	return &eventRepo{matrix: matrix}
}

func (r *eventRepo) Upsert(ctx context.Context, db DBTX, caller guard.Module, ev *domain.Event) error {
	if err := r.matrix.Authorize(caller, guard.CollectionEvents); err != nil {
		return err
	}

	provMap, err := json.Marshal(ev.ProviderEventMap)
	if err != nil {
		return fmt.Errorf("marshal provider map: %w", err)
	}
	weather, _ := json.Marshal(ev.Weather)
	roster, _ := json.Marshal(ev.Roster)

	_, err = db.Exec(ctx, `
		INSERT INTO events
		  (event_id, league, home_team_id, away_team_id, home_name, away_name,
		   start_time, status, provider_event_map, weather, roster)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (event_id) DO UPDATE SET
		  provider_event_map = EXCLUDED.provider_event_map,
		  weather            = EXCLUDED.weather,
		  roster             = EXCLUDED.roster,
		  start_time         = EXCLUDED.start_time
		WHERE events.status = 'scheduled'`,
		ev.EventID, ev.League, ev.HomeTeamID, ev.AwayTeamID, ev.HomeName, ev.AwayName,
		ev.StartTime, ev.Status, provMap, nullJSON(weather, ev.Weather == nil), nullJSON(roster, ev.Roster == nil))
	if err != nil {
		return fmt.Errorf("upsert event: %w", err)
	}
	return nil
}

func (r *eventRepo) FindByID(ctx context.Context, db DBTX, eventID string) (*domain.Event, error) {
	row := db.QueryRow(ctx, `
		SELECT event_id, league, home_team_id, away_team_id, home_name, away_name,
		       start_time, status, provider_event_map, weather, roster, grading_frozen, created_at
		FROM events WHERE event_id = $1`, eventID)
	return scanEvent(row)
}

func (r *eventRepo) FindByProviderID(ctx context.Context, db DBTX, provider, providerEventID string) (*domain.Event, error) {
	row := db.QueryRow(ctx, `
		SELECT event_id, league, home_team_id, away_team_id, home_name, away_name,
		       start_time, status, provider_event_map, weather, roster, grading_frozen, created_at
		FROM events WHERE provider_event_map->>$1 = $2`, provider, providerEventID)
	return scanEvent(row)
}

func (r *eventRepo) ListUpcoming(ctx context.Context, db DBTX, league domain.League, until time.Time) ([]domain.Event, error) {
	rows, err := db.Query(ctx, `
		SELECT event_id, league, home_team_id, away_team_id, home_name, away_name,
		       start_time, status, provider_event_map, weather, roster, grading_frozen, created_at
		FROM events
		WHERE league = $1 AND status = 'scheduled' AND start_time BETWEEN now() AND $2
		ORDER BY start_time ASC`, league, until)
	if err != nil {
		return nil, fmt.Errorf("query upcoming events: %w", err)
	}
	defer rows.Close()
	return collectEvents(rows)
}

func (r *eventRepo) ListStarted(ctx context.Context, db DBTX, limit int) ([]domain.Event, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := db.Query(ctx, `
		SELECT event_id, league, home_team_id, away_team_id, home_name, away_name,
		       start_time, status, provider_event_map, weather, roster, grading_frozen, created_at
		FROM events
		WHERE status IN ('scheduled', 'frozen') AND start_time < now()
		ORDER BY start_time ASC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query started events: %w", err)
	}
	defer rows.Close()
	return collectEvents(rows)
}

func (r *eventRepo) SetStatus(ctx context.Context, db DBTX, caller guard.Module, eventID string, status domain.EventStatus) error {
	if err := r.matrix.Authorize(caller, guard.CollectionEvents); err != nil {
		return err
	}
	tag, err := db.Exec(ctx, `UPDATE events SET status = $2 WHERE event_id = $1`, eventID, status)
	if err != nil {
		return fmt.Errorf("set event status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound("event", eventID)
	}
	return nil
}

func (r *eventRepo) SetGradingFrozen(ctx context.Context, db DBTX, caller guard.Module, eventID string, frozen bool) error {
	if err := r.matrix.Authorize(caller, guard.CollectionEvents); err != nil {
		return err
	}
	tag, err := db.Exec(ctx, `UPDATE events SET grading_frozen = $2 WHERE event_id = $1`, eventID, frozen)
	if err != nil {
		return fmt.Errorf("set grading frozen: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound("event", eventID)
	}
	return nil
}

func (r *eventRepo) ReconcileNames(ctx context.Context, db DBTX, caller guard.Module, eventID, homeName, awayName string) error {
	if err := r.matrix.Authorize(caller, guard.CollectionEvents); err != nil {
		return err
	}
	tag, err := db.Exec(ctx, `
		UPDATE events SET home_name = $2, away_name = $3, grading_frozen = FALSE
		WHERE event_id = $1`, eventID, homeName, awayName)
	if err != nil {
		return fmt.Errorf("reconcile names: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound("event", eventID)
	}
	return nil
}

func (r *eventRepo) ListMissingProviderID(ctx context.Context, db DBTX, league domain.League, provider string) ([]domain.Event, error) {
	rows, err := db.Query(ctx, `
		SELECT event_id, league, home_team_id, away_team_id, home_name, away_name,
		       start_time, status, provider_event_map, weather, roster, grading_frozen, created_at
		FROM events
		WHERE league = $1 AND status = 'scheduled'
		  AND (provider_event_map IS NULL OR provider_event_map->>$2 IS NULL)
		ORDER BY start_time ASC`, league, provider)
	if err != nil {
		return nil, fmt.Errorf("query unmapped events: %w", err)
	}
	defer rows.Close()
	return collectEvents(rows)
}

func (r *eventRepo) SetProviderID(ctx context.Context, db DBTX, caller guard.Module, eventID, provider, providerEventID string) error {
	if err := r.matrix.Authorize(caller, guard.CollectionEvents); err != nil {
		return err
	}
	tag, err := db.Exec(ctx, `
		UPDATE events
		SET provider_event_map = COALESCE(provider_event_map, '{}'::jsonb) || jsonb_build_object($2::text, $3::text)
		WHERE event_id = $1`, eventID, provider, providerEventID)
	if err != nil {
		return fmt.Errorf("set provider id: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound("event", eventID)
	}
	return nil
}

func nullJSON(b []byte, isNil bool) any {
	if isNil {
		return nil
	}
	return b
}

func scanEvent(row pgx.Row) (*domain.Event, error) {
	var ev domain.Event
	var provMap []byte
	var weather, roster []byte
	err := row.Scan(&ev.EventID, &ev.League, &ev.HomeTeamID, &ev.AwayTeamID, &ev.HomeName, &ev.AwayName,
		&ev.StartTime, &ev.Status, &provMap, &weather, &roster, &ev.GradingFrozen, &ev.CreatedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan event: %w", err)
	}
	if len(provMap) > 0 {
		if err := json.Unmarshal(provMap, &ev.ProviderEventMap); err != nil {
			return nil, fmt.Errorf("unmarshal provider map: %w", err)
		}
	}
	if len(weather) > 0 {
		_ = json.Unmarshal(weather, &ev.Weather)
	}
	if len(roster) > 0 {
		_ = json.Unmarshal(roster, &ev.Roster)
	}
	return &ev, nil
}

func collectEvents(rows pgx.Rows) ([]domain.Event, error) {
	var out []domain.Event
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *ev)
	}
	return out, rows.Err()
}
