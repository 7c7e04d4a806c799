package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/oddsmith/platform/internal/guard"
)

// flagCacheTTL keeps flag reads cheap while letting database changes
// propagate without restarts.
const flagCacheTTL = 10 * time.Second

type cachedFlag struct {
	enabled   bool
	fetchedAt time.Time
}

type flagRepo struct {
	matrix *guard.WriterMatrix

	mu    sync.Mutex
	cache map[string]cachedFlag
}

// NewFlagRepository returns the database-backed feature flag store with a
// 10s read-through cache.
func NewFlagRepository(matrix *guard.WriterMatrix) FlagRepository {
	return &flagRepo{matrix: matrix, cache: make(map[string]cachedFlag)}
}

func (r *flagRepo) Get(ctx context.Context, db DBTX, name string) (bool, error) {
	r.mu.Lock()
	if c, ok := r.cache[name]; ok && time.Since(c.fetchedAt) < flagCacheTTL {
		r.mu.Unlock()
		return c.enabled, nil
	}
	r.mu.Unlock()

	var enabled bool
	err := db.QueryRow(ctx, `SELECT enabled FROM feature_flags WHERE name = $1`, name).Scan(&enabled)
	if err == pgx.ErrNoRows {
		// Unknown flags read as off.
		enabled = false
	} else if err != nil {
		return false, fmt.Errorf("query feature flag %s: %w", name, err)
	}

	r.mu.Lock()
	r.cache[name] = cachedFlag{enabled: enabled, fetchedAt: time.Now()}
	r.mu.Unlock()
	return enabled, nil
}

func (r *flagRepo) Set(ctx context.Context, db DBTX, caller guard.Module, name string, enabled bool) error {
	if err := r.matrix.Authorize(caller, guard.CollectionFeatureFlags); err != nil {
		return err
	}
	_, err := db.Exec(ctx, `
		INSERT INTO feature_flags (name, enabled, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (name) DO UPDATE SET enabled = EXCLUDED.enabled, updated_at = now()`,
		name, enabled)
	if err != nil {
		return fmt.Errorf("set feature flag %s: %w", name, err)
	}

	r.mu.Lock()
	r.cache[name] = cachedFlag{enabled: enabled, fetchedAt: time.Now()}
	r.mu.Unlock()
	return nil
}
