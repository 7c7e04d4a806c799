package sim

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oddsmith/platform/internal/domain"
)

func testEvent() *domain.Event {
	return &domain.Event{
		EventID:    "nba-2001",
		League:     domain.LeagueNBA,
		HomeTeamID: "DEN",
		AwayTeamID: "LAL",
		HomeName:   "Denver Nuggets",
		AwayName:   "Los Angeles Lakers",
		StartTime:  time.Date(2026, 2, 10, 2, 0, 0, 0, time.UTC),
	}
}

func testSnapshot() *domain.MarketSnapshot {
	return &domain.MarketSnapshot{
		EventID:         "nba-2001",
		Wave:            domain.WaveValidation,
		ObservedAt:      time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC),
		BookID:          "draftkings",
		SpreadHome:      -4.5,
		SpreadAway:      4.5,
		SpreadHomePrice: -110,
		SpreadAwayPrice: -110,
		Total:           224.5,
		OverPrice:       -110,
		UnderPrice:      -110,
		MLHome:          -190,
		MLAway:          160,
	}
}

// --- Run Tests ---

func TestRunDeterministic(t *testing.T) {
	ev := testEvent()
	snap := testSnapshot()
	cfg := domain.DefaultLeagueConfigs[domain.LeagueNBA]
	engine := NewEngine(30 * time.Second)

	r1, err := engine.Run(context.Background(), ev, cfg, snap, domain.WaveValidation, 25_000)
	require.NoError(t, err)
	r2, err := engine.Run(context.Background(), ev, cfg, snap, domain.WaveValidation, 25_000)
	require.NoError(t, err)

	assert.Equal(t, r1.SimRunID, r2.SimRunID)
	assert.Equal(t, r1.Seed, r2.Seed)
	assert.Equal(t, r1.Stats, r2.Stats)
	assert.Equal(t, r1.Converged, r2.Converged)
}

func TestRunStatsPlausible(t *testing.T) {
	ev := testEvent()
	snap := testSnapshot()
	cfg := domain.DefaultLeagueConfigs[domain.LeagueNBA]
	engine := NewEngine(30 * time.Second)

	run, err := engine.Run(context.Background(), ev, cfg, snap, domain.WaveValidation, 25_000)
	require.NoError(t, err)

	assert.True(t, run.Converged, "25k gaussian iterations should stabilize")
	assert.Greater(t, run.Stats.HomeWinProb, 0.0)
	assert.Less(t, run.Stats.HomeWinProb, 1.0)
	// Two ~113-point teams land in a sane total band.
	assert.InDelta(t, 2*cfg.MeanScore, run.Stats.MeanTotal, 25)
	assert.Equal(t, ModelVersion, run.Config.ModelVersion)
	assert.Equal(t, cfg.ConfigVersion, run.Config.ConfigVersion)

	t.Run("histograms carry the full sample mass", func(t *testing.T) {
		assert.Equal(t, int64(25_000), run.Stats.MarginHist.Total)
		assert.Equal(t, int64(25_000), run.Stats.TotalHist.Total)
	})
}

func TestRunRejectsUnsupportedTier(t *testing.T) {
	engine := NewEngine(30 * time.Second)
	cfg := domain.DefaultLeagueConfigs[domain.LeagueNBA]

	_, err := engine.Run(context.Background(), testEvent(), cfg, testSnapshot(), domain.WaveValidation, 12_345)
	require.Error(t, err)
	var appErr *domain.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "VALIDATION_ERROR", appErr.Code)
}

func TestRunHonorsCancellation(t *testing.T) {
	engine := NewEngine(30 * time.Second)
	cfg := domain.DefaultLeagueConfigs[domain.LeagueNBA]

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := engine.Run(ctx, testEvent(), cfg, testSnapshot(), domain.WaveValidation, 100_000)
	assert.ErrorIs(t, err, context.Canceled)
}

// --- Seed / RunID Tests ---

func TestSeedAndRunID(t *testing.T) {
	at := time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)

	t.Run("seed is a pure function of its inputs", func(t *testing.T) {
		assert.Equal(t,
			Seed("e1", domain.WaveDiscovery, at, ModelVersion),
			Seed("e1", domain.WaveDiscovery, at, ModelVersion))
		assert.NotEqual(t,
			Seed("e1", domain.WaveDiscovery, at, ModelVersion),
			Seed("e1", domain.WaveValidation, at, ModelVersion))
	})

	t.Run("run id distinguishes snapshots and tiers", func(t *testing.T) {
		base := RunID("e1", domain.WaveDiscovery, at, 25_000)
		assert.Equal(t, base, RunID("e1", domain.WaveDiscovery, at, 25_000))
		assert.NotEqual(t, base, RunID("e1", domain.WaveDiscovery, at.Add(time.Minute), 25_000))
		assert.NotEqual(t, base, RunID("e1", domain.WaveDiscovery, at, 50_000))
	})
}

// --- Weather Tests ---

func TestWeatherDampening(t *testing.T) {
	t.Run("indoors is untouched", func(t *testing.T) {
		assert.Equal(t, 1.0, weatherDampening(&domain.Weather{Indoors: true, WindMPH: 40}))
		assert.Equal(t, 1.0, weatherDampening(nil))
	})

	t.Run("wind and cold stack", func(t *testing.T) {
		w := &domain.Weather{WindMPH: 20, TemperatureF: 28}
		assert.InDelta(t, 0.85, weatherDampening(w), 1e-9)
	})

	t.Run("reduction caps at thirty percent", func(t *testing.T) {
		w := &domain.Weather{WindMPH: 30, PrecipPct: 80, TemperatureF: 10}
		assert.InDelta(t, 0.70, weatherDampening(w), 1e-9)
	})
}

// --- Generator Tests ---

func TestGeneratorSelection(t *testing.T) {
	ev := testEvent()
	snap := testSnapshot()

	for league, want := range map[domain.League]domain.PossessionStyle{
		domain.LeagueNFL: domain.StyleDrives,
		domain.LeagueNBA: domain.StyleGaussian,
		domain.LeagueMLB: domain.StyleInnings,
		domain.LeagueNHL: domain.StylePeriods,
	} {
		cfg := domain.DefaultLeagueConfigs[league]
		g, err := newGenerator(cfg, ev, snap)
		require.NoError(t, err, "league %s", league)
		require.NotNil(t, g)
		assert.Equal(t, want, cfg.Style)
	}
}
