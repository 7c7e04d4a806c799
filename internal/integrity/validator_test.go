package integrity

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oddsmith/platform/internal/decision"
	"github.com/oddsmith/platform/internal/domain"
	"github.com/oddsmith/platform/internal/guard"
	"github.com/oddsmith/platform/internal/repository"
)

// fakeAlerts captures ops alerts in memory.
type fakeAlerts struct {
	alerts []domain.OpsAlert
}

func (f *fakeAlerts) Insert(_ context.Context, _ repository.DBTX, _ guard.Module, a *domain.OpsAlert) error {
	f.alerts = append(f.alerts, *a)
	return nil
}

func (f *fakeAlerts) ListByKindSince(_ context.Context, _ repository.DBTX, kind domain.AlertKind, _ time.Time) ([]domain.OpsAlert, error) {
	var out []domain.OpsAlert
	for _, a := range f.alerts {
		if a.Kind == kind {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeAlerts) Resolve(_ context.Context, _ repository.DBTX, _ guard.Module, _ string) error {
	return nil
}

func uniformHist(min float64, bins int, perBin int64) domain.Histogram {
	counts := make([]int64, bins)
	for i := range counts {
		counts[i] = perBin
	}
	return domain.Histogram{Min: min, BinWidth: 1, Counts: counts, Total: perBin * int64(bins)}
}

func fixture(t *testing.T, converged bool) (*domain.Event, *domain.MarketSnapshot, *domain.SimulationRun, *domain.GameDecisions) {
	t.Helper()

	ev := &domain.Event{
		EventID:    "nba-3001",
		League:     domain.LeagueNBA,
		HomeTeamID: "NYK",
		AwayTeamID: "PHI",
		HomeName:   "New York Knicks",
		AwayName:   "Philadelphia 76ers",
	}
	snap := &domain.MarketSnapshot{
		EventID:         "nba-3001",
		Wave:            domain.WaveValidation,
		ObservedAt:      time.Date(2026, 1, 20, 23, 0, 0, 0, time.UTC),
		BookID:          "draftkings",
		SpreadHome:      -2.5,
		SpreadAway:      2.5,
		SpreadHomePrice: -110,
		SpreadAwayPrice: -110,
		Total:           221.5,
		OverPrice:       -110,
		UnderPrice:      -110,
		MLHome:          -160,
		MLAway:          140,
	}
	run := &domain.SimulationRun{
		SimRunID:   "sim-feedface",
		EventID:    "nba-3001",
		League:     domain.LeagueNBA,
		Iterations: 25_000,
		Converged:  converged,
		Stats: domain.SimStats{
			HomeWinProb: 0.66,
			MeanMargin:  5.8,
			MeanTotal:   226.0,
			MarginHist:  uniformHist(-14.2, 40, 25),
			TotalHist:   uniformHist(195, 55, 11),
		},
	}
	cfg := domain.DefaultLeagueConfigs[domain.LeagueNBA]

	gd, err := decision.NewComputer().ComputeGame(ev, snap, run, cfg, 7, "trace-v")
	require.NoError(t, err)
	return ev, snap, run, gd
}

func newTestValidator(alerts *fakeAlerts) *Validator {
	metrics := NewMetrics(prometheus.NewRegistry())
	return NewValidator(alerts, metrics, nil, slog.Default())
}

// --- ValidateGame Tests ---

func TestValidateGameCleanTriplePasses(t *testing.T) {
	ev, snap, run, gd := fixture(t, true)
	alerts := &fakeAlerts{}
	v := newTestValidator(alerts)

	require.NoError(t, v.ValidateGame(context.Background(), nil, ev, snap, run, gd))

	for _, d := range gd.Children() {
		assert.False(t, d.ReleaseStatus.Blocked(), "market %s", d.MarketType)
		assert.Empty(t, d.ValidatorFailures)
		assert.NotNil(t, d.Pick)
	}
	assert.Empty(t, alerts.alerts)
}

func TestValidateGameMissingSelectionID(t *testing.T) {
	ev, snap, run, gd := fixture(t, true)
	alerts := &fakeAlerts{}
	v := newTestValidator(alerts)

	gd.Spread.SelectionID = ""

	require.NoError(t, v.ValidateGame(context.Background(), nil, ev, snap, run, gd))

	sp := gd.Spread
	assert.Equal(t, domain.ReleaseBlockedByIntegrity, sp.ReleaseStatus)
	assert.Contains(t, sp.ValidatorFailures, FailMissingSelectionID)
	assert.Nil(t, sp.Pick)
	assert.Nil(t, sp.Edge)

	t.Run("a critical alert is raised", func(t *testing.T) {
		require.Len(t, alerts.alerts, 1)
		assert.Equal(t, domain.AlertIntegrityViolation, alerts.alerts[0].Kind)
		assert.Equal(t, domain.SeverityCritical, alerts.alerts[0].Severity)
		assert.Equal(t, "nba-3001", alerts.alerts[0].EventID)
	})

	t.Run("sibling markets are untouched", func(t *testing.T) {
		assert.False(t, gd.Moneyline.ReleaseStatus.Blocked())
		assert.False(t, gd.Total.ReleaseStatus.Blocked())
	})
}

func TestValidateGameMissingInputsHash(t *testing.T) {
	ev, snap, run, gd := fixture(t, true)
	alerts := &fakeAlerts{}
	v := newTestValidator(alerts)

	gd.Total.Debug.InputsHash = ""

	require.NoError(t, v.ValidateGame(context.Background(), nil, ev, snap, run, gd))
	assert.Contains(t, gd.Total.ValidatorFailures, FailMissingSnapshotHash)
	assert.Equal(t, domain.ReleaseBlockedByIntegrity, gd.Total.ReleaseStatus)
}

func TestValidateGameHashMismatch(t *testing.T) {
	ev, snap, run, gd := fixture(t, true)
	alerts := &fakeAlerts{}
	v := newTestValidator(alerts)

	gd.Moneyline.Debug.InputsHash = "tampered"

	require.NoError(t, v.ValidateGame(context.Background(), nil, ev, snap, run, gd))
	assert.Contains(t, gd.Moneyline.ValidatorFailures, FailInputsHashMismatch)
}

func TestValidateGamePickDrift(t *testing.T) {
	t.Run("team swap on the pick", func(t *testing.T) {
		ev, snap, run, gd := fixture(t, true)
		alerts := &fakeAlerts{}
		v := newTestValidator(alerts)

		gd.Spread.Pick.TeamID = ev.AwayTeamID

		require.NoError(t, v.ValidateGame(context.Background(), nil, ev, snap, run, gd))
		assert.Contains(t, gd.Spread.ValidatorFailures, FailPickSelectionDrift)
	})

	t.Run("line drift on the pick", func(t *testing.T) {
		ev, snap, run, gd := fixture(t, true)
		alerts := &fakeAlerts{}
		v := newTestValidator(alerts)

		gd.Spread.Pick.Line = -3.5

		require.NoError(t, v.ValidateGame(context.Background(), nil, ev, snap, run, gd))
		assert.Contains(t, gd.Spread.ValidatorFailures, FailPickLineDrift)
	})
}

func TestValidateGameProbDrift(t *testing.T) {
	ev, snap, run, gd := fixture(t, true)
	alerts := &fakeAlerts{}
	v := newTestValidator(alerts)

	gd.Spread.ModelProb = gd.Spread.ModelProb + 0.02

	require.NoError(t, v.ValidateGame(context.Background(), nil, ev, snap, run, gd))
	assert.Contains(t, gd.Spread.ValidatorFailures, FailProbNotNormalized)
}

func TestValidateGameConvergenceDowngrade(t *testing.T) {
	// The decision claims EDGE but the run is marked non-converged: the one
	// mutation the validator may make is the hold-at-market downgrade.
	ev, snap, run, gd := fixture(t, true)
	alerts := &fakeAlerts{}
	v := newTestValidator(alerts)

	run.Converged = false

	require.NoError(t, v.ValidateGame(context.Background(), nil, ev, snap, run, gd))

	for _, d := range gd.Children() {
		assert.Equal(t, domain.ClassMarketAligned, d.Classification, "market %s", d.MarketType)
		assert.Equal(t, domain.ReleaseInfoOnly, d.ReleaseStatus)
		assert.False(t, d.ReleaseStatus.Blocked())
		assert.NotNil(t, d.Pick, "downgrade keeps the pick")
	}
	assert.Empty(t, alerts.alerts, "downgrade is not a violation")
}

func TestValidateGameAlignedIncoherence(t *testing.T) {
	ev, snap, run, gd := fixture(t, true)
	alerts := &fakeAlerts{}
	v := newTestValidator(alerts)

	// Force an aligned classification that still talks like an edge.
	sp := gd.Spread
	sp.Classification = domain.ClassMarketAligned
	sp.ReleaseStatus = domain.ReleaseInfoOnly
	sp.Reasons = []string{"clear misprice against the market number"}

	require.NoError(t, v.ValidateGame(context.Background(), nil, ev, snap, run, gd))
	assert.Contains(t, sp.ValidatorFailures, FailClassIncoherent)
	assert.Equal(t, domain.ReleaseBlockedByIntegrity, sp.ReleaseStatus)
}

// --- ContainsForbidden Tests ---

func TestContainsForbidden(t *testing.T) {
	t.Run("case insensitive match", func(t *testing.T) {
		assert.Equal(t, "lock", ContainsForbidden("This one is a LOCK tonight", DefaultForbiddenPhrases))
	})

	t.Run("clean text passes", func(t *testing.T) {
		assert.Empty(t, ContainsForbidden("model fair line sits above the market", DefaultForbiddenPhrases))
	})

	t.Run("multi word phrase", func(t *testing.T) {
		assert.Equal(t, "free money", ContainsForbidden("this is basically Free Money", DefaultForbiddenPhrases))
	})
}
