package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- ParseLeague Tests ---

func TestParseLeague(t *testing.T) {
	t.Run("canonical form", func(t *testing.T) {
		l, err := ParseLeague("NBA")
		require.NoError(t, err)
		assert.Equal(t, LeagueNBA, l)
	})

	t.Run("case sensitive", func(t *testing.T) {
		_, err := ParseLeague("nba")
		assert.Error(t, err)
	})

	t.Run("unknown league", func(t *testing.T) {
		_, err := ParseLeague("XFL")
		require.Error(t, err)
		var appErr *AppError
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, "VALIDATION_ERROR", appErr.Code)
	})
}

// --- Market contract Tests ---

func TestSupportsSettlement(t *testing.T) {
	t.Run("every league supports full game", func(t *testing.T) {
		for _, l := range Leagues {
			assert.True(t, l.SupportsSettlement(SettleFullGame), "league %s", l)
		}
	})

	t.Run("regulation only where ties exist", func(t *testing.T) {
		assert.True(t, LeagueNFL.SupportsSettlement(SettleRegulation))
		assert.True(t, LeagueNHL.SupportsSettlement(SettleRegulation))
		assert.False(t, LeagueNBA.SupportsSettlement(SettleRegulation))
		assert.False(t, LeagueMLB.SupportsSettlement(SettleRegulation))
		assert.False(t, LeagueNCAAB.SupportsSettlement(SettleRegulation))
		assert.False(t, LeagueNCAAF.SupportsSettlement(SettleRegulation))
	})

	t.Run("unknown settlement rejected", func(t *testing.T) {
		assert.False(t, LeagueNFL.SupportsSettlement("FIRST_HALF"))
	})
}

// --- League config Tests ---

func TestConfigFor(t *testing.T) {
	t.Run("every league has a config", func(t *testing.T) {
		for _, l := range Leagues {
			cfg, err := ConfigFor(l)
			require.NoError(t, err)
			assert.Equal(t, l, cfg.League)
			assert.NotEmpty(t, cfg.ConfigVersion)
			assert.Greater(t, cfg.EdgeThresholdPoints, cfg.LeanFloorPoints)
		}
	})

	t.Run("unknown league errors", func(t *testing.T) {
		_, err := ConfigFor(League("XFL"))
		assert.Error(t, err)
	})
}

// --- GameDecisions coherence Tests ---

func TestGameDecisionsCoherent(t *testing.T) {
	mk := func(hash string, version int64) *MarketDecision {
		return &MarketDecision{Debug: DebugBlock{InputsHash: hash, DecisionVersion: version}}
	}

	t.Run("all children share meta", func(t *testing.T) {
		gd := &GameDecisions{
			Spread:    mk("h1", 3),
			Moneyline: mk("h1", 3),
			Total:     mk("h1", 3),
			Meta:      GameDecisionsMeta{InputsHash: "h1", DecisionVersion: 3},
		}
		assert.True(t, gd.Coherent())
		assert.Len(t, gd.Children(), 3)
	})

	t.Run("one stale child breaks coherence", func(t *testing.T) {
		gd := &GameDecisions{
			Spread:    mk("h1", 3),
			Moneyline: mk("h0", 2),
			Total:     mk("h1", 3),
			Meta:      GameDecisionsMeta{InputsHash: "h1", DecisionVersion: 3},
		}
		assert.False(t, gd.Coherent())
	})

	t.Run("nil children are skipped", func(t *testing.T) {
		gd := &GameDecisions{
			Spread: mk("h1", 1),
			Meta:   GameDecisionsMeta{InputsHash: "h1", DecisionVersion: 1},
		}
		assert.True(t, gd.Coherent())
		assert.Len(t, gd.Children(), 1)
	})
}

// --- ReleaseStatus Tests ---

func TestReleaseStatusBlocked(t *testing.T) {
	assert.True(t, ReleaseBlockedByIntegrity.Blocked())
	assert.True(t, ReleaseBlockedByRisk.Blocked())
	assert.False(t, ReleaseOfficial.Blocked())
	assert.False(t, ReleaseInfoOnly.Blocked())
}

// --- Grading key Tests ---

func TestGradingIdempotencyKey(t *testing.T) {
	k1 := GradingIdempotencyKey("pick-1", "auto", "sr-2025.2", "clv-1.1")
	k2 := GradingIdempotencyKey("pick-1", "auto", "sr-2025.2", "clv-1.1")
	assert.Equal(t, k1, k2)

	t.Run("rules version change regrades under a new key", func(t *testing.T) {
		k3 := GradingIdempotencyKey("pick-1", "auto", "sr-2025.3", "clv-1.1")
		assert.NotEqual(t, k1, k3)
	})

	t.Run("admin grade is keyed apart from auto", func(t *testing.T) {
		k4 := GradingIdempotencyKey("pick-1", "admin", "sr-2025.2", "clv-1.1")
		assert.NotEqual(t, k1, k4)
	})
}
