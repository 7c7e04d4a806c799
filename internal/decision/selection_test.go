package decision

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oddsmith/platform/internal/domain"
)

// --- SelectionID Tests ---

func TestSelectionID(t *testing.T) {
	id := SelectionID("nba-1001", domain.MarketSpread, "home", -2.5, "draftkings")

	t.Run("stable across calls", func(t *testing.T) {
		assert.Equal(t, id, SelectionID("nba-1001", domain.MarketSpread, "home", -2.5, "draftkings"))
	})

	t.Run("line normalization collapses float noise", func(t *testing.T) {
		assert.Equal(t, id, SelectionID("nba-1001", domain.MarketSpread, "home", -2.5000000001, "draftkings"))
	})

	t.Run("every component participates", func(t *testing.T) {
		assert.NotEqual(t, id, SelectionID("nba-1002", domain.MarketSpread, "home", -2.5, "draftkings"))
		assert.NotEqual(t, id, SelectionID("nba-1001", domain.MarketTotal, "home", -2.5, "draftkings"))
		assert.NotEqual(t, id, SelectionID("nba-1001", domain.MarketSpread, "away", -2.5, "draftkings"))
		assert.NotEqual(t, id, SelectionID("nba-1001", domain.MarketSpread, "home", -3.0, "draftkings"))
		assert.NotEqual(t, id, SelectionID("nba-1001", domain.MarketSpread, "home", -2.5, "fanduel"))
	})
}

// --- Opposite Tests ---

func TestOppositeInvolution(t *testing.T) {
	d := &domain.MarketDecision{
		SelectionID:         "sel-a",
		OppositeSelectionID: "sel-b",
	}

	opp, err := Opposite(d, "sel-a")
	require.NoError(t, err)
	assert.Equal(t, "sel-b", opp)

	back, err := Opposite(d, opp)
	require.NoError(t, err)
	assert.Equal(t, "sel-a", back)

	t.Run("foreign selection rejected", func(t *testing.T) {
		_, err := Opposite(d, "sel-z")
		assert.Error(t, err)
	})
}

// --- RemoveVig Tests ---

func TestRemoveVig(t *testing.T) {
	t.Run("standard minus 110 both sides", func(t *testing.T) {
		raw := domain.AmericanImplied(-110)
		fairA, fairB := RemoveVig(raw, raw)
		assert.InDelta(t, 0.5, fairA, 1e-9)
		assert.InDelta(t, 0.5, fairB, 1e-9)
		assert.InDelta(t, 1.0, fairA+fairB, 1e-9)
	})

	t.Run("asymmetric market still sums to one", func(t *testing.T) {
		fairA, fairB := RemoveVig(domain.AmericanImplied(-180), domain.AmericanImplied(155))
		assert.InDelta(t, 1.0, fairA+fairB, 1e-9)
		assert.Greater(t, fairA, fairB)
	})

	t.Run("no overround is a passthrough", func(t *testing.T) {
		fairA, fairB := RemoveVig(0.45, 0.45)
		assert.Equal(t, 0.45, fairA)
		assert.Equal(t, 0.45, fairB)
	})
}
