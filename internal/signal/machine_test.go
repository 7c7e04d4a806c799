package signal

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oddsmith/platform/internal/domain"
)

func testMachine() *Machine {
	m := NewMachine(nil, nil, nil, nil, slog.Default())
	m.now = func() time.Time { return time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC) }
	return m
}

func testSignalEvent() *domain.Event {
	return &domain.Event{
		EventID:    "nba-4001",
		League:     domain.LeagueNBA,
		HomeTeamID: "OKC",
		AwayTeamID: "MIN",
		HomeName:   "Oklahoma City Thunder",
		AwayName:   "Minnesota Timberwolves",
	}
}

func edgeDecision(points float64) *domain.MarketDecision {
	return &domain.MarketDecision{
		League:              domain.LeagueNBA,
		EventID:             "nba-4001",
		MarketType:          domain.MarketSpread,
		SelectionID:         "sel-home",
		OppositeSelectionID: "sel-away",
		Pick:                &domain.Pick{TeamID: "OKC", Side: domain.SideHome, Line: -3.5},
		Line:                -3.5,
		AmericanOdds:        -110,
		Edge:                &domain.Edge{Points: points, Grade: domain.GradeB},
		Classification:      domain.ClassEdge,
		ReleaseStatus:       domain.ReleaseOfficial,
	}
}

func discoveredSignal(d *domain.MarketDecision) *domain.Signal {
	return &domain.Signal{
		SignalID:   "sig-1",
		EventID:    "nba-4001",
		League:     domain.LeagueNBA,
		MarketType: domain.MarketSpread,
		Status:     domain.SignalDiscovered,
		Waves: []domain.WaveRecord{
			{Wave: domain.WaveDiscovery, Decision: d},
		},
	}
}

// --- WorstAcceptableOdds Tests ---

func TestWorstAcceptableOdds(t *testing.T) {
	t.Run("favorite shifts further negative", func(t *testing.T) {
		assert.Equal(t, -125, WorstAcceptableOdds(-110, 15))
	})

	t.Run("dog shifts toward even", func(t *testing.T) {
		assert.Equal(t, 135, WorstAcceptableOdds(150, 15))
	})

	t.Run("shift across even money skips the gap", func(t *testing.T) {
		// +105 - 15 = +90 lands in the invalid (-100, 100) band.
		assert.Equal(t, -110, WorstAcceptableOdds(105, 15))
	})

	t.Run("heavy favorite", func(t *testing.T) {
		assert.Equal(t, -215, WorstAcceptableOdds(-200, 15))
	})
}

// --- Transition Tests ---

func TestTransitionDiscovery(t *testing.T) {
	m := testMachine()
	ev := testSignalEvent()

	t.Run("edge promotes new to discovered", func(t *testing.T) {
		sig := &domain.Signal{Status: domain.SignalNew}
		m.transition(ev, sig, domain.WaveDiscovery, edgeDecision(3.0))
		assert.Equal(t, domain.SignalDiscovered, sig.Status)
	})

	t.Run("lean promotes as well", func(t *testing.T) {
		d := edgeDecision(1.2)
		d.Classification = domain.ClassLean
		sig := &domain.Signal{Status: domain.SignalNew}
		m.transition(ev, sig, domain.WaveDiscovery, d)
		assert.Equal(t, domain.SignalDiscovered, sig.Status)
	})

	t.Run("market aligned stays new", func(t *testing.T) {
		d := edgeDecision(0)
		d.Classification = domain.ClassMarketAligned
		d.Edge = nil
		sig := &domain.Signal{Status: domain.SignalNew}
		m.transition(ev, sig, domain.WaveDiscovery, d)
		assert.Equal(t, domain.SignalNew, sig.Status)
	})

	t.Run("blocked decision voids the signal", func(t *testing.T) {
		d := edgeDecision(3.0)
		d.ReleaseStatus = domain.ReleaseBlockedByIntegrity
		sig := &domain.Signal{Status: domain.SignalNew}
		m.transition(ev, sig, domain.WaveDiscovery, d)
		assert.Equal(t, domain.SignalVoided, sig.Status)
	})
}

func TestTransitionValidation(t *testing.T) {
	m := testMachine()
	ev := testSignalEvent()

	t.Run("stable pick validates", func(t *testing.T) {
		sig := discoveredSignal(edgeDecision(3.0))
		m.transition(ev, sig, domain.WaveValidation, edgeDecision(3.6))
		assert.Equal(t, domain.SignalValidated, sig.Status)
	})

	t.Run("flipped side is unstable", func(t *testing.T) {
		sig := discoveredSignal(edgeDecision(3.0))
		flipped := edgeDecision(3.0)
		flipped.Pick.Side = domain.SideAway
		flipped.Pick.TeamID = "MIN"
		m.transition(ev, sig, domain.WaveValidation, flipped)
		assert.Equal(t, domain.SignalUnstable, sig.Status)
	})

	t.Run("edge drift past tolerance is unstable", func(t *testing.T) {
		// NBA stability tolerance is 1.0 point.
		sig := discoveredSignal(edgeDecision(3.0))
		m.transition(ev, sig, domain.WaveValidation, edgeDecision(4.2))
		assert.Equal(t, domain.SignalUnstable, sig.Status)
	})

	t.Run("validation without discovery record is unstable", func(t *testing.T) {
		sig := &domain.Signal{Status: domain.SignalDiscovered}
		m.transition(ev, sig, domain.WaveValidation, edgeDecision(3.0))
		assert.Equal(t, domain.SignalUnstable, sig.Status)
	})
}

func TestTransitionPublish(t *testing.T) {
	m := testMachine()
	ev := testSignalEvent()

	validated := func() *domain.Signal {
		sig := discoveredSignal(edgeDecision(3.0))
		sig.Status = domain.SignalValidated
		sig.Waves = append(sig.Waves, domain.WaveRecord{
			Wave: domain.WaveValidation, Decision: edgeDecision(3.4),
		})
		return sig
	}

	t.Run("edge publishes and freezes entry", func(t *testing.T) {
		sig := validated()
		m.transition(ev, sig, domain.WavePublish, edgeDecision(3.2))
		require.Equal(t, domain.SignalPublished, sig.Status)
		require.NotNil(t, sig.Entry)
		assert.Equal(t, "sel-home", sig.Entry.SelectionID)
		assert.Equal(t, -3.5, sig.Entry.EntryLine)
		assert.Equal(t, -110, sig.Entry.EntryOdds)
		assert.Equal(t, -125, sig.Entry.WorstAcceptableOdds)
		assert.Equal(t, m.now(), sig.Entry.LockedAt)
	})

	t.Run("lean at publish wave is unstable", func(t *testing.T) {
		sig := validated()
		d := edgeDecision(1.2)
		d.Classification = domain.ClassLean
		m.transition(ev, sig, domain.WavePublish, d)
		assert.Equal(t, domain.SignalUnstable, sig.Status)
		assert.Nil(t, sig.Entry)
	})

	t.Run("publish wave on an unvalidated signal is a no-op", func(t *testing.T) {
		sig := discoveredSignal(edgeDecision(3.0))
		m.transition(ev, sig, domain.WavePublish, edgeDecision(3.0))
		assert.Equal(t, domain.SignalDiscovered, sig.Status)
	})
}

// --- Stability Tests ---

func TestWithinStability(t *testing.T) {
	t.Run("points markets compare edge points", func(t *testing.T) {
		assert.True(t, withinStability(domain.LeagueNBA, edgeDecision(3.0), edgeDecision(3.9)))
		assert.False(t, withinStability(domain.LeagueNBA, edgeDecision(3.0), edgeDecision(4.1)))
	})

	t.Run("moneyline compares EV", func(t *testing.T) {
		mk := func(ev float64) *domain.MarketDecision {
			d := edgeDecision(0)
			d.MarketType = domain.MarketMoneyline
			d.Edge = &domain.Edge{EV: ev, Grade: domain.GradeB}
			return d
		}
		assert.True(t, withinStability(domain.LeagueNBA, mk(0.05), mk(0.07)))
		assert.False(t, withinStability(domain.LeagueNBA, mk(0.05), mk(0.08)))
	})

	t.Run("missing edge fails closed", func(t *testing.T) {
		d := edgeDecision(3.0)
		d.Edge = nil
		assert.False(t, withinStability(domain.LeagueNBA, d, edgeDecision(3.0)))
		assert.False(t, withinStability(domain.LeagueNBA, nil, edgeDecision(3.0)))
	})
}

func TestSamePick(t *testing.T) {
	a := edgeDecision(3.0)
	b := edgeDecision(2.5)
	assert.True(t, samePick(a, b))

	b.Pick.Side = domain.SideAway
	assert.False(t, samePick(a, b))

	b.Pick = nil
	assert.False(t, samePick(a, b))
}

// --- Terminal status Tests ---

func TestTerminalStatuses(t *testing.T) {
	for status, terminal := range map[domain.SignalStatus]bool{
		domain.SignalNew:        false,
		domain.SignalDiscovered: false,
		domain.SignalValidated:  false,
		domain.SignalPublished:  false,
		domain.SignalLocked:     false,
		domain.SignalUnstable:   true,
		domain.SignalVoided:     true,
		domain.SignalSettled:    true,
	} {
		assert.Equal(t, terminal, status.Terminal(), "status %s", status)
	}
}
