package parlay

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oddsmith/platform/internal/domain"
)

func mkDecision(eventID, teamID string, class domain.Classification, grade domain.EdgeGrade) domain.MarketDecision {
	return domain.MarketDecision{
		League:         domain.LeagueNBA,
		EventID:        eventID,
		MarketType:     domain.MarketSpread,
		SelectionID:    fmt.Sprintf("sel-%s-%s", eventID, teamID),
		Pick:           &domain.Pick{TeamID: teamID, Side: domain.SideHome, Line: -3.5},
		AmericanOdds:   -110,
		ModelProb:      0.58,
		Edge:           &domain.Edge{Points: 3.0, Grade: grade},
		Classification: class,
		ReleaseStatus:  domain.ReleaseOfficial,
	}
}

func edgePool(n int, grade domain.EdgeGrade) []Candidate {
	var decisions []domain.MarketDecision
	for i := 0; i < n; i++ {
		decisions = append(decisions, mkDecision(fmt.Sprintf("ev-%d", i), fmt.Sprintf("T%d", i), domain.ClassEdge, grade))
	}
	var audit domain.ParlayAudit
	return Candidates(decisions, &audit)
}

// --- Candidates Tests ---

func TestCandidatesFiltering(t *testing.T) {
	blocked := mkDecision("ev-b", "BLK", domain.ClassEdge, domain.GradeA)
	blocked.ReleaseStatus = domain.ReleaseBlockedByIntegrity

	noPick := mkDecision("ev-n", "NP", domain.ClassEdge, domain.GradeA)
	noPick.Pick = nil

	aligned := mkDecision("ev-a", "AL", domain.ClassMarketAligned, domain.GradeD)

	decisions := []domain.MarketDecision{
		blocked,
		noPick,
		aligned,
		mkDecision("ev-1", "BOS", domain.ClassEdge, domain.GradeA),
		mkDecision("ev-2", "DEN", domain.ClassLean, domain.GradeB),
		mkDecision("ev-3", "PHX", domain.ClassLean, domain.GradeD),
	}

	var audit domain.ParlayAudit
	pool := Candidates(decisions, &audit)

	require.Len(t, pool, 3)
	assert.Equal(t, 1, audit.BlockedCounts["integrity"])
	assert.Equal(t, 1, audit.BlockedCounts["no_pick"])
	assert.Equal(t, 1, audit.BlockedCounts["market_aligned"])
	assert.Equal(t, 1, audit.EligibleByTier[domain.TierEdge])
	assert.Equal(t, 1, audit.EligibleByTier[domain.TierPick], "strong lean promotes to PICK")
	assert.Equal(t, 1, audit.EligibleByTier[domain.TierLean])

	t.Run("weights combine tier and grade", func(t *testing.T) {
		assert.Equal(t, 4.0, pool[0].Leg.Weight)  // EDGE + A
		assert.Equal(t, 2.5, pool[1].Leg.Weight)  // PICK + B
		assert.Equal(t, 1.0, pool[2].Leg.Weight)  // LEAN + D
	})
}

func TestCandidatesHighVol(t *testing.T) {
	t.Run("moneyline dog is high volatility", func(t *testing.T) {
		d := mkDecision("ev-1", "CHI", domain.ClassEdge, domain.GradeB)
		d.MarketType = domain.MarketMoneyline
		d.AmericanOdds = 145
		var audit domain.ParlayAudit
		pool := Candidates([]domain.MarketDecision{d}, &audit)
		require.Len(t, pool, 1)
		assert.True(t, pool[0].Leg.HighVol)
	})

	t.Run("low model probability is high volatility", func(t *testing.T) {
		d := mkDecision("ev-1", "CHI", domain.ClassEdge, domain.GradeB)
		d.ModelProb = 0.42
		var audit domain.ParlayAudit
		pool := Candidates([]domain.MarketDecision{d}, &audit)
		require.Len(t, pool, 1)
		assert.True(t, pool[0].Leg.HighVol)
	})

	t.Run("favorite spread at solid probability is not", func(t *testing.T) {
		d := mkDecision("ev-1", "CHI", domain.ClassEdge, domain.GradeB)
		var audit domain.ParlayAudit
		pool := Candidates([]domain.MarketDecision{d}, &audit)
		require.Len(t, pool, 1)
		assert.False(t, pool[0].Leg.HighVol)
	})
}

// --- Build Tests ---

func TestBuildInvalidProfile(t *testing.T) {
	t.Run("unknown profile", func(t *testing.T) {
		res := Build(domain.ParlayRequest{Profile: "degenerate", Legs: 3}, nil, domain.ParlayAudit{})
		assert.Equal(t, domain.ParlayStatusFail, res.Status)
		assert.Equal(t, domain.FailInvalidProfile, res.ReasonCode)
	})

	t.Run("leg count out of range", func(t *testing.T) {
		res := Build(domain.ParlayRequest{Profile: domain.ProfileBalanced, Legs: 1}, nil, domain.ParlayAudit{})
		assert.Equal(t, domain.FailInvalidProfile, res.ReasonCode)

		res = Build(domain.ParlayRequest{Profile: domain.ProfileBalanced, Legs: 9}, nil, domain.ParlayAudit{})
		assert.Equal(t, domain.FailInvalidProfile, res.ReasonCode)
	})
}

func TestBuildInsufficientPool(t *testing.T) {
	pool := edgePool(1, domain.GradeA)
	res := Build(domain.ParlayRequest{Profile: domain.ProfilePremium, Legs: 2, Seed: 7}, pool, domain.ParlayAudit{})

	require.Equal(t, domain.ParlayStatusFail, res.Status)
	assert.Equal(t, domain.FailInsufficientPool, res.ReasonCode)
	assert.Equal(t, 1, res.ReasonDetail["eligible_pool_size"])
	assert.Equal(t, 2, res.ReasonDetail["legs_requested"])
}

func TestBuildLeanNotAllowed(t *testing.T) {
	// One EDGE plus two LEANs: premium drops the leans and can no longer
	// fill the ticket, so the failure names the lean exclusion.
	decisions := []domain.MarketDecision{
		mkDecision("ev-1", "BOS", domain.ClassEdge, domain.GradeA),
		mkDecision("ev-2", "DEN", domain.ClassLean, domain.GradeD),
		mkDecision("ev-3", "PHX", domain.ClassLean, domain.GradeD),
	}
	var audit domain.ParlayAudit
	pool := Candidates(decisions, &audit)

	res := Build(domain.ParlayRequest{Profile: domain.ProfilePremium, Legs: 2, Seed: 7}, pool, audit)
	require.Equal(t, domain.ParlayStatusFail, res.Status)
	assert.Equal(t, domain.FailLeanNotAllowed, res.ReasonCode)
	assert.Equal(t, 1, res.ReasonDetail["eligible_without_lean"])
	assert.Equal(t, 2, res.ReasonDetail["lean_dropped"])
}

func TestBuildPremiumSuccess(t *testing.T) {
	pool := edgePool(4, domain.GradeA)
	req := domain.ParlayRequest{Profile: domain.ProfilePremium, Legs: 3, Seed: 42}

	res := Build(req, pool, domain.ParlayAudit{})
	require.Equal(t, domain.ParlayStatusOK, res.Status)
	require.Len(t, res.Legs, 3)
	assert.Equal(t, 12.0, res.TotalWeight)
	assert.Empty(t, res.ReasonCode)

	edges := 0
	for _, leg := range res.Legs {
		if leg.Tier == domain.TierEdge {
			edges++
		}
	}
	assert.GreaterOrEqual(t, edges, 2)

	t.Run("same seed reproduces the ticket", func(t *testing.T) {
		again := Build(req, edgePool(4, domain.GradeA), domain.ParlayAudit{})
		require.Equal(t, domain.ParlayStatusOK, again.Status)
		assert.Equal(t, res.Legs, again.Legs)
		assert.Equal(t, res.TotalWeight, again.TotalWeight)
	})
}

func TestBuildConstraintBlocked(t *testing.T) {
	t.Run("same event cap", func(t *testing.T) {
		decisions := []domain.MarketDecision{
			mkDecision("ev-1", "BOS", domain.ClassEdge, domain.GradeA),
			mkDecision("ev-1", "MIA", domain.ClassEdge, domain.GradeA),
		}
		decisions[1].SelectionID = "sel-ev-1-MIA"
		var audit domain.ParlayAudit
		pool := Candidates(decisions, &audit)

		res := Build(domain.ParlayRequest{Profile: domain.ProfilePremium, Legs: 2, Seed: 7}, pool, audit)
		require.Equal(t, domain.ParlayStatusFail, res.Status)
		assert.Equal(t, domain.FailConstraintBlocked, res.ReasonCode)
	})

	t.Run("high volatility cap", func(t *testing.T) {
		decisions := []domain.MarketDecision{
			mkDecision("ev-1", "BOS", domain.ClassEdge, domain.GradeA),
			mkDecision("ev-2", "DEN", domain.ClassEdge, domain.GradeA),
		}
		for i := range decisions {
			decisions[i].ModelProb = 0.40
		}
		var audit domain.ParlayAudit
		pool := Candidates(decisions, &audit)

		res := Build(domain.ParlayRequest{Profile: domain.ProfilePremium, Legs: 2, Seed: 7}, pool, audit)
		require.Equal(t, domain.ParlayStatusFail, res.Status)
		assert.Equal(t, domain.FailConstraintBlocked, res.ReasonCode)
	})
}

func TestBuildFallbackLadder(t *testing.T) {
	// Two LEAN legs weigh 2.0, under speculative's 2.5 floor. The ladder
	// relaxes the floor in declared steps until 2.0 clears at 1.8.
	decisions := []domain.MarketDecision{
		mkDecision("ev-1", "BOS", domain.ClassLean, domain.GradeD),
		mkDecision("ev-2", "DEN", domain.ClassLean, domain.GradeD),
	}
	var audit domain.ParlayAudit
	pool := Candidates(decisions, &audit)

	res := Build(domain.ParlayRequest{Profile: domain.ProfileSpeculative, Legs: 2, Seed: 7}, pool, audit)
	require.Equal(t, domain.ParlayStatusOK, res.Status)
	assert.Equal(t, 2.0, res.TotalWeight)
	assert.Equal(t, []string{"min_weight_-10pct", "max_high_vol_+1", "min_weight_-20pct"}, res.Audit.LadderStepsUsed)
}

func TestBuildSportsFilter(t *testing.T) {
	decisions := []domain.MarketDecision{
		mkDecision("ev-1", "BOS", domain.ClassEdge, domain.GradeA),
		mkDecision("ev-2", "DEN", domain.ClassEdge, domain.GradeA),
	}
	decisions[1].League = domain.LeagueNFL

	var audit domain.ParlayAudit
	pool := Candidates(decisions, &audit)

	res := Build(domain.ParlayRequest{
		Profile: domain.ProfilePremium,
		Legs:    2,
		Seed:    7,
		Sports:  []domain.League{domain.LeagueNBA},
	}, pool, audit)

	require.Equal(t, domain.ParlayStatusFail, res.Status)
	assert.Equal(t, domain.FailInsufficientPool, res.ReasonCode)
	assert.Equal(t, 1, res.ReasonDetail["eligible_pool_size"])
}
