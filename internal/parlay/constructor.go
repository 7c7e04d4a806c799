package parlay

import (
	"math"
	"math/rand"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/oddsmith/platform/internal/domain"
)

// Candidate is one eligible leg with its derived scoring attributes.
type Candidate struct {
	Leg      domain.ParlayLeg
	Decision *domain.MarketDecision
}

const maxCombinations = 5000

// Tier and grade weights for combination scoring.
var tierWeight = map[domain.Tier]float64{
	domain.TierEdge: 3.0,
	domain.TierPick: 2.0,
	domain.TierLean: 1.0,
}

var gradeBonus = map[domain.EdgeGrade]float64{
	domain.GradeA: 1.0,
	domain.GradeB: 0.5,
	domain.GradeC: 0.25,
	domain.GradeD: 0.0,
}

// ladderStep is one pre-declared fallback relaxation. Integrity and
// model-view gates are never on the ladder.
type ladderStep struct {
	name  string
	apply func(r *domain.ParlayRules)
}

var fallbackLadder = []ladderStep{
	{name: "min_weight_-10pct", apply: func(r *domain.ParlayRules) { r.MinParlayWeight *= 0.9 }},
	{name: "max_high_vol_+1", apply: func(r *domain.ParlayRules) { r.MaxHighVolLegs++ }},
	{name: "min_weight_-20pct", apply: func(r *domain.ParlayRules) { r.MinParlayWeight *= 0.8 }},
}

// Candidates derives the eligible pool from integrity-passed decisions and
// fills the audit counters for everything it drops.
func Candidates(decisions []domain.MarketDecision, audit *domain.ParlayAudit) []Candidate {
	audit.EligibleByTier = map[domain.Tier]int{}
	audit.BlockedCounts = map[string]int{}

	var out []Candidate
	for i := range decisions {
		d := &decisions[i]
		switch {
		case d.ReleaseStatus.Blocked():
			audit.BlockedCounts["integrity"]++
			continue
		case d.Pick == nil || d.Edge == nil:
			audit.BlockedCounts["no_pick"]++
			continue
		case d.Classification == domain.ClassMarketAligned || d.Classification == domain.ClassNoAction:
			audit.BlockedCounts["market_aligned"]++
			continue
		}

		tier := tierFor(d)
		leg := domain.ParlayLeg{
			SelectionID: d.SelectionID,
			EventID:     d.EventID,
			League:      d.League,
			MarketType:  d.MarketType,
			Tier:        tier,
			TeamKey:     d.Pick.TeamID,
			Weight:      tierWeight[tier] + gradeBonus[d.Edge.Grade],
			HighVol:     highVol(d),
		}
		if leg.TeamKey == "" && d.MarketType != domain.MarketTotal {
			audit.MissingTeamKeys = append(audit.MissingTeamKeys, d.SelectionID)
		}
		audit.EligibleByTier[tier]++
		out = append(out, Candidate{Leg: leg, Decision: d})
	}
	return out
}

// tierFor maps classification and grade to a leg tier. A LEAN with a strong
// grade promotes to PICK.
func tierFor(d *domain.MarketDecision) domain.Tier {
	if d.Classification == domain.ClassEdge {
		return domain.TierEdge
	}
	if d.Edge.Grade == domain.GradeB || d.Edge.Grade == domain.GradeC {
		return domain.TierPick
	}
	return domain.TierLean
}

// highVol marks volatile legs: moneyline underdogs and low-confidence sides.
func highVol(d *domain.MarketDecision) bool {
	if d.MarketType == domain.MarketMoneyline && d.AmericanOdds > 0 {
		return true
	}
	return d.ModelProb < 0.45
}

// Build runs the deterministic seeded construction. The result is exactly
// PARLAY or FAIL with a documented reason code; it is never empty.
func Build(req domain.ParlayRequest, pool []Candidate, audit domain.ParlayAudit) *domain.ParlayResult {
	res := &domain.ParlayResult{
		AttemptID: uuid.NewString(),
		Audit:     audit,
		CreatedAt: time.Now().UTC(),
	}

	rules, ok := domain.DefaultParlayRules[req.Profile]
	if !ok {
		return fail(res, domain.FailInvalidProfile, map[string]any{"profile": string(req.Profile)})
	}
	if req.Legs < 2 || req.Legs > 8 {
		return fail(res, domain.FailInvalidProfile, map[string]any{"legs": req.Legs})
	}

	if len(req.Sports) > 0 {
		allowed := map[domain.League]bool{}
		for _, l := range req.Sports {
			allowed[l] = true
		}
		filtered := pool[:0:0]
		for _, c := range pool {
			if allowed[c.Leg.League] {
				filtered = append(filtered, c)
			}
		}
		pool = filtered
	}

	if !rules.AllowLean {
		kept := pool[:0:0]
		leanDropped := 0
		for _, c := range pool {
			if c.Leg.Tier == domain.TierLean {
				leanDropped++
				continue
			}
			kept = append(kept, c)
		}
		if len(kept) < req.Legs && len(kept)+leanDropped >= req.Legs {
			return fail(res, domain.FailLeanNotAllowed, map[string]any{
				"eligible_without_lean": len(kept),
				"lean_dropped":          leanDropped,
				"legs_requested":        req.Legs,
			})
		}
		pool = kept
	}

	if len(pool) < req.Legs {
		return fail(res, domain.FailInsufficientPool, map[string]any{
			"eligible_pool_size": len(pool),
			"legs_requested":     req.Legs,
		})
	}

	// Deterministic order: sort by weight then shuffle ties with the seed so
	// identical requests reproduce identical parlays.
	rng := rand.New(rand.NewSource(req.Seed))
	sort.SliceStable(pool, func(i, j int) bool { return pool[i].Leg.Weight > pool[j].Leg.Weight })
	rng.Shuffle(len(pool), func(i, j int) {
		if pool[i].Leg.Weight == pool[j].Leg.Weight {
			pool[i], pool[j] = pool[j], pool[i]
		}
	})

	best, tried := search(req, rules, pool)
	res.Audit.CombinationsTried = tried
	if best == nil {
		return fail(res, domain.FailConstraintBlocked, map[string]any{
			"eligible_pool_size": len(pool),
			"combinations_tried": tried,
		})
	}

	weight := totalWeight(best)
	if weight < rules.MinParlayWeight {
		relaxed := rules
		for _, step := range fallbackLadder {
			step.apply(&relaxed)
			res.Audit.LadderStepsUsed = append(res.Audit.LadderStepsUsed, step.name)
			var stepTried int
			best, stepTried = search(req, relaxed, pool)
			res.Audit.CombinationsTried += stepTried
			if best != nil && totalWeight(best) >= relaxed.MinParlayWeight {
				weight = totalWeight(best)
				break
			}
			best = nil
		}
		if best == nil {
			return fail(res, domain.FailParlayWeightTooLow, map[string]any{
				"min_parlay_weight": rules.MinParlayWeight,
			})
		}
	}

	res.Status = domain.ParlayStatusOK
	res.Legs = make([]domain.ParlayLeg, len(best))
	for i, c := range best {
		res.Legs[i] = c.Leg
	}
	res.TotalWeight = math.Round(weight*100) / 100
	return res
}

// search enumerates leg combinations depth-first in pool order, bounded by
// maxCombinations, returning the max-weight feasible combination.
func search(req domain.ParlayRequest, rules domain.ParlayRules, pool []Candidate) ([]Candidate, int) {
	var (
		best       []Candidate
		bestWeight float64
		tried      int
		current    []Candidate
	)

	var walk func(start int)
	walk = func(start int) {
		if tried >= maxCombinations {
			return
		}
		if len(current) == req.Legs {
			tried++
			if feasible(req, rules, current) {
				if w := totalWeight(current); w > bestWeight {
					bestWeight = w
					best = append([]Candidate(nil), current...)
				}
			}
			return
		}
		for i := start; i < len(pool); i++ {
			if !admissible(req, rules, current, pool[i]) {
				continue
			}
			current = append(current, pool[i])
			walk(i + 1)
			current = current[:len(current)-1]
			if tried >= maxCombinations {
				return
			}
		}
	}
	walk(0)
	return best, tried
}

// admissible prunes a partial combination before recursion.
func admissible(req domain.ParlayRequest, rules domain.ParlayRules, current []Candidate, next Candidate) bool {
	sameEvent := 0
	highVolCount := 0
	for _, c := range current {
		if c.Leg.EventID == next.Leg.EventID {
			sameEvent++
		}
		if c.Leg.HighVol {
			highVolCount++
		}
		if !req.AllowSameTeam && next.Leg.TeamKey != "" && c.Leg.TeamKey == next.Leg.TeamKey {
			return false
		}
	}
	if sameEvent >= rules.MaxSameEvent {
		return false
	}
	if next.Leg.HighVol && highVolCount >= rules.MaxHighVolLegs {
		return false
	}
	return true
}

// feasible applies the profile minimums to a full combination.
func feasible(_ domain.ParlayRequest, rules domain.ParlayRules, legs []Candidate) bool {
	edges, picks := 0, 0
	for _, c := range legs {
		switch c.Leg.Tier {
		case domain.TierEdge:
			edges++
		case domain.TierPick:
			picks++
		case domain.TierLean:
			if !rules.AllowLean {
				return false
			}
		}
	}
	return edges >= rules.MinEdges && picks >= rules.MinPicks
}

func totalWeight(legs []Candidate) float64 {
	var w float64
	for _, c := range legs {
		w += c.Leg.Weight
	}
	return w
}

func fail(res *domain.ParlayResult, code domain.ParlayFailReason, detail map[string]any) *domain.ParlayResult {
	res.Status = domain.ParlayStatusFail
	res.ReasonCode = code
	res.ReasonDetail = detail
	return res
}
