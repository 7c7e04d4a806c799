package decision

import (
	"fmt"
	"math"
	"time"

	"github.com/oddsmith/platform/internal/domain"
)

// Computer turns one (snapshot, simulation, config) triple into the three
// canonical MarketDecisions. Edge computation, side selection, spread-sign
// interpretation and opposite-team inference live only here; every consumer
// renders the result verbatim.
type Computer struct {
	now func() time.Time
}

// NewComputer creates a decision computer.
func NewComputer() *Computer {
	return &Computer{now: time.Now}
}

// ComputeGame produces the full GameDecisions triple. All three children
// share one inputs_hash and decision_version; there is no partial refresh.
func (c *Computer) ComputeGame(ev *domain.Event, snap *domain.MarketSnapshot, run *domain.SimulationRun, cfg domain.LeagueConfig, version int64, traceID string) (*domain.GameDecisions, error) {
	hash, err := InputsHash(snap, run.Stats, cfg, version)
	if err != nil {
		return nil, err
	}

	computedAt := c.now().UTC()
	debug := domain.DebugBlock{
		InputsHash:      hash,
		DecisionVersion: version,
		TraceID:         traceID,
		ComputedAt:      computedAt,
		OddsTimestamp:   snap.ObservedAt,
		SimRunID:        run.SimRunID,
	}

	spread := c.computeSpread(ev, snap, run, cfg, debug)
	moneyline := c.computeMoneyline(ev, snap, run, cfg, debug)
	total := c.computeTotal(ev, snap, run, cfg, debug)

	return &domain.GameDecisions{
		Spread:    spread,
		Moneyline: moneyline,
		Total:     total,
		Meta: domain.GameDecisionsMeta{
			InputsHash:      hash,
			DecisionVersion: version,
			ComputedAt:      computedAt,
			League:          ev.League,
			EventID:         ev.EventID,
		},
	}, nil
}

// computeSpread derives the spread decision. Lines are bookmaker-signed,
// home perspective: a favored home team carries a negative line. The model
// fair line is the negated mean margin, so
// edge_points = market_line - fair_line is positive exactly when the home
// side beats the number more often than the market prices.
func (c *Computer) computeSpread(ev *domain.Event, snap *domain.MarketSnapshot, run *domain.SimulationRun, cfg domain.LeagueConfig, debug domain.DebugBlock) *domain.MarketDecision {
	fairLine := -run.Stats.MeanMargin
	edgePoints := snap.SpreadHome - fairLine

	// Cover probability of the home side against the market line.
	probHomeCover := run.Stats.MarginHist.ProbAbove(-snap.SpreadHome)
	probAwayCover := 1 - probHomeCover

	rawHome := domain.AmericanImplied(snap.SpreadHomePrice)
	rawAway := domain.AmericanImplied(snap.SpreadAwayPrice)
	impHome, impAway := RemoveVig(rawHome, rawAway)

	homeID := SelectionID(ev.EventID, domain.MarketSpread, sideKey(domain.SideHome), snap.SpreadHome, snap.BookID)
	awayID := SelectionID(ev.EventID, domain.MarketSpread, sideKey(domain.SideAway), snap.SpreadAway, snap.BookID)

	d := &domain.MarketDecision{
		League:          ev.League,
		EventID:         ev.EventID,
		ProviderEventID: ev.ProviderEventID(domain.ProviderOddsAPI),
		MarketType:      domain.MarketSpread,
		FairLine:        fairLine,
		WinProb:         run.Stats.HomeWinProb,
		Debug:           debug,
	}

	if edgePoints >= 0 {
		d.SelectionID, d.OppositeSelectionID = homeID, awayID
		d.Pick = &domain.Pick{TeamID: ev.HomeTeamID, TeamName: ev.HomeName, Side: domain.SideHome, Line: snap.SpreadHome}
		d.Line = snap.SpreadHome
		d.AmericanOdds = snap.SpreadHomePrice
		d.ModelProb = probHomeCover
		d.MarketImpliedProb = impHome
	} else {
		d.SelectionID, d.OppositeSelectionID = awayID, homeID
		d.Pick = &domain.Pick{TeamID: ev.AwayTeamID, TeamName: ev.AwayName, Side: domain.SideAway, Line: snap.SpreadAway}
		d.Line = snap.SpreadAway
		d.AmericanOdds = snap.SpreadAwayPrice
		d.ModelProb = probAwayCover
		d.MarketImpliedProb = impAway
	}

	c.classifyPoints(d, edgePoints, run, cfg)
	c.authorSpreadReasons(d, edgePoints, run)
	return d
}

// computeTotal derives the total decision. Positive edge favors the over:
// the model expects more combined scoring than the market line.
func (c *Computer) computeTotal(ev *domain.Event, snap *domain.MarketSnapshot, run *domain.SimulationRun, cfg domain.LeagueConfig, debug domain.DebugBlock) *domain.MarketDecision {
	fairTotal := run.Stats.MeanTotal
	edgePoints := fairTotal - snap.Total

	probOver := run.Stats.TotalHist.ProbAbove(snap.Total)
	probUnder := 1 - probOver

	rawOver := domain.AmericanImplied(snap.OverPrice)
	rawUnder := domain.AmericanImplied(snap.UnderPrice)
	impOver, impUnder := RemoveVig(rawOver, rawUnder)

	overID := SelectionID(ev.EventID, domain.MarketTotal, sideKey(domain.SideOver), snap.Total, snap.BookID)
	underID := SelectionID(ev.EventID, domain.MarketTotal, sideKey(domain.SideUnder), snap.Total, snap.BookID)

	d := &domain.MarketDecision{
		League:          ev.League,
		EventID:         ev.EventID,
		ProviderEventID: ev.ProviderEventID(domain.ProviderOddsAPI),
		MarketType:      domain.MarketTotal,
		Line:            snap.Total,
		FairLine:        fairTotal,
		WinProb:         run.Stats.HomeWinProb,
		Debug:           debug,
	}

	if edgePoints >= 0 {
		d.SelectionID, d.OppositeSelectionID = overID, underID
		d.Pick = &domain.Pick{Side: domain.SideOver, Line: snap.Total}
		d.AmericanOdds = snap.OverPrice
		d.ModelProb = probOver
		d.MarketImpliedProb = impOver
	} else {
		d.SelectionID, d.OppositeSelectionID = underID, overID
		d.Pick = &domain.Pick{Side: domain.SideUnder, Line: snap.Total}
		d.AmericanOdds = snap.UnderPrice
		d.ModelProb = probUnder
		d.MarketImpliedProb = impUnder
	}

	c.classifyPoints(d, edgePoints, run, cfg)
	c.authorTotalReasons(d, edgePoints, run)
	return d
}

// computeMoneyline derives the moneyline decision. The edge is home
// expected value: model home win probability against fair-stripped market
// odds. Positive EV takes the home side, negative the away side.
func (c *Computer) computeMoneyline(ev *domain.Event, snap *domain.MarketSnapshot, run *domain.SimulationRun, cfg domain.LeagueConfig, debug domain.DebugBlock) *domain.MarketDecision {
	rawHome := domain.AmericanImplied(snap.MLHome)
	rawAway := domain.AmericanImplied(snap.MLAway)
	impHome, impAway := RemoveVig(rawHome, rawAway)

	edgeEV := run.Stats.HomeWinProb*domain.AmericanToDecimal(snap.MLHome) - 1

	homeID := SelectionID(ev.EventID, domain.MarketMoneyline, sideKey(domain.SideHome), 0, snap.BookID)
	awayID := SelectionID(ev.EventID, domain.MarketMoneyline, sideKey(domain.SideAway), 0, snap.BookID)

	d := &domain.MarketDecision{
		League:          ev.League,
		EventID:         ev.EventID,
		ProviderEventID: ev.ProviderEventID(domain.ProviderOddsAPI),
		MarketType:      domain.MarketMoneyline,
		FairLine:        run.Stats.HomeWinProb,
		WinProb:         run.Stats.HomeWinProb,
		Debug:           debug,
	}

	if edgeEV >= 0 {
		d.SelectionID, d.OppositeSelectionID = homeID, awayID
		d.Pick = &domain.Pick{TeamID: ev.HomeTeamID, TeamName: ev.HomeName, Side: domain.SideHome}
		d.AmericanOdds = snap.MLHome
		d.ModelProb = run.Stats.HomeWinProb
		d.MarketImpliedProb = impHome
	} else {
		d.SelectionID, d.OppositeSelectionID = awayID, homeID
		d.Pick = &domain.Pick{TeamID: ev.AwayTeamID, TeamName: ev.AwayName, Side: domain.SideAway}
		d.AmericanOdds = snap.MLAway
		d.ModelProb = 1 - run.Stats.HomeWinProb
		d.MarketImpliedProb = impAway
	}

	mag := math.Abs(edgeEV)
	switch {
	case !run.Converged || mag < cfg.LeanFloorEV:
		d.Classification = domain.ClassMarketAligned
	case mag < cfg.MLEdgeThresholdEV:
		d.Classification = domain.ClassLean
	default:
		d.Classification = domain.ClassEdge
	}
	d.Edge = &domain.Edge{EV: edgeEV, Grade: gradeFor(mag, cfg.MLEdgeThresholdEV)}
	d.ReleaseStatus = provisionalRelease(d.Classification)

	switch d.Classification {
	case domain.ClassEdge:
		d.Reasons = []string{
			fmt.Sprintf("model prices %s to win %.1f%% against a market-implied %.1f%%", d.Pick.TeamName, d.ModelProb*100, d.MarketImpliedProb*100),
			fmt.Sprintf("misprice worth %+.1f%% expected value at current odds", edgeEV*100),
		}
	case domain.ClassLean:
		d.Reasons = []string{fmt.Sprintf("modest value on %s: %+.1f%% expected value", d.Pick.TeamName, edgeEV*100)}
	default:
		d.Reasons = []string{"model win probability agrees with the market price"}
	}
	if !run.Converged {
		d.Reasons = append(d.Reasons, "simulation did not converge; holding at market")
	}
	return d
}

func (c *Computer) classifyPoints(d *domain.MarketDecision, edgePoints float64, run *domain.SimulationRun, cfg domain.LeagueConfig) {
	mag := math.Abs(edgePoints)
	switch {
	case !run.Converged || mag < cfg.LeanFloorPoints:
		d.Classification = domain.ClassMarketAligned
	case mag < cfg.EdgeThresholdPoints:
		d.Classification = domain.ClassLean
	default:
		d.Classification = domain.ClassEdge
	}
	d.Edge = &domain.Edge{Points: edgePoints, Grade: gradeFor(mag, cfg.EdgeThresholdPoints)}
	d.ReleaseStatus = provisionalRelease(d.Classification)
}

func (c *Computer) authorSpreadReasons(d *domain.MarketDecision, edgePoints float64, run *domain.SimulationRun) {
	switch d.Classification {
	case domain.ClassEdge:
		d.Reasons = []string{
			fmt.Sprintf("model fair line %+.1f vs market %+.1f: %.1f-point misprice", d.FairLine, d.Line, math.Abs(edgePoints)),
			fmt.Sprintf("%s covers in %.1f%% of simulations", d.Pick.TeamName, d.ModelProb*100),
		}
	case domain.ClassLean:
		d.Reasons = []string{fmt.Sprintf("model leans %s by %.1f points against the number", d.Pick.TeamName, math.Abs(edgePoints))}
	default:
		d.Reasons = []string{fmt.Sprintf("model fair line %+.1f sits on the market number", d.FairLine)}
	}
	if !run.Converged {
		d.Reasons = append(d.Reasons, "simulation did not converge; holding at market")
	}
}

func (c *Computer) authorTotalReasons(d *domain.MarketDecision, edgePoints float64, run *domain.SimulationRun) {
	switch d.Classification {
	case domain.ClassEdge:
		d.Reasons = []string{
			fmt.Sprintf("model total %.1f vs market %.1f: %.1f-point misprice", d.FairLine, d.Line, math.Abs(edgePoints)),
			fmt.Sprintf("the %s hits in %.1f%% of simulations", d.Pick.Side, d.ModelProb*100),
		}
	case domain.ClassLean:
		d.Reasons = []string{fmt.Sprintf("model leans %s by %.1f points", d.Pick.Side, math.Abs(edgePoints))}
	default:
		d.Reasons = []string{fmt.Sprintf("model total %.1f sits on the market number", d.FairLine)}
	}
	if !run.Converged {
		d.Reasons = append(d.Reasons, "simulation did not converge; holding at market")
	}
}

func provisionalRelease(c domain.Classification) domain.ReleaseStatus {
	if c == domain.ClassEdge {
		return domain.ReleaseOfficial
	}
	return domain.ReleaseInfoOnly
}

func gradeFor(magnitude, threshold float64) domain.EdgeGrade {
	switch {
	case magnitude >= 2*threshold:
		return domain.GradeA
	case magnitude >= 1.5*threshold:
		return domain.GradeB
	case magnitude >= threshold:
		return domain.GradeC
	default:
		return domain.GradeD
	}
}
