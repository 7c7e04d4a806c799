package integrity

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/oddsmith/platform/internal/decision"
	"github.com/oddsmith/platform/internal/domain"
	"github.com/oddsmith/platform/internal/guard"
	"github.com/oddsmith/platform/internal/repository"
)

// Validator failure codes, in check order.
const (
	FailMissingSelectionID   = "MISSING_SELECTION_ID"
	FailMissingSnapshotHash  = "MISSING_SNAPSHOT_HASH"
	FailMissingProbabilities = "MISSING_PROBABILITIES"
	FailMissingDebug         = "MISSING_DEBUG"
	FailInputsHashMismatch   = "INPUTS_HASH_MISMATCH"
	FailPickSelectionDrift   = "PICK_SELECTION_MISMATCH"
	FailPickLineDrift        = "PICK_LINE_MISMATCH"
	FailProbNotNormalized    = "PROBABILITY_NOT_NORMALIZED"
	FailClassIncoherent      = "CLASSIFICATION_INCOHERENT"
	FailForbiddenPhrase      = "FORBIDDEN_PHRASE"
)

const probTolerance = 1e-6

// Validator runs after the decision computer and has veto power. It never
// repairs a defective decision; any failed check blocks the market with the
// ordered failure codes and an INTEGRITY_VIOLATION alert. The only mutation
// it is allowed is the convergence downgrade to MARKET_ALIGNED.
type Validator struct {
	alerts  repository.AlertRepository
	metrics *Metrics
	phrases []string
	logger  *slog.Logger
}

// NewValidator builds a validator with the given forbidden-phrase list.
// A nil list selects the shipped defaults.
func NewValidator(alerts repository.AlertRepository, metrics *Metrics, phrases []string, logger *slog.Logger) *Validator {
	if phrases == nil {
		phrases = DefaultForbiddenPhrases
	}
	return &Validator{alerts: alerts, metrics: metrics, phrases: phrases, logger: logger}
}

// ValidateGame gates a full GameDecisions triple in place. Blocked children
// end BLOCKED_BY_INTEGRITY with pick and edge nulled; passing EDGE children
// keep their provisional OFFICIAL release.
func (v *Validator) ValidateGame(ctx context.Context, db repository.DBTX, ev *domain.Event, snap *domain.MarketSnapshot, run *domain.SimulationRun, gd *domain.GameDecisions) error {
	for _, d := range gd.Children() {
		v.metrics.IncDecision()
		failures := v.check(ev, snap, run, gd, d)
		if len(failures) == 0 {
			if d.Classification == domain.ClassEdge {
				v.metrics.IncEdge()
			}
			continue
		}
		v.block(ctx, db, d, failures)
	}
	return nil
}

// check runs the ordered gate for one market decision. The convergence
// downgrade (check 6) mutates but does not fail; everything else only
// collects codes.
func (v *Validator) check(ev *domain.Event, snap *domain.MarketSnapshot, run *domain.SimulationRun, gd *domain.GameDecisions, d *domain.MarketDecision) []string {
	var failures []string

	// 1. Required fields.
	if d.SelectionID == "" || d.OppositeSelectionID == "" {
		failures = append(failures, FailMissingSelectionID)
		v.metrics.IncMissingSelectionID()
	}
	if d.Debug.InputsHash == "" {
		failures = append(failures, FailMissingSnapshotHash)
		v.metrics.IncMissingSnapshotHash()
	}
	if d.ModelProb <= 0 || d.ModelProb >= 1 || d.MarketImpliedProb <= 0 || d.MarketImpliedProb >= 1 {
		failures = append(failures, FailMissingProbabilities)
	}
	if d.Debug.SimRunID == "" || d.Debug.DecisionVersion == 0 || d.Debug.ComputedAt.IsZero() {
		failures = append(failures, FailMissingDebug)
	}

	// 2. One hash across the triple.
	if d.Debug.InputsHash != "" && d.Debug.InputsHash != gd.Meta.InputsHash {
		failures = append(failures, FailInputsHashMismatch)
	}

	// 3. Pick must match its selection id and stored line.
	if d.Pick != nil && d.SelectionID != "" {
		if code := v.checkPickSelection(ev, snap, d); code != "" {
			failures = append(failures, code)
		}
	}

	// 4. The two sides of the market must sum to one.
	if code := v.checkNormalization(snap, run, d); code != "" {
		failures = append(failures, code)
	}

	// 5. MARKET_ALIGNED must look market-aligned.
	if d.Classification == domain.ClassMarketAligned {
		if code := v.checkAlignedCoherence(d); code != "" {
			failures = append(failures, code)
		}
	}

	// 6. Unconverged runs are held at market. Downgrade, never block. The
	// stale edge copy goes with it so check 7 sees an aligned decision.
	if !run.Converged && d.Classification != domain.ClassMarketAligned {
		d.Classification = domain.ClassMarketAligned
		d.ReleaseStatus = domain.ReleaseInfoOnly
		d.Reasons = []string{"simulation did not converge; holding at market"}
	}

	// 7. Blocked and aligned releases carry no promotional language.
	if d.ReleaseStatus.Blocked() || d.Classification == domain.ClassMarketAligned {
		for _, r := range d.Reasons {
			if ContainsForbidden(r, v.phrases) != "" {
				failures = append(failures, FailForbiddenPhrase)
				break
			}
		}
	}

	return failures
}

// checkPickSelection recomputes the selection id from the pick's side and
// the snapshot line and requires an exact match. Team-name matching is not
// an acceptable substitute.
func (v *Validator) checkPickSelection(ev *domain.Event, snap *domain.MarketSnapshot, d *domain.MarketDecision) string {
	var wantLine float64
	switch d.MarketType {
	case domain.MarketSpread:
		if d.Pick.Side == domain.SideHome {
			wantLine = snap.SpreadHome
		} else {
			wantLine = snap.SpreadAway
		}
		if teamForSide(ev, d.Pick.Side) != d.Pick.TeamID {
			return FailPickSelectionDrift
		}
	case domain.MarketMoneyline:
		wantLine = 0
		if teamForSide(ev, d.Pick.Side) != d.Pick.TeamID {
			return FailPickSelectionDrift
		}
	case domain.MarketTotal:
		wantLine = snap.Total
	}

	want := decision.SelectionID(d.EventID, d.MarketType, string(d.Pick.Side), wantLine, snap.BookID)
	if want != d.SelectionID {
		return FailPickSelectionDrift
	}
	if d.MarketType != domain.MarketMoneyline && math.Abs(d.Pick.Line-wantLine) > 1e-9 {
		return FailPickLineDrift
	}
	return ""
}

// checkNormalization recomputes both sides of the market from the run and
// requires them to sum to one, and the stored model_prob to be the picked
// side of that pair.
func (v *Validator) checkNormalization(snap *domain.MarketSnapshot, run *domain.SimulationRun, d *domain.MarketDecision) string {
	var probA float64
	switch d.MarketType {
	case domain.MarketSpread:
		probA = run.Stats.MarginHist.ProbAbove(-snap.SpreadHome)
	case domain.MarketMoneyline:
		probA = run.Stats.HomeWinProb
	case domain.MarketTotal:
		probA = run.Stats.TotalHist.ProbAbove(snap.Total)
	}
	probB := 1 - probA
	if math.Abs(probA+probB-1) > probTolerance {
		return FailProbNotNormalized
	}

	picked := probA
	if d.Pick != nil {
		switch d.Pick.Side {
		case domain.SideAway, domain.SideUnder:
			picked = probB
		}
	}
	if math.Abs(picked-d.ModelProb) > probTolerance {
		return FailProbNotNormalized
	}
	return ""
}

// checkAlignedCoherence rejects MARKET_ALIGNED decisions that still talk
// like an edge.
func (v *Validator) checkAlignedCoherence(d *domain.MarketDecision) string {
	if d.Edge != nil && d.Edge.Grade != domain.GradeD {
		return FailClassIncoherent
	}
	for _, r := range d.Reasons {
		if strings.Contains(strings.ToLower(r), "misprice") {
			return FailClassIncoherent
		}
	}
	return ""
}

// block flags the decision, nulls pick and edge, and emits the alert.
func (v *Validator) block(ctx context.Context, db repository.DBTX, d *domain.MarketDecision, failures []string) {
	d.ReleaseStatus = domain.ReleaseBlockedByIntegrity
	d.ValidatorFailures = failures
	d.Pick = nil
	d.Edge = nil

	v.metrics.IncViolation()
	v.logger.Warn("decision blocked by integrity validator",
		"event_id", d.EventID,
		"market_type", d.MarketType,
		"failures", failures,
	)

	alert := domain.NewOpsAlert(domain.AlertIntegrityViolation, domain.SeverityCritical, d.EventID,
		fmt.Sprintf("%s decision blocked: %s", d.MarketType, strings.Join(failures, ", ")))
	if err := v.alerts.Insert(ctx, db, guard.ModuleValidator, &alert); err != nil {
		v.logger.Error("failed to write integrity alert", "event_id", d.EventID, "error", err)
	}
}

func teamForSide(ev *domain.Event, s domain.Side) string {
	if s == domain.SideHome {
		return ev.HomeTeamID
	}
	return ev.AwayTeamID
}
