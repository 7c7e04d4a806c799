package domain

import "time"

// Classification buckets the strength of a decision.
type Classification string

const (
	ClassEdge          Classification = "EDGE"
	ClassLean          Classification = "LEAN"
	ClassMarketAligned Classification = "MARKET_ALIGNED"
	ClassNoAction      Classification = "NO_ACTION"
)

// ReleaseStatus gates what consumers may do with a decision.
type ReleaseStatus string

const (
	ReleaseOfficial           ReleaseStatus = "OFFICIAL"
	ReleaseInfoOnly           ReleaseStatus = "INFO_ONLY"
	ReleaseBlockedByRisk      ReleaseStatus = "BLOCKED_BY_RISK"
	ReleaseBlockedByIntegrity ReleaseStatus = "BLOCKED_BY_INTEGRITY"
)

// Blocked reports whether the decision is in a blocked release state.
func (r ReleaseStatus) Blocked() bool {
	return r == ReleaseBlockedByRisk || r == ReleaseBlockedByIntegrity
}

// Side identifies which half of a two-way market a pick takes.
type Side string

const (
	SideHome  Side = "home"
	SideAway  Side = "away"
	SideOver  Side = "over"
	SideUnder Side = "under"
)

// Pick is the backend-authored selection. Its team and line are the only
// source of truth for downstream rendering; no consumer recomputes them.
type Pick struct {
	TeamID   string `json:"team_id,omitempty"`
	TeamName string `json:"team_name,omitempty"`
	Side     Side   `json:"side"`
	Line     float64 `json:"line"`
}

// EdgeGrade letter-grades the magnitude of an edge for display.
type EdgeGrade string

const (
	GradeA EdgeGrade = "A"
	GradeB EdgeGrade = "B"
	GradeC EdgeGrade = "C"
	GradeD EdgeGrade = "D"
)

// Edge carries the signed model-vs-market difference. Points for
// spread/total, EV for moneyline.
type Edge struct {
	Points float64   `json:"points,omitempty"`
	EV     float64   `json:"ev,omitempty"`
	Grade  EdgeGrade `json:"grade"`
}

// DebugBlock is the closed provenance sub-record on every decision.
type DebugBlock struct {
	InputsHash      string    `json:"inputs_hash"`
	DecisionVersion int64     `json:"decision_version"`
	TraceID         string    `json:"trace_id"`
	ComputedAt      time.Time `json:"computed_at"`
	OddsTimestamp   time.Time `json:"odds_timestamp"`
	SimRunID        string    `json:"sim_run_id"`
}

// MarketDecision is the canonical per-(event, market) decision object. All
// fields are populated by the backend; consumers render them verbatim.
type MarketDecision struct {
	League          League     `json:"league"`
	EventID         string     `json:"event_id"`
	ProviderEventID string     `json:"provider_event_id,omitempty"`
	MarketType      MarketType `json:"market_type"`

	// SelectionID identifies the chosen side; OppositeSelectionID is the
	// paired id for table-lookup opposite resolution.
	SelectionID         string `json:"selection_id"`
	OppositeSelectionID string `json:"opposite_selection_id"`

	Pick *Pick `json:"pick"`

	Line         float64 `json:"line"`
	AmericanOdds int     `json:"american_odds"`

	FairLine float64 `json:"fair_line"`
	WinProb  float64 `json:"win_prob"`

	ModelProb         float64 `json:"model_prob"`
	MarketImpliedProb float64 `json:"market_implied_prob"`

	Edge *Edge `json:"edge"`

	Classification Classification `json:"classification"`
	ReleaseStatus  ReleaseStatus  `json:"release_status"`

	// Reasons are authored by the decision computer only.
	Reasons []string `json:"reasons"`

	Debug DebugBlock `json:"debug"`

	// ValidatorFailures is empty iff the decision is not blocked.
	ValidatorFailures []string `json:"validator_failures,omitempty"`
}

// GameDecisionsMeta stamps the triple with its shared provenance.
type GameDecisionsMeta struct {
	InputsHash      string    `json:"inputs_hash"`
	DecisionVersion int64     `json:"decision_version"`
	ComputedAt      time.Time `json:"computed_at"`
	League          League    `json:"league"`
	EventID         string    `json:"event_id"`
}

// GameDecisions is the single payload served to the UI. Every non-nil child
// shares meta.inputs_hash and meta.decision_version; there is no partial
// refresh.
type GameDecisions struct {
	Spread    *MarketDecision   `json:"spread"`
	Moneyline *MarketDecision   `json:"moneyline"`
	Total     *MarketDecision   `json:"total"`
	Meta      GameDecisionsMeta `json:"meta"`
}

// Children returns the non-nil market decisions in stable order.
func (g *GameDecisions) Children() []*MarketDecision {
	out := make([]*MarketDecision, 0, 3)
	for _, d := range []*MarketDecision{g.Spread, g.Moneyline, g.Total} {
		if d != nil {
			out = append(out, d)
		}
	}
	return out
}

// Coherent verifies the no-partial-refresh invariant.
func (g *GameDecisions) Coherent() bool {
	for _, d := range g.Children() {
		if d.Debug.InputsHash != g.Meta.InputsHash || d.Debug.DecisionVersion != g.Meta.DecisionVersion {
			return false
		}
	}
	return true
}
