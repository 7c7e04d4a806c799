package domain

import "time"

// Tier classifies a candidate parlay leg's strength.
type Tier string

const (
	TierEdge Tier = "EDGE"
	TierPick Tier = "PICK" // strong LEAN
	TierLean Tier = "LEAN"
)

// ParlayProfile selects a rule set for parlay construction.
type ParlayProfile string

const (
	ProfilePremium     ParlayProfile = "premium"
	ProfileBalanced    ParlayProfile = "balanced"
	ProfileSpeculative ParlayProfile = "speculative"
)

// ParlayRules is the profile-specific rule set.
type ParlayRules struct {
	MinParlayWeight float64 `json:"min_parlay_weight"`
	MinEdges        int     `json:"min_edges"`
	MinPicks        int     `json:"min_picks"`
	AllowLean       bool    `json:"allow_lean"`
	MaxHighVolLegs  int     `json:"max_high_vol_legs"`
	MaxSameEvent    int     `json:"max_same_event"`
}

// ParlayRequest is the caller's construction request.
type ParlayRequest struct {
	Profile       ParlayProfile `json:"profile"`
	Legs          int           `json:"legs"`
	AllowSameTeam bool          `json:"allow_same_team"`
	Seed          int64         `json:"seed"`
	Sports        []League      `json:"sports,omitempty"`
}

// ParlayLeg is one selected leg, carried by canonical decision fields only.
type ParlayLeg struct {
	SelectionID string     `json:"selection_id"`
	EventID     string     `json:"event_id"`
	League      League     `json:"league"`
	MarketType  MarketType `json:"market_type"`
	Tier        Tier       `json:"tier"`
	TeamKey     string     `json:"team_key,omitempty"`
	Weight      float64    `json:"weight"`
	HighVol     bool       `json:"high_vol"`
}

// ParlayFailReason enumerates the documented failure codes.
type ParlayFailReason string

const (
	FailInsufficientPool   ParlayFailReason = "INSUFFICIENT_POOL"
	FailConstraintBlocked  ParlayFailReason = "CONSTRAINT_BLOCKED"
	FailLeanNotAllowed     ParlayFailReason = "LEAN_NOT_ALLOWED"
	FailParlayWeightTooLow ParlayFailReason = "PARLAY_WEIGHT_TOO_LOW"
	FailInvalidProfile     ParlayFailReason = "INVALID_PROFILE"
)

// ParlayAudit explains how the pool was filtered and searched.
type ParlayAudit struct {
	EligibleByTier   map[Tier]int `json:"eligible_by_tier"`
	BlockedCounts    map[string]int `json:"blocked_counts"`
	MissingTeamKeys  []string     `json:"missing_team_keys,omitempty"`
	LadderStepsUsed  []string     `json:"ladder_steps_used,omitempty"`
	CombinationsTried int         `json:"combinations_tried"`
}

// ParlayResult is exactly one of PARLAY or FAIL; never empty.
type ParlayResult struct {
	AttemptID    string           `json:"attempt_id"`
	Status       string           `json:"status"` // "PARLAY" | "FAIL"
	Legs         []ParlayLeg      `json:"legs,omitempty"`
	TotalWeight  float64          `json:"total_weight,omitempty"`
	ReasonCode   ParlayFailReason `json:"reason_code,omitempty"`
	ReasonDetail map[string]any   `json:"reason_detail,omitempty"`
	Audit        ParlayAudit      `json:"audit"`
	CreatedAt    time.Time        `json:"created_at"`
}

const (
	ParlayStatusOK   = "PARLAY"
	ParlayStatusFail = "FAIL"
)

// DefaultParlayRules maps profile -> rule set.
var DefaultParlayRules = map[ParlayProfile]ParlayRules{
	ProfilePremium:     {MinParlayWeight: 6.0, MinEdges: 2, MinPicks: 0, AllowLean: false, MaxHighVolLegs: 1, MaxSameEvent: 1},
	ProfileBalanced:    {MinParlayWeight: 4.0, MinEdges: 1, MinPicks: 1, AllowLean: true, MaxHighVolLegs: 2, MaxSameEvent: 1},
	ProfileSpeculative: {MinParlayWeight: 2.5, MinEdges: 0, MinPicks: 0, AllowLean: true, MaxHighVolLegs: 3, MaxSameEvent: 2},
}
