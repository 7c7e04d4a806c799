package domain

import "time"

// SignalStatus is the lifecycle state of a pick signal.
type SignalStatus string

const (
	SignalNew        SignalStatus = "new"
	SignalDiscovered SignalStatus = "discovered"
	SignalValidated  SignalStatus = "validated"
	SignalPublished  SignalStatus = "published"
	SignalLocked     SignalStatus = "locked"
	SignalUnstable   SignalStatus = "unstable"
	SignalVoided     SignalStatus = "voided"
	SignalSettled    SignalStatus = "settled"
)

// Terminal reports whether no further wave may advance the signal.
func (s SignalStatus) Terminal() bool {
	return s == SignalUnstable || s == SignalVoided || s == SignalSettled
}

// SignalIntent distinguishes signal families.
type SignalIntent string

const (
	IntentTruthMode SignalIntent = "TRUTH_MODE"
)

// Entry is the frozen terms of a published signal.
type Entry struct {
	SelectionID         string     `json:"selection_id"`
	MarketType          MarketType `json:"market_type"`
	EntryLine           float64    `json:"entry_line"`
	EntryOdds           int        `json:"entry_odds"`
	WorstAcceptableOdds int        `json:"worst_acceptable_odds"`
	LockedAt            time.Time  `json:"locked_at"`
}

// WaveRecord stores what the state machine observed and computed at one wave.
type WaveRecord struct {
	Wave        Wave            `json:"wave"`
	Snapshot    *MarketSnapshot `json:"snapshot"`
	SimRunID    string          `json:"sim_run_id"`
	Decision    *MarketDecision `json:"decision"`
	EvaluatedAt time.Time       `json:"evaluated_at"`
}

// Signal is the lifecycle container around one per-(event, market) pick.
// Once status reaches published, the signal and its entry are immutable;
// later wave runs are rejected.
type Signal struct {
	SignalID   string       `json:"signal_id"`
	EventID    string       `json:"event_id"`
	League     League       `json:"league"`
	MarketType MarketType   `json:"market_type"`
	TeamA      string       `json:"team_a"`
	TeamB      string       `json:"team_b"`
	StartTime  time.Time    `json:"start_time"`
	Intent     SignalIntent `json:"intent"`
	Status     SignalStatus `json:"status"`

	Waves []WaveRecord `json:"waves"`
	Entry *Entry       `json:"entry,omitempty"`

	// Grading is filled at settlement.
	GradingID string    `json:"grading_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// WaveResult returns the stored record for a wave, if the wave already ran.
// Waves are idempotent: re-invoking a completed wave returns this record.
func (s *Signal) WaveResult(w Wave) *WaveRecord {
	for i := range s.Waves {
		if s.Waves[i].Wave == w {
			return &s.Waves[i]
		}
	}
	return nil
}
