package domain

import "time"

// Wave labels the scheduled evaluation points in an event's lead-up.
type Wave string

const (
	WaveDiscovery  Wave = "discovery"  // ~T-6h
	WaveValidation Wave = "validation" // ~T-120m
	WavePublish    Wave = "publish"    // ~T-60m
	WaveClosing    Wave = "closing"    // final pre-start observation
)

// MarketSnapshot is an immutable odds observation for one event. The set of
// snapshots for an event is a time-ordered sequence keyed by
// (event_id, observed_at); the engine never mutates one.
type MarketSnapshot struct {
	EventID    string    `json:"event_id"`
	Wave       Wave      `json:"wave"`
	ObservedAt time.Time `json:"observed_at"`
	BookID     string    `json:"book_id"`

	// Spread lines are home-perspective signed points; prices in american odds.
	SpreadHome      float64 `json:"spread_home"`
	SpreadAway      float64 `json:"spread_away"`
	SpreadHomePrice int     `json:"spread_home_price"`
	SpreadAwayPrice int     `json:"spread_away_price"`

	Total      float64 `json:"total"`
	OverPrice  int     `json:"over_price"`
	UnderPrice int     `json:"under_price"`

	MLHome int `json:"ml_home"`
	MLAway int `json:"ml_away"`
}

// AmericanToDecimal converts american odds to decimal odds.
func AmericanToDecimal(odds int) float64 {
	if odds > 0 {
		return 1.0 + float64(odds)/100.0
	}
	if odds < 0 {
		return 1.0 + 100.0/float64(-odds)
	}
	return 1.0
}

// AmericanImplied returns the raw (vigged) implied probability of american odds.
func AmericanImplied(odds int) float64 {
	d := AmericanToDecimal(odds)
	if d <= 1.0 {
		return 0
	}
	return 1.0 / d
}
