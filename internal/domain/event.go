package domain

import "time"

// EventStatus tracks the event lifecycle. Events are created on first odds
// poll, frozen at start, and completed when a final score arrives.
type EventStatus string

const (
	EventScheduled EventStatus = "scheduled"
	EventFrozen    EventStatus = "frozen"
	EventCompleted EventStatus = "completed"
)

// ProviderOddsAPI is the only score/odds provider currently mapped.
const ProviderOddsAPI = "oddsapi"

// Weather holds the optional pre-game conditions used by outdoor simulations.
type Weather struct {
	WindMPH      float64 `json:"wind_mph"`
	PrecipPct    float64 `json:"precip_pct"`
	TemperatureF float64 `json:"temperature_f"`
	Indoors      bool    `json:"indoors"`
}

// RosterAvailability summarizes lineup context as a strength multiplier per
// side. 1.0 means full strength.
type RosterAvailability struct {
	HomeFactor float64 `json:"home_factor"`
	AwayFactor float64 `json:"away_factor"`
	Note       string  `json:"note,omitempty"`
}

// Event is an upcoming or completed contest. The provider event id is stored
// separately from the internal id and is opaque to the engine: it is used
// only as an exact key at grading time.
type Event struct {
	EventID    string      `json:"event_id"`
	League     League      `json:"league"`
	HomeTeamID string      `json:"home_team_id"`
	AwayTeamID string      `json:"away_team_id"`
	HomeName   string      `json:"home_name"`
	AwayName   string      `json:"away_name"`
	StartTime  time.Time   `json:"start_time"`
	Status     EventStatus `json:"status"`

	// ProviderEventMap maps provider name -> provider event id.
	ProviderEventMap map[string]string `json:"provider_event_map,omitempty"`

	Weather *Weather            `json:"weather,omitempty"`
	Roster  *RosterAvailability `json:"roster,omitempty"`

	// GradingFrozen is set when provider mapping drift is detected; grading
	// stays frozen until an operator reconciles the canonical names.
	GradingFrozen bool      `json:"grading_frozen"`
	CreatedAt     time.Time `json:"created_at"`
}

// ProviderEventID returns the mapped id for a provider, empty when unmapped.
func (e *Event) ProviderEventID(provider string) string {
	if e.ProviderEventMap == nil {
		return ""
	}
	return e.ProviderEventMap[provider]
}

// FinalScore is a completed-game score snapshot fetched by exact provider id.
type FinalScore struct {
	ProviderEventID string    `json:"provider_event_id"`
	HomeName        string    `json:"home_name"`
	AwayName        string    `json:"away_name"`
	HomeScore       int       `json:"home_score"`
	AwayScore       int       `json:"away_score"`
	Completed       bool      `json:"completed"`
	FetchedAt       time.Time `json:"fetched_at"`
}
