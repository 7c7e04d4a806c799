package domain

import "fmt"

// League identifies one of the six supported leagues.
type League string

const (
	LeagueNBA   League = "NBA"
	LeagueNFL   League = "NFL"
	LeagueNHL   League = "NHL"
	LeagueMLB   League = "MLB"
	LeagueNCAAB League = "NCAAB"
	LeagueNCAAF League = "NCAAF"
)

// Leagues lists every supported league in a stable order.
var Leagues = []League{LeagueNBA, LeagueNFL, LeagueNHL, LeagueMLB, LeagueNCAAB, LeagueNCAAF}

// ParseLeague validates a league string (case-sensitive, canonical form).
func ParseLeague(s string) (League, error) {
	for _, l := range Leagues {
		if string(l) == s {
			return l, nil
		}
	}
	return "", ErrValidation(fmt.Sprintf("unknown league %q", s))
}

// MarketType is one of the three canonical markets.
type MarketType string

const (
	MarketSpread    MarketType = "spread"
	MarketMoneyline MarketType = "moneyline"
	MarketTotal     MarketType = "total"
)

var MarketTypes = []MarketType{MarketSpread, MarketMoneyline, MarketTotal}

func ParseMarketType(s string) (MarketType, error) {
	switch MarketType(s) {
	case MarketSpread, MarketMoneyline, MarketTotal:
		return MarketType(s), nil
	}
	return "", ErrValidation(fmt.Sprintf("unknown market_type %q", s))
}

// MarketSettlement scopes which portion of the game a market settles on.
type MarketSettlement string

const (
	SettleFullGame   MarketSettlement = "FULL_GAME"
	SettleRegulation MarketSettlement = "REGULATION"
)

// SupportsSettlement encodes the sport-specific market contract. Leagues with
// unbounded overtime (or no regulation ties) do not offer REGULATION markets.
func (l League) SupportsSettlement(ms MarketSettlement) bool {
	switch ms {
	case SettleFullGame:
		return true
	case SettleRegulation:
		return l == LeagueNFL || l == LeagueNHL
	}
	return false
}

// PossessionStyle selects the simulation generator family for a league.
type PossessionStyle string

const (
	StyleDrives   PossessionStyle = "drives"   // football: discrete per-drive outcomes
	StyleGaussian PossessionStyle = "gaussian" // basketball: CLT applies at ~80+ possessions
	StyleInnings  PossessionStyle = "innings"  // baseball: per-inning Poisson
	StylePeriods  PossessionStyle = "periods"  // hockey: per-period Poisson
)

// LeagueConfig carries the versioned per-league tuning the decision computer
// and state machine consume. The whole struct is folded into inputs_hash, so
// any threshold change produces new decisions.
type LeagueConfig struct {
	League          League          `json:"league"`
	ConfigVersion   string          `json:"config_version"`
	Style           PossessionStyle `json:"style"`
	MeanScore       float64         `json:"mean_score"`      // per-team league mean
	ScoreStdDev     float64         `json:"score_std_dev"`   // per-team, gaussian leagues
	SegmentsPerTeam int             `json:"segments_per_team"` // drives / innings / periods
	SegmentMean     float64         `json:"segment_mean"`    // poisson leagues: runs or goals per segment

	// Decision thresholds.
	EdgeThresholdPoints float64 `json:"edge_threshold_points"` // spread/total EDGE cut
	MLEdgeThresholdEV   float64 `json:"ml_edge_threshold_ev"`  // moneyline EDGE cut
	LeanFloorPoints     float64 `json:"lean_floor_points"`     // below this -> MARKET_ALIGNED
	LeanFloorEV         float64 `json:"lean_floor_ev"`

	// Wave stability and entry tolerances.
	StabilityTolerancePoints float64 `json:"stability_tolerance_points"`
	StabilityToleranceEV     float64 `json:"stability_tolerance_ev"`
	OddsToleranceCents       int     `json:"odds_tolerance_cents"` // worst_acceptable_odds shift
}

// DefaultLeagueConfigs is the versioned config table. Thresholds are
// configuration, not code: they participate in inputs_hash via ConfigVersion
// and the numeric fields themselves.
var DefaultLeagueConfigs = map[League]LeagueConfig{
	LeagueNBA: {
		League: LeagueNBA, ConfigVersion: "lc-2025.2", Style: StyleGaussian,
		MeanScore: 113.5, ScoreStdDev: 11.8, SegmentsPerTeam: 100,
		EdgeThresholdPoints: 2.5, MLEdgeThresholdEV: 0.04, LeanFloorPoints: 0.5, LeanFloorEV: 0.01,
		StabilityTolerancePoints: 1.0, StabilityToleranceEV: 0.025, OddsToleranceCents: 15,
	},
	LeagueNCAAB: {
		League: LeagueNCAAB, ConfigVersion: "lc-2025.2", Style: StyleGaussian,
		MeanScore: 72.4, ScoreStdDev: 10.2, SegmentsPerTeam: 68,
		EdgeThresholdPoints: 3.0, MLEdgeThresholdEV: 0.05, LeanFloorPoints: 0.5, LeanFloorEV: 0.01,
		StabilityTolerancePoints: 1.5, StabilityToleranceEV: 0.03, OddsToleranceCents: 20,
	},
	LeagueNFL: {
		League: LeagueNFL, ConfigVersion: "lc-2025.2", Style: StyleDrives,
		MeanScore: 22.1, SegmentsPerTeam: 11,
		EdgeThresholdPoints: 2.0, MLEdgeThresholdEV: 0.04, LeanFloorPoints: 0.5, LeanFloorEV: 0.01,
		StabilityTolerancePoints: 1.0, StabilityToleranceEV: 0.025, OddsToleranceCents: 15,
	},
	LeagueNCAAF: {
		League: LeagueNCAAF, ConfigVersion: "lc-2025.2", Style: StyleDrives,
		MeanScore: 28.3, SegmentsPerTeam: 12,
		EdgeThresholdPoints: 3.0, MLEdgeThresholdEV: 0.05, LeanFloorPoints: 0.5, LeanFloorEV: 0.01,
		StabilityTolerancePoints: 1.5, StabilityToleranceEV: 0.03, OddsToleranceCents: 20,
	},
	LeagueMLB: {
		League: LeagueMLB, ConfigVersion: "lc-2025.2", Style: StyleInnings,
		MeanScore: 4.5, SegmentsPerTeam: 9, SegmentMean: 0.5,
		EdgeThresholdPoints: 0.75, MLEdgeThresholdEV: 0.04, LeanFloorPoints: 0.5, LeanFloorEV: 0.01,
		StabilityTolerancePoints: 0.5, StabilityToleranceEV: 0.025, OddsToleranceCents: 15,
	},
	LeagueNHL: {
		League: LeagueNHL, ConfigVersion: "lc-2025.2", Style: StylePeriods,
		MeanScore: 3.0, SegmentsPerTeam: 3, SegmentMean: 1.0,
		EdgeThresholdPoints: 0.75, MLEdgeThresholdEV: 0.04, LeanFloorPoints: 0.5, LeanFloorEV: 0.01,
		StabilityTolerancePoints: 0.35, StabilityToleranceEV: 0.025, OddsToleranceCents: 15,
	},
}

// ConfigFor returns the league config, or an error for unknown leagues.
func ConfigFor(l League) (LeagueConfig, error) {
	cfg, ok := DefaultLeagueConfigs[l]
	if !ok {
		return LeagueConfig{}, ErrValidation(fmt.Sprintf("no config for league %q", l))
	}
	return cfg, nil
}
