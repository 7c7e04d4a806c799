package domain

import "time"

// IterationTier is the configured simulation depth.
type IterationTier int

const (
	Tier10K  IterationTier = 10_000
	Tier25K  IterationTier = 25_000
	Tier50K  IterationTier = 50_000
	Tier100K IterationTier = 100_000
)

// ValidTier reports whether n is one of the supported iteration tiers.
func ValidTier(n int) bool {
	switch IterationTier(n) {
	case Tier10K, Tier25K, Tier50K, Tier100K:
		return true
	}
	return false
}

// Histogram is a coarse empirical distribution over a fixed bin width. It is
// sufficient to answer cover/over probabilities against arbitrary lines
// without retaining raw samples.
type Histogram struct {
	Min      float64 `json:"min"`
	BinWidth float64 `json:"bin_width"`
	Counts   []int64 `json:"counts"`
	Total    int64   `json:"total"`
}

// ProbAbove returns P(X > line) with linear interpolation inside the bin that
// contains the line. Half-point lines fall between integer outcomes, so the
// interpolation error is bounded by one bin.
func (h *Histogram) ProbAbove(line float64) float64 {
	if h.Total == 0 || len(h.Counts) == 0 {
		return 0.5
	}
	pos := (line - h.Min) / h.BinWidth
	if pos <= 0 {
		return 1.0
	}
	if pos >= float64(len(h.Counts)) {
		return 0.0
	}
	idx := int(pos)
	frac := pos - float64(idx)

	var above int64
	for i := idx + 1; i < len(h.Counts); i++ {
		above += h.Counts[i]
	}
	partial := float64(h.Counts[idx]) * (1.0 - frac)
	return (float64(above) + partial) / float64(h.Total)
}

// SimStats are the per-iteration score distribution statistics a run retains.
// Raw samples are discarded.
type SimStats struct {
	HomeWinProb    float64   `json:"home_win_prob"`
	MeanMargin     float64   `json:"mean_margin"` // signed, home perspective
	MarginVariance float64   `json:"margin_variance"`
	MeanTotal      float64   `json:"mean_total"`
	TotalVariance  float64   `json:"total_variance"`
	MarginHist     Histogram `json:"margin_hist"`
	TotalHist      Histogram `json:"total_hist"`
}

// SimConfigID identifies the model configuration a run was produced under.
type SimConfigID struct {
	ModelVersion      string  `json:"model_version"`
	ConfigVersion     string  `json:"config_version"`
	MarketAnchorBlend float64 `json:"market_anchor_blend"`
	WeatherDampening  float64 `json:"weather_dampening"` // cumulative factor actually applied
	MeanReversion     float64 `json:"mean_reversion"`    // regression strength actually applied
}

// SimulationRun is the immutable output of one Monte Carlo run.
type SimulationRun struct {
	SimRunID   string        `json:"sim_run_id"`
	EventID    string        `json:"event_id"`
	Wave       Wave          `json:"wave"`
	League     League        `json:"league"`
	Iterations int           `json:"iterations"`
	Stats      SimStats      `json:"stats"`
	Config     SimConfigID   `json:"config"`
	Converged  bool          `json:"converged"`
	Seed       uint64        `json:"seed"`
	StartedAt  time.Time     `json:"started_at"`
	Elapsed    time.Duration `json:"elapsed"`
}
