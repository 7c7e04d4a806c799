package sim

import (
	"math"

	"github.com/oddsmith/platform/internal/domain"
)

// Histogram geometry per league family. One-point bins are exact for every
// league's half-point lines.
func histBounds(cfg domain.LeagueConfig) (marginMin float64, marginBins int, totalMin float64, totalBins int) {
	switch cfg.Style {
	case domain.StyleGaussian:
		return -80, 161, 120, 181 // NBA/NCAAB margins and totals
	case domain.StyleDrives:
		return -70, 141, 0, 121
	default:
		return -15, 31, 0, 31 // MLB/NHL
	}
}

type accumulator struct {
	n          int64
	sumHome    float64
	sumAway    float64
	sumMargin  float64
	sumMargin2 float64
	sumTotal   float64
	sumTotal2  float64
	homeWins   int64
	ties       int64

	marginHist domain.Histogram
	totalHist  domain.Histogram
}

func newAccumulator(cfg domain.LeagueConfig) *accumulator {
	mMin, mBins, tMin, tBins := histBounds(cfg)
	return &accumulator{
		marginHist: domain.Histogram{Min: mMin, BinWidth: 1, Counts: make([]int64, mBins)},
		totalHist:  domain.Histogram{Min: tMin, BinWidth: 1, Counts: make([]int64, tBins)},
	}
}

func (a *accumulator) observe(home, away int) {
	margin := float64(home - away)
	total := float64(home + away)

	a.n++
	a.sumHome += float64(home)
	a.sumAway += float64(away)
	a.sumMargin += margin
	a.sumMargin2 += margin * margin
	a.sumTotal += total
	a.sumTotal2 += total * total
	if home > away {
		a.homeWins++
	} else if home == away {
		a.ties++
	}

	bin(&a.marginHist, margin)
	bin(&a.totalHist, total)
}

func bin(h *domain.Histogram, v float64) {
	idx := int((v - h.Min) / h.BinWidth)
	if idx < 0 {
		idx = 0
	}
	if idx >= len(h.Counts) {
		idx = len(h.Counts) - 1
	}
	h.Counts[idx]++
	h.Total++
}

func (a *accumulator) means() (meanMargin, meanTotal float64) {
	if a.n == 0 {
		return 0, 0
	}
	return a.sumMargin / float64(a.n), a.sumTotal / float64(a.n)
}

// finalize computes the run statistics and applies post-sim mean reversion:
// if a team's simulated mean deviates from the league mean by more than the
// reversion threshold, it is pulled back with strength min(0.25, dev/20).
// The adjustment shifts the aggregate means and histogram origins; it is
// not applied per-iteration.
func (a *accumulator) finalize(cfg domain.LeagueConfig) (domain.SimStats, float64) {
	n := float64(a.n)
	if a.n == 0 {
		return domain.SimStats{MarginHist: a.marginHist, TotalHist: a.totalHist}, 0
	}

	meanHome := a.sumHome / n
	meanAway := a.sumAway / n

	homeAdj, strengthH := revert(meanHome, cfg.MeanScore)
	awayAdj, strengthA := revert(meanAway, cfg.MeanScore)
	applied := math.Max(strengthH, strengthA)

	marginShift := homeAdj - awayAdj
	totalShift := homeAdj + awayAdj

	meanMargin := a.sumMargin/n + marginShift
	meanTotal := a.sumTotal/n + totalShift
	varMargin := a.sumMargin2/n - (a.sumMargin/n)*(a.sumMargin/n)
	varTotal := a.sumTotal2/n - (a.sumTotal/n)*(a.sumTotal/n)

	a.marginHist.Min += marginShift
	a.totalHist.Min += totalShift

	// Win probability with ties split by sport rules downstream; the raw
	// tie mass stays inside the margin histogram around zero.
	winProb := float64(a.homeWins)/n + 0.5*float64(a.ties)/n

	return domain.SimStats{
		HomeWinProb:    winProb,
		MeanMargin:     meanMargin,
		MarginVariance: varMargin,
		MeanTotal:      meanTotal,
		TotalVariance:  varTotal,
		MarginHist:     a.marginHist,
		TotalHist:      a.totalHist,
	}, applied
}

// reversionThreshold is the deviation from league mean (in points) beyond
// which the pull-back engages.
const reversionThreshold = 3.0

func revert(mean, leagueMean float64) (adjustment, strength float64) {
	dev := mean - leagueMean
	if math.Abs(dev) <= reversionThreshold {
		return 0, 0
	}
	strength = math.Min(maxMeanReversion, math.Abs(dev)/20)
	return -dev * strength, strength
}
