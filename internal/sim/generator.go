package sim

import (
	"math"
	"math/rand"

	"github.com/oddsmith/platform/internal/domain"
)

// generator samples one simulated game per call. Samples are i.i.d. per
// game; all stochastic state lives in the caller's rng.
type generator interface {
	sample(rng *rand.Rand) (home, away int)
	weatherFactor() float64
}

// teamExpectation derives each side's expected score by blending the model
// estimate (league mean scaled by roster strength) toward the
// market-implied expectation with a fixed anchor weight.
func teamExpectation(cfg domain.LeagueConfig, ev *domain.Event, snap *domain.MarketSnapshot) (home, away float64) {
	homeModel := cfg.MeanScore
	awayModel := cfg.MeanScore
	if ev.Roster != nil {
		if ev.Roster.HomeFactor > 0 {
			homeModel *= ev.Roster.HomeFactor
		}
		if ev.Roster.AwayFactor > 0 {
			awayModel *= ev.Roster.AwayFactor
		}
	}

	// Market-implied per-team expectation from total and spread. spread_home
	// is home-perspective: home lays points when negative.
	marketMargin := -snap.SpreadHome
	marketHome := (snap.Total + marketMargin) / 2
	marketAway := (snap.Total - marketMargin) / 2

	home = (1-marketAnchorBlend)*homeModel + marketAnchorBlend*marketHome
	away = (1-marketAnchorBlend)*awayModel + marketAnchorBlend*marketAway
	return home, away
}

// weatherDampening returns the cumulative scoring multiplier for outdoor
// conditions. Reductions stack up to a 30% cap.
func weatherDampening(w *domain.Weather) float64 {
	if w == nil || w.Indoors {
		return 1.0
	}
	reduction := 0.0
	if w.WindMPH > 15 {
		reduction += 0.10
	}
	if w.WindMPH > 25 {
		reduction += 0.10
	}
	if w.PrecipPct > 50 {
		reduction += 0.08
	}
	if w.TemperatureF < 32 {
		reduction += 0.05
	}
	if w.TemperatureF < 20 {
		reduction += 0.07
	}
	if reduction > 0.30 {
		reduction = 0.30
	}
	return 1.0 - reduction
}

func newGenerator(cfg domain.LeagueConfig, ev *domain.Event, snap *domain.MarketSnapshot) (generator, error) {
	homeExp, awayExp := teamExpectation(cfg, ev, snap)

	switch cfg.Style {
	case domain.StyleDrives:
		return newDriveGenerator(cfg, ev, homeExp, awayExp), nil
	case domain.StyleGaussian:
		return &gaussianGenerator{
			homeMean: homeExp, awayMean: awayExp, stdDev: cfg.ScoreStdDev, weather: 1.0,
		}, nil
	case domain.StyleInnings, domain.StylePeriods:
		return &segmentPoissonGenerator{
			segments: cfg.SegmentsPerTeam,
			homeMu:   homeExp / float64(cfg.SegmentsPerTeam),
			awayMu:   awayExp / float64(cfg.SegmentsPerTeam),
			weather:  1.0,
		}, nil
	}
	return nil, domain.ErrValidation("league config has no generator style")
}

// ── Football: per-drive discrete outcomes ──

// Per-drive outcome caps. TD/FG probabilities scale with team strength but
// are clamped so that 60%+ of drives end scoreless at factor 1.0.
const (
	baseTDProb = 0.22
	baseFGProb = 0.17
	maxTDClamp = 1.5
	maxFGClamp = 1.3
)

type driveGenerator struct {
	drives  int
	homeTD  float64
	homeFG  float64
	awayTD  float64
	awayFG  float64
	weather float64
}

func newDriveGenerator(cfg domain.LeagueConfig, ev *domain.Event, homeExp, awayExp float64) *driveGenerator {
	wf := weatherDampening(ev.Weather)

	homeFactor := homeExp / cfg.MeanScore
	awayFactor := awayExp / cfg.MeanScore

	g := &driveGenerator{drives: cfg.SegmentsPerTeam, weather: wf}
	g.homeTD = baseTDProb * clamp(homeFactor, 0, maxTDClamp) * wf
	g.homeFG = baseFGProb * clamp(homeFactor, 0, maxFGClamp) * wf
	g.awayTD = baseTDProb * clamp(awayFactor, 0, maxTDClamp) * wf
	g.awayFG = baseFGProb * clamp(awayFactor, 0, maxFGClamp) * wf
	return g
}

func (g *driveGenerator) sample(rng *rand.Rand) (int, int) {
	return g.teamScore(rng, g.homeTD, g.homeFG), g.teamScore(rng, g.awayTD, g.awayFG)
}

func (g *driveGenerator) teamScore(rng *rand.Rand, tdProb, fgProb float64) int {
	score := 0
	for d := 0; d < g.drives; d++ {
		u := rng.Float64()
		switch {
		case u < tdProb:
			score += 7
		case u < tdProb+fgProb:
			score += 3
		}
	}
	return score
}

func (g *driveGenerator) weatherFactor() float64 { return g.weather }

// ── Basketball: Gaussian per-team scoring ──

type gaussianGenerator struct {
	homeMean float64
	awayMean float64
	stdDev   float64
	weather  float64
}

func (g *gaussianGenerator) sample(rng *rand.Rand) (int, int) {
	home := int(math.Round(rng.NormFloat64()*g.stdDev + g.homeMean))
	away := int(math.Round(rng.NormFloat64()*g.stdDev + g.awayMean))
	if home < 0 {
		home = 0
	}
	if away < 0 {
		away = 0
	}
	return home, away
}

func (g *gaussianGenerator) weatherFactor() float64 { return g.weather }

// ── Baseball / hockey: per-segment Poisson ──

type segmentPoissonGenerator struct {
	segments int
	homeMu   float64
	awayMu   float64
	weather  float64
}

func (g *segmentPoissonGenerator) sample(rng *rand.Rand) (int, int) {
	home, away := 0, 0
	for s := 0; s < g.segments; s++ {
		home += poisson(rng, g.homeMu)
		away += poisson(rng, g.awayMu)
	}
	return home, away
}

func (g *segmentPoissonGenerator) weatherFactor() float64 { return g.weather }

// poisson samples via Knuth's method; segment means are small (<2) so the
// loop terminates quickly.
func poisson(rng *rand.Rand, mu float64) int {
	if mu <= 0 {
		return 0
	}
	limit := math.Exp(-mu)
	k := 0
	p := 1.0
	for {
		p *= rng.Float64()
		if p <= limit {
			return k
		}
		k++
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
