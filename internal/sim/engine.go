package sim

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/oddsmith/platform/internal/domain"
)

// ModelVersion identifies the generator family and tuning baked into this
// package. It participates in seed derivation and inputs_hash.
const ModelVersion = "mc-3.4"

const (
	marketAnchorBlend = 0.15
	maxMeanReversion  = 0.25

	// Convergence: both running means must hold still over two consecutive
	// 5% checkpoints. Margin drift is absolute points because the margin
	// mean sits near zero; total drift is relative to the running mean.
	marginDriftTol    = 0.1
	totalDriftTol     = 0.005
	checkpointPercent = 0.05
)

// Engine runs deterministic Monte Carlo game simulations.
type Engine struct {
	wallClock time.Duration
	now       func() time.Time
}

// NewEngine creates a simulation engine with the given wall-clock ceiling.
func NewEngine(wallClock time.Duration) *Engine {
	if wallClock <= 0 {
		wallClock = 30 * time.Second
	}
	return &Engine{wallClock: wallClock, now: time.Now}
}

// Seed derives the deterministic seed for one run. Same (event, wave,
// snapshot, model version) always reproduces the same run.
func Seed(eventID string, wave domain.Wave, observedAt time.Time, modelVersion string) uint64 {
	sum := sha256.Sum256([]byte(eventID + "|" + string(wave) + "|" + observedAt.UTC().Format(time.RFC3339Nano) + "|" + modelVersion))
	return binary.BigEndian.Uint64(sum[:8])
}

// RunID derives the deterministic run identifier.
func RunID(eventID string, wave domain.Wave, observedAt time.Time, iterations int) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%s|%s|%d", eventID, wave, observedAt.UTC().Format(time.RFC3339Nano), ModelVersion, iterations)))
	return "sim-" + hex.EncodeToString(sum[:12])
}

// Run simulates one game. It blocks for pure CPU work only; ctx cancellation
// and the wall-clock ceiling are checked at every convergence checkpoint.
func (e *Engine) Run(ctx context.Context, ev *domain.Event, cfg domain.LeagueConfig, snap *domain.MarketSnapshot, wave domain.Wave, iterations int) (*domain.SimulationRun, error) {
	if !domain.ValidTier(iterations) {
		return nil, domain.ErrValidation(fmt.Sprintf("iterations %d is not a supported tier", iterations))
	}

	seed := Seed(ev.EventID, wave, snap.ObservedAt, ModelVersion)
	rng := rand.New(rand.NewSource(int64(seed)))

	gen, err := newGenerator(cfg, ev, snap)
	if err != nil {
		return nil, err
	}

	started := e.now()
	deadline := started.Add(e.wallClock)

	acc := newAccumulator(cfg)
	checkEvery := int(float64(iterations) * checkpointPercent)
	if checkEvery < 1 {
		checkEvery = 1
	}

	var prevMargin, prevTotal float64
	stableChecks := 0
	converged := false
	timedOut := false

	for i := 1; i <= iterations; i++ {
		home, away := gen.sample(rng)
		acc.observe(home, away)

		if i%checkEvery != 0 {
			continue
		}

		// Checkpoint: convergence, cancellation, wall clock.
		mMargin, mTotal := acc.means()
		if i > checkEvery {
			dm := math.Abs(mMargin - prevMargin)
			dt := relChange(prevTotal, mTotal)
			if dm < marginDriftTol && dt < totalDriftTol {
				stableChecks++
			} else {
				stableChecks = 0
			}
			if stableChecks >= 2 {
				converged = true
			}
		}
		prevMargin, prevTotal = mMargin, mTotal

		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if e.now().After(deadline) {
			timedOut = true
			break
		}
	}
	if !converged && !timedOut {
		// Iteration cap reached counts as converged per the run contract
		// only when the final checkpoints were stable; otherwise the run is
		// recorded as non-converged and forces MARKET_ALIGNED downstream.
		converged = stableChecks >= 2
	}

	stats, reversion := acc.finalize(cfg)

	run := &domain.SimulationRun{
		SimRunID:   RunID(ev.EventID, wave, snap.ObservedAt, iterations),
		EventID:    ev.EventID,
		Wave:       wave,
		League:     cfg.League,
		Iterations: iterations,
		Stats:      stats,
		Config: domain.SimConfigID{
			ModelVersion:      ModelVersion,
			ConfigVersion:     cfg.ConfigVersion,
			MarketAnchorBlend: marketAnchorBlend,
			WeatherDampening:  gen.weatherFactor(),
			MeanReversion:     reversion,
		},
		Converged: converged && !timedOut,
		Seed:      seed,
		StartedAt: started.UTC(),
		Elapsed:   e.now().Sub(started),
	}

	if timedOut {
		return run, domain.ErrSimTimeout(ev.EventID)
	}
	return run, nil
}

func relChange(prev, cur float64) float64 {
	denom := math.Max(math.Abs(prev), 1.0)
	return math.Abs(cur-prev) / denom
}
