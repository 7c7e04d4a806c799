// Command backfill maps stored events to provider event ids offline.
//
// The live pipeline only ever resolves events by exact provider id; fuzzy
// name matching is confined to this operator-run tool so a bad match can be
// reviewed before it reaches grading.
//
// Exit codes: 0 success, 2 usage error, 5 provider unavailable.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"math"
	"os"
	"strings"
	"time"

	"github.com/oddsmith/platform/internal/domain"
	"github.com/oddsmith/platform/internal/guard"
	"github.com/oddsmith/platform/internal/infra"
	"github.com/oddsmith/platform/internal/provider"
	"github.com/oddsmith/platform/internal/repository"
)

const (
	exitUsage    = 2
	exitProvider = 5

	// startTimeTolerance bounds how far apart the stored and provider start
	// times may be for a match to count.
	startTimeTolerance = 2 * time.Hour

	// minTokenOverlap is the fraction of name tokens that must agree on both
	// sides for a candidate match.
	minTokenOverlap = 0.5
)

func main() {
	leagueArg := flag.String("league", "", "league to backfill (NFL, NCAAF, NBA, NCAAB, MLB, NHL)")
	dryRun := flag.Bool("dry-run", false, "report matches without writing")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if *leagueArg == "" {
		fmt.Fprintln(os.Stderr, "usage: backfill -league NFL [-dry-run]")
		os.Exit(exitUsage)
	}
	league, err := domain.ParseLeague(*leagueArg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "unknown league %q\n", *leagueArg)
		os.Exit(exitUsage)
	}

	if code := run(logger, league, *dryRun); code != 0 {
		os.Exit(code)
	}
}

func run(logger *slog.Logger, league domain.League, dryRun bool) int {
	ctx := context.Background()

	cfg, err := infra.LoadConfig()
	if err != nil {
		logger.Error("load config", "error", err)
		return exitUsage
	}

	pool, err := infra.NewPostgresPool(ctx, cfg)
	if err != nil {
		logger.Error("connect postgres", "error", err)
		return exitProvider
	}
	defer pool.Close()

	matrix := guard.NewWriterMatrix()
	events := repository.NewEventRepository(matrix)

	unmapped, err := events.ListMissingProviderID(ctx, pool, league, domain.ProviderOddsAPI)
	if err != nil {
		logger.Error("list unmapped events", "error", err)
		return exitProvider
	}
	if len(unmapped) == 0 {
		logger.Info("no unmapped events", "league", league)
		return 0
	}

	odds := provider.NewOddsAPIClient(cfg.OddsAPIKey, logger)
	feed, err := odds.FetchOdds(ctx, league)
	if err != nil {
		logger.Error("fetch provider events", "league", league, "error", err)
		return exitProvider
	}

	matched, ambiguous := 0, 0
	for _, ev := range unmapped {
		best := bestMatch(&ev, feed)
		if best == nil {
			logger.Warn("no provider match", "event_id", ev.EventID,
				"home", ev.HomeName, "away", ev.AwayName)
			ambiguous++
			continue
		}

		providerID := best.Event.ProviderEventID(domain.ProviderOddsAPI)
		logger.Info("matched", "event_id", ev.EventID, "provider_event_id", providerID,
			"provider_home", best.Event.HomeName, "provider_away", best.Event.AwayName,
			"dry_run", dryRun)
		if dryRun {
			matched++
			continue
		}

		if err := events.SetProviderID(ctx, pool, guard.ModuleAdmin, ev.EventID, domain.ProviderOddsAPI, providerID); err != nil {
			logger.Error("write mapping", "event_id", ev.EventID, "error", err)
			continue
		}
		matched++
	}

	logger.Info("backfill complete", "league", league,
		"unmapped", len(unmapped), "matched", matched, "unmatched", ambiguous)
	return 0
}

// bestMatch finds the single provider event whose team names and start time
// agree with the stored event. Ties and weak overlaps return nil: an
// uncertain mapping is worse than no mapping.
func bestMatch(ev *domain.Event, feed []provider.EventOdds) *provider.EventOdds {
	var best *provider.EventOdds
	bestScore := 0.0
	tied := false

	for i := range feed {
		cand := &feed[i]
		if math.Abs(cand.Event.StartTime.Sub(ev.StartTime).Hours()) > startTimeTolerance.Hours() {
			continue
		}
		home := tokenOverlap(ev.HomeName, cand.Event.HomeName)
		away := tokenOverlap(ev.AwayName, cand.Event.AwayName)
		if home < minTokenOverlap || away < minTokenOverlap {
			continue
		}
		score := home + away
		switch {
		case score > bestScore:
			best, bestScore, tied = cand, score, false
		case score == bestScore && best != nil:
			tied = true
		}
	}
	if tied {
		return nil
	}
	return best
}

// tokenOverlap returns the Jaccard overlap between normalized name tokens.
func tokenOverlap(a, b string) float64 {
	ta := tokens(a)
	tb := tokens(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}
	inter := 0
	for tok := range ta {
		if tb[tok] {
			inter++
		}
	}
	union := len(ta) + len(tb) - inter
	return float64(inter) / float64(union)
}

func tokens(name string) map[string]bool {
	out := make(map[string]bool)
	for _, tok := range strings.Fields(strings.ToLower(name)) {
		tok = strings.Trim(tok, ".,()")
		if len(tok) < 2 {
			continue
		}
		out[tok] = true
	}
	return out
}
