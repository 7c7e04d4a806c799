package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/oddsmith/platform/internal/domain"
)

// leagueSportKeys maps leagues to The Odds API sport keys.
var leagueSportKeys = map[domain.League]string{
	domain.LeagueNFL:   "americanfootball_nfl",
	domain.LeagueNCAAF: "americanfootball_ncaaf",
	domain.LeagueNBA:   "basketball_nba",
	domain.LeagueNCAAB: "basketball_ncaab",
	domain.LeagueMLB:   "baseball_mlb",
	domain.LeagueNHL:   "icehockey_nhl",
}

// ── Odds API wire types ──

type oddsEvent struct {
	ID           string          `json:"id"`
	SportKey     string          `json:"sport_key"`
	CommenceTime string          `json:"commence_time"`
	HomeTeam     string          `json:"home_team"`
	AwayTeam     string          `json:"away_team"`
	Bookmakers   []oddsBookmaker `json:"bookmakers"`
}

type oddsBookmaker struct {
	Key     string       `json:"key"`
	Markets []oddsMarket `json:"markets"`
}

type oddsMarket struct {
	Key      string        `json:"key"`
	Outcomes []oddsOutcome `json:"outcomes"`
}

type oddsOutcome struct {
	Name  string   `json:"name"`
	Price int      `json:"price"`
	Point *float64 `json:"point,omitempty"`
}

type scoreEvent struct {
	ID           string      `json:"id"`
	CommenceTime string      `json:"commence_time"`
	Completed    bool        `json:"completed"`
	HomeTeam     string      `json:"home_team"`
	AwayTeam     string      `json:"away_team"`
	Scores       []teamScore `json:"scores"`
}

type teamScore struct {
	Name  string `json:"name"`
	Score string `json:"score"`
}

// EventOdds pairs a provider event with one assembled market snapshot. The
// snapshot's wave is stamped by the caller.
type EventOdds struct {
	Event    *domain.Event
	Snapshot *domain.MarketSnapshot
}

// OddsAPIClient talks to The Odds API for odds and final scores. Scores are
// fetched by exact provider event id only.
type OddsAPIClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  *slog.Logger
	now     func() time.Time
}

// NewOddsAPIClient creates the client.
func NewOddsAPIClient(apiKey string, logger *slog.Logger) *OddsAPIClient {
	return &OddsAPIClient{
		baseURL: "https://api.the-odds-api.com",
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 30 * time.Second},
		logger:  logger,
		now:     time.Now,
	}
}

func (c *OddsAPIClient) get(ctx context.Context, path string) ([]byte, error) {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+sep+"apiKey="+c.apiKey, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, domain.ErrTransportTimeout("odds api", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	// The free tier meters requests; the remaining header is the only quota
	// signal the provider gives.
	c.logger.Debug("odds api request",
		"path", strings.SplitN(path, "?", 2)[0],
		"status", resp.StatusCode,
		"remaining", resp.Header.Get("x-requests-remaining"),
	)

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, domain.ErrTransportTimeout("odds api", fmt.Errorf("quota exceeded"))
	}
	if resp.StatusCode != http.StatusOK {
		n := len(body)
		if n > 200 {
			n = 200
		}
		return nil, fmt.Errorf("odds api returned %d: %s", resp.StatusCode, string(body[:n]))
	}
	return body, nil
}

// FetchOdds pulls current spread, total, and moneyline prices for a league.
// One snapshot is assembled per event from the first bookmaker carrying all
// three markets.
func (c *OddsAPIClient) FetchOdds(ctx context.Context, league domain.League) ([]EventOdds, error) {
	sportKey, ok := leagueSportKeys[league]
	if !ok {
		return nil, domain.ErrValidation(fmt.Sprintf("no sport key for league %q", league))
	}

	path := fmt.Sprintf("/v4/sports/%s/odds/?regions=us&markets=h2h,spreads,totals&oddsFormat=american&dateFormat=iso", sportKey)
	body, err := c.get(ctx, path)
	if err != nil {
		return nil, err
	}

	var events []oddsEvent
	if err := json.Unmarshal(body, &events); err != nil {
		return nil, fmt.Errorf("decode odds: %w", err)
	}

	observed := c.now().UTC()
	out := make([]EventOdds, 0, len(events))
	for _, raw := range events {
		eo, err := c.assemble(league, raw, observed)
		if err != nil {
			c.logger.Warn("skipping provider event", "provider_event_id", raw.ID, "error", err)
			continue
		}
		out = append(out, eo)
	}
	return out, nil
}

// FetchScore returns the final score for an exact provider event id, or a
// not-completed state while the game runs.
func (c *OddsAPIClient) FetchScore(ctx context.Context, league domain.League, providerEventID string) (*domain.FinalScore, error) {
	sportKey, ok := leagueSportKeys[league]
	if !ok {
		return nil, domain.ErrValidation(fmt.Sprintf("no sport key for league %q", league))
	}

	path := fmt.Sprintf("/v4/sports/%s/scores/?daysFrom=3&eventIds=%s", sportKey, url.QueryEscape(providerEventID))
	body, err := c.get(ctx, path)
	if err != nil {
		return nil, err
	}

	var events []scoreEvent
	if err := json.Unmarshal(body, &events); err != nil {
		return nil, fmt.Errorf("decode scores: %w", err)
	}

	for _, se := range events {
		if se.ID != providerEventID {
			continue
		}
		fs := &domain.FinalScore{
			ProviderEventID: se.ID,
			HomeName:        se.HomeTeam,
			AwayName:        se.AwayTeam,
			Completed:       se.Completed,
			FetchedAt:       c.now().UTC(),
		}
		for _, ts := range se.Scores {
			var pts int
			fmt.Sscanf(ts.Score, "%d", &pts)
			switch ts.Name {
			case se.HomeTeam:
				fs.HomeScore = pts
			case se.AwayTeam:
				fs.AwayScore = pts
			}
		}
		return fs, nil
	}
	return nil, domain.ErrNotFound("provider event", providerEventID)
}

// assemble maps one provider event into the internal event and snapshot.
func (c *OddsAPIClient) assemble(league domain.League, raw oddsEvent, observed time.Time) (EventOdds, error) {
	start, err := time.Parse(time.RFC3339, raw.CommenceTime)
	if err != nil {
		return EventOdds{}, fmt.Errorf("parse commence_time: %w", err)
	}

	ev := &domain.Event{
		EventID:    internalEventID(league, raw.ID),
		League:     league,
		HomeTeamID: TeamKey(raw.HomeTeam),
		AwayTeamID: TeamKey(raw.AwayTeam),
		HomeName:   raw.HomeTeam,
		AwayName:   raw.AwayTeam,
		StartTime:  start.UTC(),
		Status:     domain.EventScheduled,
		ProviderEventMap: map[string]string{
			domain.ProviderOddsAPI: raw.ID,
		},
		CreatedAt: observed,
	}

	snap := &domain.MarketSnapshot{
		EventID:    ev.EventID,
		ObservedAt: observed,
	}

	found := 0
	for _, bk := range raw.Bookmakers {
		snap.BookID = bk.Key
		found = 0
		for _, mkt := range bk.Markets {
			switch mkt.Key {
			case "spreads":
				if fillSpread(snap, raw, mkt) {
					found++
				}
			case "totals":
				if fillTotal(snap, mkt) {
					found++
				}
			case "h2h":
				if fillMoneyline(snap, raw, mkt) {
					found++
				}
			}
		}
		if found == 3 {
			break
		}
	}
	if found != 3 {
		return EventOdds{}, fmt.Errorf("no bookmaker carries all three markets")
	}
	return EventOdds{Event: ev, Snapshot: snap}, nil
}

func fillSpread(snap *domain.MarketSnapshot, raw oddsEvent, mkt oddsMarket) bool {
	var home, away bool
	for _, o := range mkt.Outcomes {
		if o.Point == nil {
			continue
		}
		switch o.Name {
		case raw.HomeTeam:
			snap.SpreadHome, snap.SpreadHomePrice, home = *o.Point, o.Price, true
		case raw.AwayTeam:
			snap.SpreadAway, snap.SpreadAwayPrice, away = *o.Point, o.Price, true
		}
	}
	return home && away
}

func fillTotal(snap *domain.MarketSnapshot, mkt oddsMarket) bool {
	var over, under bool
	for _, o := range mkt.Outcomes {
		if o.Point == nil {
			continue
		}
		switch o.Name {
		case "Over":
			snap.Total, snap.OverPrice, over = *o.Point, o.Price, true
		case "Under":
			snap.UnderPrice, under = o.Price, true
		}
	}
	return over && under
}

func fillMoneyline(snap *domain.MarketSnapshot, raw oddsEvent, mkt oddsMarket) bool {
	var home, away bool
	for _, o := range mkt.Outcomes {
		switch o.Name {
		case raw.HomeTeam:
			snap.MLHome, home = o.Price, true
		case raw.AwayTeam:
			snap.MLAway, away = o.Price, true
		}
	}
	return home && away
}

// internalEventID derives the stable internal id from the provider id. The
// provider id itself stays in provider_event_map.
func internalEventID(league domain.League, providerID string) string {
	return strings.ToLower(string(league)) + "-" + providerID
}

// TeamKey slugs a canonical team name into a stable team id.
func TeamKey(name string) string {
	s := strings.ToLower(name)
	s = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		case r == ' ' || r == '-':
			return '-'
		}
		return -1
	}, s)
	return strings.Trim(s, "-")
}
