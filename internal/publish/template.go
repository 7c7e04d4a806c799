package publish

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/oddsmith/platform/internal/domain"
)

// Template is a pre-registered, immutable outbound layout. Rendering is a
// pure function of canonical decision fields; there is no free-form copy
// path.
type Template struct {
	ID   string
	Tier domain.Tier
}

// Registered templates. IDs are versioned: changing copy means registering
// a new template, never editing one in place.
var (
	TemplateEdge = Template{ID: "tpl-edge-v3", Tier: domain.TierEdge}
	TemplateLean = Template{ID: "tpl-lean-v2", Tier: domain.TierLean}
)

// TemplateFor selects the template for a queue item's tier.
func TemplateFor(tier domain.Tier) Template {
	if tier == domain.TierEdge {
		return TemplateEdge
	}
	return TemplateLean
}

// Render produces the outbound text for one item. Identical items render
// byte-identical text, so the rendered hash is a stable dedupe key.
func (t Template) Render(item *domain.PublishItem) string {
	d := item.Decision
	var b strings.Builder

	switch t.Tier {
	case domain.TierEdge:
		fmt.Fprintf(&b, "%s EDGE | %s\n", item.League, marketLabel(d.MarketType))
	default:
		fmt.Fprintf(&b, "%s Lean | %s\n", item.League, marketLabel(d.MarketType))
	}

	fmt.Fprintf(&b, "%s\n", selectionLine(d))
	fmt.Fprintf(&b, "Model %s vs market %s\n", pct(d.ModelProb), pct(d.MarketImpliedProb))

	switch d.MarketType {
	case domain.MarketSpread:
		fmt.Fprintf(&b, "Fair line %+.1f\n", d.FairLine)
	case domain.MarketTotal:
		fmt.Fprintf(&b, "Fair total %.1f\n", d.FairLine)
	}

	fmt.Fprintf(&b, "Entry %s, worst %s", odds(item.Entry.EntryOdds), odds(item.Entry.WorstAcceptableOdds))
	return b.String()
}

// selectionLine renders the canonical pick. Team and line come from the
// decision's pick verbatim.
func selectionLine(d *domain.MarketDecision) string {
	switch d.MarketType {
	case domain.MarketSpread:
		return fmt.Sprintf("%s %+.1f (%s)", d.Pick.TeamName, d.Pick.Line, odds(d.AmericanOdds))
	case domain.MarketMoneyline:
		return fmt.Sprintf("%s ML (%s)", d.Pick.TeamName, odds(d.AmericanOdds))
	case domain.MarketTotal:
		return fmt.Sprintf("%s %.1f (%s)", strings.ToUpper(string(d.Pick.Side)), d.Pick.Line, odds(d.AmericanOdds))
	}
	return ""
}

func marketLabel(mt domain.MarketType) string {
	switch mt {
	case domain.MarketSpread:
		return "Spread"
	case domain.MarketMoneyline:
		return "Moneyline"
	case domain.MarketTotal:
		return "Total"
	}
	return string(mt)
}

func pct(p float64) string { return fmt.Sprintf("%.1f%%", p*100) }

func odds(o int) string { return fmt.Sprintf("%+d", o) }

// RenderedHash is the dedupe component for one rendering.
func RenderedHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:16])
}
