package publish

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/oddsmith/platform/internal/domain"
	"github.com/oddsmith/platform/internal/integrity"
)

// Numeric tolerances for rendered copy. Odds have none.
const (
	probTolerancePct = 0.1 // percent points, equals 0.001 in probability
	lineTolerance    = 0.05
)

var numberToken = regexp.MustCompile(`[+-]?\d+(?:\.\d+)?%?`)

// CopyValidator hard-blocks any rendering that contradicts the canonical
// payload. A decision contradiction in posted text is impossible by
// construction because nothing reaches the channel without passing here.
type CopyValidator struct {
	phrases []string
}

// NewCopyValidator builds the validator; nil phrases selects the defaults.
func NewCopyValidator(phrases []string) *CopyValidator {
	if phrases == nil {
		phrases = integrity.DefaultForbiddenPhrases
	}
	return &CopyValidator{phrases: phrases}
}

// Validate returns "" on pass, or the failure reason.
func (v *CopyValidator) Validate(text string, item *domain.PublishItem) string {
	d := item.Decision
	if d == nil || d.Pick == nil || d.SelectionID == "" || d.Debug.InputsHash == "" {
		return "required fields missing from canonical payload"
	}

	if p := integrity.ContainsForbidden(text, v.phrases); p != "" {
		return fmt.Sprintf("forbidden phrase %q", p)
	}

	// Selection integrity: spread and moneyline copy must name the canonical
	// team.
	if d.MarketType != domain.MarketTotal {
		if d.Pick.TeamName == "" || !strings.Contains(text, d.Pick.TeamName) {
			return fmt.Sprintf("team name %q absent from rendered copy", d.Pick.TeamName)
		}
	}

	allowed := allowedValues(item)
	for _, tok := range numberToken.FindAllString(text, -1) {
		if !matchesAny(tok, allowed) {
			return fmt.Sprintf("numeric token %q does not match any canonical value", tok)
		}
	}
	return ""
}

// value is one canonical number a token may legitimately render.
type value struct {
	v     float64
	tol   float64
	exact bool
	pct   bool
}

func allowedValues(item *domain.PublishItem) []value {
	d := item.Decision
	vals := []value{
		{v: d.ModelProb * 100, tol: probTolerancePct, pct: true},
		{v: d.MarketImpliedProb * 100, tol: probTolerancePct, pct: true},
		{v: d.Line, tol: lineTolerance},
		{v: d.FairLine, tol: lineTolerance},
		{v: item.Entry.EntryLine, tol: lineTolerance},
		{v: float64(d.AmericanOdds), exact: true},
		{v: float64(item.Entry.EntryOdds), exact: true},
		{v: float64(item.Entry.WorstAcceptableOdds), exact: true},
	}
	if d.Pick != nil {
		vals = append(vals, value{v: d.Pick.Line, tol: lineTolerance})
	}
	if d.Edge != nil {
		vals = append(vals,
			value{v: d.Edge.Points, tol: lineTolerance},
			value{v: d.Edge.EV * 100, tol: probTolerancePct, pct: true},
		)
	}
	return vals
}

func matchesAny(token string, allowed []value) bool {
	isPct := strings.HasSuffix(token, "%")
	raw := strings.TrimSuffix(token, "%")
	n, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return false
	}
	for _, a := range allowed {
		if a.pct != isPct {
			continue
		}
		if a.exact {
			if n == a.v {
				return true
			}
			continue
		}
		if math.Abs(n-a.v) <= a.tol {
			return true
		}
	}
	return false
}
