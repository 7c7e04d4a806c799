package settlement

import (
	"github.com/oddsmith/platform/internal/domain"
)

// Versioned rule identifiers. Both participate in the grading idempotency
// key, so a rules change regrades under a new key instead of silently
// rewriting history.
const (
	SettlementRulesVersion = "sr-2025.2"
	CLVRulesVersion        = "clv-1.1"
)

// SettleSpread grades a spread pick against the final score. The pick line
// is the side's own signed handicap: the pick covers when its score plus the
// handicap beats the opponent, pushes on an exact landing.
func SettleSpread(pick *domain.Pick, homeScore, awayScore int) domain.SettlementOutcome {
	var diff float64
	switch pick.Side {
	case domain.SideHome:
		diff = float64(homeScore-awayScore) + pick.Line
	case domain.SideAway:
		diff = float64(awayScore-homeScore) + pick.Line
	default:
		return domain.SettleVoid
	}
	switch {
	case diff > 0:
		return domain.SettleWin
	case diff < 0:
		return domain.SettleLoss
	}
	return domain.SettlePush
}

// SettleTotal grades an over/under pick. Half-point lines cannot push.
func SettleTotal(pick *domain.Pick, homeScore, awayScore int) domain.SettlementOutcome {
	total := float64(homeScore + awayScore)
	switch {
	case total == pick.Line:
		return domain.SettlePush
	case pick.Side == domain.SideOver && total > pick.Line,
		pick.Side == domain.SideUnder && total < pick.Line:
		return domain.SettleWin
	}
	return domain.SettleLoss
}

// SettleMoneyline grades a moneyline pick. Tie handling is sport-specific
// under sr-2025.2: NFL full-game ties push, every other league's tie voids
// the two-way market.
func SettleMoneyline(league domain.League, pick *domain.Pick, homeScore, awayScore int) domain.SettlementOutcome {
	if homeScore == awayScore {
		if league == domain.LeagueNFL {
			return domain.SettlePush
		}
		return domain.SettleVoid
	}
	homeWon := homeScore > awayScore
	if (pick.Side == domain.SideHome) == homeWon {
		return domain.SettleWin
	}
	return domain.SettleLoss
}

// Settle dispatches on market type.
func Settle(league domain.League, mt domain.MarketType, pick *domain.Pick, score *domain.FinalScore) domain.SettlementOutcome {
	if pick == nil {
		return domain.SettleVoid
	}
	switch mt {
	case domain.MarketSpread:
		return SettleSpread(pick, score.HomeScore, score.AwayScore)
	case domain.MarketTotal:
		return SettleTotal(pick, score.HomeScore, score.AwayScore)
	case domain.MarketMoneyline:
		return SettleMoneyline(league, pick, score.HomeScore, score.AwayScore)
	}
	return domain.SettleVoid
}

// CLV measures closing line value as the vig-free implied probability shift
// from the frozen entry odds to the closing odds on the same side. Positive
// means the market moved toward the pick after entry.
func CLV(entryOdds, closingOdds int) float64 {
	return domain.AmericanImplied(closingOdds) - domain.AmericanImplied(entryOdds)
}

// closingOddsFor extracts the picked side's closing price from a snapshot.
func closingOddsFor(mt domain.MarketType, side domain.Side, snap *domain.MarketSnapshot) int {
	switch mt {
	case domain.MarketSpread:
		if side == domain.SideHome {
			return snap.SpreadHomePrice
		}
		return snap.SpreadAwayPrice
	case domain.MarketTotal:
		if side == domain.SideOver {
			return snap.OverPrice
		}
		return snap.UnderPrice
	case domain.MarketMoneyline:
		if side == domain.SideHome {
			return snap.MLHome
		}
		return snap.MLAway
	}
	return 0
}
