package decision

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/oddsmith/platform/internal/domain"
)

// SelectionID computes the stable identifier for one side of one market on
// one event at one line and book. It is the only identifier the UI or the
// publisher ever uses.
func SelectionID(eventID string, mt domain.MarketType, sideKey string, line float64, bookID string) string {
	normalized := fmt.Sprintf("%.1f", line)
	sum := sha256.Sum256([]byte(eventID + "|" + string(mt) + "|" + sideKey + "|" + normalized + "|" + bookID))
	return hex.EncodeToString(sum[:16])
}

// sideKey maps a pick side to its hash component.
func sideKey(s domain.Side) string { return string(s) }

// Opposite resolves the paired selection id from a decision's two stored
// canonical ids. opposite(opposite(x)) == x by construction.
func Opposite(d *domain.MarketDecision, selectionID string) (string, error) {
	switch selectionID {
	case d.SelectionID:
		return d.OppositeSelectionID, nil
	case d.OppositeSelectionID:
		return d.SelectionID, nil
	}
	return "", domain.ErrValidation(fmt.Sprintf("selection %s is not on this market", selectionID))
}
