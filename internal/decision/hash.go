package decision

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/oddsmith/platform/internal/domain"
)

// hashInputs is the canonical serialization the inputs hash covers. Go's
// encoder emits struct fields in declaration order, so the serialization is
// deterministic for identical inputs.
type hashInputs struct {
	Snapshot        *domain.MarketSnapshot `json:"snapshot"`
	SimStats        domain.SimStats        `json:"sim_stats"`
	Config          domain.LeagueConfig    `json:"config"`
	DecisionVersion int64                  `json:"decision_version"`
}

// InputsHash computes the shared hash over (snapshot, sim-run statistics,
// league config, decision_version). All three decisions of one game carry
// the same value.
func InputsHash(snap *domain.MarketSnapshot, stats domain.SimStats, cfg domain.LeagueConfig, version int64) (string, error) {
	payload, err := json.Marshal(hashInputs{
		Snapshot:        snap,
		SimStats:        stats,
		Config:          cfg,
		DecisionVersion: version,
	})
	if err != nil {
		return "", fmt.Errorf("marshal hash inputs: %w", err)
	}
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:]), nil
}
