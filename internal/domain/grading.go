package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// SettlementOutcome is the graded result of a pick.
type SettlementOutcome string

const (
	SettleWin  SettlementOutcome = "WIN"
	SettleLoss SettlementOutcome = "LOSS"
	SettlePush SettlementOutcome = "PUSH"
	SettleVoid SettlementOutcome = "VOID"
)

// ParseSettlementOutcome validates an admin override value.
func ParseSettlementOutcome(s string) (SettlementOutcome, error) {
	switch SettlementOutcome(s) {
	case SettleWin, SettleLoss, SettlePush, SettleVoid:
		return SettlementOutcome(s), nil
	}
	return "", ErrValidation(fmt.Sprintf("unknown settlement outcome %q", s))
}

// ScorePayloadRef pins the provider payload a grade was derived from.
type ScorePayloadRef struct {
	ProviderEventID string     `json:"provider_event_id"`
	PayloadHash     string     `json:"payload_hash"`
	Snapshot        FinalScore `json:"snapshot"`
}

// GradingRecord is the append-only settlement artifact, unique on
// IdempotencyKey.
type GradingRecord struct {
	PickID          string            `json:"pick_id"`
	EventID         string            `json:"event_id"`
	ProviderEventID string            `json:"provider_event_id"`
	IdempotencyKey  string            `json:"idempotency_key"`
	Settlement      SettlementOutcome `json:"settlement"`

	// CLV is nil when no closing snapshot existed; grading proceeds anyway.
	CLV *float64 `json:"clv"`

	ScorePayloadRef ScorePayloadRef `json:"score_payload_ref"`
	OpsAlerts       []string        `json:"ops_alerts"`

	AdminOverride *SettlementOutcome `json:"admin_override,omitempty"`
	AdminNote     string             `json:"admin_note,omitempty"`

	SettlementRulesVersion string    `json:"settlement_rules_version"`
	CLVRulesVersion        string    `json:"clv_rules_version"`
	GradedAt               time.Time `json:"graded_at"`
}

// GradingIdempotencyKey derives the unique key for one grading of one pick
// under one rules regime.
func GradingIdempotencyKey(pickID, gradeSource, settlementRulesVersion, clvRulesVersion string) string {
	sum := sha256.Sum256([]byte(pickID + "|" + gradeSource + "|" + settlementRulesVersion + "|" + clvRulesVersion))
	return hex.EncodeToString(sum[:])
}
