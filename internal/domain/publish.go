package domain

import "time"

// PublishItem is one locked signal queued for outbound posting.
type PublishItem struct {
	SignalID    string     `json:"signal_id"`
	EventID     string     `json:"event_id"`
	League      League     `json:"league"`
	MarketType  MarketType `json:"market_type"`
	Tier        Tier       `json:"tier"`
	Constrained bool       `json:"constrained"` // entry odds already worse than lock
	Decision    *MarketDecision `json:"decision"`
	Entry       Entry      `json:"entry"`
	EnqueuedAt  time.Time  `json:"enqueued_at"`
}

// PublishAttempt is the append-only publish_log row. Posted is false for
// validator rejections and dropped items; such attempts are never retried
// with the same rendering.
type PublishAttempt struct {
	AttemptID         string     `json:"attempt_id"`
	SignalID          string     `json:"signal_id"`
	EventID           string     `json:"event_id"`
	MarketType        MarketType `json:"market_type"`
	TemplateID        string     `json:"template_id"`
	RenderedHash      string     `json:"rendered_hash"`
	Posted            bool       `json:"posted"`
	FailureReason     string     `json:"failure_reason,omitempty"`
	TelegramMessageID string     `json:"telegram_message_id,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
}

// FeatureFlag is a database-backed switch with a short-TTL read-through
// cache so changes propagate without restarts.
type FeatureFlag struct {
	Name      string    `json:"name"`
	Enabled   bool      `json:"enabled"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Known feature flag names.
const (
	FlagPublisherAutopublish    = "publisher_autopublish"
	FlagLLMCopyAgent            = "llm_copy_agent"
	FlagIntegritySentinel       = "integrity_sentinel"
	FlagAutorollbackOnIntegrity = "autorollback_on_integrity"
	FlagParlayEnabled           = "parlay_enabled"
)

// AuditEntry is one append-only audit_log row.
type AuditEntry struct {
	AuditID   string    `json:"audit_id"`
	Kind      string    `json:"kind"` // decision_served | published | graded | parlay_attempt | calibration
	EventID   string    `json:"event_id,omitempty"`
	RefID     string    `json:"ref_id,omitempty"`
	Payload   []byte    `json:"payload,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
