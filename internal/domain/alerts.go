package domain

import (
	"time"

	"github.com/google/uuid"
)

// AlertKind enumerates operational alert categories.
type AlertKind string

const (
	AlertProviderIDMissing    AlertKind = "PROVIDER_ID_MISSING"
	AlertMappingDrift         AlertKind = "MAPPING_DRIFT"
	AlertCloseSnapshotMissing AlertKind = "CLOSE_SNAPSHOT_MISSING"
	AlertIntegrityViolation   AlertKind = "INTEGRITY_VIOLATION"
	AlertWriterUnauthorized   AlertKind = "WRITER_UNAUTHORIZED"
	AlertSentinelBreach       AlertKind = "SENTINEL_BREACH"
)

// AlertSeverity is WARNING or CRITICAL.
type AlertSeverity string

const (
	SeverityWarning  AlertSeverity = "WARNING"
	SeverityCritical AlertSeverity = "CRITICAL"
)

// ReconciliationStatus tracks operator follow-up on an alert.
type ReconciliationStatus string

const (
	ReconOpen     ReconciliationStatus = "open"
	ReconResolved ReconciliationStatus = "resolved"
)

// OpsAlert is an append-only operational alert.
type OpsAlert struct {
	AlertID              string               `json:"alert_id"`
	Kind                 AlertKind            `json:"kind"`
	Severity             AlertSeverity        `json:"severity"`
	EventID              string               `json:"event_id,omitempty"`
	Details              string               `json:"details"`
	CreatedAt            time.Time            `json:"created_at"`
	ReconciliationStatus ReconciliationStatus `json:"reconciliation_status"`
}

// NewOpsAlert builds an open alert with a fresh id.
func NewOpsAlert(kind AlertKind, severity AlertSeverity, eventID, details string) OpsAlert {
	return OpsAlert{
		AlertID:              uuid.NewString(),
		Kind:                 kind,
		Severity:             severity,
		EventID:              eventID,
		Details:              details,
		CreatedAt:            time.Now().UTC(),
		ReconciliationStatus: ReconOpen,
	}
}
