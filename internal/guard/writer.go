package guard

import (
	"sync"

	"github.com/oddsmith/platform/internal/domain"
)

// Module names used by write callers. The matrix is keyed on these, not on
// call stacks: every repository write takes the caller module explicitly.
type Module string

const (
	ModuleSettlement Module = "settlement_engine"
	ModuleSignal     Module = "signal_generator"
	ModulePublisher  Module = "publisher"
	ModuleValidator  Module = "integrity_validator"
	ModuleSentinel   Module = "integrity_sentinel"
	ModuleAudit      Module = "audit_service"
	ModuleOrchestr   Module = "orchestrator"
	ModuleAdmin      Module = "admin_api"
)

// Collection names for protected persistent state.
const (
	CollectionEvents         = "events"
	CollectionSnapshots      = "market_snapshots"
	CollectionSimRuns        = "sim_runs"
	CollectionDecisions      = "decisions"
	CollectionSignals        = "signals"
	CollectionGrading        = "grading"
	CollectionOpsAlerts      = "ops_alerts"
	CollectionAuditLog       = "audit_log"
	CollectionParlayAttempts = "parlay_attempts"
	CollectionFeatureFlags   = "feature_flags"
	CollectionPublishLog     = "publish_log"
)

// WriterMatrix is the per-collection allowlist, loaded once at startup and
// enforced at runtime by the repository write façade.
type WriterMatrix struct {
	mu    sync.RWMutex
	allow map[string]map[Module]bool
	// violations receives unauthorized attempts so the caller can raise an
	// ops alert without the matrix holding a repository reference.
	violations chan Violation
}

// Violation describes one refused write.
type Violation struct {
	Caller     Module
	Collection string
}

// NewWriterMatrix builds the canonical allowlist.
//
// Canonical entries (greppable; the allowlist test asserts this table):
//   grading          <- settlement_engine
//   signals          <- signal_generator, publisher (posted mark), settlement_engine (settled mark)
//   ops_alerts       <- integrity_sentinel, integrity_validator, settlement_engine, orchestrator
//   audit_log        <- audit_service
//   events           <- orchestrator, admin_api (reconciliation), settlement_engine (grading freeze)
//   market_snapshots <- orchestrator
//   sim_runs         <- signal_generator, orchestrator
//   decisions        <- signal_generator
//   parlay_attempts  <- signal_generator
//   feature_flags    <- integrity_sentinel, admin_api
//   publish_log      <- publisher
func NewWriterMatrix() *WriterMatrix {
	allow := map[string]map[Module]bool{
		CollectionGrading:        {ModuleSettlement: true},
		CollectionSignals:        {ModuleSignal: true, ModulePublisher: true, ModuleSettlement: true},
		CollectionOpsAlerts:      {ModuleSentinel: true, ModuleValidator: true, ModuleSettlement: true, ModuleOrchestr: true},
		CollectionAuditLog:       {ModuleAudit: true},
		CollectionEvents:         {ModuleOrchestr: true, ModuleAdmin: true, ModuleSettlement: true},
		CollectionSnapshots:      {ModuleOrchestr: true},
		CollectionSimRuns:        {ModuleSignal: true, ModuleOrchestr: true},
		CollectionDecisions:      {ModuleSignal: true},
		CollectionParlayAttempts: {ModuleSignal: true},
		CollectionFeatureFlags:   {ModuleSentinel: true, ModuleAdmin: true},
		CollectionPublishLog:     {ModulePublisher: true},
	}
	return &WriterMatrix{
		allow:      allow,
		violations: make(chan Violation, 64),
	}
}

// Authorize returns nil when caller may write collection, otherwise a typed
// WriterUnauthorized error. Refused attempts are recorded on the violations
// channel for the sentinel to turn into WRITER_UNAUTHORIZED ops alerts.
func (m *WriterMatrix) Authorize(caller Module, collection string) error {
	m.mu.RLock()
	callers, known := m.allow[collection]
	ok := known && callers[caller]
	m.mu.RUnlock()

	if ok {
		return nil
	}

	select {
	case m.violations <- Violation{Caller: caller, Collection: collection}:
	default:
		// channel full: the error itself still aborts the write
	}
	return domain.ErrWriterUnauthorized(string(caller), collection)
}

// Violations exposes the refused-write feed.
func (m *WriterMatrix) Violations() <-chan Violation { return m.violations }

// AllowedWriters returns the callers listed for a collection (test support).
func (m *WriterMatrix) AllowedWriters(collection string) []Module {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Module, 0, len(m.allow[collection]))
	for mod := range m.allow[collection] {
		out = append(out, mod)
	}
	return out
}
