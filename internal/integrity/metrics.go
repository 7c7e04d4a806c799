package integrity

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts the pipeline events the sentinel watches. Each counter is
// exported to prometheus and mirrored in an atomic so the in-process
// sentinel can sample deltas without scraping itself.
type Metrics struct {
	decisionsComputed   prometheus.Counter
	integrityViolations prometheus.Counter
	missingSelectionID  prometheus.Counter
	missingSnapshotHash prometheus.Counter
	postValidationFails prometheus.Counter
	publishAttempts     prometheus.Counter
	edgeDecisions       prometheus.Counter

	decisions   atomic.Int64
	violations  atomic.Int64
	missingSel  atomic.Int64
	missingHash atomic.Int64
	postFails   atomic.Int64
	attempts    atomic.Int64
	edges       atomic.Int64
}

// NewMetrics registers the engine counters on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		decisionsComputed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "oddsmith_decisions_computed_total",
			Help: "Market decisions produced by the decision computer.",
		}),
		integrityViolations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "oddsmith_integrity_violations_total",
			Help: "Decisions blocked by the integrity validator.",
		}),
		missingSelectionID: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "oddsmith_missing_selection_id_total",
			Help: "Decisions missing a selection id at validation.",
		}),
		missingSnapshotHash: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "oddsmith_missing_snapshot_hash_total",
			Help: "Decisions missing an inputs hash at validation.",
		}),
		postValidationFails: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "oddsmith_post_validation_fails_total",
			Help: "Outbound renderings rejected by the copy validator.",
		}),
		publishAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "oddsmith_publish_attempts_total",
			Help: "Outbound renderings submitted to the copy validator.",
		}),
		edgeDecisions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "oddsmith_edge_decisions_total",
			Help: "Decisions classified EDGE.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.decisionsComputed, m.integrityViolations, m.missingSelectionID,
			m.missingSnapshotHash, m.postValidationFails, m.publishAttempts, m.edgeDecisions)
	}
	return m
}

func (m *Metrics) IncDecision() {
	m.decisionsComputed.Inc()
	m.decisions.Add(1)
}

func (m *Metrics) IncViolation() {
	m.integrityViolations.Inc()
	m.violations.Add(1)
}

func (m *Metrics) IncMissingSelectionID() {
	m.missingSelectionID.Inc()
	m.missingSel.Add(1)
}

func (m *Metrics) IncMissingSnapshotHash() {
	m.missingSnapshotHash.Inc()
	m.missingHash.Add(1)
}

func (m *Metrics) IncPostValidationFail() {
	m.postValidationFails.Inc()
	m.postFails.Add(1)
}

func (m *Metrics) IncPublishAttempt() {
	m.publishAttempts.Inc()
	m.attempts.Add(1)
}

func (m *Metrics) IncEdge() {
	m.edgeDecisions.Inc()
	m.edges.Add(1)
}

// Sample captures current counter values for windowed rate computation.
type Sample struct {
	Decisions           int64
	Violations          int64
	MissingSelectionID  int64
	MissingSnapshotHash int64
	PostValidationFails int64
	PublishAttempts     int64
	EdgeDecisions       int64
}

// Snapshot returns the current counter values.
func (m *Metrics) Snapshot() Sample {
	return Sample{
		Decisions:           m.decisions.Load(),
		Violations:          m.violations.Load(),
		MissingSelectionID:  m.missingSel.Load(),
		MissingSnapshotHash: m.missingHash.Load(),
		PostValidationFails: m.postFails.Load(),
		PublishAttempts:     m.attempts.Load(),
		EdgeDecisions:       m.edges.Load(),
	}
}
