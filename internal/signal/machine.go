package signal

import (
	"context"
	"encoding/json"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oddsmith/platform/internal/domain"
	"github.com/oddsmith/platform/internal/guard"
	"github.com/oddsmith/platform/internal/infra"
	"github.com/oddsmith/platform/internal/repository"
)

// Machine drives the three-wave signal lifecycle. Wave evaluations for one
// signal are strictly serialized and idempotent; a published signal never
// rolls back and never absorbs later snapshots.
type Machine struct {
	pool     *pgxpool.Pool
	signals  repository.SignalRepository
	pipeline *Pipeline
	locks    *guard.KeyedLock
	producer *infra.KafkaProducer
	logger   *slog.Logger
	now      func() time.Time
}

// NewMachine wires the signal state machine.
func NewMachine(pool *pgxpool.Pool, signals repository.SignalRepository, pipeline *Pipeline, producer *infra.KafkaProducer, logger *slog.Logger) *Machine {
	return &Machine{
		pool:     pool,
		signals:  signals,
		pipeline: pipeline,
		locks:    guard.NewKeyedLock(),
		producer: producer,
		logger:   logger,
		now:      time.Now,
	}
}

// EvaluateWave advances one (event, market) signal through one wave. Calling
// a wave that already ran returns the stored signal unchanged.
func (m *Machine) EvaluateWave(ctx context.Context, ev *domain.Event, mt domain.MarketType, wave domain.Wave) (*domain.Signal, error) {
	key := ev.EventID + "|" + string(mt)
	m.locks.Lock(key)
	defer m.locks.Unlock(key)

	sig, err := m.signals.FindByEventMarket(ctx, m.pool, ev.EventID, mt)
	if err != nil {
		return nil, err
	}
	if sig == nil {
		sig = m.newSignal(ev, mt)
		if err := m.signals.Insert(ctx, m.pool, guard.ModuleSignal, sig); err != nil {
			return nil, err
		}
	}

	if sig.Status.Terminal() {
		return sig, nil
	}
	if rec := sig.WaveResult(wave); rec != nil {
		return sig, nil
	}
	// Published signals are immutable; later waves only feed history.
	if sig.Status == domain.SignalPublished || sig.Status == domain.SignalLocked {
		return sig, nil
	}

	out, err := m.pipeline.RunWave(ctx, ev, wave)
	if err != nil {
		return nil, err
	}
	d := marketChild(out.Game, mt)
	if d == nil {
		return sig, domain.ErrInternal("decision triple missing market "+string(mt), nil)
	}

	prior := sig.Status
	sig.Waves = append(sig.Waves, domain.WaveRecord{
		Wave:        wave,
		Snapshot:    out.Snapshot,
		SimRunID:    out.Run.SimRunID,
		Decision:    d,
		EvaluatedAt: m.now().UTC(),
	})

	m.transition(ev, sig, wave, d)

	if err := m.signals.Update(ctx, m.pool, guard.ModuleSignal, sig, prior); err != nil {
		return nil, err
	}

	if sig.Status == domain.SignalPublished && prior != domain.SignalPublished {
		if err := m.enqueue(ctx, ev, sig, d); err != nil {
			m.logger.Error("publish enqueue failed", "signal_id", sig.SignalID, "error", err)
		}
	}

	m.logger.Info("signal wave processed",
		"signal_id", sig.SignalID,
		"event_id", ev.EventID,
		"market_type", mt,
		"wave", wave,
		"from", prior,
		"to", sig.Status,
	)
	return sig, nil
}

// transition applies the wave rules to the freshly recorded decision.
func (m *Machine) transition(ev *domain.Event, sig *domain.Signal, wave domain.Wave, d *domain.MarketDecision) {
	if d.ReleaseStatus == domain.ReleaseBlockedByIntegrity {
		sig.Status = domain.SignalVoided
		return
	}

	switch wave {
	case domain.WaveDiscovery:
		if sig.Status == domain.SignalNew && (d.Classification == domain.ClassEdge || d.Classification == domain.ClassLean) {
			sig.Status = domain.SignalDiscovered
		}

	case domain.WaveValidation:
		if sig.Status != domain.SignalDiscovered {
			return
		}
		prev := sig.WaveResult(domain.WaveDiscovery)
		if prev == nil || !samePick(prev.Decision, d) || !withinStability(ev.League, prev.Decision, d) {
			sig.Status = domain.SignalUnstable
			return
		}
		sig.Status = domain.SignalValidated

	case domain.WavePublish:
		if sig.Status != domain.SignalValidated {
			return
		}
		prev := sig.WaveResult(domain.WaveValidation)
		if prev == nil || d.Classification != domain.ClassEdge || !samePick(prev.Decision, d) {
			sig.Status = domain.SignalUnstable
			return
		}
		sig.Status = domain.SignalPublished
		sig.Entry = m.freezeEntry(ev.League, d)
	}
}

// freezeEntry captures the immutable entry terms at publish time.
func (m *Machine) freezeEntry(league domain.League, d *domain.MarketDecision) *domain.Entry {
	cfg, _ := domain.ConfigFor(league)
	return &domain.Entry{
		SelectionID:         d.SelectionID,
		MarketType:          d.MarketType,
		EntryLine:           d.Line,
		EntryOdds:           d.AmericanOdds,
		WorstAcceptableOdds: WorstAcceptableOdds(d.AmericanOdds, cfg.OddsToleranceCents),
		LockedAt:            m.now().UTC(),
	}
}

// Lock moves a published signal to locked at start time.
func (m *Machine) Lock(ctx context.Context, signalID string) error {
	m.locks.Lock(signalID)
	defer m.locks.Unlock(signalID)

	sig, err := m.signals.FindByID(ctx, m.pool, signalID)
	if err != nil {
		return err
	}
	if sig == nil {
		return domain.ErrNotFound("signal", signalID)
	}
	if sig.Status != domain.SignalPublished {
		return nil
	}
	sig.Status = domain.SignalLocked
	return m.signals.Update(ctx, m.pool, guard.ModuleSignal, sig, domain.SignalPublished)
}

// enqueue hands the locked entry to the publisher queue.
func (m *Machine) enqueue(ctx context.Context, ev *domain.Event, sig *domain.Signal, d *domain.MarketDecision) error {
	tier := domain.TierLean
	if d.Classification == domain.ClassEdge {
		tier = domain.TierEdge
	}
	item := domain.PublishItem{
		SignalID:   sig.SignalID,
		EventID:    ev.EventID,
		League:     ev.League,
		MarketType: sig.MarketType,
		Tier:       tier,
		Decision:   d,
		Entry:      *sig.Entry,
		EnqueuedAt: m.now().UTC(),
	}
	payload, err := json.Marshal(item)
	if err != nil {
		return err
	}
	return m.producer.Publish(ctx, infra.TopicPublishQueue, []byte(sig.SignalID), payload)
}

func (m *Machine) newSignal(ev *domain.Event, mt domain.MarketType) *domain.Signal {
	now := m.now().UTC()
	return &domain.Signal{
		SignalID:   uuid.NewString(),
		EventID:    ev.EventID,
		League:     ev.League,
		MarketType: mt,
		TeamA:      ev.HomeName,
		TeamB:      ev.AwayName,
		StartTime:  ev.StartTime,
		Intent:     domain.IntentTruthMode,
		Status:     domain.SignalNew,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// samePick compares the chosen side across waves.
func samePick(a, b *domain.MarketDecision) bool {
	if a == nil || b == nil || a.Pick == nil || b.Pick == nil {
		return false
	}
	return a.Pick.Side == b.Pick.Side
}

// withinStability checks the sport-specific wave-to-wave edge drift bound.
func withinStability(league domain.League, prev, cur *domain.MarketDecision) bool {
	if prev == nil || cur == nil || prev.Edge == nil || cur.Edge == nil {
		return false
	}
	cfg, err := domain.ConfigFor(league)
	if err != nil {
		return false
	}
	if cur.MarketType == domain.MarketMoneyline {
		return math.Abs(cur.Edge.EV-prev.Edge.EV) <= cfg.StabilityToleranceEV
	}
	return math.Abs(cur.Edge.Points-prev.Edge.Points) <= cfg.StabilityTolerancePoints
}

// WorstAcceptableOdds shifts american odds by cents in the adverse
// direction, stepping across the +/-100 gap when the shift crosses even
// money.
func WorstAcceptableOdds(odds, cents int) int {
	shifted := odds - cents
	if shifted < 100 && shifted > -100 {
		shifted -= 200
	}
	return shifted
}

func marketChild(gd *domain.GameDecisions, mt domain.MarketType) *domain.MarketDecision {
	switch mt {
	case domain.MarketSpread:
		return gd.Spread
	case domain.MarketMoneyline:
		return gd.Moneyline
	case domain.MarketTotal:
		return gd.Total
	}
	return nil
}
