package publish

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oddsmith/platform/internal/domain"
	"github.com/oddsmith/platform/internal/guard"
	"github.com/oddsmith/platform/internal/infra"
	"github.com/oddsmith/platform/internal/integrity"
	"github.com/oddsmith/platform/internal/repository"
)

// Sender posts one message to the outbound channel and returns its id.
type Sender interface {
	Send(ctx context.Context, text string) (messageID string, err error)
}

const maxItemAge = 30 * time.Minute

// Publisher drains the locked-signal queue through the copy validator onto
// the outbound channel. It is single-threaded per channel: posts are
// strictly ordered and at-most-once under the (signal, template, rendering)
// dedupe key.
type Publisher struct {
	pool      *pgxpool.Pool
	consumer  *infra.KafkaConsumer
	publog    repository.PublishLogRepository
	snapshots repository.SnapshotRepository
	flags     repository.FlagRepository
	validator *CopyValidator
	metrics   *integrity.Metrics
	sender    Sender
	window    time.Duration
	logger    *slog.Logger
	now       func() time.Time
}

// NewPublisher wires the publisher worker. window bounds one post per
// (event, market).
func NewPublisher(
	pool *pgxpool.Pool,
	consumer *infra.KafkaConsumer,
	publog repository.PublishLogRepository,
	snapshots repository.SnapshotRepository,
	flags repository.FlagRepository,
	validator *CopyValidator,
	metrics *integrity.Metrics,
	sender Sender,
	window time.Duration,
	logger *slog.Logger,
) *Publisher {
	if window <= 0 {
		window = 6 * time.Hour
	}
	return &Publisher{
		pool:      pool,
		consumer:  consumer,
		publog:    publog,
		snapshots: snapshots,
		flags:     flags,
		validator: validator,
		metrics:   metrics,
		sender:    sender,
		window:    window,
		logger:    logger,
		now:       time.Now,
	}
}

// Run consumes queue items until the context ends. Items are batched for
// one second and drained in priority order: EDGE before LEAN, unconstrained
// before constrained, oldest first within a band.
func (p *Publisher) Run(ctx context.Context) error {
	if !p.consumer.Enabled() {
		p.logger.Warn("publish queue consumer disabled; publisher idle")
		<-ctx.Done()
		return ctx.Err()
	}

	items := make(chan domain.PublishItem, 64)
	go p.intake(ctx, items)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	var pending []domain.PublishItem
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case item := <-items:
			item.Constrained = p.constrained(ctx, &item)
			pending = append(pending, item)
		case <-ticker.C:
			if len(pending) == 0 {
				continue
			}
			sort.SliceStable(pending, func(i, j int) bool {
				if pi, pj := priority(&pending[i]), priority(&pending[j]); pi != pj {
					return pi < pj
				}
				return pending[i].EnqueuedAt.Before(pending[j].EnqueuedAt)
			})
			for i := range pending {
				p.process(ctx, &pending[i])
			}
			pending = pending[:0]
		}
	}
}

func (p *Publisher) intake(ctx context.Context, items chan<- domain.PublishItem) {
	for {
		msg, err := p.consumer.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			p.logger.Error("queue read failed", "error", err)
			continue
		}
		var item domain.PublishItem
		if err := json.Unmarshal(msg.Value, &item); err != nil {
			p.logger.Error("malformed queue item dropped", "error", err)
			continue
		}
		select {
		case items <- item:
		case <-ctx.Done():
			return
		}
	}
}

// process runs one item through the gate and posts at most once.
func (p *Publisher) process(ctx context.Context, item *domain.PublishItem) {
	tpl := TemplateFor(item.Tier)
	text := tpl.Render(item)
	hash := RenderedHash(text)

	auto, err := p.flags.Get(ctx, p.pool, domain.FlagPublisherAutopublish)
	if err != nil {
		p.logger.Error("autopublish flag read failed", "error", err)
		return
	}
	if !auto {
		p.record(ctx, item, tpl.ID, hash, false, "autopublish_disabled", "")
		return
	}

	if p.now().Sub(item.EnqueuedAt) > maxItemAge {
		p.record(ctx, item, tpl.ID, hash, false, "stale_entry", "")
		return
	}

	seen, err := p.publog.SeenRendering(ctx, p.pool, item.SignalID, tpl.ID, hash)
	if err != nil {
		p.logger.Error("dedupe lookup failed", "signal_id", item.SignalID, "error", err)
		return
	}
	if seen {
		return
	}

	posted, err := p.publog.PostedWithin(ctx, p.pool, item.EventID, item.MarketType, p.window)
	if err != nil {
		p.logger.Error("window lookup failed", "event_id", item.EventID, "error", err)
		return
	}
	if posted {
		p.record(ctx, item, tpl.ID, hash, false, "market_already_posted_in_window", "")
		return
	}

	p.metrics.IncPublishAttempt()
	if reason := p.validator.Validate(text, item); reason != "" {
		p.metrics.IncPostValidationFail()
		p.record(ctx, item, tpl.ID, hash, false, reason, "")
		p.logger.Warn("rendering rejected by copy validator",
			"signal_id", item.SignalID, "reason", reason)
		return
	}

	msgID, err := p.sender.Send(ctx, text)
	if err != nil {
		p.record(ctx, item, tpl.ID, hash, false, "send_failed: "+err.Error(), "")
		p.logger.Error("outbound send failed", "signal_id", item.SignalID, "error", err)
		return
	}

	p.record(ctx, item, tpl.ID, hash, true, "", msgID)
	p.logger.Info("signal posted",
		"signal_id", item.SignalID,
		"event_id", item.EventID,
		"market_type", item.MarketType,
		"template_id", tpl.ID,
		"telegram_message_id", msgID,
	)
}

// constrained marks entries whose current price is already worse than the
// frozen entry odds. They still post, behind unconstrained items.
func (p *Publisher) constrained(ctx context.Context, item *domain.PublishItem) bool {
	snap, err := p.snapshots.Latest(ctx, p.pool, item.EventID)
	if err != nil || snap == nil {
		return false
	}
	current := currentOdds(item, snap)
	if current == 0 {
		return false
	}
	return domain.AmericanToDecimal(current) < domain.AmericanToDecimal(item.Entry.EntryOdds)
}

func currentOdds(item *domain.PublishItem, snap *domain.MarketSnapshot) int {
	side := domain.SideHome
	if item.Decision != nil && item.Decision.Pick != nil {
		side = item.Decision.Pick.Side
	}
	switch item.MarketType {
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

// priority bands: EDGE-unconstrained, EDGE-constrained, LEAN-unconstrained,
// LEAN-constrained.
func priority(item *domain.PublishItem) int {
	band := 0
	if item.Tier != domain.TierEdge {
		band = 2
	}
	if item.Constrained {
		band++
	}
	return band
}

func (p *Publisher) record(ctx context.Context, item *domain.PublishItem, templateID, hash string, posted bool, reason, msgID string) {
	att := &domain.PublishAttempt{
		AttemptID:         uuid.NewString(),
		SignalID:          item.SignalID,
		EventID:           item.EventID,
		MarketType:        item.MarketType,
		TemplateID:        templateID,
		RenderedHash:      hash,
		Posted:            posted,
		FailureReason:     reason,
		TelegramMessageID: msgID,
		CreatedAt:         p.now().UTC(),
	}
	if err := p.publog.Append(ctx, p.pool, guard.ModulePublisher, att); err != nil {
		p.logger.Error("publish log write failed", "signal_id", item.SignalID, "error", err)
	}
}
