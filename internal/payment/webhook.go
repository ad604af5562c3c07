package payment

import (
	"context"
	"time"

	"go.uber.org/zap"

	"paysync/internal/repository"
)

// DefaultMarkerTTL is how long an applied event suppresses redeliveries.
const DefaultMarkerTTL = 24 * time.Hour

// Outcome is how the pipeline disposed of a delivery. Every outcome is
// acknowledged to the gateway; only errors ask it to redeliver.
type Outcome int

const (
	OutcomeApplied Outcome = iota
	OutcomeDuplicate
	OutcomeIgnored
	// OutcomeSkipped means the event named an order or payment this service
	// has no binding for.
	OutcomeSkipped
	// OutcomeNoop means the order already reflected the event.
	OutcomeNoop
	OutcomeNeedsReconciliation
)

func (o Outcome) String() string {
	switch o {
	case OutcomeApplied:
		return "applied"
	case OutcomeDuplicate:
		return "duplicate"
	case OutcomeIgnored:
		return "ignored"
	case OutcomeSkipped:
		return "skipped"
	case OutcomeNoop:
		return "noop"
	case OutcomeNeedsReconciliation:
		return "needs_reconciliation"
	default:
		return "unknown"
	}
}

// WebhookPipeline authenticates, deduplicates and applies gateway webhooks.
// The idempotency marker and the state change commit in one transaction, so
// an event is either fully applied and marked or neither.
type WebhookPipeline struct {
	store     *repository.Store
	gateway   Gateway
	handlers  EventHandler
	notifier  Notifier
	markerTTL time.Duration
	logger    *zap.Logger
	now       func() time.Time
}

func NewWebhookPipeline(store *repository.Store, gateway Gateway, handlers EventHandler, notifier Notifier, markerTTL time.Duration, logger *zap.Logger) *WebhookPipeline {
	if markerTTL <= 0 {
		markerTTL = DefaultMarkerTTL
	}
	return &WebhookPipeline{
		store:     store,
		gateway:   gateway,
		handlers:  handlers,
		notifier:  notifier,
		markerTTL: markerTTL,
		logger:    logger,
		now:       systemNow,
	}
}

// Handle processes one delivery. raw must be the exact request body the
// signature was computed over.
func (p *WebhookPipeline) Handle(ctx context.Context, raw []byte, signature string) (Outcome, error) {
	if !p.gateway.VerifyWebhookSignature(raw, signature) {
		p.logger.Warn("webhook signature rejected")
		return 0, ErrInvalidWebhookSignature
	}

	inbound, err := ParseWebhookEvent(raw)
	if err != nil {
		p.logger.Warn("webhook payload rejected", zap.Error(err))
		return 0, err
	}

	event := inbound.Event()
	if !event.Supported() {
		p.logger.Debug("webhook event ignored", zap.String("event", string(inbound.Type)))
		return OutcomeIgnored, nil
	}

	if err := inbound.Validate(); err != nil {
		// Authenticated, so redelivery would carry the same gap.
		p.logger.Warn("webhook event dropped", zap.Error(err))
		return OutcomeSkipped, nil
	}

	key := inbound.IdempotencyKey()
	var effect Effect
	err = p.store.Transaction(ctx, func(tx *repository.Store) error {
		acquired, err := tx.Markers.Acquire(key, string(inbound.Type), p.markerTTL, p.now())
		if err != nil {
			return err
		}
		if !acquired {
			effect = Effect{Outcome: OutcomeDuplicate}
			return nil
		}
		effect, err = event.Dispatch(ctx, tx, p.handlers)
		return err
	})
	if err != nil {
		p.logger.Error("webhook processing failed",
			zap.String("event", string(inbound.Type)),
			zap.String("key", key),
			zap.Error(err))
		return 0, err
	}

	p.logger.Info("webhook processed",
		zap.String("event", string(inbound.Type)),
		zap.String("key", key),
		zap.Stringer("outcome", effect.Outcome))
	deliver(ctx, p.notifier, p.logger, effect.Notifications)
	return effect.Outcome, nil
}
