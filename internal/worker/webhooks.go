package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/Priya8975/marketplace/internal/codec"
	"github.com/Priya8975/marketplace/internal/domain"
)

// WebhookFinder returns the active webhooks subscribed to an event type.
type WebhookFinder interface {
	WebhooksFor(ctx context.Context, qualifiedType string) ([]domain.Webhook, error)
}

// Fanout turns every event into one delivery job per subscribed webhook.
type Fanout struct {
	webhooks  WebhookFinder
	publisher domain.Publisher[DeliveryJob]
	logger    *slog.Logger
}

func NewFanout(webhooks WebhookFinder, publisher domain.Publisher[DeliveryJob], logger *slog.Logger) *Fanout {
	return &Fanout{webhooks: webhooks, publisher: publisher, logger: logger}
}

// Handle is a Handler for the events exchange.
func (f *Fanout) Handle(ctx context.Context, d Delivery[codec.Message]) error {
	e, err := codec.Decode(d.Message.Payload)
	if err != nil {
		return Discard(fmt.Errorf("decoding message %s: %w", d.Message.DeduplicationID(), err))
	}
	eventType := domain.QualifiedType(e)

	hooks, err := f.webhooks.WebhooksFor(ctx, eventType)
	if err != nil {
		return fmt.Errorf("finding webhooks for %s: %w", eventType, err)
	}
	if len(hooks) == 0 {
		return nil
	}

	payload, err := json.Marshal(d.Message)
	if err != nil {
		return Discard(fmt.Errorf("encoding %s: %w", eventType, err))
	}

	jobs := make([]DeliveryJob, 0, len(hooks))
	for _, wh := range hooks {
		jobs = append(jobs, NewDeliveryJob(d.Message.ID, wh, eventType, payload))
	}
	if err := f.publisher.PublishMany(ctx, domain.Queue(DeliveriesQueue), jobs); err != nil {
		return fmt.Errorf("queueing deliveries of %s: %w", eventType, err)
	}

	f.logger.Debug("event fanned out to webhooks",
		"message_id", d.Message.DeduplicationID(),
		"event_type", eventType,
		"webhooks", len(jobs),
	)
	return nil
}
