package workers

import (
	"context"
	"log/slog"
	"time"

	application "fulfillment/contexts/fulfillment/order-service/application"
	"fulfillment/contexts/fulfillment/order-service/ports"
	"fulfillment/internal/platform/messaging"
)

// OutboxRelay drains the order service's pending outbox rows into the broker.
// Delivery is at-least-once: a crash between a broker accept and the
// delivered_at mark redelivers the row on the next cycle.
type OutboxRelay struct {
	Outbox    ports.OutboxRepository
	Publisher messaging.Publisher
	Clock     ports.Clock
	BatchSize int
	Logger    *slog.Logger
}

func (r OutboxRelay) RunOnce(ctx context.Context) error {
	logger := application.ResolveLogger(r.Logger)
	limit := r.BatchSize
	if limit <= 0 {
		limit = 100
	}

	pending, err := r.Outbox.ListPendingOutbox(ctx, limit)
	if err != nil {
		logger.Error("order outbox list failed",
			"event", "order_outbox_list_failed",
			"module", "fulfillment/order-service",
			"layer", "worker",
			"error", err.Error(),
		)
		return err
	}

	now := time.Now().UTC()
	if r.Clock != nil {
		now = r.Clock.Now().UTC()
	}

	for _, row := range pending {
		if err := r.Publisher.Publish(ctx, row.Envelope.EventType, row.Envelope); err != nil {
			logger.Error("order outbox publish failed",
				"event", "order_outbox_publish_failed",
				"module", "fulfillment/order-service",
				"layer", "worker",
				"outbox_id", row.ID,
				"message_id", row.Envelope.MessageID,
				"error", err.Error(),
			)
			return err
		}
		if err := r.Outbox.MarkOutboxDelivered(ctx, row.ID, now); err != nil {
			return err
		}
	}
	return nil
}
