package workers

import (
	"context"
	"log/slog"
	"time"

	application "fulfillment/contexts/fulfillment/delivery-service/application"
	"fulfillment/contexts/fulfillment/delivery-service/ports"
	"fulfillment/internal/platform/messaging"
)

// OutboxRelay drains the delivery service's pending outbox rows into the
// broker. Delivery is at-least-once; consumers dedupe through their inbox.
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
		logger.Error("shipment outbox list failed",
			"event", "shipment_outbox_list_failed",
			"module", "fulfillment/delivery-service",
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
			logger.Error("shipment outbox publish failed",
				"event", "shipment_outbox_publish_failed",
				"module", "fulfillment/delivery-service",
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
