package workers

import (
	"context"
	"log/slog"
	"time"

	application "fulfillment/contexts/fulfillment/inventory-service/application"
	"fulfillment/contexts/fulfillment/inventory-service/ports"
	"fulfillment/internal/platform/messaging"
)

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
		logger.Error("inventory outbox list failed",
			"event", "inventory_outbox_list_failed",
			"module", "fulfillment/inventory-service",
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
			logger.Error("inventory outbox publish failed",
				"event", "inventory_outbox_publish_failed",
				"module", "fulfillment/inventory-service",
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
