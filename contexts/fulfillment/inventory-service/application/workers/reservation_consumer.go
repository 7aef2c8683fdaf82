package workers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	application "fulfillment/contexts/fulfillment/inventory-service/application"
	"fulfillment/contexts/fulfillment/inventory-service/domain/entities"
	domainerrors "fulfillment/contexts/fulfillment/inventory-service/domain/errors"
	"fulfillment/contexts/fulfillment/inventory-service/ports"
	"fulfillment/internal/platform/messaging"
	"fulfillment/internal/shared/events"
)

const (
	consumerName  = "inventory-service"
	sourceService = "inventory-service"
)

// ReservationConsumer reacts to order.created with an all-or-nothing batch
// reservation and to inventory.release_requested with the compensating
// increase. Both handlers are inbox-wrapped; the reservation stages every
// decrease in memory and persists only when the whole batch succeeded, so a
// partial failure leaves no item touched.
type ReservationConsumer struct {
	Subscriber messaging.Subscriber
	Inbox      ports.InboxGuard
	Clock      ports.Clock
	Logger     *slog.Logger
}

func (c ReservationConsumer) Start(ctx context.Context) error {
	if err := c.Subscriber.Subscribe(ctx, events.TypeOrderCreated, consumerName, c.handleOrderCreated); err != nil {
		return err
	}
	return c.Subscriber.Subscribe(ctx, events.TypeInventoryReleaseRequested, consumerName, c.handleReleaseRequested)
}

func (c ReservationConsumer) handleOrderCreated(ctx context.Context, env events.Envelope) error {
	logger := application.ResolveLogger(c.Logger)
	var payload events.OrderCreated
	if err := json.Unmarshal(env.Payload, &payload); err != nil {
		return fmt.Errorf("decode order.created payload: %w", err)
	}
	if payload.OrderID == "" || len(payload.Items) == 0 {
		return fmt.Errorf("order.created payload missing order_id or items")
	}

	now := c.now()
	return c.Inbox.ProcessOnce(ctx, consumerName, env, now, func(ctx context.Context, store ports.SagaStore) error {
		// Orders may name the same product on several lines. Quantities are
		// collapsed per product first so each item is loaded and decreased
		// exactly once; decreasing per line would check every line against
		// the original on-hand value.
		products := make([]string, 0, len(payload.Items))
		quantities := make(map[string]int, len(payload.Items))
		var total float64
		for _, line := range payload.Items {
			if _, seen := quantities[line.ProductID]; !seen {
				products = append(products, line.ProductID)
			}
			quantities[line.ProductID] += line.Quantity
			total += float64(line.Quantity) * line.UnitPrice
		}

		reserved := make([]entities.InventoryItem, 0, len(products))
		for _, productID := range products {
			item, err := store.GetItemByProduct(ctx, productID)
			if errors.Is(err, domainerrors.ErrItemNotFound) {
				return c.rejectReservation(ctx, store, env, payload.OrderID, now,
					fmt.Sprintf("unknown product %s", productID), logger)
			}
			if err != nil {
				return err
			}
			if err := item.Decrease(quantities[productID], now); err != nil {
				if errors.Is(err, domainerrors.ErrInsufficientStock) || errors.Is(err, domainerrors.ErrInvalidQuantity) {
					return c.rejectReservation(ctx, store, env, payload.OrderID, now,
						fmt.Sprintf("product %s: %s", productID, err.Error()), logger)
				}
				return err
			}
			reserved = append(reserved, item)
		}

		for _, item := range reserved {
			if err := store.SaveItem(ctx, item); err != nil {
				return err
			}
		}

		next, err := events.Follow(env, events.TypeInventoryReserved, sourceService, now, events.InventoryReserved{
			OrderID:     payload.OrderID,
			TotalAmount: total,
			Currency:    "USD",
		})
		if err != nil {
			return err
		}
		if err := store.AppendOutbox(ctx, next); err != nil {
			return err
		}

		logger.Info("inventory reserved",
			"event", "inventory_reserved",
			"module", "fulfillment/inventory-service",
			"layer", "worker",
			"order_id", payload.OrderID,
			"items", len(payload.Items),
			"total_amount", total,
			"correlation_id", env.CorrelationID,
		)
		return nil
	})
}

// rejectReservation records the business failure branch: no decrease is
// persisted, only the inbox row and the reservation_failed event commit.
func (c ReservationConsumer) rejectReservation(
	ctx context.Context,
	store ports.SagaStore,
	env events.Envelope,
	orderID string,
	now time.Time,
	reason string,
	logger *slog.Logger,
) error {
	failed, err := events.Follow(env, events.TypeInventoryReservationFailed, sourceService, now, events.InventoryReservationFailed{
		OrderID: orderID,
		Reason:  reason,
	})
	if err != nil {
		return err
	}
	if err := store.AppendOutbox(ctx, failed); err != nil {
		return err
	}

	logger.Info("inventory reservation rejected",
		"event", "inventory_reservation_failed",
		"module", "fulfillment/inventory-service",
		"layer", "worker",
		"order_id", orderID,
		"reason", reason,
		"correlation_id", env.CorrelationID,
	)
	return nil
}

func (c ReservationConsumer) handleReleaseRequested(ctx context.Context, env events.Envelope) error {
	logger := application.ResolveLogger(c.Logger)
	var payload events.InventoryReleaseRequested
	if err := json.Unmarshal(env.Payload, &payload); err != nil {
		return fmt.Errorf("decode inventory.release_requested payload: %w", err)
	}

	now := c.now()
	return c.Inbox.ProcessOnce(ctx, consumerName, env, now, func(ctx context.Context, store ports.SagaStore) error {
		for _, line := range payload.Items {
			item, err := store.GetItemByProduct(ctx, line.ProductID)
			if errors.Is(err, domainerrors.ErrItemNotFound) {
				logger.Warn("release skipped unknown product",
					"event", "inventory_release_unknown_product",
					"module", "fulfillment/inventory-service",
					"layer", "worker",
					"order_id", payload.OrderID,
					"product_id", line.ProductID,
				)
				continue
			}
			if err != nil {
				return err
			}
			if err := item.Increase(line.Quantity, now); err != nil {
				return err
			}
			if err := store.SaveItem(ctx, item); err != nil {
				return err
			}
		}

		logger.Info("inventory released",
			"event", "inventory_released",
			"module", "fulfillment/inventory-service",
			"layer", "worker",
			"order_id", payload.OrderID,
			"items", len(payload.Items),
			"correlation_id", env.CorrelationID,
		)
		return nil
	})
}

func (c ReservationConsumer) now() time.Time {
	if c.Clock == nil {
		return time.Now().UTC()
	}
	return c.Clock.Now().UTC()
}
