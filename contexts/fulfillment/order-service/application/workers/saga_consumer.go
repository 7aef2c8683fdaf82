package workers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	application "fulfillment/contexts/fulfillment/order-service/application"
	"fulfillment/contexts/fulfillment/order-service/domain/entities"
	domainerrors "fulfillment/contexts/fulfillment/order-service/domain/errors"
	"fulfillment/contexts/fulfillment/order-service/ports"
	"fulfillment/internal/platform/messaging"
	"fulfillment/internal/shared/events"
)

const (
	consumerName  = "order-service"
	sourceService = "order-service"
)

// SagaConsumer advances the Order aggregate in reaction to every downstream
// saga event. Each handler is inbox-wrapped. A guarded-transition rejection
// is resolved against the success-path ordering: an event the order can still
// grow into is left uncommitted for broker redelivery, everything else is
// stale and absorbed with its inbox record.
type SagaConsumer struct {
	Subscriber messaging.Subscriber
	Inbox      ports.InboxGuard
	Clock      ports.Clock
	Logger     *slog.Logger
}

func (c SagaConsumer) Start(ctx context.Context) error {
	subscriptions := map[string]messaging.Handler{
		events.TypeInventoryReserved:          c.handleInventoryReserved,
		events.TypeInventoryReservationFailed: c.handleInventoryReservationFailed,
		events.TypePaymentAuthorized:          c.handlePaymentAuthorized,
		events.TypePaymentCaptured:            c.handlePaymentCaptured,
		events.TypePaymentFailed:              c.handlePaymentFailed,
		events.TypePaymentCancelled:           c.handlePaymentCancelled,
		events.TypeShipmentCreated:            c.handleShipmentCreated,
		events.TypeShipmentDispatched:         c.handleShipmentDispatched,
		events.TypeShipmentDelivered:          c.handleShipmentDelivered,
	}
	for topic, handler := range subscriptions {
		if err := c.Subscriber.Subscribe(ctx, topic, consumerName, handler); err != nil {
			return err
		}
	}
	return nil
}

func (c SagaConsumer) handleInventoryReserved(ctx context.Context, env events.Envelope) error {
	var payload events.InventoryReserved
	if err := json.Unmarshal(env.Payload, &payload); err != nil {
		return fmt.Errorf("decode inventory.reserved payload: %w", err)
	}
	return c.transition(ctx, env, payload.OrderID, entities.StatusPending, func(order *entities.Order, now time.Time) error {
		return order.MarkInventoryReserved(now)
	})
}

func (c SagaConsumer) handleInventoryReservationFailed(ctx context.Context, env events.Envelope) error {
	var payload events.InventoryReservationFailed
	if err := json.Unmarshal(env.Payload, &payload); err != nil {
		return fmt.Errorf("decode inventory.reservation_failed payload: %w", err)
	}
	return c.transition(ctx, env, payload.OrderID, entities.StatusPending, func(order *entities.Order, now time.Time) error {
		return order.MarkInventoryReservationFailed(payload.Reason, now)
	})
}

func (c SagaConsumer) handlePaymentAuthorized(ctx context.Context, env events.Envelope) error {
	var payload events.PaymentAuthorized
	if err := json.Unmarshal(env.Payload, &payload); err != nil {
		return fmt.Errorf("decode payment.authorized payload: %w", err)
	}
	return c.transition(ctx, env, payload.OrderID, entities.StatusInventoryReserved, func(order *entities.Order, now time.Time) error {
		return order.MarkPaymentAuthorized(now)
	})
}

func (c SagaConsumer) handlePaymentCaptured(ctx context.Context, env events.Envelope) error {
	var payload events.PaymentCaptured
	if err := json.Unmarshal(env.Payload, &payload); err != nil {
		return fmt.Errorf("decode payment.captured payload: %w", err)
	}
	return c.transition(ctx, env, payload.OrderID, entities.StatusPaymentAuthorized, func(order *entities.Order, now time.Time) error {
		return order.MarkPaymentCaptured(now)
	})
}

// handlePaymentFailed is the compensation trigger: besides moving the order to
// its terminal payment_failed status it enqueues inventory.release_requested
// carrying the order's line items, in the same transaction.
func (c SagaConsumer) handlePaymentFailed(ctx context.Context, env events.Envelope) error {
	logger := application.ResolveLogger(c.Logger)
	var payload events.PaymentFailed
	if err := json.Unmarshal(env.Payload, &payload); err != nil {
		return fmt.Errorf("decode payment.failed payload: %w", err)
	}

	now := c.now()
	return c.Inbox.ProcessOnce(ctx, consumerName, env, now, func(ctx context.Context, store ports.SagaStore) error {
		order, err := store.GetOrder(ctx, payload.OrderID)
		if err != nil {
			return err
		}
		if err := order.MarkPaymentFailed(payload.Reason, now); err != nil {
			if errors.Is(err, domainerrors.ErrInvalidStateTransition) {
				c.logIgnored(logger, env, order)
				return nil
			}
			return err
		}
		if err := store.SaveOrder(ctx, order); err != nil {
			return err
		}

		lines := make([]events.OrderLine, 0, len(order.Items))
		for _, item := range order.Items {
			lines = append(lines, events.OrderLine{
				ProductID: item.ProductID,
				Quantity:  item.Quantity,
				UnitPrice: item.UnitPrice,
			})
		}
		release, err := events.Follow(env, events.TypeInventoryReleaseRequested, sourceService, now, events.InventoryReleaseRequested{
			OrderID: order.OrderID,
			Items:   lines,
		})
		if err != nil {
			return err
		}
		if err := store.AppendOutbox(ctx, release); err != nil {
			return err
		}

		logger.Info("compensation requested",
			"event", "order_inventory_release_requested",
			"module", "fulfillment/order-service",
			"layer", "worker",
			"order_id", order.OrderID,
			"correlation_id", env.CorrelationID,
			"causation_id", env.MessageID,
		)
		return nil
	})
}

// handlePaymentCancelled closes the order and, when stock was already held at
// cancellation time, enqueues inventory.release_requested in the same
// transaction. Cancelling before the reservation landed has nothing to
// release, and the payment_failed path sent its release already.
func (c SagaConsumer) handlePaymentCancelled(ctx context.Context, env events.Envelope) error {
	logger := application.ResolveLogger(c.Logger)
	var payload events.PaymentCancelled
	if err := json.Unmarshal(env.Payload, &payload); err != nil {
		return fmt.Errorf("decode payment.cancelled payload: %w", err)
	}

	now := c.now()
	return c.Inbox.ProcessOnce(ctx, consumerName, env, now, func(ctx context.Context, store ports.SagaStore) error {
		order, err := store.GetOrder(ctx, payload.OrderID)
		if err != nil {
			return err
		}
		holdsStock := order.Status == entities.StatusInventoryReserved ||
			order.Status == entities.StatusPaymentAuthorized
		if err := order.Cancel(payload.Reason, now); err != nil {
			if errors.Is(err, domainerrors.ErrInvalidStateTransition) {
				c.logIgnored(logger, env, order)
				return nil
			}
			return err
		}
		if err := store.SaveOrder(ctx, order); err != nil {
			return err
		}

		if holdsStock {
			lines := make([]events.OrderLine, 0, len(order.Items))
			for _, item := range order.Items {
				lines = append(lines, events.OrderLine{
					ProductID: item.ProductID,
					Quantity:  item.Quantity,
					UnitPrice: item.UnitPrice,
				})
			}
			release, err := events.Follow(env, events.TypeInventoryReleaseRequested, sourceService, now, events.InventoryReleaseRequested{
				OrderID: order.OrderID,
				Items:   lines,
			})
			if err != nil {
				return err
			}
			if err := store.AppendOutbox(ctx, release); err != nil {
				return err
			}
			logger.Info("compensation requested",
				"event", "order_inventory_release_requested",
				"module", "fulfillment/order-service",
				"layer", "worker",
				"order_id", order.OrderID,
				"correlation_id", env.CorrelationID,
				"causation_id", env.MessageID,
			)
		}

		logger.Info("order cancelled",
			"event", "order_cancelled",
			"module", "fulfillment/order-service",
			"layer", "worker",
			"order_id", order.OrderID,
			"reason", payload.Reason,
			"message_id", env.MessageID,
		)
		return nil
	})
}

func (c SagaConsumer) handleShipmentCreated(ctx context.Context, env events.Envelope) error {
	var payload events.ShipmentCreated
	if err := json.Unmarshal(env.Payload, &payload); err != nil {
		return fmt.Errorf("decode shipment.created payload: %w", err)
	}
	return c.transition(ctx, env, payload.OrderID, entities.StatusPaymentCaptured, func(order *entities.Order, now time.Time) error {
		return order.MarkShipmentCreated(now)
	})
}

func (c SagaConsumer) handleShipmentDispatched(ctx context.Context, env events.Envelope) error {
	var payload events.ShipmentDispatched
	if err := json.Unmarshal(env.Payload, &payload); err != nil {
		return fmt.Errorf("decode shipment.dispatched payload: %w", err)
	}
	return c.transition(ctx, env, payload.OrderID, entities.StatusShipmentCreated, func(order *entities.Order, now time.Time) error {
		return order.MarkShipmentDispatched(now)
	})
}

func (c SagaConsumer) handleShipmentDelivered(ctx context.Context, env events.Envelope) error {
	var payload events.ShipmentDelivered
	if err := json.Unmarshal(env.Payload, &payload); err != nil {
		return fmt.Errorf("decode shipment.delivered payload: %w", err)
	}
	return c.transition(ctx, env, payload.OrderID, entities.StatusShipmentDispatched, func(order *entities.Order, now time.Time) error {
		return order.MarkDelivered(now)
	})
}

func (c SagaConsumer) transition(
	ctx context.Context,
	env events.Envelope,
	orderID string,
	requires entities.Status,
	apply func(order *entities.Order, now time.Time) error,
) error {
	logger := application.ResolveLogger(c.Logger)
	if orderID == "" {
		return fmt.Errorf("event %s missing order_id", env.EventType)
	}

	now := c.now()
	return c.Inbox.ProcessOnce(ctx, consumerName, env, now, func(ctx context.Context, store ports.SagaStore) error {
		order, err := store.GetOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if err := apply(&order, now); err != nil {
			if errors.Is(err, domainerrors.ErrInvalidStateTransition) {
				if premature(order.Status, requires) {
					return fmt.Errorf("order %s not ready for %s (status %s)", order.OrderID, env.EventType, order.Status)
				}
				c.logIgnored(logger, env, order)
				return nil
			}
			return err
		}
		if err := store.SaveOrder(ctx, order); err != nil {
			return err
		}

		logger.Info("order advanced",
			"event", "order_status_advanced",
			"module", "fulfillment/order-service",
			"layer", "worker",
			"order_id", order.OrderID,
			"status", order.Status,
			"event_type", env.EventType,
			"message_id", env.MessageID,
		)
		return nil
	})
}

// happyRank orders the non-terminal statuses along the success path. Failure
// and cancellation statuses are absent on purpose: once the order reached one
// of them it never grows into a later precondition.
var happyRank = map[entities.Status]int{
	entities.StatusPending:            0,
	entities.StatusInventoryReserved:  1,
	entities.StatusPaymentAuthorized:  2,
	entities.StatusPaymentCaptured:    3,
	entities.StatusShipmentCreated:    4,
	entities.StatusShipmentDispatched: 5,
	entities.StatusDelivered:          6,
}

// premature reports whether the order can still reach the status the event
// requires. Two services consuming the same upstream event race each other,
// so a follow-up event may arrive here before its predecessor was applied.
// Rejecting the handler leaves the inbox unmarked and redelivery retries the
// event once the predecessor has landed.
func premature(current, requires entities.Status) bool {
	cur, ok := happyRank[current]
	if !ok {
		return false
	}
	return cur < happyRank[requires]
}

func (c SagaConsumer) logIgnored(logger *slog.Logger, env events.Envelope, order entities.Order) {
	logger.Debug("event ignored by guarded transition",
		"event", "order_transition_ignored",
		"module", "fulfillment/order-service",
		"layer", "worker",
		"order_id", order.OrderID,
		"status", order.Status,
		"event_type", env.EventType,
		"message_id", env.MessageID,
	)
}

func (c SagaConsumer) now() time.Time {
	if c.Clock == nil {
		return time.Now().UTC()
	}
	return c.Clock.Now().UTC()
}
