package workers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	application "fulfillment/contexts/fulfillment/delivery-service/application"
	"fulfillment/contexts/fulfillment/delivery-service/domain/entities"
	domainerrors "fulfillment/contexts/fulfillment/delivery-service/domain/errors"
	"fulfillment/contexts/fulfillment/delivery-service/ports"
	"fulfillment/internal/platform/messaging"
	"fulfillment/internal/shared/events"
)

const (
	consumerName  = "delivery-service"
	sourceService = "delivery-service"
)

// ShipmentConsumer runs the delivery side of the saga. payment.captured
// creates the shipment; the service's own shipment.created subscription then
// books the carrier label, so the synchronous carrier call never shares a
// handler with the order-details read.
type ShipmentConsumer struct {
	Subscriber  messaging.Subscriber
	Inbox       ports.InboxGuard
	Orders      ports.OrderDetailsReader
	Carrier     ports.CarrierClient
	Clock       ports.Clock
	IDGenerator ports.IDGenerator
	Logger      *slog.Logger
}

func (c ShipmentConsumer) Start(ctx context.Context) error {
	subscriptions := map[string]messaging.Handler{
		events.TypePaymentCaptured: c.handlePaymentCaptured,
		events.TypeShipmentCreated: c.handleShipmentCreated,
	}
	for topic, handler := range subscriptions {
		if err := c.Subscriber.Subscribe(ctx, topic, consumerName, handler); err != nil {
			return err
		}
	}
	return nil
}

func (c ShipmentConsumer) handlePaymentCaptured(ctx context.Context, env events.Envelope) error {
	logger := application.ResolveLogger(c.Logger)
	var payload events.PaymentCaptured
	if err := json.Unmarshal(env.Payload, &payload); err != nil {
		return fmt.Errorf("decode payment.captured payload: %w", err)
	}
	if payload.OrderID == "" {
		return fmt.Errorf("payment.captured payload missing order_id")
	}

	// The event is thin on purpose; address and lines come from the order
	// service. Fetched before the inbox transaction so the read never holds
	// the transaction open.
	details, err := c.Orders.GetOrderDetails(ctx, payload.OrderID)
	if err != nil {
		return fmt.Errorf("read order details for %s: %w", payload.OrderID, err)
	}

	now := c.now()
	return c.Inbox.ProcessOnce(ctx, consumerName, env, now, func(ctx context.Context, store ports.SagaStore) error {
		shipmentID, err := c.IDGenerator.NewID(ctx)
		if err != nil {
			return err
		}
		shipment, err := entities.NewShipment(shipmentID, details.OrderID, details.ShippingAddress, details.Items, now)
		if err != nil {
			return err
		}

		lines := make([]events.OrderLine, 0, len(shipment.Items))
		for _, item := range shipment.Items {
			lines = append(lines, events.OrderLine{ProductID: item.ProductID, Quantity: item.Quantity})
		}
		createdEnv, err := events.Follow(env, events.TypeShipmentCreated, sourceService, now, events.ShipmentCreated{
			OrderID:    shipment.OrderID,
			ShipmentID: shipment.ShipmentID,
			Address:    shipment.Address,
			Items:      lines,
		})
		if err != nil {
			return err
		}

		if err := store.CreateShipment(ctx, shipment); err != nil {
			return err
		}
		if err := store.AppendOutbox(ctx, createdEnv); err != nil {
			return err
		}

		logger.Info("shipment created",
			"event", "shipment_created",
			"module", "fulfillment/delivery-service",
			"layer", "worker",
			"shipment_id", shipment.ShipmentID,
			"order_id", shipment.OrderID,
			"correlation_id", env.CorrelationID,
		)
		return nil
	})
}

func (c ShipmentConsumer) handleShipmentCreated(ctx context.Context, env events.Envelope) error {
	logger := application.ResolveLogger(c.Logger)
	var payload events.ShipmentCreated
	if err := json.Unmarshal(env.Payload, &payload); err != nil {
		return fmt.Errorf("decode shipment.created payload: %w", err)
	}
	if payload.ShipmentID == "" {
		return fmt.Errorf("shipment.created payload missing shipment_id")
	}

	now := c.now()
	return c.Inbox.ProcessOnce(ctx, consumerName, env, now, func(ctx context.Context, store ports.SagaStore) error {
		shipment, err := store.GetShipment(ctx, payload.ShipmentID)
		if err != nil {
			return err
		}
		if shipment.Status != entities.StatusCreated {
			c.logIgnored(logger, env, shipment)
			return nil
		}

		result, err := c.Carrier.BookLabel(ctx, ports.BookingRequest{
			ShipmentID: shipment.ShipmentID,
			OrderID:    shipment.OrderID,
			Address:    shipment.Address,
			Items:      shipment.Items,
		})
		if err != nil {
			return fmt.Errorf("book label via carrier: %w", err)
		}

		if !result.Booked {
			if err := shipment.MarkBookingFailed(result.Reason, now); err != nil {
				return err
			}
			failedEnv, err := events.Follow(env, events.TypeShipmentBookingFailed, sourceService, now, events.ShipmentBookingFailed{
				OrderID:    shipment.OrderID,
				ShipmentID: shipment.ShipmentID,
				Reason:     result.Reason,
			})
			if err != nil {
				return err
			}
			if err := store.SaveShipment(ctx, shipment); err != nil {
				return err
			}
			if err := store.AppendOutbox(ctx, failedEnv); err != nil {
				return err
			}

			logger.Info("label booking rejected",
				"event", "shipment_booking_failed",
				"module", "fulfillment/delivery-service",
				"layer", "worker",
				"shipment_id", shipment.ShipmentID,
				"order_id", shipment.OrderID,
				"reason", result.Reason,
			)
			return nil
		}

		if err := shipment.MarkLabelBooked(result.Carrier, result.TrackingNumber, now); err != nil {
			if errors.Is(err, domainerrors.ErrInvalidStateTransition) {
				c.logIgnored(logger, env, shipment)
				return nil
			}
			return err
		}
		bookedEnv, err := events.Follow(env, events.TypeShipmentBooked, sourceService, now, events.ShipmentBooked{
			OrderID:        shipment.OrderID,
			ShipmentID:     shipment.ShipmentID,
			Carrier:        result.Carrier,
			TrackingNumber: result.TrackingNumber,
		})
		if err != nil {
			return err
		}
		if err := store.SaveShipment(ctx, shipment); err != nil {
			return err
		}
		if err := store.AppendOutbox(ctx, bookedEnv); err != nil {
			return err
		}

		logger.Info("label booked",
			"event", "shipment_label_booked",
			"module", "fulfillment/delivery-service",
			"layer", "worker",
			"shipment_id", shipment.ShipmentID,
			"order_id", shipment.OrderID,
			"carrier", result.Carrier,
			"tracking_number", result.TrackingNumber,
		)
		return nil
	})
}

func (c ShipmentConsumer) logIgnored(logger *slog.Logger, env events.Envelope, shipment entities.Shipment) {
	logger.Info("event ignored by shipment state guard",
		"event", "shipment_transition_ignored",
		"module", "fulfillment/delivery-service",
		"layer", "worker",
		"shipment_id", shipment.ShipmentID,
		"status", shipment.Status,
		"event_type", env.EventType,
		"message_id", env.MessageID,
	)
}

func (c ShipmentConsumer) now() time.Time {
	if c.Clock == nil {
		return time.Now().UTC()
	}
	return c.Clock.Now().UTC()
}
