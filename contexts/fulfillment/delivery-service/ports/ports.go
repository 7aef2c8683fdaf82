package ports

import (
	"context"
	"time"

	"fulfillment/contexts/fulfillment/delivery-service/domain/entities"
	"fulfillment/internal/shared/events"
)

// BookingRequest is the carrier label booking input.
type BookingRequest struct {
	ShipmentID string
	OrderID    string
	Address    string
	Items      []entities.ShipmentItem
}

// BookingResult is the carrier outcome. Rejections are results, not errors:
// only transport failures surface as Go errors, so retry and circuit-breaker
// policies never act on a business rejection.
type BookingResult struct {
	Booked         bool
	Carrier        string
	TrackingNumber string
	Reason         string
}

// CarrierClient is the external carrier contract.
type CarrierClient interface {
	BookLabel(ctx context.Context, req BookingRequest) (BookingResult, error)
}

// OrderDetails is the slice of the order the delivery context needs. The
// payment.captured event stays thin; the rest is fetched synchronously.
type OrderDetails struct {
	OrderID         string
	CustomerID      string
	ShippingAddress string
	Items           []entities.ShipmentItem
}

type OrderDetailsReader interface {
	GetOrderDetails(ctx context.Context, orderID string) (OrderDetails, error)
}

// ShipmentRepository serves the command-side reads and writes.
type ShipmentRepository interface {
	GetShipment(ctx context.Context, shipmentID string) (entities.Shipment, error)
	GetShipmentByOrder(ctx context.Context, orderID string) (entities.Shipment, error)
	// SaveShipmentWithOutbox must atomically persist the shipment's new state
	// and the outbox envelopes.
	SaveShipmentWithOutbox(ctx context.Context, shipment entities.Shipment, envs []events.Envelope) error
}

// SagaStore is the transaction-scoped view the consumer handlers work against
// inside the inbox guard.
type SagaStore interface {
	CreateShipment(ctx context.Context, shipment entities.Shipment) error
	GetShipment(ctx context.Context, shipmentID string) (entities.Shipment, error)
	SaveShipment(ctx context.Context, shipment entities.Shipment) error
	AppendOutbox(ctx context.Context, env events.Envelope) error
}

type InboxGuard interface {
	ProcessOnce(
		ctx context.Context,
		consumerName string,
		env events.Envelope,
		now time.Time,
		fn func(ctx context.Context, store SagaStore) error,
	) error
}

type OutboxMessage struct {
	ID       int64
	Envelope events.Envelope
}

type OutboxRepository interface {
	ListPendingOutbox(ctx context.Context, limit int) ([]OutboxMessage, error)
	MarkOutboxDelivered(ctx context.Context, id int64, deliveredAt time.Time) error
}

type Clock interface {
	Now() time.Time
}

type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}
