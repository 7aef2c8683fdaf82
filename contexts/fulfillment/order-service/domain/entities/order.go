package entities

import (
	"strings"
	"time"

	domainerrors "fulfillment/contexts/fulfillment/order-service/domain/errors"
)

type Status string

const (
	StatusPending                    Status = "pending"
	StatusInventoryReserved          Status = "inventory_reserved"
	StatusInventoryReservationFailed Status = "inventory_reservation_failed"
	StatusPaymentAuthorized          Status = "payment_authorized"
	StatusPaymentCaptured            Status = "payment_captured"
	StatusPaymentFailed              Status = "payment_failed"
	StatusShipmentCreated            Status = "shipment_created"
	StatusShipmentDispatched         Status = "shipment_dispatched"
	StatusDelivered                  Status = "delivered"
	StatusCancelled                  Status = "cancelled"
)

// LineItem is immutable once the order is created.
type LineItem struct {
	ProductID string
	Quantity  int
	UnitPrice float64
}

// Order is the saga's anchor aggregate. It is created by the place-order
// command and from then on mutated only by saga handlers reacting to
// downstream events. Every transition method is a guard: it either advances
// the status or reports ErrInvalidStateTransition, which consumers treat as
// the expected shape of a duplicate or out-of-order delivery.
type Order struct {
	OrderID         string
	CustomerID      string
	ShippingAddress string
	Items           []LineItem
	Currency        string
	TotalAmount     float64
	Status          Status
	FailureReason   string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func NewOrder(
	orderID string,
	customerID string,
	shippingAddress string,
	currency string,
	items []LineItem,
	createdAt time.Time,
) (Order, error) {
	if strings.TrimSpace(orderID) == "" ||
		strings.TrimSpace(customerID) == "" ||
		strings.TrimSpace(shippingAddress) == "" {
		return Order{}, domainerrors.ErrInvalidOrderInput
	}
	if len(items) == 0 {
		return Order{}, domainerrors.ErrInvalidOrderInput
	}

	var total float64
	for _, item := range items {
		if strings.TrimSpace(item.ProductID) == "" || item.Quantity <= 0 || item.UnitPrice < 0 {
			return Order{}, domainerrors.ErrInvalidOrderInput
		}
		total += float64(item.Quantity) * item.UnitPrice
	}
	if strings.TrimSpace(currency) == "" {
		currency = "USD"
	}

	return Order{
		OrderID:         orderID,
		CustomerID:      customerID,
		ShippingAddress: shippingAddress,
		Items:           append([]LineItem(nil), items...),
		Currency:        currency,
		TotalAmount:     total,
		Status:          StatusPending,
		CreatedAt:       createdAt.UTC(),
		UpdatedAt:       createdAt.UTC(),
	}, nil
}

func (o *Order) MarkInventoryReserved(now time.Time) error {
	if o.Status != StatusPending {
		return domainerrors.ErrInvalidStateTransition
	}
	o.advance(StatusInventoryReserved, "", now)
	return nil
}

func (o *Order) MarkInventoryReservationFailed(reason string, now time.Time) error {
	if o.Status != StatusPending {
		return domainerrors.ErrInvalidStateTransition
	}
	o.advance(StatusInventoryReservationFailed, reason, now)
	return nil
}

func (o *Order) MarkPaymentAuthorized(now time.Time) error {
	if o.Status != StatusInventoryReserved {
		return domainerrors.ErrInvalidStateTransition
	}
	o.advance(StatusPaymentAuthorized, "", now)
	return nil
}

func (o *Order) MarkPaymentCaptured(now time.Time) error {
	if o.Status != StatusPaymentAuthorized {
		return domainerrors.ErrInvalidStateTransition
	}
	o.advance(StatusPaymentCaptured, "", now)
	return nil
}

// MarkPaymentFailed accepts the failure from any pre-capture status: the
// decline may overtake the events it causally follows when chains from two
// services interleave.
func (o *Order) MarkPaymentFailed(reason string, now time.Time) error {
	switch o.Status {
	case StatusPending, StatusInventoryReserved, StatusPaymentAuthorized:
		o.advance(StatusPaymentFailed, reason, now)
		return nil
	default:
		return domainerrors.ErrInvalidStateTransition
	}
}

func (o *Order) MarkShipmentCreated(now time.Time) error {
	if o.Status != StatusPaymentCaptured {
		return domainerrors.ErrInvalidStateTransition
	}
	o.advance(StatusShipmentCreated, "", now)
	return nil
}

func (o *Order) MarkShipmentDispatched(now time.Time) error {
	if o.Status != StatusShipmentCreated {
		return domainerrors.ErrInvalidStateTransition
	}
	o.advance(StatusShipmentDispatched, "", now)
	return nil
}

func (o *Order) MarkDelivered(now time.Time) error {
	if o.Status != StatusShipmentDispatched {
		return domainerrors.ErrInvalidStateTransition
	}
	o.advance(StatusDelivered, "", now)
	return nil
}

// Cancel closes the order from any pre-capture status. Once the payment is
// captured the order only moves forward through shipment and delivery.
func (o *Order) Cancel(reason string, now time.Time) error {
	switch o.Status {
	case StatusPending, StatusInventoryReserved, StatusPaymentAuthorized, StatusInventoryReservationFailed, StatusPaymentFailed:
		o.advance(StatusCancelled, reason, now)
		return nil
	default:
		return domainerrors.ErrInvalidStateTransition
	}
}

func (o *Order) advance(status Status, reason string, now time.Time) {
	o.Status = status
	o.FailureReason = reason
	o.UpdatedAt = now.UTC()
}
