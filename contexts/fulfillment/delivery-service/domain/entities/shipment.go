package entities

import (
	"strings"
	"time"

	domainerrors "fulfillment/contexts/fulfillment/delivery-service/domain/errors"
)

type Status string

const (
	StatusCreated       Status = "created"
	StatusLabelBooked   Status = "label_booked"
	StatusBookingFailed Status = "booking_failed"
	StatusDispatched    Status = "dispatched"
	StatusInTransit     Status = "in_transit"
	StatusDelivered     Status = "delivered"
)

// ShipmentItem mirrors the order line it ships; prices stay out of the
// delivery context.
type ShipmentItem struct {
	ProductID string
	Quantity  int
}

// Shipment tracks one order's delivery from label booking to the doorstep.
// Carrier and tracking number are set by the booking step and never change
// afterwards. Transition methods are guards: they either advance the status
// or report ErrInvalidStateTransition, which consumers treat as the expected
// shape of a duplicate or out-of-order delivery.
type Shipment struct {
	ShipmentID     string
	OrderID        string
	Address        string
	Items          []ShipmentItem
	Carrier        string
	TrackingNumber string
	Status         Status
	FailureReason  string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func NewShipment(shipmentID, orderID, address string, items []ShipmentItem, createdAt time.Time) (Shipment, error) {
	if strings.TrimSpace(shipmentID) == "" ||
		strings.TrimSpace(orderID) == "" ||
		strings.TrimSpace(address) == "" {
		return Shipment{}, domainerrors.ErrInvalidShipmentInput
	}
	if len(items) == 0 {
		return Shipment{}, domainerrors.ErrInvalidShipmentInput
	}
	for _, item := range items {
		if strings.TrimSpace(item.ProductID) == "" || item.Quantity <= 0 {
			return Shipment{}, domainerrors.ErrInvalidShipmentInput
		}
	}

	return Shipment{
		ShipmentID: shipmentID,
		OrderID:    orderID,
		Address:    address,
		Items:      append([]ShipmentItem(nil), items...),
		Status:     StatusCreated,
		CreatedAt:  createdAt.UTC(),
		UpdatedAt:  createdAt.UTC(),
	}, nil
}

func (s *Shipment) MarkLabelBooked(carrier, trackingNumber string, now time.Time) error {
	if s.Status != StatusCreated {
		return domainerrors.ErrInvalidStateTransition
	}
	if strings.TrimSpace(carrier) == "" || strings.TrimSpace(trackingNumber) == "" {
		return domainerrors.ErrInvalidShipmentInput
	}
	s.Carrier = carrier
	s.TrackingNumber = trackingNumber
	s.advance(StatusLabelBooked, "", now)
	return nil
}

func (s *Shipment) MarkBookingFailed(reason string, now time.Time) error {
	if s.Status != StatusCreated {
		return domainerrors.ErrInvalidStateTransition
	}
	s.advance(StatusBookingFailed, reason, now)
	return nil
}

func (s *Shipment) MarkDispatched(now time.Time) error {
	if s.Status != StatusLabelBooked {
		return domainerrors.ErrInvalidStateTransition
	}
	s.advance(StatusDispatched, "", now)
	return nil
}

func (s *Shipment) MarkInTransit(now time.Time) error {
	if s.Status != StatusDispatched {
		return domainerrors.ErrInvalidStateTransition
	}
	s.advance(StatusInTransit, "", now)
	return nil
}

// MarkDelivered accepts both dispatched and in-transit shipments: carriers do
// not always report the in-transit scan before the delivery scan.
func (s *Shipment) MarkDelivered(now time.Time) error {
	if s.Status != StatusDispatched && s.Status != StatusInTransit {
		return domainerrors.ErrInvalidStateTransition
	}
	s.advance(StatusDelivered, "", now)
	return nil
}

func (s *Shipment) advance(status Status, reason string, now time.Time) {
	s.Status = status
	s.FailureReason = reason
	s.UpdatedAt = now.UTC()
}
