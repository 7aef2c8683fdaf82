package entities

import (
	"errors"
	"testing"
	"time"

	domainerrors "fulfillment/contexts/fulfillment/delivery-service/domain/errors"
)

func newTestShipment(t *testing.T) Shipment {
	t.Helper()
	shipment, err := NewShipment("shipment-1", "order-1", "12 Harbor Lane, Rotterdam", []ShipmentItem{
		{ProductID: "sku-a", Quantity: 2},
	}, time.Now())
	if err != nil {
		t.Fatalf("new shipment: %v", err)
	}
	return shipment
}

func TestShipmentBookingSetsCarrierOnce(t *testing.T) {
	shipment := newTestShipment(t)
	now := time.Now()

	if err := shipment.MarkLabelBooked("ACME-EXPRESS", "TRK-1", now); err != nil {
		t.Fatalf("book: %v", err)
	}
	if shipment.Carrier != "ACME-EXPRESS" || shipment.TrackingNumber != "TRK-1" {
		t.Fatalf("expected carrier details set, got %s/%s", shipment.Carrier, shipment.TrackingNumber)
	}
	if err := shipment.MarkLabelBooked("OTHER", "TRK-2", now); !errors.Is(err, domainerrors.ErrInvalidStateTransition) {
		t.Fatalf("double booking must be rejected, got %v", err)
	}
	if shipment.Carrier != "ACME-EXPRESS" {
		t.Fatalf("rejected booking must not mutate carrier, got %s", shipment.Carrier)
	}
}

func TestShipmentBookingFailure(t *testing.T) {
	shipment := newTestShipment(t)
	now := time.Now()

	if err := shipment.MarkBookingFailed("address unserviceable", now); err != nil {
		t.Fatalf("booking failed: %v", err)
	}
	if shipment.Status != StatusBookingFailed || shipment.FailureReason != "address unserviceable" {
		t.Fatalf("expected booking_failed with reason, got %s/%q", shipment.Status, shipment.FailureReason)
	}
	if err := shipment.MarkDispatched(now); !errors.Is(err, domainerrors.ErrInvalidStateTransition) {
		t.Fatalf("dispatch after failed booking must be rejected, got %v", err)
	}
}

func TestShipmentProgressionToDelivered(t *testing.T) {
	shipment := newTestShipment(t)
	now := time.Now()

	if err := shipment.MarkDispatched(now); !errors.Is(err, domainerrors.ErrInvalidStateTransition) {
		t.Fatalf("dispatch before booking must be rejected, got %v", err)
	}
	_ = shipment.MarkLabelBooked("ACME-EXPRESS", "TRK-1", now)
	if err := shipment.MarkDispatched(now); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if err := shipment.MarkInTransit(now); err != nil {
		t.Fatalf("in transit: %v", err)
	}
	if err := shipment.MarkDelivered(now); err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if shipment.Status != StatusDelivered {
		t.Fatalf("expected delivered, got %s", shipment.Status)
	}
}

func TestShipmentDeliveredDirectlyFromDispatched(t *testing.T) {
	shipment := newTestShipment(t)
	now := time.Now()

	_ = shipment.MarkLabelBooked("ACME-EXPRESS", "TRK-1", now)
	_ = shipment.MarkDispatched(now)
	// Carriers sometimes skip the in-transit scan.
	if err := shipment.MarkDelivered(now); err != nil {
		t.Fatalf("deliver from dispatched: %v", err)
	}
}

func TestNewShipmentValidation(t *testing.T) {
	now := time.Now()
	if _, err := NewShipment("shipment-1", "order-1", "", []ShipmentItem{{ProductID: "sku-a", Quantity: 1}}, now); !errors.Is(err, domainerrors.ErrInvalidShipmentInput) {
		t.Fatalf("expected ErrInvalidShipmentInput for empty address, got %v", err)
	}
	if _, err := NewShipment("shipment-1", "order-1", "addr", nil, now); !errors.Is(err, domainerrors.ErrInvalidShipmentInput) {
		t.Fatalf("expected ErrInvalidShipmentInput for no items, got %v", err)
	}
	if _, err := NewShipment("shipment-1", "order-1", "addr", []ShipmentItem{{ProductID: "sku-a", Quantity: 0}}, now); !errors.Is(err, domainerrors.ErrInvalidShipmentInput) {
		t.Fatalf("expected ErrInvalidShipmentInput for zero quantity, got %v", err)
	}
}
