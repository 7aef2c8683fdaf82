package entities

import (
	"errors"
	"testing"
	"time"

	domainerrors "fulfillment/contexts/fulfillment/order-service/domain/errors"
)

func newTestOrder(t *testing.T) Order {
	t.Helper()
	order, err := NewOrder("order-1", "customer-1", "12 Harbor Lane, Rotterdam", "EUR", []LineItem{
		{ProductID: "sku-a", Quantity: 2, UnitPrice: 10.5},
		{ProductID: "sku-b", Quantity: 1, UnitPrice: 4},
	}, time.Now())
	if err != nil {
		t.Fatalf("new order: %v", err)
	}
	return order
}

func TestNewOrderComputesTotal(t *testing.T) {
	order := newTestOrder(t)
	if order.TotalAmount != 25 {
		t.Fatalf("expected total 25, got %v", order.TotalAmount)
	}
	if order.Status != StatusPending {
		t.Fatalf("expected pending, got %s", order.Status)
	}
}

func TestNewOrderRejectsBadInput(t *testing.T) {
	now := time.Now()
	cases := []struct {
		name  string
		items []LineItem
	}{
		{"no items", nil},
		{"zero quantity", []LineItem{{ProductID: "sku-a", Quantity: 0, UnitPrice: 1}}},
		{"negative price", []LineItem{{ProductID: "sku-a", Quantity: 1, UnitPrice: -1}}},
		{"blank product", []LineItem{{ProductID: " ", Quantity: 1, UnitPrice: 1}}},
	}
	for _, tc := range cases {
		if _, err := NewOrder("order-1", "customer-1", "addr", "EUR", tc.items, now); !errors.Is(err, domainerrors.ErrInvalidOrderInput) {
			t.Fatalf("%s: expected ErrInvalidOrderInput, got %v", tc.name, err)
		}
	}
	if _, err := NewOrder("order-1", "", "addr", "EUR", []LineItem{{ProductID: "sku-a", Quantity: 1, UnitPrice: 1}}, now); !errors.Is(err, domainerrors.ErrInvalidOrderInput) {
		t.Fatalf("expected ErrInvalidOrderInput for blank customer, got %v", err)
	}
}

func TestOrderHappyPathTransitions(t *testing.T) {
	order := newTestOrder(t)
	now := time.Now()

	steps := []struct {
		name   string
		apply  func() error
		status Status
	}{
		{"reserve", func() error { return order.MarkInventoryReserved(now) }, StatusInventoryReserved},
		{"authorize", func() error { return order.MarkPaymentAuthorized(now) }, StatusPaymentAuthorized},
		{"capture", func() error { return order.MarkPaymentCaptured(now) }, StatusPaymentCaptured},
		{"ship", func() error { return order.MarkShipmentCreated(now) }, StatusShipmentCreated},
		{"dispatch", func() error { return order.MarkShipmentDispatched(now) }, StatusShipmentDispatched},
		{"deliver", func() error { return order.MarkDelivered(now) }, StatusDelivered},
	}
	for _, step := range steps {
		if err := step.apply(); err != nil {
			t.Fatalf("%s: %v", step.name, err)
		}
		if order.Status != step.status {
			t.Fatalf("%s: expected %s, got %s", step.name, step.status, order.Status)
		}
	}
}

func TestOrderGuardsRejectOutOfOrderEvents(t *testing.T) {
	order := newTestOrder(t)
	now := time.Now()

	if err := order.MarkPaymentAuthorized(now); !errors.Is(err, domainerrors.ErrInvalidStateTransition) {
		t.Fatalf("authorize before reserve must be rejected, got %v", err)
	}
	if err := order.MarkDelivered(now); !errors.Is(err, domainerrors.ErrInvalidStateTransition) {
		t.Fatalf("deliver from pending must be rejected, got %v", err)
	}

	if err := order.MarkInventoryReserved(now); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	// A duplicate of the same event is the common redelivery case.
	if err := order.MarkInventoryReserved(now); !errors.Is(err, domainerrors.ErrInvalidStateTransition) {
		t.Fatalf("duplicate reserve must be rejected, got %v", err)
	}
}

func TestOrderFailureReasons(t *testing.T) {
	order := newTestOrder(t)
	now := time.Now()

	if err := order.MarkInventoryReservationFailed("insufficient stock", now); err != nil {
		t.Fatalf("reservation failed: %v", err)
	}
	if order.Status != StatusInventoryReservationFailed || order.FailureReason != "insufficient stock" {
		t.Fatalf("expected failure recorded, got %s / %q", order.Status, order.FailureReason)
	}

	declined := newTestOrder(t)
	if err := declined.MarkInventoryReserved(now); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if err := declined.MarkPaymentFailed("card_declined", now); err != nil {
		t.Fatalf("payment failed: %v", err)
	}
	if declined.Status != StatusPaymentFailed || declined.FailureReason != "card_declined" {
		t.Fatalf("expected payment failure recorded, got %s / %q", declined.Status, declined.FailureReason)
	}
}

func TestOrderCancelPaths(t *testing.T) {
	now := time.Now()

	pending := newTestOrder(t)
	if err := pending.Cancel("customer request", now); err != nil {
		t.Fatalf("cancel pending: %v", err)
	}
	if pending.Status != StatusCancelled {
		t.Fatalf("expected cancelled, got %s", pending.Status)
	}

	authorized := newTestOrder(t)
	_ = authorized.MarkInventoryReserved(now)
	_ = authorized.MarkPaymentAuthorized(now)
	if err := authorized.Cancel("customer request", now); err != nil {
		t.Fatalf("cancel authorized: %v", err)
	}
	if authorized.Status != StatusCancelled {
		t.Fatalf("expected cancelled, got %s", authorized.Status)
	}

	captured := newTestOrder(t)
	_ = captured.MarkInventoryReserved(now)
	_ = captured.MarkPaymentAuthorized(now)
	_ = captured.MarkPaymentCaptured(now)
	if err := captured.Cancel("too late", now); !errors.Is(err, domainerrors.ErrInvalidStateTransition) {
		t.Fatalf("cancel after capture must be rejected, got %v", err)
	}
}
