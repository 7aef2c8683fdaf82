package unit

import (
	"context"
	"testing"
	"time"

	memory "fulfillment/contexts/fulfillment/order-service/adapters/memory"
	"fulfillment/contexts/fulfillment/order-service/application/workers"
	"fulfillment/contexts/fulfillment/order-service/domain/entities"
	"fulfillment/internal/shared/events"
)

func newPendingOrder(t *testing.T, store *memory.Store, orderID string) entities.Order {
	t.Helper()
	order, err := entities.NewOrder(orderID, "customer-1", "12 Baker Street", "USD", []entities.LineItem{
		{ProductID: "sku-a", Quantity: 2, UnitPrice: 10.5},
		{ProductID: "sku-b", Quantity: 1, UnitPrice: 4},
	}, time.Now())
	if err != nil {
		t.Fatalf("build order: %v", err)
	}
	created := mustEnvelope(t, events.TypeOrderCreated, orderID, events.OrderCreated{
		OrderID:    orderID,
		CustomerID: order.CustomerID,
		Items: []events.OrderLine{
			{ProductID: "sku-a", Quantity: 2, UnitPrice: 10.5},
			{ProductID: "sku-b", Quantity: 1, UnitPrice: 4},
		},
	})
	if err := store.CreateOrderWithOutbox(context.Background(), order, created); err != nil {
		t.Fatalf("seed order: %v", err)
	}
	return order
}

func startSagaConsumer(t *testing.T, store *memory.Store) *stubSubscriber {
	t.Helper()
	sub := &stubSubscriber{}
	consumer := workers.SagaConsumer{Subscriber: sub, Inbox: store}
	if err := consumer.Start(context.Background()); err != nil {
		t.Fatalf("start consumer: %v", err)
	}
	return sub
}

func TestSagaConsumerAdvancesOrderOnInventoryReserved(t *testing.T) {
	store := memory.NewStore()
	newPendingOrder(t, store, "order-1")
	sub := startSagaConsumer(t, store)

	env := mustEnvelope(t, events.TypeInventoryReserved, "order-1", events.InventoryReserved{
		OrderID: "order-1", TotalAmount: 25, Currency: "USD",
	})
	if err := sub.handle(t, events.TypeInventoryReserved, env); err != nil {
		t.Fatalf("handle inventory.reserved: %v", err)
	}

	order, err := store.GetOrder(context.Background(), "order-1")
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if order.Status != entities.StatusInventoryReserved {
		t.Fatalf("status = %s, want %s", order.Status, entities.StatusInventoryReserved)
	}
}

func TestSagaConsumerAbsorbsDuplicateDelivery(t *testing.T) {
	store := memory.NewStore()
	newPendingOrder(t, store, "order-1")
	sub := startSagaConsumer(t, store)

	env := mustEnvelope(t, events.TypeInventoryReserved, "order-1", events.InventoryReserved{
		OrderID: "order-1", TotalAmount: 25, Currency: "USD",
	})
	for i := 0; i < 2; i++ {
		if err := sub.handle(t, events.TypeInventoryReserved, env); err != nil {
			t.Fatalf("delivery %d: %v", i+1, err)
		}
	}

	if got := store.InboxCount("order-1"); got != 1 {
		t.Fatalf("inbox rows = %d, want 1", got)
	}
	order, _ := store.GetOrder(context.Background(), "order-1")
	if order.Status != entities.StatusInventoryReserved {
		t.Fatalf("status = %s after duplicate, want %s", order.Status, entities.StatusInventoryReserved)
	}
}

func TestSagaConsumerLeavesPrematureEventForRedelivery(t *testing.T) {
	store := memory.NewStore()
	newPendingOrder(t, store, "order-1")
	sub := startSagaConsumer(t, store)

	// payment.captured cannot apply yet, but the order can still grow into
	// it, so the handler must fail and leave the message for redelivery.
	env := mustEnvelope(t, events.TypePaymentCaptured, "order-1", events.PaymentCaptured{
		OrderID: "order-1", PaymentID: "pay-1", Amount: 25, Currency: "USD",
	})
	if err := sub.handle(t, events.TypePaymentCaptured, env); err == nil {
		t.Fatalf("premature event was absorbed instead of redelivered")
	}
	if got := store.InboxCount("order-1"); got != 0 {
		t.Fatalf("inbox rows = %d, want 0 for a rejected handler", got)
	}

	order, _ := store.GetOrder(context.Background(), "order-1")
	if order.Status != entities.StatusPending {
		t.Fatalf("status = %s, want %s", order.Status, entities.StatusPending)
	}
}

func TestSagaConsumerAbsorbsStaleEvent(t *testing.T) {
	store := memory.NewStore()
	newPendingOrder(t, store, "order-1")
	sub := startSagaConsumer(t, store)

	first := mustEnvelope(t, events.TypeInventoryReserved, "order-1", events.InventoryReserved{
		OrderID: "order-1", TotalAmount: 25, Currency: "USD",
	})
	if err := sub.handle(t, events.TypeInventoryReserved, first); err != nil {
		t.Fatalf("handle inventory.reserved: %v", err)
	}

	// A second reservation event with its own message id can never apply
	// again; it is absorbed so the broker stops redelivering it.
	second := mustEnvelope(t, events.TypeInventoryReserved, "order-1", events.InventoryReserved{
		OrderID: "order-1", TotalAmount: 25, Currency: "USD",
	})
	if err := sub.handle(t, events.TypeInventoryReserved, second); err != nil {
		t.Fatalf("stale event should be absorbed: %v", err)
	}
	if got := store.InboxCount("order-1"); got != 2 {
		t.Fatalf("inbox rows = %d, want 2", got)
	}
}

func TestSagaConsumerRequestsCompensationOnPaymentFailed(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	newPendingOrder(t, store, "order-1")
	sub := startSagaConsumer(t, store)

	reserved := mustEnvelope(t, events.TypeInventoryReserved, "order-1", events.InventoryReserved{
		OrderID: "order-1", TotalAmount: 25, Currency: "USD",
	})
	if err := sub.handle(t, events.TypeInventoryReserved, reserved); err != nil {
		t.Fatalf("handle inventory.reserved: %v", err)
	}

	failed := mustFollow(t, reserved, events.TypePaymentFailed, events.PaymentFailed{
		OrderID: "order-1", PaymentID: "pay-1", Reason: "card_declined",
	})
	if err := sub.handle(t, events.TypePaymentFailed, failed); err != nil {
		t.Fatalf("handle payment.failed: %v", err)
	}

	order, _ := store.GetOrder(ctx, "order-1")
	if order.Status != entities.StatusPaymentFailed {
		t.Fatalf("status = %s, want %s", order.Status, entities.StatusPaymentFailed)
	}
	if order.FailureReason != "card_declined" {
		t.Fatalf("failure reason = %q, want card_declined", order.FailureReason)
	}

	pending, err := store.ListPendingOutbox(ctx, 10)
	if err != nil {
		t.Fatalf("list outbox: %v", err)
	}
	var release *events.Envelope
	for i := range pending {
		if pending[i].Envelope.EventType == events.TypeInventoryReleaseRequested {
			release = &pending[i].Envelope
		}
	}
	if release == nil {
		t.Fatalf("no inventory.release_requested in outbox")
	}
	if release.CausationID != failed.MessageID {
		t.Fatalf("release causation = %s, want %s", release.CausationID, failed.MessageID)
	}
	if release.CorrelationID != "order-1" {
		t.Fatalf("release correlation = %s, want order-1", release.CorrelationID)
	}
}

func TestSagaConsumerCancelsAuthorizedOrderAndReleasesStock(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	newPendingOrder(t, store, "order-1")
	sub := startSagaConsumer(t, store)

	reserved := mustEnvelope(t, events.TypeInventoryReserved, "order-1", events.InventoryReserved{
		OrderID: "order-1", TotalAmount: 25, Currency: "USD",
	})
	if err := sub.handle(t, events.TypeInventoryReserved, reserved); err != nil {
		t.Fatalf("handle inventory.reserved: %v", err)
	}
	authorized := mustFollow(t, reserved, events.TypePaymentAuthorized, events.PaymentAuthorized{
		OrderID: "order-1", PaymentID: "pay-1", Amount: 25, Currency: "USD",
	})
	if err := sub.handle(t, events.TypePaymentAuthorized, authorized); err != nil {
		t.Fatalf("handle payment.authorized: %v", err)
	}

	cancelled := mustFollow(t, authorized, events.TypePaymentCancelled, events.PaymentCancelled{
		OrderID: "order-1", PaymentID: "pay-1", Reason: "customer request",
	})
	if err := sub.handle(t, events.TypePaymentCancelled, cancelled); err != nil {
		t.Fatalf("handle payment.cancelled: %v", err)
	}

	order, _ := store.GetOrder(ctx, "order-1")
	if order.Status != entities.StatusCancelled {
		t.Fatalf("status = %s, want %s", order.Status, entities.StatusCancelled)
	}

	pending, err := store.ListPendingOutbox(ctx, 10)
	if err != nil {
		t.Fatalf("list outbox: %v", err)
	}
	var release *events.Envelope
	for i := range pending {
		if pending[i].Envelope.EventType == events.TypeInventoryReleaseRequested {
			release = &pending[i].Envelope
		}
	}
	if release == nil {
		t.Fatalf("no inventory.release_requested in outbox after cancelling held stock")
	}
	if release.CausationID != cancelled.MessageID {
		t.Fatalf("release causation = %s, want %s", release.CausationID, cancelled.MessageID)
	}
}

func TestSagaConsumerCancelsFailedReservationWithoutRelease(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	newPendingOrder(t, store, "order-1")
	sub := startSagaConsumer(t, store)

	failed := mustEnvelope(t, events.TypeInventoryReservationFailed, "order-1", events.InventoryReservationFailed{
		OrderID: "order-1", Reason: "insufficient stock",
	})
	if err := sub.handle(t, events.TypeInventoryReservationFailed, failed); err != nil {
		t.Fatalf("handle inventory.reservation_failed: %v", err)
	}

	cancelled := mustEnvelope(t, events.TypePaymentCancelled, "order-1", events.PaymentCancelled{
		OrderID: "order-1", PaymentID: "pay-1", Reason: "customer request",
	})
	if err := sub.handle(t, events.TypePaymentCancelled, cancelled); err != nil {
		t.Fatalf("handle payment.cancelled: %v", err)
	}

	order, _ := store.GetOrder(ctx, "order-1")
	if order.Status != entities.StatusCancelled {
		t.Fatalf("status = %s, want %s", order.Status, entities.StatusCancelled)
	}

	// Nothing was ever reserved, so cancelling must not ask for a release.
	pending, err := store.ListPendingOutbox(ctx, 10)
	if err != nil {
		t.Fatalf("list outbox: %v", err)
	}
	for i := range pending {
		if pending[i].Envelope.EventType == events.TypeInventoryReleaseRequested {
			t.Fatalf("unexpected inventory.release_requested for an unreserved order")
		}
	}
}
