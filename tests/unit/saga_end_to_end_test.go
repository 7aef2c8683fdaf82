package unit

import (
	"context"
	"errors"
	"testing"
	"time"

	deliveryservice "fulfillment/contexts/fulfillment/delivery-service"
	deliverygateway "fulfillment/contexts/fulfillment/delivery-service/adapters/gateway"
	deliverymemory "fulfillment/contexts/fulfillment/delivery-service/adapters/memory"
	deliveryentities "fulfillment/contexts/fulfillment/delivery-service/domain/entities"
	deliveryports "fulfillment/contexts/fulfillment/delivery-service/ports"
	inventoryservice "fulfillment/contexts/fulfillment/inventory-service"
	inventorymemory "fulfillment/contexts/fulfillment/inventory-service/adapters/memory"
	inventorycommands "fulfillment/contexts/fulfillment/inventory-service/application/commands"
	orderservice "fulfillment/contexts/fulfillment/order-service"
	ordermemory "fulfillment/contexts/fulfillment/order-service/adapters/memory"
	ordercommands "fulfillment/contexts/fulfillment/order-service/application/commands"
	orderentities "fulfillment/contexts/fulfillment/order-service/domain/entities"
	paymentservice "fulfillment/contexts/fulfillment/payment-service"
	paymentgateway "fulfillment/contexts/fulfillment/payment-service/adapters/gateway"
	paymentmemory "fulfillment/contexts/fulfillment/payment-service/adapters/memory"
	paymententities "fulfillment/contexts/fulfillment/payment-service/domain/entities"
	paymenterrors "fulfillment/contexts/fulfillment/payment-service/domain/errors"
	"fulfillment/internal/platform/messaging"
)

// storeOrderReader serves the delivery service's order-details lookups
// straight from the order store, standing in for the HTTP client.
type storeOrderReader struct {
	store *ordermemory.Store
}

func (r storeOrderReader) GetOrderDetails(ctx context.Context, orderID string) (deliveryports.OrderDetails, error) {
	order, err := r.store.GetOrder(ctx, orderID)
	if err != nil {
		return deliveryports.OrderDetails{}, err
	}
	items := make([]deliveryentities.ShipmentItem, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, deliveryentities.ShipmentItem{ProductID: item.ProductID, Quantity: item.Quantity})
	}
	return deliveryports.OrderDetails{
		OrderID:         order.OrderID,
		CustomerID:      order.CustomerID,
		ShippingAddress: order.ShippingAddress,
		Items:           items,
	}, nil
}

// sagaWorld wires all four modules over the in-process bus with in-memory
// stores, the same topology the single-process runtime uses.
type sagaWorld struct {
	orders    orderservice.Module
	inventory inventoryservice.Module
	payments  paymentservice.Module
	delivery  deliveryservice.Module

	orderStore    *ordermemory.Store
	itemStore     *inventorymemory.Store
	paymentStore  *paymentmemory.Store
	shipmentStore *deliverymemory.Store

	psp     *paymentgateway.MockPSP
	carrier *deliverygateway.MockCarrier

	relays []func(context.Context) error
}

func newSagaWorld(t *testing.T) *sagaWorld {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	bus := messaging.NewBus(messaging.BusConfig{
		Workers:     2,
		MaxAttempts: 5,
		BaseBackoff: 5 * time.Millisecond,
	}, nil)

	w := &sagaWorld{
		orderStore:    ordermemory.NewStore(),
		itemStore:     inventorymemory.NewStore(nil),
		paymentStore:  paymentmemory.NewStore(),
		shipmentStore: deliverymemory.NewStore(),
		psp:           paymentgateway.NewMockPSP(),
		carrier:       deliverygateway.NewMockCarrier(),
	}

	w.orders = orderservice.NewModule(orderservice.Dependencies{
		Orders:      w.orderStore,
		Inbox:       w.orderStore,
		Outbox:      w.orderStore,
		Publisher:   bus,
		Subscriber:  bus,
		IDGenerator: uuidGen{},
	})
	w.inventory = inventoryservice.NewModule(inventoryservice.Dependencies{
		Items:       w.itemStore,
		Inbox:       w.itemStore,
		Outbox:      w.itemStore,
		Publisher:   bus,
		Subscriber:  bus,
		IDGenerator: uuidGen{},
	})
	w.payments = paymentservice.NewModule(paymentservice.Dependencies{
		Payments:    w.paymentStore,
		Inbox:       w.paymentStore,
		Outbox:      w.paymentStore,
		Gateway:     w.psp,
		Publisher:   bus,
		Subscriber:  bus,
		IDGenerator: uuidGen{},
	})
	w.delivery = deliveryservice.NewModule(deliveryservice.Dependencies{
		Shipments:   w.shipmentStore,
		Inbox:       w.shipmentStore,
		Outbox:      w.shipmentStore,
		Orders:      storeOrderReader{store: w.orderStore},
		Carrier:     w.carrier,
		Publisher:   bus,
		Subscriber:  bus,
		IDGenerator: uuidGen{},
	})

	for _, start := range []func(context.Context) error{
		w.orders.Consumer.Start,
		w.inventory.Consumer.Start,
		w.payments.Consumer.Start,
		w.delivery.Consumer.Start,
	} {
		if err := start(ctx); err != nil {
			t.Fatalf("start consumer: %v", err)
		}
	}

	w.relays = []func(context.Context) error{
		w.orders.OutboxRelay.RunOnce,
		w.inventory.OutboxRelay.RunOnce,
		w.payments.OutboxRelay.RunOnce,
		w.delivery.OutboxRelay.RunOnce,
	}
	return w
}

func (w *sagaWorld) pump() {
	for _, run := range w.relays {
		_ = run(context.Background())
	}
}

func (w *sagaWorld) stock(t *testing.T, productID string, qty int) {
	t.Helper()
	_, err := w.inventory.AdjustStock.Execute(context.Background(), inventorycommands.AdjustStockCommand{
		ProductID: productID,
		Quantity:  qty,
	})
	if err != nil {
		t.Fatalf("stock %s: %v", productID, err)
	}
}

func (w *sagaWorld) placeOrder(t *testing.T, items []orderentities.LineItem) orderentities.Order {
	t.Helper()
	order, err := w.orders.PlaceOrder.Execute(context.Background(), ordercommands.PlaceOrderCommand{
		CustomerID:      "customer-1",
		ShippingAddress: "12 Baker Street",
		Currency:        "USD",
		Items:           items,
	})
	if err != nil {
		t.Fatalf("place order: %v", err)
	}
	return order
}

func (w *sagaWorld) orderStatus(t *testing.T, orderID string) orderentities.Status {
	t.Helper()
	order, err := w.orderStore.GetOrder(context.Background(), orderID)
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	return order.Status
}

func TestSagaHappyPathDeliversOrder(t *testing.T) {
	ctx := context.Background()
	w := newSagaWorld(t)
	w.stock(t, "sku-a", 5)
	w.stock(t, "sku-b", 3)

	order := w.placeOrder(t, []orderentities.LineItem{
		{ProductID: "sku-a", Quantity: 2, UnitPrice: 10.5},
		{ProductID: "sku-b", Quantity: 1, UnitPrice: 4},
	})

	waitFor(t, 5*time.Second, w.pump, func() bool {
		return w.orderStatus(t, order.OrderID) == orderentities.StatusShipmentCreated
	})
	waitFor(t, 5*time.Second, w.pump, func() bool {
		shipment, err := w.shipmentStore.GetShipmentByOrder(ctx, order.OrderID)
		return err == nil && shipment.Status == deliveryentities.StatusLabelBooked
	})

	payment, err := w.paymentStore.GetPaymentByOrder(ctx, order.OrderID)
	if err != nil {
		t.Fatalf("get payment: %v", err)
	}
	if payment.Status != paymententities.StatusCaptured {
		t.Fatalf("payment status = %s, want %s", payment.Status, paymententities.StatusCaptured)
	}
	if payment.Amount != order.TotalAmount {
		t.Fatalf("payment amount = %v, want %v", payment.Amount, order.TotalAmount)
	}
	item, err := w.itemStore.GetItemByProduct(ctx, "sku-a")
	if err != nil {
		t.Fatalf("get item: %v", err)
	}
	if item.OnHand != 3 {
		t.Fatalf("sku-a on hand = %d, want 3", item.OnHand)
	}

	shipment, _ := w.shipmentStore.GetShipmentByOrder(ctx, order.OrderID)
	if _, err := w.delivery.MarkDispatched.Execute(ctx, shipment.ShipmentID); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	waitFor(t, 5*time.Second, w.pump, func() bool {
		return w.orderStatus(t, order.OrderID) == orderentities.StatusShipmentDispatched
	})

	if _, err := w.delivery.MarkDelivered.Execute(ctx, shipment.ShipmentID); err != nil {
		t.Fatalf("deliver: %v", err)
	}
	waitFor(t, 5*time.Second, w.pump, func() bool {
		return w.orderStatus(t, order.OrderID) == orderentities.StatusDelivered
	})

	// One inbox row per consumed event type proves every at-least-once
	// redelivery was absorbed rather than reapplied.
	if got := w.orderStore.InboxCount(order.OrderID); got != 6 {
		t.Fatalf("order inbox rows = %d, want 6", got)
	}
}

func TestSagaStopsWhenReservationFails(t *testing.T) {
	ctx := context.Background()
	w := newSagaWorld(t)
	w.stock(t, "sku-a", 1)

	order := w.placeOrder(t, []orderentities.LineItem{
		{ProductID: "sku-a", Quantity: 3, UnitPrice: 10},
	})

	waitFor(t, 5*time.Second, w.pump, func() bool {
		return w.orderStatus(t, order.OrderID) == orderentities.StatusInventoryReservationFailed
	})

	item, _ := w.itemStore.GetItemByProduct(ctx, "sku-a")
	if item.OnHand != 1 {
		t.Fatalf("sku-a on hand = %d, want 1", item.OnHand)
	}
	if _, err := w.paymentStore.GetPaymentByOrder(ctx, order.OrderID); !errors.Is(err, paymenterrors.ErrPaymentNotFound) {
		t.Fatalf("payment should not exist, got %v", err)
	}
}

func TestSagaCompensatesDeclinedPayment(t *testing.T) {
	ctx := context.Background()
	w := newSagaWorld(t)
	w.stock(t, "sku-a", 5)

	// Nothing moves until the first pump, so the decline can be configured
	// after the order id is known.
	order := w.placeOrder(t, []orderentities.LineItem{
		{ProductID: "sku-a", Quantity: 2, UnitPrice: 10},
	})
	w.psp.DeclineOrder(order.OrderID, "card_declined")

	waitFor(t, 5*time.Second, w.pump, func() bool {
		return w.orderStatus(t, order.OrderID) == orderentities.StatusPaymentFailed
	})
	// Compensation closes the loop: the reserved stock comes back.
	waitFor(t, 5*time.Second, w.pump, func() bool {
		item, err := w.itemStore.GetItemByProduct(ctx, "sku-a")
		return err == nil && item.OnHand == 5
	})

	payment, err := w.paymentStore.GetPaymentByOrder(ctx, order.OrderID)
	if err != nil {
		t.Fatalf("get payment: %v", err)
	}
	if payment.Status != paymententities.StatusFailed {
		t.Fatalf("payment status = %s, want %s", payment.Status, paymententities.StatusFailed)
	}
	if _, err := w.shipmentStore.GetShipmentByOrder(ctx, order.OrderID); err == nil {
		t.Fatalf("shipment created for a failed payment")
	}
}

func TestSagaRecordsCarrierRejection(t *testing.T) {
	ctx := context.Background()
	w := newSagaWorld(t)
	w.stock(t, "sku-a", 5)
	w.carrier.RejectAddressContaining("Baker", "undeliverable address")

	order := w.placeOrder(t, []orderentities.LineItem{
		{ProductID: "sku-a", Quantity: 1, UnitPrice: 10},
	})

	waitFor(t, 5*time.Second, w.pump, func() bool {
		shipment, err := w.shipmentStore.GetShipmentByOrder(ctx, order.OrderID)
		return err == nil && shipment.Status == deliveryentities.StatusBookingFailed
	})

	// The order itself still reached shipment_created; booking failure is a
	// delivery-context outcome surfaced via the shipment record.
	if got := w.orderStatus(t, order.OrderID); got != orderentities.StatusShipmentCreated {
		t.Fatalf("order status = %s, want %s", got, orderentities.StatusShipmentCreated)
	}
}
