package commands

import (
	"context"
	"log/slog"
	"strings"
	"time"

	application "fulfillment/contexts/fulfillment/order-service/application"
	"fulfillment/contexts/fulfillment/order-service/domain/entities"
	domainerrors "fulfillment/contexts/fulfillment/order-service/domain/errors"
	"fulfillment/contexts/fulfillment/order-service/ports"
	"fulfillment/internal/shared/events"
)

const sourceService = "order-service"

type PlaceOrderCommand struct {
	CustomerID      string
	ShippingAddress string
	Currency        string
	Items           []entities.LineItem
}

type PlaceOrderUseCase struct {
	Orders      ports.OrderRepository
	Clock       ports.Clock
	IDGenerator ports.IDGenerator
	Logger      *slog.Logger
}

// Execute creates a Pending order and enqueues order.created in one
// transaction. The envelope's correlation id is the order id and its
// causation id is empty: this is the saga-initiating event.
func (u PlaceOrderUseCase) Execute(ctx context.Context, cmd PlaceOrderCommand) (entities.Order, error) {
	logger := application.ResolveLogger(u.Logger)
	if strings.TrimSpace(cmd.CustomerID) == "" || strings.TrimSpace(cmd.ShippingAddress) == "" {
		return entities.Order{}, domainerrors.ErrInvalidOrderInput
	}

	orderID, err := u.IDGenerator.NewID(ctx)
	if err != nil {
		return entities.Order{}, err
	}

	now := u.now()
	order, err := entities.NewOrder(orderID, cmd.CustomerID, cmd.ShippingAddress, cmd.Currency, cmd.Items, now)
	if err != nil {
		return entities.Order{}, err
	}

	lines := make([]events.OrderLine, 0, len(order.Items))
	for _, item := range order.Items {
		lines = append(lines, events.OrderLine{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		})
	}
	env, err := events.NewEnvelope(events.TypeOrderCreated, sourceService, order.OrderID, now, events.OrderCreated{
		OrderID:    order.OrderID,
		CustomerID: order.CustomerID,
		Items:      lines,
	})
	if err != nil {
		return entities.Order{}, err
	}

	if err := u.Orders.CreateOrderWithOutbox(ctx, order, env); err != nil {
		logger.Error("place order write failed",
			"event", "place_order_write_failed",
			"module", "fulfillment/order-service",
			"layer", "application",
			"order_id", order.OrderID,
			"error", err.Error(),
		)
		return entities.Order{}, err
	}

	logger.Info("order placed",
		"event", "order_placed",
		"module", "fulfillment/order-service",
		"layer", "application",
		"order_id", order.OrderID,
		"customer_id", order.CustomerID,
		"total_amount", order.TotalAmount,
		"message_id", env.MessageID,
	)
	return order, nil
}

func (u PlaceOrderUseCase) now() time.Time {
	if u.Clock == nil {
		return time.Now().UTC()
	}
	return u.Clock.Now().UTC()
}
