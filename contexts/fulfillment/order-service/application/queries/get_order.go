package queries

import (
	"context"
	"log/slog"
	"strings"

	"fulfillment/contexts/fulfillment/order-service/domain/entities"
	domainerrors "fulfillment/contexts/fulfillment/order-service/domain/errors"
	"fulfillment/contexts/fulfillment/order-service/ports"
)

// GetOrderUseCase serves the order read used by operators and by
// delivery-service's synchronous order-details lookup.
type GetOrderUseCase struct {
	Orders ports.OrderRepository
	Logger *slog.Logger
}

func (u GetOrderUseCase) Execute(ctx context.Context, orderID string) (entities.Order, error) {
	if strings.TrimSpace(orderID) == "" {
		return entities.Order{}, domainerrors.ErrInvalidOrderInput
	}
	return u.Orders.GetOrder(ctx, orderID)
}
