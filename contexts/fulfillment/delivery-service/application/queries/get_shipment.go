package queries

import (
	"context"
	"log/slog"

	"fulfillment/contexts/fulfillment/delivery-service/domain/entities"
	"fulfillment/contexts/fulfillment/delivery-service/ports"
)

// GetShipmentUseCase reads a single shipment.
type GetShipmentUseCase struct {
	Shipments ports.ShipmentRepository
	Logger    *slog.Logger
}

func (uc GetShipmentUseCase) Execute(ctx context.Context, shipmentID string) (entities.Shipment, error) {
	return uc.Shipments.GetShipment(ctx, shipmentID)
}

// GetShipmentByOrderUseCase resolves the shipment attached to an order, which
// is how carrier webhooks and operators find the shipment id.
type GetShipmentByOrderUseCase struct {
	Shipments ports.ShipmentRepository
	Logger    *slog.Logger
}

func (uc GetShipmentByOrderUseCase) Execute(ctx context.Context, orderID string) (entities.Shipment, error) {
	return uc.Shipments.GetShipmentByOrder(ctx, orderID)
}
