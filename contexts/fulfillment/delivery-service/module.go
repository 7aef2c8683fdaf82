package deliveryservice

import (
	"log/slog"

	"fulfillment/contexts/fulfillment/delivery-service/application/commands"
	"fulfillment/contexts/fulfillment/delivery-service/application/queries"
	"fulfillment/contexts/fulfillment/delivery-service/application/workers"
	"fulfillment/contexts/fulfillment/delivery-service/ports"
	"fulfillment/internal/platform/messaging"
)

type Module struct {
	MarkDispatched     commands.MarkDispatchedUseCase
	MarkInTransit      commands.MarkInTransitUseCase
	MarkDelivered      commands.MarkDeliveredUseCase
	GetShipment        queries.GetShipmentUseCase
	GetShipmentByOrder queries.GetShipmentByOrderUseCase
	Consumer           workers.ShipmentConsumer
	OutboxRelay        workers.OutboxRelay
}

type Dependencies struct {
	Shipments   ports.ShipmentRepository
	Inbox       ports.InboxGuard
	Outbox      ports.OutboxRepository
	Orders      ports.OrderDetailsReader
	Carrier     ports.CarrierClient
	Publisher   messaging.Publisher
	Subscriber  messaging.Subscriber
	Clock       ports.Clock
	IDGenerator ports.IDGenerator
	BatchSize   int
	Logger      *slog.Logger
}

func NewModule(deps Dependencies) Module {
	return Module{
		MarkDispatched: commands.MarkDispatchedUseCase{
			Shipments: deps.Shipments,
			Clock:     deps.Clock,
			Logger:    deps.Logger,
		},
		MarkInTransit: commands.MarkInTransitUseCase{
			Shipments: deps.Shipments,
			Clock:     deps.Clock,
			Logger:    deps.Logger,
		},
		MarkDelivered: commands.MarkDeliveredUseCase{
			Shipments: deps.Shipments,
			Clock:     deps.Clock,
			Logger:    deps.Logger,
		},
		GetShipment: queries.GetShipmentUseCase{
			Shipments: deps.Shipments,
			Logger:    deps.Logger,
		},
		GetShipmentByOrder: queries.GetShipmentByOrderUseCase{
			Shipments: deps.Shipments,
			Logger:    deps.Logger,
		},
		Consumer: workers.ShipmentConsumer{
			Subscriber:  deps.Subscriber,
			Inbox:       deps.Inbox,
			Orders:      deps.Orders,
			Carrier:     deps.Carrier,
			Clock:       deps.Clock,
			IDGenerator: deps.IDGenerator,
			Logger:      deps.Logger,
		},
		OutboxRelay: workers.OutboxRelay{
			Outbox:    deps.Outbox,
			Publisher: deps.Publisher,
			Clock:     deps.Clock,
			BatchSize: deps.BatchSize,
			Logger:    deps.Logger,
		},
	}
}
