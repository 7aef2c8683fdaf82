package inventoryservice

import (
	"log/slog"

	"fulfillment/contexts/fulfillment/inventory-service/application/commands"
	"fulfillment/contexts/fulfillment/inventory-service/application/workers"
	"fulfillment/contexts/fulfillment/inventory-service/ports"
	"fulfillment/internal/platform/messaging"
)

type Module struct {
	AdjustStock commands.AdjustStockUseCase
	Consumer    workers.ReservationConsumer
	OutboxRelay workers.OutboxRelay
}

type Dependencies struct {
	Items       ports.ItemRepository
	Inbox       ports.InboxGuard
	Outbox      ports.OutboxRepository
	Publisher   messaging.Publisher
	Subscriber  messaging.Subscriber
	Clock       ports.Clock
	IDGenerator ports.IDGenerator
	BatchSize   int
	Logger      *slog.Logger
}

func NewModule(deps Dependencies) Module {
	return Module{
		AdjustStock: commands.AdjustStockUseCase{
			Items:       deps.Items,
			Clock:       deps.Clock,
			IDGenerator: deps.IDGenerator,
			Logger:      deps.Logger,
		},
		Consumer: workers.ReservationConsumer{
			Subscriber: deps.Subscriber,
			Inbox:      deps.Inbox,
			Clock:      deps.Clock,
			Logger:     deps.Logger,
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
