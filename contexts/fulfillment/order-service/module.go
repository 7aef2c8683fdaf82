package orderservice

import (
	"log/slog"

	"fulfillment/contexts/fulfillment/order-service/application/commands"
	"fulfillment/contexts/fulfillment/order-service/application/queries"
	"fulfillment/contexts/fulfillment/order-service/application/workers"
	"fulfillment/contexts/fulfillment/order-service/ports"
	"fulfillment/internal/platform/messaging"
)

type Module struct {
	PlaceOrder  commands.PlaceOrderUseCase
	GetOrder    queries.GetOrderUseCase
	Consumer    workers.SagaConsumer
	OutboxRelay workers.OutboxRelay
}

type Dependencies struct {
	Orders      ports.OrderRepository
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
		PlaceOrder: commands.PlaceOrderUseCase{
			Orders:      deps.Orders,
			Clock:       deps.Clock,
			IDGenerator: deps.IDGenerator,
			Logger:      deps.Logger,
		},
		GetOrder: queries.GetOrderUseCase{
			Orders: deps.Orders,
			Logger: deps.Logger,
		},
		Consumer: workers.SagaConsumer{
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
