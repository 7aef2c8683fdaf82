package paymentservice

import (
	"log/slog"

	"fulfillment/contexts/fulfillment/payment-service/application/commands"
	"fulfillment/contexts/fulfillment/payment-service/application/queries"
	"fulfillment/contexts/fulfillment/payment-service/application/workers"
	"fulfillment/contexts/fulfillment/payment-service/ports"
	"fulfillment/internal/platform/messaging"
)

type Module struct {
	RefundPayment     commands.RefundPaymentUseCase
	CancelPayment     commands.CancelPaymentUseCase
	GetPayment        queries.GetPaymentUseCase
	GetPaymentByOrder queries.GetPaymentByOrderUseCase
	Consumer          workers.AuthorizationConsumer
	OutboxRelay       workers.OutboxRelay
}

type Dependencies struct {
	Payments    ports.PaymentRepository
	Inbox       ports.InboxGuard
	Outbox      ports.OutboxRepository
	Gateway     ports.PaymentGateway
	Publisher   messaging.Publisher
	Subscriber  messaging.Subscriber
	Clock       ports.Clock
	IDGenerator ports.IDGenerator
	BatchSize   int
	Logger      *slog.Logger
}

func NewModule(deps Dependencies) Module {
	return Module{
		RefundPayment: commands.RefundPaymentUseCase{
			Payments: deps.Payments,
			Gateway:  deps.Gateway,
			Clock:    deps.Clock,
			Logger:   deps.Logger,
		},
		CancelPayment: commands.CancelPaymentUseCase{
			Payments: deps.Payments,
			Clock:    deps.Clock,
			Logger:   deps.Logger,
		},
		GetPayment: queries.GetPaymentUseCase{
			Payments: deps.Payments,
			Logger:   deps.Logger,
		},
		GetPaymentByOrder: queries.GetPaymentByOrderUseCase{
			Payments: deps.Payments,
			Logger:   deps.Logger,
		},
		Consumer: workers.AuthorizationConsumer{
			Subscriber:  deps.Subscriber,
			Inbox:       deps.Inbox,
			Gateway:     deps.Gateway,
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
