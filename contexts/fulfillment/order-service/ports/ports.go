package ports

import (
	"context"
	"time"

	"fulfillment/contexts/fulfillment/order-service/domain/entities"
	"fulfillment/internal/shared/events"
)

// OrderRepository owns order persistence and the write boundary for the
// place-order command.
type OrderRepository interface {
	// CreateOrderWithOutbox must atomically persist the order, its line items
	// and the order.created outbox record.
	CreateOrderWithOutbox(ctx context.Context, order entities.Order, env events.Envelope) error
	GetOrder(ctx context.Context, orderID string) (entities.Order, error)
}

// SagaStore is the transaction-scoped view a saga handler works against.
// Every method joins the transaction opened by InboxGuard.ProcessOnce.
type SagaStore interface {
	GetOrder(ctx context.Context, orderID string) (entities.Order, error)
	SaveOrder(ctx context.Context, order entities.Order) error
	AppendOutbox(ctx context.Context, env events.Envelope) error
}

// InboxGuard admits each (message, consumer) pair exactly once. fn runs inside
// the same local transaction as the inbox record insert; an error rolls both
// back so broker redelivery retries from scratch.
type InboxGuard interface {
	ProcessOnce(
		ctx context.Context,
		consumerName string,
		env events.Envelope,
		now time.Time,
		fn func(ctx context.Context, store SagaStore) error,
	) error
}

// OutboxMessage is a pending row ready to relay.
type OutboxMessage struct {
	ID       int64
	Envelope events.Envelope
}

// OutboxRepository models relay-side outbox polling and acknowledgement.
type OutboxRepository interface {
	ListPendingOutbox(ctx context.Context, limit int) ([]OutboxMessage, error)
	MarkOutboxDelivered(ctx context.Context, id int64, deliveredAt time.Time) error
}

// Clock allows deterministic testing of timestamps.
type Clock interface {
	Now() time.Time
}

// IDGenerator abstracts order identifier generation.
type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}
