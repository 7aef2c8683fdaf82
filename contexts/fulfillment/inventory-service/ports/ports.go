package ports

import (
	"context"
	"time"

	"fulfillment/contexts/fulfillment/inventory-service/domain/entities"
	"fulfillment/internal/shared/events"
)

// ItemRepository serves reads and the restock command's write boundary.
type ItemRepository interface {
	GetItemByProduct(ctx context.Context, productID string) (entities.InventoryItem, error)
	// UpsertItem creates or replaces the item row, used by stock adjustment.
	UpsertItem(ctx context.Context, item entities.InventoryItem) error
}

// SagaStore is the transaction-scoped view reservation handlers work against.
type SagaStore interface {
	GetItemByProduct(ctx context.Context, productID string) (entities.InventoryItem, error)
	SaveItem(ctx context.Context, item entities.InventoryItem) error
	AppendOutbox(ctx context.Context, env events.Envelope) error
}

// InboxGuard admits each (message, consumer) pair exactly once; fn joins the
// inbox record's transaction.
type InboxGuard interface {
	ProcessOnce(
		ctx context.Context,
		consumerName string,
		env events.Envelope,
		now time.Time,
		fn func(ctx context.Context, store SagaStore) error,
	) error
}

type OutboxMessage struct {
	ID       int64
	Envelope events.Envelope
}

type OutboxRepository interface {
	ListPendingOutbox(ctx context.Context, limit int) ([]OutboxMessage, error)
	MarkOutboxDelivered(ctx context.Context, id int64, deliveredAt time.Time) error
}

type Clock interface {
	Now() time.Time
}

type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}
