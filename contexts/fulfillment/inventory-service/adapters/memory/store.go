package memory

import (
	"context"
	"sync"
	"time"

	"fulfillment/contexts/fulfillment/inventory-service/domain/entities"
	domainerrors "fulfillment/contexts/fulfillment/inventory-service/domain/errors"
	"fulfillment/contexts/fulfillment/inventory-service/ports"
	"fulfillment/internal/shared/events"
)

// Store is the in-memory adapter implementing the inventory ports for local
// runtime and tests. The staged commit inside ProcessOnce gives the same
// all-or-nothing behaviour as the relational transaction: a handler error
// discards every staged decrease.
type Store struct {
	mu        sync.Mutex
	byProduct map[string]entities.InventoryItem
	inbox     map[string]time.Time
	outbox    []outboxEntry
	outboxSeq int64
}

type outboxEntry struct {
	id          int64
	envelope    events.Envelope
	deliveredAt *time.Time
}

func NewStore(seed []entities.InventoryItem) *Store {
	byProduct := make(map[string]entities.InventoryItem, len(seed))
	for _, item := range seed {
		byProduct[item.ProductID] = item
	}
	return &Store{
		byProduct: byProduct,
		inbox:     make(map[string]time.Time),
	}
}

func (s *Store) GetItemByProduct(_ context.Context, productID string) (entities.InventoryItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.byProduct[productID]
	if !ok {
		return entities.InventoryItem{}, domainerrors.ErrItemNotFound
	}
	return item, nil
}

func (s *Store) UpsertItem(_ context.Context, item entities.InventoryItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byProduct[item.ProductID] = item
	return nil
}

func (s *Store) ProcessOnce(
	ctx context.Context,
	consumerName string,
	env events.Envelope,
	now time.Time,
	fn func(ctx context.Context, store ports.SagaStore) error,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := env.MessageID + "|" + consumerName
	if _, seen := s.inbox[key]; seen {
		return nil
	}

	staged := &stagedStore{
		parent: s,
		items:  make(map[string]entities.InventoryItem),
	}
	if err := fn(ctx, staged); err != nil {
		return err
	}

	for productID, item := range staged.items {
		s.byProduct[productID] = item
	}
	for _, env := range staged.outbox {
		s.outboxSeq++
		s.outbox = append(s.outbox, outboxEntry{id: s.outboxSeq, envelope: env})
	}
	s.inbox[key] = now.UTC()
	return nil
}

func (s *Store) ListPendingOutbox(_ context.Context, limit int) ([]ports.OutboxMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 {
		limit = 100
	}
	items := make([]ports.OutboxMessage, 0, limit)
	for _, entry := range s.outbox {
		if entry.deliveredAt != nil {
			continue
		}
		items = append(items, ports.OutboxMessage{ID: entry.id, Envelope: entry.envelope})
		if len(items) == limit {
			break
		}
	}
	return items, nil
}

func (s *Store) MarkOutboxDelivered(_ context.Context, id int64, deliveredAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.outbox {
		if s.outbox[i].id == id {
			at := deliveredAt.UTC()
			s.outbox[i].deliveredAt = &at
			return nil
		}
	}
	return nil
}

type stagedStore struct {
	parent *Store
	items  map[string]entities.InventoryItem
	outbox []events.Envelope
}

func (t *stagedStore) GetItemByProduct(_ context.Context, productID string) (entities.InventoryItem, error) {
	if item, ok := t.items[productID]; ok {
		return item, nil
	}
	item, ok := t.parent.byProduct[productID]
	if !ok {
		return entities.InventoryItem{}, domainerrors.ErrItemNotFound
	}
	return item, nil
}

func (t *stagedStore) SaveItem(_ context.Context, item entities.InventoryItem) error {
	t.items[item.ProductID] = item
	return nil
}

func (t *stagedStore) AppendOutbox(_ context.Context, env events.Envelope) error {
	t.outbox = append(t.outbox, env)
	return nil
}
