package memory

import (
	"context"
	"sync"
	"time"

	"fulfillment/contexts/fulfillment/order-service/domain/entities"
	domainerrors "fulfillment/contexts/fulfillment/order-service/domain/errors"
	"fulfillment/contexts/fulfillment/order-service/ports"
	"fulfillment/internal/shared/events"
)

// Store is the in-memory adapter implementing the order service ports for
// local runtime and tests. ProcessOnce mirrors the relational adapter's
// transactional semantics with a staged commit: handler writes land on the
// parent maps only when the handler succeeds, and the inbox mark is recorded
// in the same critical section.
type Store struct {
	mu          sync.Mutex
	orders      map[string]entities.Order
	inbox       map[string]inboxEntry
	outbox      []outboxEntry
	outboxSeq   int64
	inboxByCorr map[string][]string
}

type inboxEntry struct {
	correlationID string
	processedAt   time.Time
}

type outboxEntry struct {
	id          int64
	envelope    events.Envelope
	deliveredAt *time.Time
}

func NewStore() *Store {
	return &Store{
		orders:      make(map[string]entities.Order),
		inbox:       make(map[string]inboxEntry),
		inboxByCorr: make(map[string][]string),
	}
}

func (s *Store) CreateOrderWithOutbox(_ context.Context, order entities.Order, env events.Envelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.orders[order.OrderID]; exists {
		return domainerrors.ErrInvalidOrderInput
	}
	s.orders[order.OrderID] = cloneOrder(order)
	s.appendOutboxLocked(env)
	return nil
}

func (s *Store) GetOrder(_ context.Context, orderID string) (entities.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.orders[orderID]
	if !ok {
		return entities.Order{}, domainerrors.ErrOrderNotFound
	}
	return cloneOrder(order), nil
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
		orders: make(map[string]entities.Order),
	}
	if err := fn(ctx, staged); err != nil {
		return err
	}

	for id, order := range staged.orders {
		s.orders[id] = order
	}
	for _, env := range staged.outbox {
		s.appendOutboxLocked(env)
	}
	s.inbox[key] = inboxEntry{correlationID: env.CorrelationID, processedAt: now.UTC()}
	s.inboxByCorr[env.CorrelationID] = append(s.inboxByCorr[env.CorrelationID], env.MessageID)
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

// InboxCount reports recorded inbox rows for one correlation id, used by
// idempotency assertions in tests.
func (s *Store) InboxCount(correlationID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.inboxByCorr[correlationID])
}

func (s *Store) appendOutboxLocked(env events.Envelope) {
	s.outboxSeq++
	s.outbox = append(s.outbox, outboxEntry{id: s.outboxSeq, envelope: env})
}

type stagedStore struct {
	parent *Store
	orders map[string]entities.Order
	outbox []events.Envelope
}

func (t *stagedStore) GetOrder(_ context.Context, orderID string) (entities.Order, error) {
	if order, ok := t.orders[orderID]; ok {
		return cloneOrder(order), nil
	}
	order, ok := t.parent.orders[orderID]
	if !ok {
		return entities.Order{}, domainerrors.ErrOrderNotFound
	}
	return cloneOrder(order), nil
}

func (t *stagedStore) SaveOrder(_ context.Context, order entities.Order) error {
	if _, ok := t.orders[order.OrderID]; !ok {
		if _, ok := t.parent.orders[order.OrderID]; !ok {
			return domainerrors.ErrOrderNotFound
		}
	}
	t.orders[order.OrderID] = cloneOrder(order)
	return nil
}

func (t *stagedStore) AppendOutbox(_ context.Context, env events.Envelope) error {
	t.outbox = append(t.outbox, env)
	return nil
}

func cloneOrder(order entities.Order) entities.Order {
	order.Items = append([]entities.LineItem(nil), order.Items...)
	return order
}
