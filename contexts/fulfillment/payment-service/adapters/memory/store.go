package memory

import (
	"context"
	"sync"
	"time"

	"fulfillment/contexts/fulfillment/payment-service/domain/entities"
	domainerrors "fulfillment/contexts/fulfillment/payment-service/domain/errors"
	"fulfillment/contexts/fulfillment/payment-service/ports"
	"fulfillment/internal/shared/events"
)

// Store is the in-memory adapter implementing the payment ports for local
// runtime and tests. ProcessOnce stages writes and commits them only when the
// handler succeeds, matching the relational transaction's all-or-nothing
// behaviour.
type Store struct {
	mu        sync.Mutex
	byID      map[string]entities.Payment
	byOrder   map[string]string
	inbox     map[string]time.Time
	outbox    []outboxEntry
	outboxSeq int64
}

type outboxEntry struct {
	id          int64
	envelope    events.Envelope
	deliveredAt *time.Time
}

func NewStore() *Store {
	return &Store{
		byID:    make(map[string]entities.Payment),
		byOrder: make(map[string]string),
		inbox:   make(map[string]time.Time),
	}
}

func (s *Store) GetPayment(_ context.Context, paymentID string) (entities.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lookup(paymentID)
}

func (s *Store) GetPaymentByOrder(_ context.Context, orderID string) (entities.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	paymentID, ok := s.byOrder[orderID]
	if !ok {
		return entities.Payment{}, domainerrors.ErrPaymentNotFound
	}
	return s.lookup(paymentID)
}

func (s *Store) SavePaymentWithOutbox(_ context.Context, payment entities.Payment, envs []events.Envelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[payment.PaymentID]; !ok {
		return domainerrors.ErrPaymentNotFound
	}
	s.byID[payment.PaymentID] = clonePayment(payment)
	for _, env := range envs {
		s.outboxSeq++
		s.outbox = append(s.outbox, outboxEntry{id: s.outboxSeq, envelope: env})
	}
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
		parent:   s,
		payments: make(map[string]entities.Payment),
	}
	if err := fn(ctx, staged); err != nil {
		return err
	}

	for id, payment := range staged.payments {
		s.byID[id] = payment
		s.byOrder[payment.OrderID] = id
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

func (s *Store) lookup(paymentID string) (entities.Payment, error) {
	payment, ok := s.byID[paymentID]
	if !ok {
		return entities.Payment{}, domainerrors.ErrPaymentNotFound
	}
	return clonePayment(payment), nil
}

type stagedStore struct {
	parent   *Store
	payments map[string]entities.Payment
	outbox   []events.Envelope
}

func (t *stagedStore) CreatePayment(_ context.Context, payment entities.Payment) error {
	t.payments[payment.PaymentID] = clonePayment(payment)
	return nil
}

func (t *stagedStore) SavePayment(_ context.Context, payment entities.Payment) error {
	if _, ok := t.payments[payment.PaymentID]; !ok {
		if _, exists := t.parent.byID[payment.PaymentID]; !exists {
			return domainerrors.ErrPaymentNotFound
		}
	}
	t.payments[payment.PaymentID] = clonePayment(payment)
	return nil
}

func (t *stagedStore) AppendOutbox(_ context.Context, env events.Envelope) error {
	t.outbox = append(t.outbox, env)
	return nil
}

func clonePayment(payment entities.Payment) entities.Payment {
	cloned := payment
	cloned.Attempts = append([]entities.Attempt(nil), payment.Attempts...)
	return cloned
}
