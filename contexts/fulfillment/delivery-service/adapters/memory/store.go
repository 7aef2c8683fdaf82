package memory

import (
	"context"
	"sync"
	"time"

	"fulfillment/contexts/fulfillment/delivery-service/domain/entities"
	domainerrors "fulfillment/contexts/fulfillment/delivery-service/domain/errors"
	"fulfillment/contexts/fulfillment/delivery-service/ports"
	"fulfillment/internal/shared/events"
)

// Store is the in-memory adapter implementing the delivery ports for local
// runtime and tests. ProcessOnce stages writes and commits them only when the
// handler succeeds, matching the relational transaction's all-or-nothing
// behaviour.
type Store struct {
	mu        sync.Mutex
	byID      map[string]entities.Shipment
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
		byID:    make(map[string]entities.Shipment),
		byOrder: make(map[string]string),
		inbox:   make(map[string]time.Time),
	}
}

func (s *Store) GetShipment(_ context.Context, shipmentID string) (entities.Shipment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lookup(shipmentID)
}

func (s *Store) GetShipmentByOrder(_ context.Context, orderID string) (entities.Shipment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	shipmentID, ok := s.byOrder[orderID]
	if !ok {
		return entities.Shipment{}, domainerrors.ErrShipmentNotFound
	}
	return s.lookup(shipmentID)
}

func (s *Store) SaveShipmentWithOutbox(_ context.Context, shipment entities.Shipment, envs []events.Envelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[shipment.ShipmentID]; !ok {
		return domainerrors.ErrShipmentNotFound
	}
	s.byID[shipment.ShipmentID] = cloneShipment(shipment)
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
		parent:    s,
		shipments: make(map[string]entities.Shipment),
	}
	if err := fn(ctx, staged); err != nil {
		return err
	}

	for id, shipment := range staged.shipments {
		s.byID[id] = shipment
		s.byOrder[shipment.OrderID] = id
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

func (s *Store) lookup(shipmentID string) (entities.Shipment, error) {
	shipment, ok := s.byID[shipmentID]
	if !ok {
		return entities.Shipment{}, domainerrors.ErrShipmentNotFound
	}
	return cloneShipment(shipment), nil
}

type stagedStore struct {
	parent    *Store
	shipments map[string]entities.Shipment
	outbox    []events.Envelope
}

func (t *stagedStore) CreateShipment(_ context.Context, shipment entities.Shipment) error {
	t.shipments[shipment.ShipmentID] = cloneShipment(shipment)
	return nil
}

func (t *stagedStore) GetShipment(_ context.Context, shipmentID string) (entities.Shipment, error) {
	if shipment, ok := t.shipments[shipmentID]; ok {
		return cloneShipment(shipment), nil
	}
	shipment, ok := t.parent.byID[shipmentID]
	if !ok {
		return entities.Shipment{}, domainerrors.ErrShipmentNotFound
	}
	return cloneShipment(shipment), nil
}

func (t *stagedStore) SaveShipment(_ context.Context, shipment entities.Shipment) error {
	if _, ok := t.shipments[shipment.ShipmentID]; !ok {
		if _, exists := t.parent.byID[shipment.ShipmentID]; !exists {
			return domainerrors.ErrShipmentNotFound
		}
	}
	t.shipments[shipment.ShipmentID] = cloneShipment(shipment)
	return nil
}

func (t *stagedStore) AppendOutbox(_ context.Context, env events.Envelope) error {
	t.outbox = append(t.outbox, env)
	return nil
}

func cloneShipment(shipment entities.Shipment) entities.Shipment {
	cloned := shipment
	cloned.Items = append([]entities.ShipmentItem(nil), shipment.Items...)
	return cloned
}
