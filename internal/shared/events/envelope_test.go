package events

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestNewEnvelopeStartsChain(t *testing.T) {
	occurredAt := time.Date(2026, 3, 14, 9, 30, 0, 0, time.FixedZone("CET", 3600))

	env, err := NewEnvelope(TypeOrderCreated, "order-service", "order-42", occurredAt, OrderCreated{
		OrderID:    "order-42",
		CustomerID: "customer-7",
	})
	if err != nil {
		t.Fatalf("new envelope: %v", err)
	}

	if env.MessageID == "" {
		t.Fatalf("expected generated message id")
	}
	if env.CorrelationID != "order-42" {
		t.Fatalf("expected correlation order-42, got %s", env.CorrelationID)
	}
	if env.CausationID != "" {
		t.Fatalf("saga-initiating envelope must have empty causation, got %s", env.CausationID)
	}
	if !env.OccurredAtUTC.Equal(occurredAt.UTC()) || env.OccurredAtUTC.Location() != time.UTC {
		t.Fatalf("expected occurred_at normalized to UTC, got %v", env.OccurredAtUTC)
	}

	var payload OrderCreated
	if err := json.Unmarshal(env.Payload, &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload.CustomerID != "customer-7" {
		t.Fatalf("expected payload round-trip, got %+v", payload)
	}
}

func TestFollowPropagatesCorrelationAndSetsCausation(t *testing.T) {
	now := time.Now()
	root, err := NewEnvelope(TypeOrderCreated, "order-service", "order-42", now, OrderCreated{OrderID: "order-42"})
	if err != nil {
		t.Fatalf("root envelope: %v", err)
	}

	next, err := Follow(root, TypeInventoryReserved, "inventory-service", now, InventoryReserved{OrderID: "order-42"})
	if err != nil {
		t.Fatalf("follow envelope: %v", err)
	}

	if next.CorrelationID != root.CorrelationID {
		t.Fatalf("correlation must propagate unchanged: %s vs %s", next.CorrelationID, root.CorrelationID)
	}
	if next.CausationID != root.MessageID {
		t.Fatalf("causation must equal parent message id: %s vs %s", next.CausationID, root.MessageID)
	}
	if next.MessageID == root.MessageID {
		t.Fatalf("each envelope needs its own message id")
	}
}

func TestNewEnvelopeRejectsMissingFields(t *testing.T) {
	now := time.Now()
	if _, err := NewEnvelope("", "order-service", "order-42", now, nil); !errors.Is(err, ErrInvalidEnvelope) {
		t.Fatalf("expected ErrInvalidEnvelope for empty type, got %v", err)
	}
	if _, err := NewEnvelope(TypeOrderCreated, "order-service", "", now, nil); !errors.Is(err, ErrInvalidEnvelope) {
		t.Fatalf("expected ErrInvalidEnvelope for empty correlation, got %v", err)
	}
}
