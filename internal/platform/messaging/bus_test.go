package messaging

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"fulfillment/internal/shared/events"
)

func testEnvelope(t *testing.T, eventType string) events.Envelope {
	t.Helper()
	env, err := events.NewEnvelope(eventType, "test-service", "order-1", time.Now().UTC(), map[string]string{"k": "v"})
	if err != nil {
		t.Fatalf("build envelope: %v", err)
	}
	return env
}

func waitUntil(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s", timeout)
}

func TestBusDeliversToAllGroups(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := NewBus(BusConfig{Workers: 2, MaxAttempts: 3, BaseBackoff: time.Millisecond}, nil)

	var groupA, groupB atomic.Int32
	if err := bus.Subscribe(ctx, "order.created", "group-a", func(context.Context, events.Envelope) error {
		groupA.Add(1)
		return nil
	}); err != nil {
		t.Fatalf("subscribe group-a: %v", err)
	}
	if err := bus.Subscribe(ctx, "order.created", "group-b", func(context.Context, events.Envelope) error {
		groupB.Add(1)
		return nil
	}); err != nil {
		t.Fatalf("subscribe group-b: %v", err)
	}

	if err := bus.Publish(ctx, "order.created", testEnvelope(t, "order.created")); err != nil {
		t.Fatalf("publish: %v", err)
	}

	waitUntil(t, time.Second, func() bool {
		return groupA.Load() == 1 && groupB.Load() == 1
	})
}

func TestBusRedeliversUntilHandlerSucceeds(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := NewBus(BusConfig{Workers: 1, MaxAttempts: 5, BaseBackoff: time.Millisecond}, nil)

	var attempts atomic.Int32
	if err := bus.Subscribe(ctx, "payment.captured", "delivery", func(context.Context, events.Envelope) error {
		if attempts.Add(1) < 3 {
			return errors.New("transient store error")
		}
		return nil
	}); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	if err := bus.Publish(ctx, "payment.captured", testEnvelope(t, "payment.captured")); err != nil {
		t.Fatalf("publish: %v", err)
	}

	waitUntil(t, time.Second, func() bool { return attempts.Load() == 3 })
}

func TestBusDeadLettersAfterExhaustedAttempts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var deadTopic string
	var deadErr error

	bus := NewBus(BusConfig{
		Workers:     1,
		MaxAttempts: 2,
		BaseBackoff: time.Millisecond,
		DeadLetter: func(_ context.Context, topic string, _ events.Envelope, err error) {
			mu.Lock()
			defer mu.Unlock()
			deadTopic = topic
			deadErr = err
		},
	}, nil)

	handlerErr := errors.New("poison message")
	if err := bus.Subscribe(ctx, "inventory.reserved", "payments", func(context.Context, events.Envelope) error {
		return handlerErr
	}); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	if err := bus.Publish(ctx, "inventory.reserved", testEnvelope(t, "inventory.reserved")); err != nil {
		t.Fatalf("publish: %v", err)
	}

	waitUntil(t, time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return deadTopic == "inventory.reserved" && errors.Is(deadErr, handlerErr)
	})
}

func TestBusPublishWithoutSubscribersIsNoop(t *testing.T) {
	bus := NewBus(BusConfig{}, nil)
	if err := bus.Publish(context.Background(), "shipment.booked", testEnvelope(t, "shipment.booked")); err != nil {
		t.Fatalf("publish to empty topic: %v", err)
	}
}
