package unit

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"

	"fulfillment/internal/platform/messaging"
	"fulfillment/internal/shared/events"
)

// stubSubscriber captures the handlers a consumer registers so tests can
// drive them directly, without a running bus.
type stubSubscriber struct {
	handlers map[string]messaging.Handler
}

func (s *stubSubscriber) Subscribe(_ context.Context, topic string, _ string, handler messaging.Handler) error {
	if s.handlers == nil {
		s.handlers = make(map[string]messaging.Handler)
	}
	s.handlers[topic] = handler
	return nil
}

func (s *stubSubscriber) handle(t *testing.T, topic string, env events.Envelope) error {
	t.Helper()
	handler, ok := s.handlers[topic]
	if !ok {
		t.Fatalf("no handler registered for topic %s", topic)
	}
	return handler(context.Background(), env)
}

type uuidGen struct{}

func (uuidGen) NewID(_ context.Context) (string, error) {
	return uuid.NewString(), nil
}

func mustEnvelope(t *testing.T, eventType, correlationID string, payload any) events.Envelope {
	t.Helper()
	env, err := events.NewEnvelope(eventType, "test-source", correlationID, time.Now().UTC(), payload)
	if err != nil {
		t.Fatalf("build %s envelope: %v", eventType, err)
	}
	return env
}

func mustFollow(t *testing.T, parent events.Envelope, eventType string, payload any) events.Envelope {
	t.Helper()
	env, err := events.Follow(parent, eventType, "test-source", time.Now().UTC(), payload)
	if err != nil {
		t.Fatalf("follow %s envelope: %v", eventType, err)
	}
	return env
}

func decodePayload(t *testing.T, env events.Envelope, out any) {
	t.Helper()
	if err := json.Unmarshal(env.Payload, out); err != nil {
		t.Fatalf("decode %s payload: %v", env.EventType, err)
	}
}

// waitFor polls cond while running pump each iteration, failing the test when
// the deadline passes. It is how scenario tests ride the asynchronous bus.
func waitFor(t *testing.T, timeout time.Duration, pump func(), cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if pump != nil {
			pump()
		}
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s", timeout)
}
