package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"fulfillment/internal/shared/events"
)

// scriptedReader hands out a fixed message sequence and records every offset
// commit, then blocks until the context ends.
type scriptedReader struct {
	mu       sync.Mutex
	messages []kafkago.Message
	next     int
	commits  []int64
}

func (r *scriptedReader) FetchMessage(ctx context.Context) (kafkago.Message, error) {
	r.mu.Lock()
	if r.next < len(r.messages) {
		msg := r.messages[r.next]
		r.next++
		r.mu.Unlock()
		return msg, nil
	}
	r.mu.Unlock()

	<-ctx.Done()
	return kafkago.Message{}, ctx.Err()
}

func (r *scriptedReader) CommitMessages(_ context.Context, msgs ...kafkago.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, msg := range msgs {
		r.commits = append(r.commits, msg.Offset)
	}
	return nil
}

func (r *scriptedReader) Close() error { return nil }

func (r *scriptedReader) committed() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int64(nil), r.commits...)
}

func (r *scriptedReader) fetched() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.next
}

func scriptedMessage(t *testing.T, offset int64, env events.Envelope) kafkago.Message {
	t.Helper()
	payload, err := json.Marshal(env)
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	return kafkago.Message{Offset: offset, Key: []byte(env.CorrelationID), Value: payload}
}

func TestKafkaConsumerCommitsOffsetsInFetchOrder(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	first := testEnvelope(t, "order.created")
	second := testEnvelope(t, "inventory.reserved")
	reader := &scriptedReader{messages: []kafkago.Message{
		scriptedMessage(t, 6, first),
		scriptedMessage(t, 7, second),
	}}

	var firstAttempts atomic.Int32
	k := NewKafka(nil, time.Millisecond, nil)
	go k.consume(ctx, reader, "order.events", "inventory", func(_ context.Context, env events.Envelope) error {
		if env.MessageID == first.MessageID && firstAttempts.Add(1) < 3 {
			return errors.New("transient store error")
		}
		return nil
	})

	waitUntil(t, time.Second, func() bool { return len(reader.committed()) == 2 })

	got := reader.committed()
	if got[0] != 6 || got[1] != 7 {
		t.Fatalf("expected offsets committed in fetch order [6 7], got %v", got)
	}
	if firstAttempts.Load() != 3 {
		t.Fatalf("expected 3 attempts for the first message, got %d", firstAttempts.Load())
	}
}

func TestKafkaConsumerHoldsOffsetWhileHandlerFails(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reader := &scriptedReader{messages: []kafkago.Message{
		scriptedMessage(t, 4, testEnvelope(t, "order.created")),
		scriptedMessage(t, 5, testEnvelope(t, "order.created")),
	}}

	var attempts atomic.Int32
	k := NewKafka(nil, time.Millisecond, nil)
	go k.consume(ctx, reader, "order.events", "inventory", func(context.Context, events.Envelope) error {
		attempts.Add(1)
		return errors.New("store unavailable")
	})

	waitUntil(t, time.Second, func() bool { return attempts.Load() >= 3 })

	if commits := reader.committed(); len(commits) != 0 {
		t.Fatalf("expected no commits while the handler fails, got %v", commits)
	}
	if reader.fetched() != 1 {
		t.Fatalf("expected the consumer to stay on the failed message, fetched %d", reader.fetched())
	}
}

func TestKafkaConsumerSkipsMalformedPayload(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	valid := testEnvelope(t, "payment.captured")
	reader := &scriptedReader{messages: []kafkago.Message{
		{Offset: 2, Value: []byte("{not json")},
		scriptedMessage(t, 3, valid),
	}}

	var handled atomic.Int32
	k := NewKafka(nil, time.Millisecond, nil)
	go k.consume(ctx, reader, "payment.events", "delivery", func(context.Context, events.Envelope) error {
		handled.Add(1)
		return nil
	})

	waitUntil(t, time.Second, func() bool { return len(reader.committed()) == 2 })

	got := reader.committed()
	if got[0] != 2 || got[1] != 3 {
		t.Fatalf("expected malformed offset committed before the next, got %v", got)
	}
	if handled.Load() != 1 {
		t.Fatalf("expected the handler to run only for the valid message, got %d", handled.Load())
	}
}
