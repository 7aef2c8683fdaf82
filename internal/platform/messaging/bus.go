package messaging

import (
	"context"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"fulfillment/internal/shared/events"
)

// Bus is the in-process event bus adapter used for the single-process runtime
// and tests. Delivery is at-least-once per consumer group: each subscription
// owns a bounded worker pool, a failed handler is redelivered with jittered
// exponential backoff up to MaxAttempts, and exhausted messages go to the
// dead-letter hook.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[string][]*subscription
	workers     int
	maxAttempts int
	baseBackoff time.Duration
	deadLetter  DeadLetterFunc
	logger      *slog.Logger
}

type subscription struct {
	topic   string
	group   string
	handler Handler
	inbox   chan events.Envelope
}

type BusConfig struct {
	Workers     int
	MaxAttempts int
	BaseBackoff time.Duration
	DeadLetter  DeadLetterFunc
}

func NewBus(cfg BusConfig, logger *slog.Logger) *Bus {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.BaseBackoff <= 0 {
		cfg.BaseBackoff = 50 * time.Millisecond
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		subscribers: make(map[string][]*subscription),
		workers:     cfg.Workers,
		maxAttempts: cfg.MaxAttempts,
		baseBackoff: cfg.BaseBackoff,
		deadLetter:  cfg.DeadLetter,
		logger:      logger,
	}
}

// Publish hands the envelope to every subscription of the topic. The send
// blocks when a subscription's buffer is full, so a slow consumer applies
// backpressure instead of losing messages.
func (b *Bus) Publish(ctx context.Context, topic string, env events.Envelope) error {
	b.mu.RLock()
	subs := append([]*subscription(nil), b.subscribers[topic]...)
	b.mu.RUnlock()

	for _, sub := range subs {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case sub.inbox <- env:
		}
	}

	b.logger.Debug("event published",
		"event", "bus_publish",
		"module", "internal/platform/messaging",
		"layer", "platform",
		"topic", topic,
		"message_id", env.MessageID,
		"event_type", env.EventType,
	)
	return nil
}

// Subscribe registers handler for topic and starts its worker pool. Workers
// run until ctx is cancelled; an in-flight handler's local transaction simply
// does not commit on shutdown, so redelivery is safe.
func (b *Bus) Subscribe(ctx context.Context, topic string, consumerGroup string, handler Handler) error {
	sub := &subscription{
		topic:   topic,
		group:   consumerGroup,
		handler: handler,
		inbox:   make(chan events.Envelope, 128),
	}

	b.mu.Lock()
	b.subscribers[topic] = append(b.subscribers[topic], sub)
	b.mu.Unlock()

	for i := 0; i < b.workers; i++ {
		go b.runWorker(ctx, sub)
	}
	return nil
}

func (b *Bus) runWorker(ctx context.Context, sub *subscription) {
	for {
		select {
		case <-ctx.Done():
			return
		case env := <-sub.inbox:
			b.deliver(ctx, sub, env)
		}
	}
}

func (b *Bus) deliver(ctx context.Context, sub *subscription, env events.Envelope) {
	var lastErr error
	for attempt := 0; attempt < b.maxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(jitteredBackoff(b.baseBackoff, attempt)):
			}
		}

		lastErr = sub.handler(ctx, env)
		if lastErr == nil {
			return
		}

		b.logger.Warn("consumer handler failed",
			"event", "bus_consume_failed",
			"module", "internal/platform/messaging",
			"layer", "platform",
			"topic", sub.topic,
			"consumer_group", sub.group,
			"message_id", env.MessageID,
			"attempt", attempt+1,
			"error", lastErr.Error(),
		)
	}

	b.logger.Error("message exhausted redelivery budget",
		"event", "bus_dead_letter",
		"module", "internal/platform/messaging",
		"layer", "platform",
		"topic", sub.topic,
		"consumer_group", sub.group,
		"message_id", env.MessageID,
		"correlation_id", env.CorrelationID,
		"error", lastErr.Error(),
	)
	if b.deadLetter != nil {
		b.deadLetter(ctx, sub.topic, env, lastErr)
	}
}

// jitteredBackoff spreads retries as base*2^(attempt-1) plus up to 50% random
// jitter so colliding consumers do not retry in lockstep.
func jitteredBackoff(base time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 16 {
		attempt = 16
	}
	delay := base << (attempt - 1)
	return delay + time.Duration(rand.Int63n(int64(delay)/2+1))
}
