package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"fulfillment/internal/shared/events"
)

// Kafka is the production broker adapter. One writer per topic and one
// consumer-group reader per subscription. Each reader processes messages
// sequentially and commits its offset only after the handler returns nil, so
// committed offsets never run ahead of handled messages. Committing a later
// offset would mark every earlier offset on the partition consumed, which is
// why failed handlers are retried in place instead of fetching past them.
type Kafka struct {
	mu      sync.Mutex
	brokers []string
	writers map[string]*kafkago.Writer
	backoff time.Duration
	logger  *slog.Logger
}

func NewKafka(brokers []string, retryBackoff time.Duration, logger *slog.Logger) *Kafka {
	if retryBackoff <= 0 {
		retryBackoff = 50 * time.Millisecond
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Kafka{
		brokers: brokers,
		writers: make(map[string]*kafkago.Writer),
		backoff: retryBackoff,
		logger:  logger,
	}
}

func (k *Kafka) Publish(ctx context.Context, topic string, env events.Envelope) error {
	payload, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	err = k.writer(topic).WriteMessages(ctx, kafkago.Message{
		// Correlation id keying keeps one saga's events on one partition.
		Key:   []byte(env.CorrelationID),
		Value: payload,
	})
	if err != nil {
		return fmt.Errorf("write to topic %s: %w", topic, err)
	}
	return nil
}

// groupReader is the slice of kafkago.Reader the consume loop depends on.
type groupReader interface {
	FetchMessage(ctx context.Context) (kafkago.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

func (k *Kafka) Subscribe(ctx context.Context, topic string, consumerGroup string, handler Handler) error {
	reader := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers: k.brokers,
		Topic:   topic,
		GroupID: consumerGroup,
	})

	go k.consume(ctx, reader, topic, consumerGroup, handler)
	return nil
}

func (k *Kafka) consume(ctx context.Context, reader groupReader, topic, group string, handler Handler) {
	defer reader.Close()

	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				k.logger.Info("kafka consumer shutting down",
					"event", "kafka_consumer_stopped",
					"module", "internal/platform/messaging",
					"layer", "platform",
					"topic", topic,
					"consumer_group", group,
				)
				return
			}
			k.logger.Error("kafka fetch failed",
				"event", "kafka_fetch_failed",
				"module", "internal/platform/messaging",
				"layer", "platform",
				"topic", topic,
				"error", err.Error(),
			)
			continue
		}

		var env events.Envelope
		if err := json.Unmarshal(msg.Value, &env); err != nil {
			k.logger.Error("kafka message decode failed",
				"event", "kafka_decode_failed",
				"module", "internal/platform/messaging",
				"layer", "platform",
				"topic", topic,
				"error", err.Error(),
			)
			// Malformed payloads can never succeed; drop past them.
			_ = reader.CommitMessages(ctx, msg)
			continue
		}

		// Retry in place until the handler accepts the message. Fetching
		// past a failed offset and committing a later one would mark the
		// failed offset consumed.
		for attempt := 1; ; attempt++ {
			err := handler(ctx, env)
			if err == nil {
				break
			}
			k.logger.Warn("consumer handler failed",
				"event", "kafka_consume_failed",
				"module", "internal/platform/messaging",
				"layer", "platform",
				"topic", topic,
				"consumer_group", group,
				"message_id", env.MessageID,
				"attempt", attempt,
				"error", err.Error(),
			)
			select {
			case <-ctx.Done():
				return
			case <-time.After(jitteredBackoff(k.backoff, attempt)):
			}
		}

		if err := reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			k.logger.Error("kafka offset commit failed",
				"event", "kafka_commit_failed",
				"module", "internal/platform/messaging",
				"layer", "platform",
				"topic", topic,
				"message_id", env.MessageID,
				"error", err.Error(),
			)
		}
	}
}

func (k *Kafka) writer(topic string) *kafkago.Writer {
	k.mu.Lock()
	defer k.mu.Unlock()

	if w, ok := k.writers[topic]; ok {
		return w
	}
	w := &kafkago.Writer{
		Addr:     kafkago.TCP(k.brokers...),
		Topic:    topic,
		Balancer: &kafkago.LeastBytes{},
	}
	k.writers[topic] = w
	return w
}

func (k *Kafka) Close() error {
	k.mu.Lock()
	defer k.mu.Unlock()

	var firstErr error
	for _, w := range k.writers {
		if err := w.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
