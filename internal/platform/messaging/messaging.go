package messaging

import (
	"context"

	"fulfillment/internal/shared/events"
)

// Handler processes one delivered envelope. Returning an error requests
// redelivery; handlers are expected to be wrapped by an inbox guard so that a
// retried or duplicated delivery is an effect-free replay.
type Handler func(ctx context.Context, env events.Envelope) error

// Publisher delivers an envelope to every subscriber of a topic with
// at-least-once semantics.
type Publisher interface {
	Publish(ctx context.Context, topic string, env events.Envelope) error
}

// Subscriber binds a handler to a topic within a consumer group.
type Subscriber interface {
	Subscribe(ctx context.Context, topic string, consumerGroup string, handler Handler) error
}

// DeadLetterFunc receives a message whose handler exhausted its redelivery
// budget. The destination (parking-lot topic, alert, table) is an operator
// choice; the default adapter only logs.
type DeadLetterFunc func(ctx context.Context, topic string, env events.Envelope, err error)
