package events

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Envelope is the wire contract shared by every integration event.
// CorrelationID ties all events of one saga instance together (by convention
// it equals the originating order id). CausationID is the message id of the
// event that triggered this one and is empty only for the saga-initiating
// event, so the chain forms a tree rooted at that event.
type Envelope struct {
	MessageID     string          `json:"message_id"`
	CorrelationID string          `json:"correlation_id"`
	CausationID   string          `json:"causation_id,omitempty"`
	EventType     string          `json:"event_type"`
	SourceService string          `json:"source_service"`
	OccurredAtUTC time.Time       `json:"occurred_at_utc"`
	Payload       json.RawMessage `json:"payload"`
}

var ErrInvalidEnvelope = errors.New("events: envelope requires event type and correlation id")

// NewEnvelope builds the saga-initiating envelope for a correlation chain.
func NewEnvelope(eventType, sourceService, correlationID string, occurredAt time.Time, payload any) (Envelope, error) {
	if eventType == "" || correlationID == "" {
		return Envelope{}, ErrInvalidEnvelope
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		MessageID:     uuid.NewString(),
		CorrelationID: correlationID,
		EventType:     eventType,
		SourceService: sourceService,
		OccurredAtUTC: occurredAt.UTC(),
		Payload:       data,
	}, nil
}

// Follow builds the next envelope in a chain: correlation id is propagated
// unchanged and causation id is set to the parent's message id.
func Follow(parent Envelope, eventType, sourceService string, occurredAt time.Time, payload any) (Envelope, error) {
	env, err := NewEnvelope(eventType, sourceService, parent.CorrelationID, occurredAt, payload)
	if err != nil {
		return Envelope{}, err
	}
	env.CausationID = parent.MessageID
	return env, nil
}
