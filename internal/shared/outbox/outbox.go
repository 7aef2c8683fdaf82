package outbox

import (
	"context"
	"time"

	"gorm.io/gorm"

	"fulfillment/internal/shared/events"
)

// Record is one undelivered-or-delivered outbox row. Rows are written in the
// same local transaction as the aggregate mutation that produced the event;
// only the owning service's relay reads and marks them. ID is the per-producer
// sequence, so ListPending returns rows in enqueue order.
type Record struct {
	ID            int64      `gorm:"column:id;primaryKey;autoIncrement"`
	MessageID     string     `gorm:"column:message_id;uniqueIndex"`
	CorrelationID string     `gorm:"column:correlation_id"`
	CausationID   string     `gorm:"column:causation_id"`
	EventType     string     `gorm:"column:event_type"`
	SourceService string     `gorm:"column:source_service"`
	OccurredAt    time.Time  `gorm:"column:occurred_at"`
	Payload       []byte     `gorm:"column:payload"`
	CreatedAt     time.Time  `gorm:"column:created_at"`
	DeliveredAt   *time.Time `gorm:"column:delivered_at"`
}

// Append writes env as a pending record inside the caller's transaction.
// tx must be the same transaction that persists the business mutation.
func Append(tx *gorm.DB, table string, env events.Envelope, now time.Time) error {
	row := Record{
		MessageID:     env.MessageID,
		CorrelationID: env.CorrelationID,
		CausationID:   env.CausationID,
		EventType:     env.EventType,
		SourceService: env.SourceService,
		OccurredAt:    env.OccurredAtUTC,
		Payload:       append([]byte(nil), env.Payload...),
		CreatedAt:     now.UTC(),
	}
	return tx.Table(table).Create(&row).Error
}

// ListPending returns undelivered rows oldest-first for the relay.
func ListPending(ctx context.Context, db *gorm.DB, table string, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []Record
	err := db.WithContext(ctx).
		Table(table).
		Where("delivered_at IS NULL").
		Order("id ASC").
		Limit(limit).
		Find(&rows).
		Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// MarkDelivered stamps delivered_at after the broker accepted the message.
// A crash between broker accept and this update causes redelivery on the next
// relay cycle, which consumers absorb through their inbox guard.
func MarkDelivered(ctx context.Context, db *gorm.DB, table string, id int64, deliveredAt time.Time) error {
	at := deliveredAt.UTC()
	return db.WithContext(ctx).
		Table(table).
		Where("id = ?", id).
		Update("delivered_at", &at).
		Error
}

// Envelope reconstructs the wire envelope from a stored row.
func (r Record) Envelope() events.Envelope {
	return events.Envelope{
		MessageID:     r.MessageID,
		CorrelationID: r.CorrelationID,
		CausationID:   r.CausationID,
		EventType:     r.EventType,
		SourceService: r.SourceService,
		OccurredAtUTC: r.OccurredAt.UTC(),
		Payload:       append([]byte(nil), r.Payload...),
	}
}
