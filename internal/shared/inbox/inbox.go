package inbox

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"fulfillment/internal/shared/events"
)

// Record marks that a consumer already applied a given message id. The
// composite key makes the guard per-(consumer, message): two services may each
// process the same message once.
type Record struct {
	MessageID     string    `gorm:"column:message_id;primaryKey"`
	ConsumerName  string    `gorm:"column:consumer_name;primaryKey"`
	CorrelationID string    `gorm:"column:correlation_id"`
	ProcessedAt   time.Time `gorm:"column:processed_at"`
}

// ProcessOnce converts at-least-once delivery into exactly-once effect. It
// opens one transaction, inserts the (message_id, consumer_name) row with
// insert-or-skip semantics, and only when the row is new runs fn inside the
// same transaction. An error from fn rolls back everything, including the
// inbox row, so broker redelivery retries the handler from scratch.
func ProcessOnce(
	ctx context.Context,
	db *gorm.DB,
	table string,
	consumerName string,
	env events.Envelope,
	now time.Time,
	fn func(tx *gorm.DB) error,
) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row := Record{
			MessageID:     env.MessageID,
			ConsumerName:  consumerName,
			CorrelationID: env.CorrelationID,
			ProcessedAt:   now.UTC(),
		}
		result := tx.Table(table).
			Clauses(clause.OnConflict{
				Columns: []clause.Column{
					{Name: "message_id"},
					{Name: "consumer_name"},
				},
				DoNothing: true,
			}).
			Create(&row)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			// Already applied by this consumer. Commit with no side effects.
			return nil
		}
		return fn(tx)
	})
}
