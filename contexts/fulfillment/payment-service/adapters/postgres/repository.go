package postgresadapter

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"fulfillment/contexts/fulfillment/payment-service/domain/entities"
	domainerrors "fulfillment/contexts/fulfillment/payment-service/domain/errors"
	"fulfillment/contexts/fulfillment/payment-service/ports"
	"fulfillment/internal/shared/events"
	"fulfillment/internal/shared/inbox"
	"fulfillment/internal/shared/outbox"
)

const (
	paymentsTable      = "payments"
	attemptsTable      = "payment_attempts"
	paymentOutboxTable = "payment_outbox"
	paymentInboxTable  = "payment_inbox"
)

type Repository struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewRepository(db *gorm.DB, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{db: db, logger: logger}
}

func (r *Repository) GetPayment(ctx context.Context, paymentID string) (entities.Payment, error) {
	return loadPayment(r.db.WithContext(ctx), "payment_id = ?", paymentID)
}

func (r *Repository) GetPaymentByOrder(ctx context.Context, orderID string) (entities.Payment, error) {
	return loadPayment(r.db.WithContext(ctx), "order_id = ?", orderID)
}

func (r *Repository) SavePaymentWithOutbox(ctx context.Context, payment entities.Payment, envs []events.Envelope) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := savePayment(tx, payment); err != nil {
			return err
		}
		for _, env := range envs {
			if err := outbox.Append(tx, paymentOutboxTable, env, env.OccurredAtUTC); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *Repository) ProcessOnce(
	ctx context.Context,
	consumerName string,
	env events.Envelope,
	now time.Time,
	fn func(ctx context.Context, store ports.SagaStore) error,
) error {
	return inbox.ProcessOnce(ctx, r.db, paymentInboxTable, consumerName, env, now, func(tx *gorm.DB) error {
		return fn(ctx, txStore{tx: tx})
	})
}

func (r *Repository) ListPendingOutbox(ctx context.Context, limit int) ([]ports.OutboxMessage, error) {
	rows, err := outbox.ListPending(ctx, r.db, paymentOutboxTable, limit)
	if err != nil {
		return nil, err
	}
	items := make([]ports.OutboxMessage, 0, len(rows))
	for _, row := range rows {
		items = append(items, ports.OutboxMessage{ID: row.ID, Envelope: row.Envelope()})
	}
	return items, nil
}

func (r *Repository) MarkOutboxDelivered(ctx context.Context, id int64, deliveredAt time.Time) error {
	return outbox.MarkDelivered(ctx, r.db, paymentOutboxTable, id, deliveredAt)
}

type txStore struct {
	tx *gorm.DB
}

func (s txStore) CreatePayment(ctx context.Context, payment entities.Payment) error {
	row := paymentModelFromEntity(payment)
	if err := s.tx.WithContext(ctx).Create(&row).Error; err != nil {
		return err
	}
	return appendAttempts(s.tx.WithContext(ctx), payment)
}

func (s txStore) SavePayment(ctx context.Context, payment entities.Payment) error {
	return savePayment(s.tx.WithContext(ctx), payment)
}

func (s txStore) AppendOutbox(ctx context.Context, env events.Envelope) error {
	return outbox.Append(s.tx.WithContext(ctx), paymentOutboxTable, env, env.OccurredAtUTC)
}

func savePayment(tx *gorm.DB, payment entities.Payment) error {
	result := tx.Table(paymentsTable).
		Where("payment_id = ?", payment.PaymentID).
		Updates(map[string]any{
			"status":         string(payment.Status),
			"failure_reason": payment.FailureReason,
			"updated_at":     payment.UpdatedAt.UTC(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrPaymentNotFound
	}
	return appendAttempts(tx, payment)
}

// appendAttempts persists the entity's attempt log. Rows key on
// (payment_id, seq) so replays of an already persisted attempt are dropped,
// keeping the trail append-only.
func appendAttempts(tx *gorm.DB, payment entities.Payment) error {
	for seq, attempt := range payment.Attempts {
		row := attemptModel{
			PaymentID: payment.PaymentID,
			Seq:       seq,
			Operation: attempt.Operation,
			Success:   attempt.Success,
			Code:      attempt.Code,
			At:        attempt.At.UTC(),
		}
		err := tx.
			Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "payment_id"}, {Name: "seq"}},
				DoNothing: true,
			}).
			Create(&row).
			Error
		if err != nil {
			return err
		}
	}
	return nil
}

func loadPayment(db *gorm.DB, query string, arg any) (entities.Payment, error) {
	var row paymentModel
	err := db.Table(paymentsTable).Where(query, arg).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Payment{}, domainerrors.ErrPaymentNotFound
		}
		return entities.Payment{}, err
	}

	var attemptRows []attemptModel
	err = db.Table(attemptsTable).
		Where("payment_id = ?", row.PaymentID).
		Order("seq ASC").
		Find(&attemptRows).
		Error
	if err != nil {
		return entities.Payment{}, err
	}

	payment := row.toEntity()
	for _, a := range attemptRows {
		payment.Attempts = append(payment.Attempts, entities.Attempt{
			Operation: a.Operation,
			Success:   a.Success,
			Code:      a.Code,
			At:        a.At.UTC(),
		})
	}
	return payment, nil
}

type paymentModel struct {
	PaymentID     string    `gorm:"column:payment_id;primaryKey"`
	OrderID       string    `gorm:"column:order_id;uniqueIndex"`
	Amount        float64   `gorm:"column:amount"`
	Currency      string    `gorm:"column:currency"`
	Method        string    `gorm:"column:method"`
	Status        string    `gorm:"column:status"`
	FailureReason string    `gorm:"column:failure_reason"`
	CreatedAt     time.Time `gorm:"column:created_at"`
	UpdatedAt     time.Time `gorm:"column:updated_at"`
}

func (paymentModel) TableName() string {
	return paymentsTable
}

func (m paymentModel) toEntity() entities.Payment {
	return entities.Payment{
		PaymentID:     m.PaymentID,
		OrderID:       m.OrderID,
		Amount:        m.Amount,
		Currency:      m.Currency,
		Method:        m.Method,
		Status:        entities.Status(m.Status),
		FailureReason: m.FailureReason,
		CreatedAt:     m.CreatedAt.UTC(),
		UpdatedAt:     m.UpdatedAt.UTC(),
	}
}

func paymentModelFromEntity(payment entities.Payment) paymentModel {
	return paymentModel{
		PaymentID:     payment.PaymentID,
		OrderID:       payment.OrderID,
		Amount:        payment.Amount,
		Currency:      payment.Currency,
		Method:        payment.Method,
		Status:        string(payment.Status),
		FailureReason: payment.FailureReason,
		CreatedAt:     payment.CreatedAt.UTC(),
		UpdatedAt:     payment.UpdatedAt.UTC(),
	}
}

type attemptModel struct {
	ID        int64     `gorm:"column:id;primaryKey;autoIncrement"`
	PaymentID string    `gorm:"column:payment_id;uniqueIndex:uq_payment_attempt_seq"`
	Seq       int       `gorm:"column:seq;uniqueIndex:uq_payment_attempt_seq"`
	Operation string    `gorm:"column:operation"`
	Success   bool      `gorm:"column:success"`
	Code      string    `gorm:"column:code"`
	At        time.Time `gorm:"column:at"`
}

func (attemptModel) TableName() string {
	return attemptsTable
}
