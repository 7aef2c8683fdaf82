package postgresadapter

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"fulfillment/contexts/fulfillment/order-service/domain/entities"
	domainerrors "fulfillment/contexts/fulfillment/order-service/domain/errors"
	"fulfillment/contexts/fulfillment/order-service/ports"
	"fulfillment/internal/shared/events"
	"fulfillment/internal/shared/inbox"
	"fulfillment/internal/shared/outbox"
)

const (
	ordersTable      = "orders"
	orderItemsTable  = "order_items"
	orderOutboxTable = "order_outbox"
	orderInboxTable  = "order_inbox"
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

func (r *Repository) CreateOrderWithOutbox(ctx context.Context, order entities.Order, env events.Envelope) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row := orderModelFromEntity(order)
		if err := tx.Create(&row).Error; err != nil {
			if isUniqueViolation(err) {
				return domainerrors.ErrInvalidOrderInput
			}
			return err
		}
		for _, item := range order.Items {
			itemRow := orderItemModel{
				OrderID:   order.OrderID,
				ProductID: item.ProductID,
				Quantity:  item.Quantity,
				UnitPrice: item.UnitPrice,
			}
			if err := tx.Create(&itemRow).Error; err != nil {
				return err
			}
		}
		return outbox.Append(tx, orderOutboxTable, env, order.CreatedAt)
	})
}

func (r *Repository) GetOrder(ctx context.Context, orderID string) (entities.Order, error) {
	return loadOrder(r.db.WithContext(ctx), orderID)
}

// ProcessOnce implements the inbox guard for order saga handlers: the dedup
// insert, the aggregate mutation and any outbox appends commit together.
func (r *Repository) ProcessOnce(
	ctx context.Context,
	consumerName string,
	env events.Envelope,
	now time.Time,
	fn func(ctx context.Context, store ports.SagaStore) error,
) error {
	return inbox.ProcessOnce(ctx, r.db, orderInboxTable, consumerName, env, now, func(tx *gorm.DB) error {
		return fn(ctx, txStore{tx: tx})
	})
}

func (r *Repository) ListPendingOutbox(ctx context.Context, limit int) ([]ports.OutboxMessage, error) {
	rows, err := outbox.ListPending(ctx, r.db, orderOutboxTable, limit)
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
	return outbox.MarkDelivered(ctx, r.db, orderOutboxTable, id, deliveredAt)
}

// txStore is the SagaStore view bound to one inbox-guard transaction.
type txStore struct {
	tx *gorm.DB
}

func (s txStore) GetOrder(ctx context.Context, orderID string) (entities.Order, error) {
	return loadOrder(s.tx.WithContext(ctx), orderID)
}

func (s txStore) SaveOrder(ctx context.Context, order entities.Order) error {
	result := s.tx.WithContext(ctx).
		Table(ordersTable).
		Where("order_id = ?", order.OrderID).
		Updates(map[string]any{
			"status":         string(order.Status),
			"failure_reason": order.FailureReason,
			"updated_at":     order.UpdatedAt.UTC(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrOrderNotFound
	}
	return nil
}

func (s txStore) AppendOutbox(ctx context.Context, env events.Envelope) error {
	return outbox.Append(s.tx.WithContext(ctx), orderOutboxTable, env, env.OccurredAtUTC)
}

func loadOrder(db *gorm.DB, orderID string) (entities.Order, error) {
	var row orderModel
	err := db.Table(ordersTable).Where("order_id = ?", orderID).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Order{}, domainerrors.ErrOrderNotFound
		}
		return entities.Order{}, err
	}

	var itemRows []orderItemModel
	if err := db.Table(orderItemsTable).
		Where("order_id = ?", orderID).
		Order("id ASC").
		Find(&itemRows).
		Error; err != nil {
		return entities.Order{}, err
	}

	order := row.toEntity()
	order.Items = make([]entities.LineItem, 0, len(itemRows))
	for _, item := range itemRows {
		order.Items = append(order.Items, entities.LineItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		})
	}
	return order, nil
}

type orderModel struct {
	OrderID         string    `gorm:"column:order_id;primaryKey"`
	CustomerID      string    `gorm:"column:customer_id"`
	ShippingAddress string    `gorm:"column:shipping_address"`
	Currency        string    `gorm:"column:currency"`
	TotalAmount     float64   `gorm:"column:total_amount"`
	Status          string    `gorm:"column:status"`
	FailureReason   string    `gorm:"column:failure_reason"`
	CreatedAt       time.Time `gorm:"column:created_at"`
	UpdatedAt       time.Time `gorm:"column:updated_at"`
}

func (orderModel) TableName() string {
	return ordersTable
}

func (m orderModel) toEntity() entities.Order {
	return entities.Order{
		OrderID:         m.OrderID,
		CustomerID:      m.CustomerID,
		ShippingAddress: m.ShippingAddress,
		Currency:        m.Currency,
		TotalAmount:     m.TotalAmount,
		Status:          entities.Status(m.Status),
		FailureReason:   m.FailureReason,
		CreatedAt:       m.CreatedAt.UTC(),
		UpdatedAt:       m.UpdatedAt.UTC(),
	}
}

func orderModelFromEntity(order entities.Order) orderModel {
	return orderModel{
		OrderID:         order.OrderID,
		CustomerID:      order.CustomerID,
		ShippingAddress: order.ShippingAddress,
		Currency:        order.Currency,
		TotalAmount:     order.TotalAmount,
		Status:          string(order.Status),
		FailureReason:   order.FailureReason,
		CreatedAt:       order.CreatedAt.UTC(),
		UpdatedAt:       order.UpdatedAt.UTC(),
	}
}

type orderItemModel struct {
	ID        int64   `gorm:"column:id;primaryKey;autoIncrement"`
	OrderID   string  `gorm:"column:order_id;index"`
	ProductID string  `gorm:"column:product_id"`
	Quantity  int     `gorm:"column:quantity"`
	UnitPrice float64 `gorm:"column:unit_price"`
}

func (orderItemModel) TableName() string {
	return orderItemsTable
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
