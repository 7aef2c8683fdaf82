package postgresadapter

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"fulfillment/contexts/fulfillment/delivery-service/domain/entities"
	domainerrors "fulfillment/contexts/fulfillment/delivery-service/domain/errors"
	"fulfillment/contexts/fulfillment/delivery-service/ports"
	"fulfillment/internal/shared/events"
	"fulfillment/internal/shared/inbox"
	"fulfillment/internal/shared/outbox"
)

const (
	shipmentsTable      = "shipments"
	shipmentItemsTable  = "shipment_items"
	shipmentOutboxTable = "shipment_outbox"
	shipmentInboxTable  = "shipment_inbox"
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

func (r *Repository) GetShipment(ctx context.Context, shipmentID string) (entities.Shipment, error) {
	return loadShipment(r.db.WithContext(ctx), "shipment_id = ?", shipmentID)
}

func (r *Repository) GetShipmentByOrder(ctx context.Context, orderID string) (entities.Shipment, error) {
	return loadShipment(r.db.WithContext(ctx), "order_id = ?", orderID)
}

func (r *Repository) SaveShipmentWithOutbox(ctx context.Context, shipment entities.Shipment, envs []events.Envelope) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := saveShipment(tx, shipment); err != nil {
			return err
		}
		for _, env := range envs {
			if err := outbox.Append(tx, shipmentOutboxTable, env, env.OccurredAtUTC); err != nil {
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
	return inbox.ProcessOnce(ctx, r.db, shipmentInboxTable, consumerName, env, now, func(tx *gorm.DB) error {
		return fn(ctx, txStore{tx: tx})
	})
}

func (r *Repository) ListPendingOutbox(ctx context.Context, limit int) ([]ports.OutboxMessage, error) {
	rows, err := outbox.ListPending(ctx, r.db, shipmentOutboxTable, limit)
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
	return outbox.MarkDelivered(ctx, r.db, shipmentOutboxTable, id, deliveredAt)
}

type txStore struct {
	tx *gorm.DB
}

func (s txStore) CreateShipment(ctx context.Context, shipment entities.Shipment) error {
	row := shipmentModelFromEntity(shipment)
	if err := s.tx.WithContext(ctx).Create(&row).Error; err != nil {
		return err
	}
	for _, item := range shipment.Items {
		itemRow := shipmentItemModel{
			ShipmentID: shipment.ShipmentID,
			ProductID:  item.ProductID,
			Quantity:   item.Quantity,
		}
		if err := s.tx.WithContext(ctx).Create(&itemRow).Error; err != nil {
			return err
		}
	}
	return nil
}

func (s txStore) GetShipment(ctx context.Context, shipmentID string) (entities.Shipment, error) {
	return loadShipment(s.tx.WithContext(ctx), "shipment_id = ?", shipmentID)
}

func (s txStore) SaveShipment(ctx context.Context, shipment entities.Shipment) error {
	return saveShipment(s.tx.WithContext(ctx), shipment)
}

func (s txStore) AppendOutbox(ctx context.Context, env events.Envelope) error {
	return outbox.Append(s.tx.WithContext(ctx), shipmentOutboxTable, env, env.OccurredAtUTC)
}

// saveShipment only touches the mutable columns; items are written once at
// creation and never change.
func saveShipment(tx *gorm.DB, shipment entities.Shipment) error {
	result := tx.Table(shipmentsTable).
		Where("shipment_id = ?", shipment.ShipmentID).
		Updates(map[string]any{
			"status":          string(shipment.Status),
			"carrier":         shipment.Carrier,
			"tracking_number": shipment.TrackingNumber,
			"failure_reason":  shipment.FailureReason,
			"updated_at":      shipment.UpdatedAt.UTC(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrShipmentNotFound
	}
	return nil
}

func loadShipment(db *gorm.DB, query string, arg any) (entities.Shipment, error) {
	var row shipmentModel
	err := db.Table(shipmentsTable).Where(query, arg).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Shipment{}, domainerrors.ErrShipmentNotFound
		}
		return entities.Shipment{}, err
	}

	var itemRows []shipmentItemModel
	err = db.Table(shipmentItemsTable).
		Where("shipment_id = ?", row.ShipmentID).
		Order("id ASC").
		Find(&itemRows).
		Error
	if err != nil {
		return entities.Shipment{}, err
	}

	shipment := row.toEntity()
	for _, item := range itemRows {
		shipment.Items = append(shipment.Items, entities.ShipmentItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
		})
	}
	return shipment, nil
}

type shipmentModel struct {
	ShipmentID     string    `gorm:"column:shipment_id;primaryKey"`
	OrderID        string    `gorm:"column:order_id;uniqueIndex"`
	Address        string    `gorm:"column:address"`
	Carrier        string    `gorm:"column:carrier"`
	TrackingNumber string    `gorm:"column:tracking_number"`
	Status         string    `gorm:"column:status"`
	FailureReason  string    `gorm:"column:failure_reason"`
	CreatedAt      time.Time `gorm:"column:created_at"`
	UpdatedAt      time.Time `gorm:"column:updated_at"`
}

func (shipmentModel) TableName() string {
	return shipmentsTable
}

func (m shipmentModel) toEntity() entities.Shipment {
	return entities.Shipment{
		ShipmentID:     m.ShipmentID,
		OrderID:        m.OrderID,
		Address:        m.Address,
		Carrier:        m.Carrier,
		TrackingNumber: m.TrackingNumber,
		Status:         entities.Status(m.Status),
		FailureReason:  m.FailureReason,
		CreatedAt:      m.CreatedAt.UTC(),
		UpdatedAt:      m.UpdatedAt.UTC(),
	}
}

func shipmentModelFromEntity(shipment entities.Shipment) shipmentModel {
	return shipmentModel{
		ShipmentID:     shipment.ShipmentID,
		OrderID:        shipment.OrderID,
		Address:        shipment.Address,
		Carrier:        shipment.Carrier,
		TrackingNumber: shipment.TrackingNumber,
		Status:         string(shipment.Status),
		FailureReason:  shipment.FailureReason,
		CreatedAt:      shipment.CreatedAt.UTC(),
		UpdatedAt:      shipment.UpdatedAt.UTC(),
	}
}

type shipmentItemModel struct {
	ID         int64  `gorm:"column:id;primaryKey;autoIncrement"`
	ShipmentID string `gorm:"column:shipment_id;index"`
	ProductID  string `gorm:"column:product_id"`
	Quantity   int    `gorm:"column:quantity"`
}

func (shipmentItemModel) TableName() string {
	return shipmentItemsTable
}
