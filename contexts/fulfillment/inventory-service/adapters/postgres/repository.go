package postgresadapter

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"fulfillment/contexts/fulfillment/inventory-service/domain/entities"
	domainerrors "fulfillment/contexts/fulfillment/inventory-service/domain/errors"
	"fulfillment/contexts/fulfillment/inventory-service/ports"
	"fulfillment/internal/shared/events"
	"fulfillment/internal/shared/inbox"
	"fulfillment/internal/shared/outbox"
)

const (
	itemsTable           = "inventory_items"
	inventoryOutboxTable = "inventory_outbox"
	inventoryInboxTable  = "inventory_inbox"
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

func (r *Repository) GetItemByProduct(ctx context.Context, productID string) (entities.InventoryItem, error) {
	return loadItem(r.db.WithContext(ctx), productID)
}

func (r *Repository) UpsertItem(ctx context.Context, item entities.InventoryItem) error {
	row := itemModelFromEntity(item)
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "product_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"on_hand", "updated_at"}),
		}).
		Create(&row).
		Error
}

func (r *Repository) ProcessOnce(
	ctx context.Context,
	consumerName string,
	env events.Envelope,
	now time.Time,
	fn func(ctx context.Context, store ports.SagaStore) error,
) error {
	return inbox.ProcessOnce(ctx, r.db, inventoryInboxTable, consumerName, env, now, func(tx *gorm.DB) error {
		return fn(ctx, txStore{tx: tx})
	})
}

func (r *Repository) ListPendingOutbox(ctx context.Context, limit int) ([]ports.OutboxMessage, error) {
	rows, err := outbox.ListPending(ctx, r.db, inventoryOutboxTable, limit)
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
	return outbox.MarkDelivered(ctx, r.db, inventoryOutboxTable, id, deliveredAt)
}

type txStore struct {
	tx *gorm.DB
}

func (s txStore) GetItemByProduct(ctx context.Context, productID string) (entities.InventoryItem, error) {
	return loadItem(s.tx.WithContext(ctx), productID)
}

func (s txStore) SaveItem(ctx context.Context, item entities.InventoryItem) error {
	result := s.tx.WithContext(ctx).
		Table(itemsTable).
		Where("item_id = ?", item.ItemID).
		Updates(map[string]any{
			"on_hand":    item.OnHand,
			"updated_at": item.UpdatedAt.UTC(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrItemNotFound
	}
	return nil
}

func (s txStore) AppendOutbox(ctx context.Context, env events.Envelope) error {
	return outbox.Append(s.tx.WithContext(ctx), inventoryOutboxTable, env, env.OccurredAtUTC)
}

func loadItem(db *gorm.DB, productID string) (entities.InventoryItem, error) {
	var row itemModel
	err := db.Table(itemsTable).Where("product_id = ?", productID).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.InventoryItem{}, domainerrors.ErrItemNotFound
		}
		return entities.InventoryItem{}, err
	}
	return row.toEntity(), nil
}

type itemModel struct {
	ItemID    string    `gorm:"column:item_id;primaryKey"`
	ProductID string    `gorm:"column:product_id;uniqueIndex"`
	OnHand    int       `gorm:"column:on_hand"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (itemModel) TableName() string {
	return itemsTable
}

func (m itemModel) toEntity() entities.InventoryItem {
	return entities.InventoryItem{
		ItemID:    m.ItemID,
		ProductID: m.ProductID,
		OnHand:    m.OnHand,
		UpdatedAt: m.UpdatedAt.UTC(),
	}
}

func itemModelFromEntity(item entities.InventoryItem) itemModel {
	return itemModel{
		ItemID:    item.ItemID,
		ProductID: item.ProductID,
		OnHand:    item.OnHand,
		UpdatedAt: item.UpdatedAt.UTC(),
	}
}
