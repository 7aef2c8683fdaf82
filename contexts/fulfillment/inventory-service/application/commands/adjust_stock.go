package commands

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	application "fulfillment/contexts/fulfillment/inventory-service/application"
	"fulfillment/contexts/fulfillment/inventory-service/domain/entities"
	domainerrors "fulfillment/contexts/fulfillment/inventory-service/domain/errors"
	"fulfillment/contexts/fulfillment/inventory-service/ports"
)

type AdjustStockCommand struct {
	ProductID string
	Quantity  int
}

// AdjustStockUseCase is the operational restock entry point. It creates the
// item when first stocked and otherwise increases on-hand.
type AdjustStockUseCase struct {
	Items       ports.ItemRepository
	Clock       ports.Clock
	IDGenerator ports.IDGenerator
	Logger      *slog.Logger
}

func (u AdjustStockUseCase) Execute(ctx context.Context, cmd AdjustStockCommand) (entities.InventoryItem, error) {
	logger := application.ResolveLogger(u.Logger)
	if strings.TrimSpace(cmd.ProductID) == "" {
		return entities.InventoryItem{}, domainerrors.ErrInvalidItemInput
	}
	if cmd.Quantity <= 0 {
		return entities.InventoryItem{}, domainerrors.ErrInvalidQuantity
	}

	now := u.now()
	item, err := u.Items.GetItemByProduct(ctx, cmd.ProductID)
	switch {
	case errors.Is(err, domainerrors.ErrItemNotFound):
		itemID, idErr := u.IDGenerator.NewID(ctx)
		if idErr != nil {
			return entities.InventoryItem{}, idErr
		}
		item, err = entities.NewInventoryItem(itemID, cmd.ProductID, cmd.Quantity, now)
		if err != nil {
			return entities.InventoryItem{}, err
		}
	case err != nil:
		return entities.InventoryItem{}, err
	default:
		if err := item.Increase(cmd.Quantity, now); err != nil {
			return entities.InventoryItem{}, err
		}
	}

	if err := u.Items.UpsertItem(ctx, item); err != nil {
		return entities.InventoryItem{}, err
	}

	logger.Info("stock adjusted",
		"event", "inventory_stock_adjusted",
		"module", "fulfillment/inventory-service",
		"layer", "application",
		"product_id", item.ProductID,
		"on_hand", item.OnHand,
	)
	return item, nil
}

func (u AdjustStockUseCase) now() time.Time {
	if u.Clock == nil {
		return time.Now().UTC()
	}
	return u.Clock.Now().UTC()
}
