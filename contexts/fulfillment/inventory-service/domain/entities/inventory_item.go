package entities

import (
	"strings"
	"time"

	domainerrors "fulfillment/contexts/fulfillment/inventory-service/domain/errors"
)

// InventoryItem has no status field; its safety is purely the non-negativity
// invariant on OnHand, enforced by the guarded Decrease.
type InventoryItem struct {
	ItemID    string
	ProductID string
	OnHand    int
	UpdatedAt time.Time
}

func NewInventoryItem(itemID, productID string, onHand int, now time.Time) (InventoryItem, error) {
	if strings.TrimSpace(itemID) == "" || strings.TrimSpace(productID) == "" {
		return InventoryItem{}, domainerrors.ErrInvalidItemInput
	}
	if onHand < 0 {
		return InventoryItem{}, domainerrors.ErrInvalidQuantity
	}
	return InventoryItem{
		ItemID:    itemID,
		ProductID: productID,
		OnHand:    onHand,
		UpdatedAt: now.UTC(),
	}, nil
}

// Decrease fails with no mutation when qty is non-positive or exceeds on-hand.
func (i *InventoryItem) Decrease(qty int, now time.Time) error {
	if qty <= 0 {
		return domainerrors.ErrInvalidQuantity
	}
	if qty > i.OnHand {
		return domainerrors.ErrInsufficientStock
	}
	i.OnHand -= qty
	i.UpdatedAt = now.UTC()
	return nil
}

// Increase is the unconditional compensation counterpart.
func (i *InventoryItem) Increase(qty int, now time.Time) error {
	if qty <= 0 {
		return domainerrors.ErrInvalidQuantity
	}
	i.OnHand += qty
	i.UpdatedAt = now.UTC()
	return nil
}
