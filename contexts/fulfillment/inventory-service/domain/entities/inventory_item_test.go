package entities

import (
	"errors"
	"testing"
	"time"

	domainerrors "fulfillment/contexts/fulfillment/inventory-service/domain/errors"
)

func TestDecreaseEnforcesNonNegativity(t *testing.T) {
	now := time.Now()
	item, err := NewInventoryItem("item-1", "sku-a", 5, now)
	if err != nil {
		t.Fatalf("new item: %v", err)
	}

	if err := item.Decrease(3, now); err != nil {
		t.Fatalf("decrease: %v", err)
	}
	if item.OnHand != 2 {
		t.Fatalf("expected 2 on hand, got %d", item.OnHand)
	}

	if err := item.Decrease(3, now); !errors.Is(err, domainerrors.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}
	if item.OnHand != 2 {
		t.Fatalf("failed decrease must not mutate, got %d", item.OnHand)
	}

	if err := item.Decrease(0, now); !errors.Is(err, domainerrors.ErrInvalidQuantity) {
		t.Fatalf("expected ErrInvalidQuantity for zero, got %v", err)
	}
}

func TestIncreaseRestoresStock(t *testing.T) {
	now := time.Now()
	item, err := NewInventoryItem("item-1", "sku-a", 1, now)
	if err != nil {
		t.Fatalf("new item: %v", err)
	}

	if err := item.Increase(4, now); err != nil {
		t.Fatalf("increase: %v", err)
	}
	if item.OnHand != 5 {
		t.Fatalf("expected 5 on hand, got %d", item.OnHand)
	}
	if err := item.Increase(-1, now); !errors.Is(err, domainerrors.ErrInvalidQuantity) {
		t.Fatalf("expected ErrInvalidQuantity, got %v", err)
	}
}

func TestNewInventoryItemValidation(t *testing.T) {
	now := time.Now()
	if _, err := NewInventoryItem("", "sku-a", 1, now); !errors.Is(err, domainerrors.ErrInvalidItemInput) {
		t.Fatalf("expected ErrInvalidItemInput, got %v", err)
	}
	if _, err := NewInventoryItem("item-1", "sku-a", -1, now); !errors.Is(err, domainerrors.ErrInvalidQuantity) {
		t.Fatalf("expected ErrInvalidQuantity, got %v", err)
	}
}
