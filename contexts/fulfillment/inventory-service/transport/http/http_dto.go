package http

import (
	"time"

	"fulfillment/contexts/fulfillment/inventory-service/domain/entities"
)

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type RestockRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type InventoryItemDTO struct {
	ItemID    string `json:"item_id"`
	ProductID string `json:"product_id"`
	OnHand    int    `json:"on_hand"`
	UpdatedAt string `json:"updated_at"`
}

func NewInventoryItemDTO(item entities.InventoryItem) InventoryItemDTO {
	return InventoryItemDTO{
		ItemID:    item.ItemID,
		ProductID: item.ProductID,
		OnHand:    item.OnHand,
		UpdatedAt: item.UpdatedAt.UTC().Format(time.RFC3339),
	}
}
