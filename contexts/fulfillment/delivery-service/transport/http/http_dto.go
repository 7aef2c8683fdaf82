package http

import (
	"time"

	"fulfillment/contexts/fulfillment/delivery-service/domain/entities"
)

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ShipmentItemDTO struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type ShipmentDTO struct {
	ShipmentID     string            `json:"shipment_id"`
	OrderID        string            `json:"order_id"`
	Address        string            `json:"address"`
	Carrier        string            `json:"carrier,omitempty"`
	TrackingNumber string            `json:"tracking_number,omitempty"`
	Status         string            `json:"status"`
	FailureReason  string            `json:"failure_reason,omitempty"`
	Items          []ShipmentItemDTO `json:"items"`
	CreatedAt      string            `json:"created_at"`
	UpdatedAt      string            `json:"updated_at"`
}

func NewShipmentDTO(shipment entities.Shipment) ShipmentDTO {
	items := make([]ShipmentItemDTO, 0, len(shipment.Items))
	for _, item := range shipment.Items {
		items = append(items, ShipmentItemDTO{ProductID: item.ProductID, Quantity: item.Quantity})
	}
	return ShipmentDTO{
		ShipmentID:     shipment.ShipmentID,
		OrderID:        shipment.OrderID,
		Address:        shipment.Address,
		Carrier:        shipment.Carrier,
		TrackingNumber: shipment.TrackingNumber,
		Status:         string(shipment.Status),
		FailureReason:  shipment.FailureReason,
		Items:          items,
		CreatedAt:      shipment.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:      shipment.UpdatedAt.UTC().Format(time.RFC3339),
	}
}
