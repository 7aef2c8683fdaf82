package http

import (
	"time"

	"fulfillment/contexts/fulfillment/order-service/domain/entities"
)

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type PlaceOrderRequest struct {
	CustomerID      string             `json:"customer_id"`
	ShippingAddress string             `json:"shipping_address"`
	Currency        string             `json:"currency"`
	Items           []OrderItemRequest `json:"items"`
}

type OrderItemRequest struct {
	ProductID string  `json:"product_id"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
}

type OrderItemDTO struct {
	ProductID string  `json:"product_id"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
}

type OrderDTO struct {
	OrderID         string         `json:"order_id"`
	CustomerID      string         `json:"customer_id"`
	ShippingAddress string         `json:"shipping_address"`
	Currency        string         `json:"currency"`
	TotalAmount     float64        `json:"total_amount"`
	Status          string         `json:"status"`
	FailureReason   string         `json:"failure_reason,omitempty"`
	Items           []OrderItemDTO `json:"items"`
	CreatedAt       string         `json:"created_at"`
	UpdatedAt       string         `json:"updated_at"`
}

func NewOrderDTO(order entities.Order) OrderDTO {
	items := make([]OrderItemDTO, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, OrderItemDTO{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		})
	}
	return OrderDTO{
		OrderID:         order.OrderID,
		CustomerID:      order.CustomerID,
		ShippingAddress: order.ShippingAddress,
		Currency:        order.Currency,
		TotalAmount:     order.TotalAmount,
		Status:          string(order.Status),
		FailureReason:   order.FailureReason,
		Items:           items,
		CreatedAt:       order.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:       order.UpdatedAt.UTC().Format(time.RFC3339),
	}
}
