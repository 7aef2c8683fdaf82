package httpclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"fulfillment/contexts/fulfillment/delivery-service/domain/entities"
	domainerrors "fulfillment/contexts/fulfillment/delivery-service/domain/errors"
	"fulfillment/contexts/fulfillment/delivery-service/ports"
	orderhttp "fulfillment/contexts/fulfillment/order-service/transport/http"
)

// OrderDetailsClient reads order details from the order service's HTTP API.
// It is the deployed-separately counterpart of the in-process reader used by
// the single-binary runtime.
type OrderDetailsClient struct {
	baseURL string
	client  *http.Client
}

func NewOrderDetailsClient(baseURL string, client *http.Client) *OrderDetailsClient {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	return &OrderDetailsClient{baseURL: baseURL, client: client}
}

func (c *OrderDetailsClient) GetOrderDetails(ctx context.Context, orderID string) (ports.OrderDetails, error) {
	endpoint := fmt.Sprintf("%s/fulfillment/orders/%s", c.baseURL, url.PathEscape(orderID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return ports.OrderDetails{}, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return ports.OrderDetails{}, fmt.Errorf("fetch order %s: %w", orderID, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return ports.OrderDetails{}, domainerrors.ErrOrderDetailsNotFound
	default:
		return ports.OrderDetails{}, fmt.Errorf("fetch order %s: unexpected status %d", orderID, resp.StatusCode)
	}

	var dto orderhttp.OrderDTO
	if err := json.NewDecoder(resp.Body).Decode(&dto); err != nil {
		return ports.OrderDetails{}, fmt.Errorf("decode order %s: %w", orderID, err)
	}

	items := make([]entities.ShipmentItem, 0, len(dto.Items))
	for _, item := range dto.Items {
		items = append(items, entities.ShipmentItem{ProductID: item.ProductID, Quantity: item.Quantity})
	}
	return ports.OrderDetails{
		OrderID:         dto.OrderID,
		CustomerID:      dto.CustomerID,
		ShippingAddress: dto.ShippingAddress,
		Items:           items,
	}, nil
}
