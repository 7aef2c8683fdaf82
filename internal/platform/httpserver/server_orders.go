package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"

	"fulfillment/contexts/fulfillment/order-service/application/commands"
	"fulfillment/contexts/fulfillment/order-service/domain/entities"
	orderdomainerrors "fulfillment/contexts/fulfillment/order-service/domain/errors"
	orderhttp "fulfillment/contexts/fulfillment/order-service/transport/http"
)

func (s *Server) handlePlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req orderhttp.PlaceOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeOrderError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}

	items := make([]entities.LineItem, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, entities.LineItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		})
	}

	order, err := s.orders.PlaceOrder.Execute(r.Context(), commands.PlaceOrderCommand{
		CustomerID:      req.CustomerID,
		ShippingAddress: req.ShippingAddress,
		Currency:        req.Currency,
		Items:           items,
	})
	if err != nil {
		writeOrderDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, orderhttp.NewOrderDTO(order))
}

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	orderID := r.PathValue("order_id")
	order, err := s.orders.GetOrder.Execute(r.Context(), orderID)
	if err != nil {
		writeOrderDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, orderhttp.NewOrderDTO(order))
}

func writeOrderDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, orderdomainerrors.ErrOrderNotFound):
		writeOrderError(w, http.StatusNotFound, "order_not_found", err.Error())
	case errors.Is(err, orderdomainerrors.ErrInvalidOrderInput):
		writeOrderError(w, http.StatusBadRequest, "invalid_order_input", err.Error())
	case errors.Is(err, orderdomainerrors.ErrInvalidStateTransition):
		writeOrderError(w, http.StatusConflict, "invalid_state_transition", err.Error())
	default:
		writeOrderError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func writeOrderError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, orderhttp.ErrorResponse{Code: code, Message: message})
}
