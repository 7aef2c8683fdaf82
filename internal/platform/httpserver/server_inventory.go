package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"

	"fulfillment/contexts/fulfillment/inventory-service/application/commands"
	inventorydomainerrors "fulfillment/contexts/fulfillment/inventory-service/domain/errors"
	inventoryhttp "fulfillment/contexts/fulfillment/inventory-service/transport/http"
)

func (s *Server) handleRestock(w http.ResponseWriter, r *http.Request) {
	var req inventoryhttp.RestockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInventoryError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}

	item, err := s.inventory.AdjustStock.Execute(r.Context(), commands.AdjustStockCommand{
		ProductID: req.ProductID,
		Quantity:  req.Quantity,
	})
	if err != nil {
		writeInventoryDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, inventoryhttp.NewInventoryItemDTO(item))
}

func writeInventoryDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, inventorydomainerrors.ErrItemNotFound):
		writeInventoryError(w, http.StatusNotFound, "item_not_found", err.Error())
	case errors.Is(err, inventorydomainerrors.ErrInvalidItemInput),
		errors.Is(err, inventorydomainerrors.ErrInvalidQuantity):
		writeInventoryError(w, http.StatusBadRequest, "invalid_item_input", err.Error())
	case errors.Is(err, inventorydomainerrors.ErrInsufficientStock):
		writeInventoryError(w, http.StatusConflict, "insufficient_stock", err.Error())
	default:
		writeInventoryError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func writeInventoryError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, inventoryhttp.ErrorResponse{Code: code, Message: message})
}
