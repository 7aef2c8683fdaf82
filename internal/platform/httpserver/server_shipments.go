package httpserver

import (
	"errors"
	"net/http"

	deliverydomainerrors "fulfillment/contexts/fulfillment/delivery-service/domain/errors"
	deliveryhttp "fulfillment/contexts/fulfillment/delivery-service/transport/http"
)

func (s *Server) handleGetShipment(w http.ResponseWriter, r *http.Request) {
	shipmentID := r.PathValue("shipment_id")
	shipment, err := s.delivery.GetShipment.Execute(r.Context(), shipmentID)
	if err != nil {
		writeShipmentDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, deliveryhttp.NewShipmentDTO(shipment))
}

func (s *Server) handleGetShipmentByOrder(w http.ResponseWriter, r *http.Request) {
	orderID := r.PathValue("order_id")
	shipment, err := s.delivery.GetShipmentByOrder.Execute(r.Context(), orderID)
	if err != nil {
		writeShipmentDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, deliveryhttp.NewShipmentDTO(shipment))
}

func (s *Server) handleMarkDispatched(w http.ResponseWriter, r *http.Request) {
	shipmentID := r.PathValue("shipment_id")
	shipment, err := s.delivery.MarkDispatched.Execute(r.Context(), shipmentID)
	if err != nil {
		writeShipmentDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, deliveryhttp.NewShipmentDTO(shipment))
}

func (s *Server) handleMarkInTransit(w http.ResponseWriter, r *http.Request) {
	shipmentID := r.PathValue("shipment_id")
	shipment, err := s.delivery.MarkInTransit.Execute(r.Context(), shipmentID)
	if err != nil {
		writeShipmentDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, deliveryhttp.NewShipmentDTO(shipment))
}

func (s *Server) handleMarkDelivered(w http.ResponseWriter, r *http.Request) {
	shipmentID := r.PathValue("shipment_id")
	shipment, err := s.delivery.MarkDelivered.Execute(r.Context(), shipmentID)
	if err != nil {
		writeShipmentDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, deliveryhttp.NewShipmentDTO(shipment))
}

func writeShipmentDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, deliverydomainerrors.ErrShipmentNotFound):
		writeShipmentError(w, http.StatusNotFound, "shipment_not_found", err.Error())
	case errors.Is(err, deliverydomainerrors.ErrInvalidShipmentInput):
		writeShipmentError(w, http.StatusBadRequest, "invalid_shipment_input", err.Error())
	case errors.Is(err, deliverydomainerrors.ErrInvalidStateTransition):
		writeShipmentError(w, http.StatusConflict, "invalid_state_transition", err.Error())
	default:
		writeShipmentError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func writeShipmentError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, deliveryhttp.ErrorResponse{Code: code, Message: message})
}
