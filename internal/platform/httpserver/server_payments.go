package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"

	paymentdomainerrors "fulfillment/contexts/fulfillment/payment-service/domain/errors"
	paymenthttp "fulfillment/contexts/fulfillment/payment-service/transport/http"
)

func (s *Server) handleGetPayment(w http.ResponseWriter, r *http.Request) {
	paymentID := r.PathValue("payment_id")
	payment, err := s.payments.GetPayment.Execute(r.Context(), paymentID)
	if err != nil {
		writePaymentDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, paymenthttp.NewPaymentDTO(payment))
}

func (s *Server) handleGetPaymentByOrder(w http.ResponseWriter, r *http.Request) {
	orderID := r.PathValue("order_id")
	payment, err := s.payments.GetPaymentByOrder.Execute(r.Context(), orderID)
	if err != nil {
		writePaymentDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, paymenthttp.NewPaymentDTO(payment))
}

func (s *Server) handleRefundPayment(w http.ResponseWriter, r *http.Request) {
	paymentID := r.PathValue("payment_id")
	payment, err := s.payments.RefundPayment.Execute(r.Context(), paymentID)
	if err != nil {
		writePaymentDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, paymenthttp.NewPaymentDTO(payment))
}

func (s *Server) handleCancelPayment(w http.ResponseWriter, r *http.Request) {
	paymentID := r.PathValue("payment_id")

	var req paymenthttp.CancelPaymentRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writePaymentError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
			return
		}
	}

	payment, err := s.payments.CancelPayment.Execute(r.Context(), paymentID, req.Reason)
	if err != nil {
		writePaymentDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, paymenthttp.NewPaymentDTO(payment))
}

func writePaymentDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, paymentdomainerrors.ErrPaymentNotFound):
		writePaymentError(w, http.StatusNotFound, "payment_not_found", err.Error())
	case errors.Is(err, paymentdomainerrors.ErrInvalidPaymentInput):
		writePaymentError(w, http.StatusBadRequest, "invalid_payment_input", err.Error())
	case errors.Is(err, paymentdomainerrors.ErrInvalidStateTransition):
		writePaymentError(w, http.StatusConflict, "invalid_state_transition", err.Error())
	case errors.Is(err, paymentdomainerrors.ErrGatewayDeclined):
		writePaymentError(w, http.StatusUnprocessableEntity, "gateway_declined", err.Error())
	default:
		writePaymentError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func writePaymentError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, paymenthttp.ErrorResponse{Code: code, Message: message})
}
