package http

import (
	"time"

	"fulfillment/contexts/fulfillment/payment-service/domain/entities"
)

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type CancelPaymentRequest struct {
	Reason string `json:"reason"`
}

type PaymentAttemptDTO struct {
	Operation string `json:"operation"`
	Success   bool   `json:"success"`
	Code      string `json:"code"`
	At        string `json:"at"`
}

type PaymentDTO struct {
	PaymentID     string              `json:"payment_id"`
	OrderID       string              `json:"order_id"`
	Amount        float64             `json:"amount"`
	Currency      string              `json:"currency"`
	Method        string              `json:"method"`
	Status        string              `json:"status"`
	FailureReason string              `json:"failure_reason,omitempty"`
	Attempts      []PaymentAttemptDTO `json:"attempts"`
	CreatedAt     string              `json:"created_at"`
	UpdatedAt     string              `json:"updated_at"`
}

func NewPaymentDTO(payment entities.Payment) PaymentDTO {
	attempts := make([]PaymentAttemptDTO, 0, len(payment.Attempts))
	for _, attempt := range payment.Attempts {
		attempts = append(attempts, PaymentAttemptDTO{
			Operation: attempt.Operation,
			Success:   attempt.Success,
			Code:      attempt.Code,
			At:        attempt.At.UTC().Format(time.RFC3339),
		})
	}
	return PaymentDTO{
		PaymentID:     payment.PaymentID,
		OrderID:       payment.OrderID,
		Amount:        payment.Amount,
		Currency:      payment.Currency,
		Method:        payment.Method,
		Status:        string(payment.Status),
		FailureReason: payment.FailureReason,
		Attempts:      attempts,
		CreatedAt:     payment.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:     payment.UpdatedAt.UTC().Format(time.RFC3339),
	}
}
