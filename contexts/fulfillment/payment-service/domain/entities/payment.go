package entities

import (
	"strings"
	"time"

	domainerrors "fulfillment/contexts/fulfillment/payment-service/domain/errors"
)

type Status string

const (
	StatusInitiated  Status = "initiated"
	StatusAuthorized Status = "authorized"
	StatusCaptured   Status = "captured"
	StatusFailed     Status = "failed"
	StatusRefunded   Status = "refunded"
	StatusCancelled  Status = "cancelled"
)

// Attempt is one entry of the append-only PSP call audit trail. Attempts are
// only ever appended, never rewritten.
type Attempt struct {
	Operation string
	Success   bool
	Code      string
	At        time.Time
}

type Payment struct {
	PaymentID     string
	OrderID       string
	Amount        float64
	Currency      string
	Method        string
	Status        Status
	FailureReason string
	Attempts      []Attempt
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func NewPayment(paymentID, orderID string, amount float64, currency, method string, now time.Time) (Payment, error) {
	if strings.TrimSpace(paymentID) == "" || strings.TrimSpace(orderID) == "" {
		return Payment{}, domainerrors.ErrInvalidPaymentInput
	}
	if amount <= 0 {
		return Payment{}, domainerrors.ErrInvalidPaymentInput
	}
	if strings.TrimSpace(currency) == "" {
		currency = "USD"
	}
	if strings.TrimSpace(method) == "" {
		method = "card"
	}
	return Payment{
		PaymentID: paymentID,
		OrderID:   orderID,
		Amount:    amount,
		Currency:  currency,
		Method:    method,
		Status:    StatusInitiated,
		CreatedAt: now.UTC(),
		UpdatedAt: now.UTC(),
	}, nil
}

// RecordAttempt appends one PSP call outcome to the audit trail. code carries
// the gateway confirmation code on success and the decline reason otherwise.
func (p *Payment) RecordAttempt(operation string, success bool, code string, at time.Time) {
	p.Attempts = append(p.Attempts, Attempt{
		Operation: operation,
		Success:   success,
		Code:      code,
		At:        at.UTC(),
	})
}

func (p *Payment) Authorize(now time.Time) error {
	if p.Status != StatusInitiated {
		return domainerrors.ErrInvalidStateTransition
	}
	p.advance(StatusAuthorized, "", now)
	return nil
}

// Capture requires a prior successful authorization.
func (p *Payment) Capture(now time.Time) error {
	if p.Status != StatusAuthorized {
		return domainerrors.ErrInvalidStateTransition
	}
	p.advance(StatusCaptured, "", now)
	return nil
}

func (p *Payment) Fail(reason string, now time.Time) error {
	switch p.Status {
	case StatusInitiated, StatusAuthorized:
		p.advance(StatusFailed, reason, now)
		return nil
	default:
		return domainerrors.ErrInvalidStateTransition
	}
}

// Refund requires a prior successful capture.
func (p *Payment) Refund(now time.Time) error {
	if p.Status != StatusCaptured {
		return domainerrors.ErrInvalidStateTransition
	}
	p.advance(StatusRefunded, "", now)
	return nil
}

// Cancel is allowed from any pre-capture state.
func (p *Payment) Cancel(reason string, now time.Time) error {
	switch p.Status {
	case StatusInitiated, StatusAuthorized:
		p.advance(StatusCancelled, reason, now)
		return nil
	default:
		return domainerrors.ErrInvalidStateTransition
	}
}

func (p *Payment) advance(status Status, reason string, now time.Time) {
	p.Status = status
	p.FailureReason = reason
	p.UpdatedAt = now.UTC()
}
