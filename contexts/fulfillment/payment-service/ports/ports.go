package ports

import (
	"context"
	"time"

	"fulfillment/contexts/fulfillment/payment-service/domain/entities"
	"fulfillment/internal/shared/events"
)

// GatewayRequest is the black-box PSP call input.
type GatewayRequest struct {
	PaymentID string
	OrderID   string
	Amount    float64
	Currency  string
	Method    string
}

// GatewayResult is the PSP outcome. Declines are results, not errors: only
// transport failures surface as Go errors, so retry and circuit-breaker
// policies never act on a business decline.
type GatewayResult struct {
	Approved         bool
	ConfirmationCode string
	Reason           string
}

// PaymentGateway is the external PSP contract.
type PaymentGateway interface {
	Authorize(ctx context.Context, req GatewayRequest) (GatewayResult, error)
	Capture(ctx context.Context, req GatewayRequest) (GatewayResult, error)
	Refund(ctx context.Context, req GatewayRequest) (GatewayResult, error)
}

// PaymentRepository serves the command-side reads and writes.
type PaymentRepository interface {
	GetPayment(ctx context.Context, paymentID string) (entities.Payment, error)
	GetPaymentByOrder(ctx context.Context, orderID string) (entities.Payment, error)
	// SavePaymentWithOutbox must atomically persist the payment's new state,
	// the appended attempts and the outbox envelopes.
	SavePaymentWithOutbox(ctx context.Context, payment entities.Payment, envs []events.Envelope) error
}

// SagaStore is the transaction-scoped view the authorization handler works
// against inside the inbox guard.
type SagaStore interface {
	CreatePayment(ctx context.Context, payment entities.Payment) error
	SavePayment(ctx context.Context, payment entities.Payment) error
	AppendOutbox(ctx context.Context, env events.Envelope) error
}

type InboxGuard interface {
	ProcessOnce(
		ctx context.Context,
		consumerName string,
		env events.Envelope,
		now time.Time,
		fn func(ctx context.Context, store SagaStore) error,
	) error
}

type OutboxMessage struct {
	ID       int64
	Envelope events.Envelope
}

type OutboxRepository interface {
	ListPendingOutbox(ctx context.Context, limit int) ([]OutboxMessage, error)
	MarkOutboxDelivered(ctx context.Context, id int64, deliveredAt time.Time) error
}

type Clock interface {
	Now() time.Time
}

type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}
