package queries

import (
	"context"
	"log/slog"

	"fulfillment/contexts/fulfillment/payment-service/domain/entities"
	"fulfillment/contexts/fulfillment/payment-service/ports"
)

// GetPaymentUseCase reads a single payment with its attempt history.
type GetPaymentUseCase struct {
	Payments ports.PaymentRepository
	Logger   *slog.Logger
}

func (uc GetPaymentUseCase) Execute(ctx context.Context, paymentID string) (entities.Payment, error) {
	return uc.Payments.GetPayment(ctx, paymentID)
}

// GetPaymentByOrderUseCase resolves the payment attached to an order, which
// is how operators find the payment id for refund and cancel commands.
type GetPaymentByOrderUseCase struct {
	Payments ports.PaymentRepository
	Logger   *slog.Logger
}

func (uc GetPaymentByOrderUseCase) Execute(ctx context.Context, orderID string) (entities.Payment, error) {
	return uc.Payments.GetPaymentByOrder(ctx, orderID)
}
