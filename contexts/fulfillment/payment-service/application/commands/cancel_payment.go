package commands

import (
	"context"
	"log/slog"

	application "fulfillment/contexts/fulfillment/payment-service/application"
	"fulfillment/contexts/fulfillment/payment-service/domain/entities"
	"fulfillment/contexts/fulfillment/payment-service/ports"
	"fulfillment/internal/shared/events"
)

// CancelPaymentUseCase voids a payment that has not been captured yet and
// emits payment.cancelled. Replays against an already cancelled payment are
// no-ops.
type CancelPaymentUseCase struct {
	Payments ports.PaymentRepository
	Clock    ports.Clock
	Logger   *slog.Logger
}

func (uc CancelPaymentUseCase) Execute(ctx context.Context, paymentID, reason string) (entities.Payment, error) {
	logger := application.ResolveLogger(uc.Logger)

	payment, err := uc.Payments.GetPayment(ctx, paymentID)
	if err != nil {
		return entities.Payment{}, err
	}
	if payment.Status == entities.StatusCancelled {
		return payment, nil
	}

	now := resolveNow(uc.Clock)
	if err := payment.Cancel(reason, now); err != nil {
		return entities.Payment{}, err
	}

	env, err := events.NewEnvelope(events.TypePaymentCancelled, sourceService, payment.OrderID, now, events.PaymentCancelled{
		OrderID:   payment.OrderID,
		PaymentID: payment.PaymentID,
		Reason:    reason,
	})
	if err != nil {
		return entities.Payment{}, err
	}
	if err := uc.Payments.SavePaymentWithOutbox(ctx, payment, []events.Envelope{env}); err != nil {
		return entities.Payment{}, err
	}

	logger.Info("payment cancelled",
		"event", "payment_cancelled",
		"module", "fulfillment/payment-service",
		"layer", "application",
		"payment_id", payment.PaymentID,
		"order_id", payment.OrderID,
		"reason", reason,
	)
	return payment, nil
}
