package commands

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	application "fulfillment/contexts/fulfillment/payment-service/application"
	"fulfillment/contexts/fulfillment/payment-service/domain/entities"
	domainerrors "fulfillment/contexts/fulfillment/payment-service/domain/errors"
	"fulfillment/contexts/fulfillment/payment-service/ports"
	"fulfillment/internal/shared/events"
)

const sourceService = "payment-service"

func resolveNow(clock ports.Clock) time.Time {
	if clock == nil {
		return time.Now().UTC()
	}
	return clock.Now().UTC()
}

// RefundPaymentUseCase refunds a captured payment through the PSP and emits
// payment.refunded via the outbox. Replaying the command against an already
// refunded payment returns the payment unchanged.
type RefundPaymentUseCase struct {
	Payments ports.PaymentRepository
	Gateway  ports.PaymentGateway
	Clock    ports.Clock
	Logger   *slog.Logger
}

func (uc RefundPaymentUseCase) Execute(ctx context.Context, paymentID string) (entities.Payment, error) {
	logger := application.ResolveLogger(uc.Logger)

	payment, err := uc.Payments.GetPayment(ctx, paymentID)
	if err != nil {
		return entities.Payment{}, err
	}
	if payment.Status == entities.StatusRefunded {
		return payment, nil
	}
	if payment.Status != entities.StatusCaptured {
		return entities.Payment{}, domainerrors.ErrInvalidStateTransition
	}

	now := resolveNow(uc.Clock)
	result, err := uc.Gateway.Refund(ctx, ports.GatewayRequest{
		PaymentID: payment.PaymentID,
		OrderID:   payment.OrderID,
		Amount:    payment.Amount,
		Currency:  payment.Currency,
		Method:    payment.Method,
	})
	if err != nil {
		return entities.Payment{}, fmt.Errorf("refund via gateway: %w", err)
	}

	if !result.Approved {
		payment.RecordAttempt("refund", false, result.Reason, now)
		if err := uc.Payments.SavePaymentWithOutbox(ctx, payment, nil); err != nil {
			return entities.Payment{}, err
		}
		return entities.Payment{}, fmt.Errorf("%w: %s", domainerrors.ErrGatewayDeclined, result.Reason)
	}

	payment.RecordAttempt("refund", true, result.ConfirmationCode, now)
	if err := payment.Refund(now); err != nil {
		return entities.Payment{}, err
	}

	// Operator-initiated refunds start a fresh causal branch on the order's
	// correlation stream.
	env, err := events.NewEnvelope(events.TypePaymentRefunded, sourceService, payment.OrderID, now, events.PaymentRefunded{
		OrderID:          payment.OrderID,
		PaymentID:        payment.PaymentID,
		Amount:           payment.Amount,
		ConfirmationCode: result.ConfirmationCode,
	})
	if err != nil {
		return entities.Payment{}, err
	}
	if err := uc.Payments.SavePaymentWithOutbox(ctx, payment, []events.Envelope{env}); err != nil {
		return entities.Payment{}, err
	}

	logger.Info("payment refunded",
		"event", "payment_refunded",
		"module", "fulfillment/payment-service",
		"layer", "application",
		"payment_id", payment.PaymentID,
		"order_id", payment.OrderID,
		"amount", payment.Amount,
	)
	return payment, nil
}
