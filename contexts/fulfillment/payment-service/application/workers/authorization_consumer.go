package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	application "fulfillment/contexts/fulfillment/payment-service/application"
	"fulfillment/contexts/fulfillment/payment-service/domain/entities"
	"fulfillment/contexts/fulfillment/payment-service/ports"
	"fulfillment/internal/platform/messaging"
	"fulfillment/internal/shared/events"
)

const (
	consumerName  = "payment-service"
	sourceService = "payment-service"

	opAuthorize = "authorize"
	opCapture   = "capture"
)

// AuthorizationConsumer is the payment service's subscription to
// inventory.reserved: it initiates the payment and drives it through
// authorize and capture against the PSP. Gateway declines are normal saga
// branches that commit a failed payment plus payment.failed; transport errors
// roll the whole handler back for broker redelivery.
type AuthorizationConsumer struct {
	Subscriber  messaging.Subscriber
	Inbox       ports.InboxGuard
	Gateway     ports.PaymentGateway
	Clock       ports.Clock
	IDGenerator ports.IDGenerator
	Logger      *slog.Logger
}

func (c AuthorizationConsumer) Start(ctx context.Context) error {
	return c.Subscriber.Subscribe(ctx, events.TypeInventoryReserved, consumerName, c.handleInventoryReserved)
}

func (c AuthorizationConsumer) handleInventoryReserved(ctx context.Context, env events.Envelope) error {
	logger := application.ResolveLogger(c.Logger)
	var payload events.InventoryReserved
	if err := json.Unmarshal(env.Payload, &payload); err != nil {
		return fmt.Errorf("decode inventory.reserved payload: %w", err)
	}
	if payload.OrderID == "" || payload.TotalAmount <= 0 {
		return fmt.Errorf("inventory.reserved payload missing order_id or amount")
	}

	now := c.now()
	return c.Inbox.ProcessOnce(ctx, consumerName, env, now, func(ctx context.Context, store ports.SagaStore) error {
		paymentID, err := c.IDGenerator.NewID(ctx)
		if err != nil {
			return err
		}
		payment, err := entities.NewPayment(paymentID, payload.OrderID, payload.TotalAmount, payload.Currency, "", now)
		if err != nil {
			return err
		}
		req := ports.GatewayRequest{
			PaymentID: payment.PaymentID,
			OrderID:   payment.OrderID,
			Amount:    payment.Amount,
			Currency:  payment.Currency,
			Method:    payment.Method,
		}

		authResult, err := c.Gateway.Authorize(ctx, req)
		if err != nil {
			return fmt.Errorf("authorize via gateway: %w", err)
		}
		payment.RecordAttempt(opAuthorize, authResult.Approved, resultCode(authResult), now)
		if !authResult.Approved {
			return c.failPayment(ctx, store, env, payment, authResult.Reason, now, nil, logger)
		}
		if err := payment.Authorize(now); err != nil {
			return err
		}
		authorizedEnv, err := events.Follow(env, events.TypePaymentAuthorized, sourceService, now, events.PaymentAuthorized{
			OrderID:          payment.OrderID,
			PaymentID:        payment.PaymentID,
			Amount:           payment.Amount,
			Currency:         payment.Currency,
			ConfirmationCode: authResult.ConfirmationCode,
		})
		if err != nil {
			return err
		}

		captureResult, err := c.Gateway.Capture(ctx, req)
		if err != nil {
			return fmt.Errorf("capture via gateway: %w", err)
		}
		payment.RecordAttempt(opCapture, captureResult.Approved, resultCode(captureResult), now)
		if !captureResult.Approved {
			// The authorization happened; its event still belongs in the chain.
			return c.failPayment(ctx, store, env, payment, captureResult.Reason, now, []events.Envelope{authorizedEnv}, logger)
		}
		if err := payment.Capture(now); err != nil {
			return err
		}
		capturedEnv, err := events.Follow(env, events.TypePaymentCaptured, sourceService, now, events.PaymentCaptured{
			OrderID:          payment.OrderID,
			PaymentID:        payment.PaymentID,
			Amount:           payment.Amount,
			Currency:         payment.Currency,
			ConfirmationCode: captureResult.ConfirmationCode,
		})
		if err != nil {
			return err
		}

		if err := store.CreatePayment(ctx, payment); err != nil {
			return err
		}
		for _, next := range []events.Envelope{authorizedEnv, capturedEnv} {
			if err := store.AppendOutbox(ctx, next); err != nil {
				return err
			}
		}

		logger.Info("payment captured",
			"event", "payment_captured",
			"module", "fulfillment/payment-service",
			"layer", "worker",
			"payment_id", payment.PaymentID,
			"order_id", payment.OrderID,
			"amount", payment.Amount,
			"correlation_id", env.CorrelationID,
		)
		return nil
	})
}

func (c AuthorizationConsumer) failPayment(
	ctx context.Context,
	store ports.SagaStore,
	env events.Envelope,
	payment entities.Payment,
	reason string,
	now time.Time,
	precedingEnvs []events.Envelope,
	logger *slog.Logger,
) error {
	if err := payment.Fail(reason, now); err != nil {
		return err
	}
	failedEnv, err := events.Follow(env, events.TypePaymentFailed, sourceService, now, events.PaymentFailed{
		OrderID:   payment.OrderID,
		PaymentID: payment.PaymentID,
		Reason:    reason,
	})
	if err != nil {
		return err
	}

	if err := store.CreatePayment(ctx, payment); err != nil {
		return err
	}
	for _, preceding := range precedingEnvs {
		if err := store.AppendOutbox(ctx, preceding); err != nil {
			return err
		}
	}
	if err := store.AppendOutbox(ctx, failedEnv); err != nil {
		return err
	}

	logger.Info("payment declined",
		"event", "payment_failed",
		"module", "fulfillment/payment-service",
		"layer", "worker",
		"payment_id", payment.PaymentID,
		"order_id", payment.OrderID,
		"reason", reason,
		"correlation_id", env.CorrelationID,
	)
	return nil
}

func resultCode(result ports.GatewayResult) string {
	if result.Approved {
		return result.ConfirmationCode
	}
	return result.Reason
}

func (c AuthorizationConsumer) now() time.Time {
	if c.Clock == nil {
		return time.Now().UTC()
	}
	return c.Clock.Now().UTC()
}
