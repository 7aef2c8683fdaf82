package gatewayadapter

import (
	"context"

	"fulfillment/contexts/fulfillment/payment-service/ports"
	"fulfillment/internal/platform/resilience"
)

// ResilientGateway decorates a PSP client with the shared retry and circuit
// breaker policy. Declines pass straight through because they are carried in
// the result, not the error.
type ResilientGateway struct {
	Inner  ports.PaymentGateway
	Policy *resilience.Policy
}

func NewResilientGateway(inner ports.PaymentGateway, policy *resilience.Policy) ResilientGateway {
	return ResilientGateway{Inner: inner, Policy: policy}
}

func (g ResilientGateway) Authorize(ctx context.Context, req ports.GatewayRequest) (ports.GatewayResult, error) {
	return g.execute(ctx, g.Inner.Authorize, req)
}

func (g ResilientGateway) Capture(ctx context.Context, req ports.GatewayRequest) (ports.GatewayResult, error) {
	return g.execute(ctx, g.Inner.Capture, req)
}

func (g ResilientGateway) Refund(ctx context.Context, req ports.GatewayRequest) (ports.GatewayResult, error) {
	return g.execute(ctx, g.Inner.Refund, req)
}

func (g ResilientGateway) execute(
	ctx context.Context,
	call func(ctx context.Context, req ports.GatewayRequest) (ports.GatewayResult, error),
	req ports.GatewayRequest,
) (ports.GatewayResult, error) {
	var result ports.GatewayResult
	err := g.Policy.Execute(ctx, func(ctx context.Context) error {
		var callErr error
		result, callErr = call(ctx, req)
		return callErr
	})
	if err != nil {
		return ports.GatewayResult{}, err
	}
	return result, nil
}
