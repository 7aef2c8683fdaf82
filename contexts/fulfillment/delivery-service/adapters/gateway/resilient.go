package gatewayadapter

import (
	"context"

	"fulfillment/contexts/fulfillment/delivery-service/ports"
	"fulfillment/internal/platform/resilience"
)

// ResilientCarrier decorates a carrier client with the shared retry and
// circuit breaker policy. Booking rejections pass straight through because
// they are carried in the result, not the error.
type ResilientCarrier struct {
	Inner  ports.CarrierClient
	Policy *resilience.Policy
}

func NewResilientCarrier(inner ports.CarrierClient, policy *resilience.Policy) ResilientCarrier {
	return ResilientCarrier{Inner: inner, Policy: policy}
}

func (c ResilientCarrier) BookLabel(ctx context.Context, req ports.BookingRequest) (ports.BookingResult, error) {
	var result ports.BookingResult
	err := c.Policy.Execute(ctx, func(ctx context.Context) error {
		var callErr error
		result, callErr = c.Inner.BookLabel(ctx, req)
		return callErr
	})
	if err != nil {
		return ports.BookingResult{}, err
	}
	return result, nil
}
