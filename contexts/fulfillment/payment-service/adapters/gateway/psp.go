package gatewayadapter

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"fulfillment/contexts/fulfillment/payment-service/ports"
)

// ErrGatewayUnreachable simulates a PSP transport failure.
var ErrGatewayUnreachable = errors.New("payment gateway unreachable")

// MockPSP is the stand-in payment service provider. It approves every
// operation unless the order was registered as declined, and can be told to
// fail the next N calls at the transport level to exercise retry paths.
type MockPSP struct {
	mu            sync.Mutex
	declineOrders map[string]string
	failRemaining int
}

func NewMockPSP() *MockPSP {
	return &MockPSP{declineOrders: make(map[string]string)}
}

// DeclineOrder makes every future operation for the order come back declined.
func (g *MockPSP) DeclineOrder(orderID, reason string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.declineOrders[orderID] = reason
}

// FailCalls makes the next n calls return a transport error before any
// decision is made.
func (g *MockPSP) FailCalls(n int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failRemaining = n
}

func (g *MockPSP) Authorize(ctx context.Context, req ports.GatewayRequest) (ports.GatewayResult, error) {
	return g.process(ctx, req)
}

func (g *MockPSP) Capture(ctx context.Context, req ports.GatewayRequest) (ports.GatewayResult, error) {
	return g.process(ctx, req)
}

func (g *MockPSP) Refund(ctx context.Context, req ports.GatewayRequest) (ports.GatewayResult, error) {
	return g.process(ctx, req)
}

func (g *MockPSP) process(ctx context.Context, req ports.GatewayRequest) (ports.GatewayResult, error) {
	if err := ctx.Err(); err != nil {
		return ports.GatewayResult{}, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failRemaining > 0 {
		g.failRemaining--
		return ports.GatewayResult{}, ErrGatewayUnreachable
	}
	if reason, ok := g.declineOrders[req.OrderID]; ok {
		return ports.GatewayResult{Approved: false, Reason: reason}, nil
	}
	return ports.GatewayResult{Approved: true, ConfirmationCode: uuid.NewString()}, nil
}
