package gatewayadapter

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"fulfillment/contexts/fulfillment/delivery-service/ports"
)

// ErrCarrierUnreachable simulates a carrier transport failure.
var ErrCarrierUnreachable = errors.New("carrier unreachable")

const defaultCarrier = "ACME-EXPRESS"

// MockCarrier is the stand-in carrier API. It books every label unless the
// destination address was registered as unserviceable, and can be told to
// fail the next N calls at the transport level to exercise retry paths.
type MockCarrier struct {
	mu            sync.Mutex
	rejectMarkers map[string]string
	failRemaining int
}

func NewMockCarrier() *MockCarrier {
	return &MockCarrier{rejectMarkers: make(map[string]string)}
}

// RejectAddressContaining makes bookings whose address contains marker come
// back rejected.
func (c *MockCarrier) RejectAddressContaining(marker, reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rejectMarkers[marker] = reason
}

// FailCalls makes the next n calls return a transport error before any
// decision is made.
func (c *MockCarrier) FailCalls(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failRemaining = n
}

func (c *MockCarrier) BookLabel(ctx context.Context, req ports.BookingRequest) (ports.BookingResult, error) {
	if err := ctx.Err(); err != nil {
		return ports.BookingResult{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failRemaining > 0 {
		c.failRemaining--
		return ports.BookingResult{}, ErrCarrierUnreachable
	}
	for marker, reason := range c.rejectMarkers {
		if strings.Contains(req.Address, marker) {
			return ports.BookingResult{Booked: false, Reason: reason}, nil
		}
	}
	return ports.BookingResult{
		Booked:         true,
		Carrier:        defaultCarrier,
		TrackingNumber: fmt.Sprintf("TRK-%s", uuid.NewString()),
	}, nil
}
