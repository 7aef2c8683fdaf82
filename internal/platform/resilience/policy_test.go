package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.BaseDelay = time.Millisecond
	cfg.MaxDelay = 5 * time.Millisecond
	return cfg
}

func TestExecuteRetriesUntilSuccess(t *testing.T) {
	policy := New("test-gateway", testConfig(), nil)

	attempts := 0
	err := policy.Execute(context.Background(), func(context.Context) error {
		attempts++
		if attempts < 3 {
			return errors.New("connection reset")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

func TestExecuteReturnsLastErrorWhenExhausted(t *testing.T) {
	cfg := testConfig()
	cfg.MaxAttempts = 2
	policy := New("test-gateway", cfg, nil)

	callErr := errors.New("connection refused")
	attempts := 0
	err := policy.Execute(context.Background(), func(context.Context) error {
		attempts++
		return callErr
	})
	if !errors.Is(err, callErr) {
		t.Fatalf("expected %v, got %v", callErr, err)
	}
	if attempts != 2 {
		t.Fatalf("expected 2 attempts, got %d", attempts)
	}
}

func TestOpenBreakerFailsFast(t *testing.T) {
	cfg := testConfig()
	cfg.MaxAttempts = 1
	cfg.MinRequests = 2
	cfg.FailureRatio = 0.5
	cfg.Cooldown = time.Minute
	policy := New("test-gateway", cfg, nil)

	callErr := errors.New("gateway down")
	for i := 0; i < 3; i++ {
		_ = policy.Execute(context.Background(), func(context.Context) error {
			return callErr
		})
	}

	calls := 0
	err := policy.Execute(context.Background(), func(context.Context) error {
		calls++
		return nil
	})
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable from open breaker, got %v", err)
	}
	if calls != 0 {
		t.Fatalf("expected no calls through an open breaker, got %d", calls)
	}
}

func TestExecuteHonoursContextCancellation(t *testing.T) {
	cfg := testConfig()
	// The backoff before the second attempt must comfortably outlast the
	// cancellation; testConfig's cap would clamp it below 10ms.
	cfg.BaseDelay = 50 * time.Millisecond
	cfg.MaxDelay = 500 * time.Millisecond
	policy := New("test-gateway", cfg, nil)

	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	err := policy.Execute(ctx, func(context.Context) error {
		attempts++
		return errors.New("slow failure")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if attempts != 1 {
		t.Fatalf("expected a single attempt before cancellation, got %d", attempts)
	}
}
