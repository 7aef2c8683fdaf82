package resilience

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"time"

	"github.com/sony/gobreaker"
)

// Policy wraps calls into external systems whose failures are expected to be
// transient (payment gateway, carrier). Bounded retry with jittered
// exponential backoff runs through a circuit breaker: once the breaker opens,
// further calls fail fast for the cool-down period instead of queuing load
// against a known-down dependency.
//
// Business declines are results, not errors. Callers must never route them
// through a Policy error, or they would trip the breaker.
type Policy struct {
	name        string
	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration
	breaker     *gobreaker.CircuitBreaker
	logger      *slog.Logger
}

type Config struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration

	// Breaker trip rule: opens when at least MinRequests calls were sampled in
	// Interval and the failure ratio reached FailureRatio. Cooldown is how long
	// the breaker stays open before probing with up to MaxHalfOpenRequests.
	FailureRatio        float64
	MinRequests         uint32
	Interval            time.Duration
	Cooldown            time.Duration
	MaxHalfOpenRequests uint32
}

func DefaultConfig() Config {
	return Config{
		MaxAttempts:         3,
		BaseDelay:           100 * time.Millisecond,
		MaxDelay:            2 * time.Second,
		FailureRatio:        0.5,
		MinRequests:         10,
		Interval:            2 * time.Minute,
		Cooldown:            30 * time.Second,
		MaxHalfOpenRequests: 3,
	}
}

func New(name string, cfg Config, logger *slog.Logger) *Policy {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 100 * time.Millisecond
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = 2 * time.Second
	}
	if cfg.FailureRatio <= 0 || cfg.FailureRatio > 1 {
		cfg.FailureRatio = 0.5
	}
	if cfg.MinRequests == 0 {
		cfg.MinRequests = 10
	}
	if cfg.MaxHalfOpenRequests == 0 {
		cfg.MaxHalfOpenRequests = 3
	}
	if logger == nil {
		logger = slog.Default()
	}

	p := &Policy{
		name:        name,
		maxAttempts: cfg.MaxAttempts,
		baseDelay:   cfg.BaseDelay,
		maxDelay:    cfg.MaxDelay,
		logger:      logger,
	}
	p.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.MaxHalfOpenRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return ratio >= cfg.FailureRatio
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				"event", "breaker_state_changed",
				"module", "internal/platform/resilience",
				"layer", "platform",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	})
	return p
}

// ErrUnavailable reports that the breaker short-circuited the call.
var ErrUnavailable = errors.New("resilience: dependency unavailable, circuit open")

// Execute runs fn with the policy's retry/breaker protection. An open breaker
// surfaces ErrUnavailable immediately without spending retry attempts.
func (p *Policy) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 0; attempt < p.maxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(p.delay(attempt)):
			}
		}

		_, err := p.breaker.Execute(func() (any, error) {
			return nil, fn(ctx)
		})
		if err == nil {
			return nil
		}
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			p.logger.Warn("call short-circuited",
				"event", "breaker_short_circuit",
				"module", "internal/platform/resilience",
				"layer", "platform",
				"breaker", p.name,
			)
			return ErrUnavailable
		}
		lastErr = err

		p.logger.Warn("external call attempt failed",
			"event", "resilience_attempt_failed",
			"module", "internal/platform/resilience",
			"layer", "platform",
			"breaker", p.name,
			"attempt", attempt+1,
			"error", err.Error(),
		)
	}
	return lastErr
}

func (p *Policy) delay(attempt int) time.Duration {
	if attempt > 16 {
		attempt = 16
	}
	delay := p.baseDelay << (attempt - 1)
	if delay > p.maxDelay {
		delay = p.maxDelay
	}
	return delay + time.Duration(rand.Int63n(int64(delay)/2+1))
}
