package resilience

import (
	"context"
	"errors"
	"time"

	"github.com/sells-group/lead-engine/internal/config"
)

// Guard wraps provider calls with a per-service circuit breaker and retries.
// A nil *Guard runs calls directly, which keeps tests and unconfigured
// providers simple.
type Guard struct {
	retry    RetryConfig
	breakers *ServiceBreakers
}

// NewGuard creates a Guard from explicit policies.
func NewGuard(retry RetryConfig, breaker CircuitBreakerConfig) *Guard {
	return &Guard{retry: retry, breakers: NewServiceBreakers(breaker)}
}

// FromConfig builds a Guard from the resilience section of the config.
func FromConfig(cfg config.ResilienceConfig) *Guard {
	retry := DefaultRetryConfig()
	if cfg.MaxAttempts > 0 {
		retry.MaxAttempts = cfg.MaxAttempts
	}
	if cfg.InitialBackoffMs > 0 {
		retry.InitialBackoff = time.Duration(cfg.InitialBackoffMs) * time.Millisecond
	}
	if cfg.MaxBackoffMs > 0 {
		retry.MaxBackoff = time.Duration(cfg.MaxBackoffMs) * time.Millisecond
	}
	if cfg.Multiplier > 0 {
		retry.Multiplier = cfg.Multiplier
	}
	if cfg.JitterFraction >= 0 {
		retry.JitterFraction = cfg.JitterFraction
	}

	breaker := DefaultCircuitBreakerConfig()
	if cfg.FailureThreshold > 0 {
		breaker.FailureThreshold = cfg.FailureThreshold
	}
	if cfg.ResetTimeoutSecs > 0 {
		breaker.ResetTimeout = time.Duration(cfg.ResetTimeoutSecs) * time.Second
	}

	return NewGuard(retry, breaker)
}

// Breakers exposes the per-service breakers for health reporting.
func (g *Guard) Breakers() *ServiceBreakers {
	if g == nil {
		return nil
	}
	return g.breakers
}

// Call runs fn for the named service and operation. Every attempt passes
// through the service's breaker; an open circuit ends the retries at once.
func Call[T any](ctx context.Context, g *Guard, service, operation string, fn func(ctx context.Context) (T, error)) (T, error) {
	if g == nil {
		return fn(ctx)
	}

	cb := g.breakers.Get(service)
	retry := g.retry
	retry.OnRetry = RetryLogger(service, operation)
	retry.ShouldRetry = func(err error) bool {
		return !errors.Is(err, ErrCircuitOpen) && IsTransient(err)
	}

	return DoVal(ctx, retry, func(ctx context.Context) (T, error) {
		var zero T
		if err := cb.Allow(); err != nil {
			return zero, err
		}
		val, err := fn(ctx)
		cb.Record(err)
		return val, err
	})
}
