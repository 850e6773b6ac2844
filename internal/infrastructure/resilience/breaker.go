package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"github.com/iho/bankledger/internal/domain"
)

// BreakerConfig for CircuitBreaker.
type BreakerConfig struct {
	// Window is the length of the counting window while closed. Counts are
	// reset at the end of every window.
	Window time.Duration
	// MinRequests is the minimum number of calls in a window before the
	// failure ratio is evaluated.
	MinRequests uint32
	// FailureRatio opens the breaker once failures/requests reaches it.
	FailureRatio float64
	// OpenTimeout is how long the breaker stays open before half-opening.
	OpenTimeout time.Duration
	// HalfOpenMaxRequests is the number of trial calls let through while half-open.
	HalfOpenMaxRequests uint32
}

// DefaultBreakerConfig returns the breaker defaults.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		Window:              10 * time.Second,
		MinRequests:         10,
		FailureRatio:        0.5,
		OpenTimeout:         10 * time.Second,
		HalfOpenMaxRequests: 3,
	}
}

// CircuitBreaker rejects calls with domain.ErrServiceUnavailable while open.
// Business errors count as successes: they are correct answers, not faults.
type CircuitBreaker struct {
	cb *gobreaker.CircuitBreaker
}

// NewCircuitBreaker creates a named CircuitBreaker.
func NewCircuitBreaker(name string, cfg BreakerConfig, logger zerolog.Logger) *CircuitBreaker {
	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.HalfOpenMaxRequests,
		Interval:    cfg.Window,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= cfg.FailureRatio
		},
		IsSuccessful: func(err error) bool {
			return err == nil || domain.IsBusinessError(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			ev := logger.Info()
			if to == gobreaker.StateOpen {
				ev = logger.Warn()
			}
			ev.Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state changed")
		},
	}

	return &CircuitBreaker{cb: gobreaker.NewCircuitBreaker(settings)}
}

// Execute runs op through the breaker.
func (b *CircuitBreaker) Execute(ctx context.Context, op func(ctx context.Context) error) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, op(ctx)
	})

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %s: %w", domain.ErrServiceUnavailable, b.cb.Name(), err)
	}
	return err
}

// State returns the current breaker state as a string: closed, half-open or open.
func (b *CircuitBreaker) State() string {
	return b.cb.State().String()
}
