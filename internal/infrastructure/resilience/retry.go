// Package resilience implements the retry and circuit-breaking policy
// wrapped around ledger commands.
package resilience

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/iho/bankledger/internal/domain"
)

// RetryConfig for RetryPolicy.
type RetryConfig struct {
	MaxAttempts int           // total invocations, including the first
	Delay       time.Duration // fixed pause between attempts
}

// RetryPolicy retries transient failures a bounded number of times with a
// fixed delay. Business errors and anything not classified as transient
// are returned immediately.
type RetryPolicy struct {
	maxAttempts int
	delay       time.Duration
	logger      zerolog.Logger
}

// NewRetryPolicy creates a RetryPolicy.
func NewRetryPolicy(cfg RetryConfig, logger zerolog.Logger) *RetryPolicy {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.Delay < 0 {
		cfg.Delay = 0
	}
	return &RetryPolicy{
		maxAttempts: cfg.MaxAttempts,
		delay:       cfg.Delay,
		logger:      logger,
	}
}

// Do runs op until it succeeds, fails permanently, or the attempts run out.
// An exhausted transient failure is returned wrapped in
// domain.ErrServiceUnavailable with the last cause attached.
func (p *RetryPolicy) Do(ctx context.Context, name string, op func(ctx context.Context) error) error {
	b := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(p.delay), uint64(p.maxAttempts-1)),
		ctx,
	)

	attempt := 0
	err := backoff.Retry(func() error {
		attempt++

		err := op(ctx)
		if err == nil {
			return nil
		}

		if !domain.IsTransient(err) {
			return backoff.Permanent(err)
		}

		if attempt < p.maxAttempts {
			p.logger.Warn().Err(err).
				Str("operation", name).
				Int("retry", attempt).
				Msg("transient failure, retrying")
		}

		return err
	}, b)

	if err != nil && domain.IsTransient(err) {
		p.logger.Error().Err(err).
			Str("operation", name).
			Int("attempts", attempt).
			Msg("retries exhausted")
		return fmt.Errorf("%w: %w", domain.ErrServiceUnavailable, err)
	}

	return err
}
