package resilience

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/iho/bankledger/internal/usecase"
)

// Policy implements usecase.Guard: each named operation gets its own
// circuit breaker around a shared retry policy.
type Policy struct {
	retry   *RetryPolicy
	cfg     BreakerConfig
	logger  zerolog.Logger
	mu      sync.RWMutex
	breaker map[string]*CircuitBreaker
}

var _ usecase.Guard = (*Policy)(nil)

// NewPolicy creates a Policy.
func NewPolicy(retry RetryConfig, breaker BreakerConfig, logger zerolog.Logger) *Policy {
	return &Policy{
		retry:   NewRetryPolicy(retry, logger),
		cfg:     breaker,
		logger:  logger,
		breaker: make(map[string]*CircuitBreaker),
	}
}

// Execute runs op with retries inside the breaker registered for name.
// The breaker sees one outcome per call, after retries.
func (p *Policy) Execute(ctx context.Context, name string, op func(ctx context.Context) error) error {
	return p.Breaker(name).Execute(ctx, func(ctx context.Context) error {
		return p.retry.Do(ctx, name, op)
	})
}

// Breaker returns the breaker for name, creating it on first use.
func (p *Policy) Breaker(name string) *CircuitBreaker {
	p.mu.RLock()
	b, ok := p.breaker[name]
	p.mu.RUnlock()
	if ok {
		return b
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if b, ok = p.breaker[name]; ok {
		return b
	}
	b = NewCircuitBreaker(name, p.cfg, p.logger)
	p.breaker[name] = b

	return b
}

// States reports the state of every breaker created so far.
func (p *Policy) States() map[string]string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	states := make(map[string]string, len(p.breaker))
	for name, b := range p.breaker {
		states[name] = b.State()
	}
	return states
}
