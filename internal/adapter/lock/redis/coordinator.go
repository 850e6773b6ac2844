// Package redis implements usecase.LockCoordinator on Redis using the
// redsync algorithm, for deployments running several ledger instances.
package redis

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	goredislib "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/iho/bankledger/internal/domain"
	"github.com/iho/bankledger/internal/usecase"
)

// DefaultRetryInterval is the pause between acquisition attempts.
const DefaultRetryInterval = 100 * time.Millisecond

// Coordinator grants locks stored in Redis.
type Coordinator struct {
	rs            *redsync.Redsync
	retryInterval time.Duration
	logger        zerolog.Logger
}

var _ usecase.LockCoordinator = (*Coordinator)(nil)

// NewCoordinator creates a Coordinator on top of client.
func NewCoordinator(client goredislib.UniversalClient, retryInterval time.Duration, logger zerolog.Logger) *Coordinator {
	if retryInterval <= 0 {
		retryInterval = DefaultRetryInterval
	}
	return &Coordinator{
		rs:            redsync.New(goredis.NewPool(client)),
		retryInterval: retryInterval,
		logger:        logger,
	}
}

// Acquire polls for key every retry interval until waitTimeout elapses.
func (c *Coordinator) Acquire(ctx context.Context, key string, waitTimeout, leaseTime time.Duration) (usecase.Lock, error) {
	mutex := c.rs.NewMutex(key,
		redsync.WithExpiry(leaseTime),
		redsync.WithTries(c.tries(waitTimeout)),
		redsync.WithRetryDelay(c.retryInterval),
	)

	waitCtx, cancel := context.WithTimeout(ctx, waitTimeout)
	defer cancel()

	if err := mutex.LockContext(waitCtx); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", domain.ErrLockAcquisition, key, err)
	}

	c.logger.Debug().Str("lock_key", key).Time("lease_until", mutex.Until()).Msg("lock acquired")

	return &Lock{mutex: mutex, logger: c.logger}, nil
}

func (c *Coordinator) tries(waitTimeout time.Duration) int {
	n := int(waitTimeout/c.retryInterval) + 1
	if n < 1 {
		return 1
	}
	return n
}

// Lock is a lease held in Redis.
type Lock struct {
	mutex    *redsync.Mutex
	logger   zerolog.Logger
	released atomic.Bool
}

// Key returns the lock name.
func (l *Lock) Key() string { return l.mutex.Name() }

// Held reports whether the lease is still within its validity window.
// It does not contact Redis.
func (l *Lock) Held() bool {
	return !l.released.Load() && time.Now().Before(l.mutex.Until())
}

// Release deletes the lock if this holder still owns it. Only the first
// call has an effect.
func (l *Lock) Release(ctx context.Context) error {
	if !l.released.CompareAndSwap(false, true) {
		return nil
	}

	expired := !time.Now().Before(l.mutex.Until())

	ok, err := l.mutex.UnlockContext(ctx)
	if err != nil {
		if errors.Is(err, redsync.ErrLockAlreadyExpired) || expired {
			return fmt.Errorf("%w: %s: %w", domain.ErrLeaseExpired, l.Key(), err)
		}
		return fmt.Errorf("release %s: %w", l.Key(), err)
	}
	if !ok || expired {
		return fmt.Errorf("%w: %s", domain.ErrLeaseExpired, l.Key())
	}

	l.logger.Debug().Str("lock_key", l.Key()).Msg("lock released")
	return nil
}
