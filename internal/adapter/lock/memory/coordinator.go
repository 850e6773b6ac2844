// Package memory implements usecase.LockCoordinator as an in-process table
// of leased mutexes.
package memory

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/iho/bankledger/internal/domain"
	"github.com/iho/bankledger/internal/usecase"
)

type lease struct {
	expiresAt time.Time
	// done is closed when the lease is released or replaced after expiry.
	done chan struct{}
}

// Coordinator grants locks keyed by name. A lease that outlives its
// lease time is treated as abandoned and may be taken over by a waiter.
type Coordinator struct {
	mu     sync.Mutex
	leases map[string]*lease
	now    func() time.Time
}

var _ usecase.LockCoordinator = (*Coordinator)(nil)

// NewCoordinator creates a new Coordinator.
func NewCoordinator() *Coordinator {
	return &Coordinator{
		leases: make(map[string]*lease),
		now:    time.Now,
	}
}

// Acquire blocks until key is free, waitTimeout elapses or ctx is done.
func (c *Coordinator) Acquire(ctx context.Context, key string, waitTimeout, leaseTime time.Duration) (usecase.Lock, error) {
	deadline := time.NewTimer(waitTimeout)
	defer deadline.Stop()

	for {
		c.mu.Lock()
		now := c.now()
		current, held := c.leases[key]
		if held && !now.Before(current.expiresAt) {
			close(current.done)
			delete(c.leases, key)
			held = false
		}
		if !held {
			l := &lease{expiresAt: now.Add(leaseTime), done: make(chan struct{})}
			c.leases[key] = l
			c.mu.Unlock()
			return &Lock{coordinator: c, key: key, lease: l}, nil
		}
		c.mu.Unlock()

		expiry := time.NewTimer(current.expiresAt.Sub(now))
		select {
		case <-current.done:
		case <-expiry.C:
		case <-deadline.C:
			expiry.Stop()
			return nil, fmt.Errorf("%w: %s not acquired within %s", domain.ErrLockAcquisition, key, waitTimeout)
		case <-ctx.Done():
			expiry.Stop()
			return nil, fmt.Errorf("%w: %s: %w", domain.ErrLockAcquisition, key, ctx.Err())
		}
		expiry.Stop()
	}
}

func (c *Coordinator) held(key string, l *lease) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.leases[key] == l && c.now().Before(l.expiresAt)
}

func (c *Coordinator) release(key string, l *lease) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.leases[key] != l {
		return fmt.Errorf("%w: %s was taken over", domain.ErrLeaseExpired, key)
	}

	delete(c.leases, key)
	close(l.done)

	if !c.now().Before(l.expiresAt) {
		return fmt.Errorf("%w: %s", domain.ErrLeaseExpired, key)
	}
	return nil
}

// Lock is a lease granted by Coordinator.
type Lock struct {
	coordinator *Coordinator
	key         string
	lease       *lease
	released    atomic.Bool
}

// Key returns the lock name.
func (l *Lock) Key() string { return l.key }

// Held reports whether this lease is still current and unexpired.
func (l *Lock) Held() bool {
	if l.released.Load() {
		return false
	}
	return l.coordinator.held(l.key, l.lease)
}

// Release frees the lock. Only the first call has an effect.
func (l *Lock) Release(ctx context.Context) error {
	if !l.released.CompareAndSwap(false, true) {
		return nil
	}
	return l.coordinator.release(l.key, l.lease)
}
