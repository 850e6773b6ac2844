// Package eventchannel delivers domain events to in-process subscribers,
// either inline or through a pool of background workers with retry.
package eventchannel

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/cespare/xxhash/v2"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/iho/bankledger/internal/domain"
	"github.com/iho/bankledger/internal/usecase"
)

var errClosed = errors.New("event channel closed")

// DeadLetter receives events whose delivery was given up on.
type DeadLetter interface {
	Put(ctx context.Context, event domain.Event, cause error)
}

// Config for Channel.
type Config struct {
	Logger         zerolog.Logger
	Metrics        usecase.MetricsSink
	DeadLetter     DeadLetter
	Workers        int           // number of delivery workers; events are sharded by partition key
	QueueSize      int           // buffered batches per worker before spilling to overflow
	MaxAttempts    int           // handler invocations per event, including the first
	InitialBackoff time.Duration // delay before the first retry
	MaxBackoff     time.Duration // cap on the delay between retries
}

type batch struct {
	ctx    context.Context
	events []domain.Event
}

// shard is one worker's inbox. Batches go to the buffered queue while it
// has room and nothing has spilled; otherwise they are appended to
// overflow, which the worker drains once the queue is empty. Everything in
// overflow is newer than everything in the queue.
type shard struct {
	queue chan batch
	wake  chan struct{}

	mu       sync.Mutex
	overflow []batch
}

func newShard(size int) *shard {
	return &shard{
		queue: make(chan batch, size),
		wake:  make(chan struct{}, 1),
	}
}

// push never blocks. It reports whether b spilled into overflow.
func (s *shard) push(b batch) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.overflow) == 0 {
		select {
		case s.queue <- b:
			return false
		default:
		}
	}

	s.overflow = append(s.overflow, b)
	select {
	case s.wake <- struct{}{}:
	default:
	}
	return true
}

// takeOverflow hands the spilled batches to the worker once the queue
// ahead of them is empty.
func (s *shard) takeOverflow() []batch {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.queue) > 0 || len(s.overflow) == 0 {
		return nil
	}
	out := s.overflow
	s.overflow = nil
	return out
}

// Channel implements usecase.EventPublisher.
type Channel struct {
	logger         zerolog.Logger
	metrics        usecase.MetricsSink
	deadLetter     DeadLetter
	maxAttempts    int
	initialBackoff time.Duration
	maxBackoff     time.Duration

	mu       sync.RWMutex
	handlers []usecase.EventHandler
	shards   []*shard
	closed   bool

	pending  sync.WaitGroup
	stopped  chan struct{}
	stopOnce sync.Once
}

var _ usecase.EventPublisher = (*Channel)(nil)

// New creates a Channel. Workers only run once Start is called.
func New(cfg Config) *Channel {
	if cfg.Metrics == nil {
		cfg.Metrics = usecase.NopMetrics{}
	}
	if cfg.DeadLetter == nil {
		cfg.DeadLetter = NewLogDeadLetter(cfg.Logger)
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1024
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = 100 * time.Millisecond
	}
	if cfg.MaxBackoff < cfg.InitialBackoff {
		cfg.MaxBackoff = 20 * cfg.InitialBackoff
	}

	shards := make([]*shard, cfg.Workers)
	for i := range shards {
		shards[i] = newShard(cfg.QueueSize)
	}

	return &Channel{
		logger:         cfg.Logger,
		metrics:        cfg.Metrics,
		deadLetter:     cfg.DeadLetter,
		maxAttempts:    cfg.MaxAttempts,
		initialBackoff: cfg.InitialBackoff,
		maxBackoff:     cfg.MaxBackoff,
		shards:         shards,
		stopped:        make(chan struct{}),
	}
}

// Subscribe registers h for every event.
func (c *Channel) Subscribe(h usecase.EventHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers = append(c.handlers, h)
}

func (c *Channel) subscribers() []usecase.EventHandler {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.handlers
}

// Publish invokes every subscriber for each event, in order, and returns
// once all of them ran. Failures are not retried; they are joined into an
// error wrapping domain.ErrEventDelivery.
func (c *Channel) Publish(ctx context.Context, events ...domain.Event) error {
	handlers := c.subscribers()

	var errs []error
	for _, event := range events {
		c.metrics.EventPublished(event.EventType())

		for _, h := range handlers {
			if err := h.Handle(ctx, event); err != nil {
				c.metrics.EventFailed(event.EventType())
				c.logger.Error().Err(err).
					Str("event_id", event.EventID()).
					Str("event_type", event.EventType()).
					Msg("event handler failed")
				errs = append(errs, fmt.Errorf("event %s: %w", event.EventID(), err))
			}
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", domain.ErrEventDelivery, errors.Join(errs...))
	}
	return nil
}

// PublishAsync queues events as one batch and returns without blocking.
// A batch is delivered in order by the worker owning the partition key of
// its first event. A full queue spills into an unbounded overflow, so an
// accepted batch is only ever dead-lettered after its handlers failed.
func (c *Channel) PublishAsync(ctx context.Context, events ...domain.Event) {
	if len(events) == 0 {
		return
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		c.reject(ctx, events, errClosed)
		return
	}

	idx := c.shardFor(events[0].PartitionKey())

	c.pending.Add(1)
	if c.shards[idx].push(batch{ctx: ctx, events: events}) {
		c.logger.Warn().
			Int("worker", idx).
			Str("event_id", events[0].EventID()).
			Msg("event queue full, batch spilled to overflow")
	}
	for _, event := range events {
		c.metrics.EventPublished(event.EventType())
	}
}

func (c *Channel) shardFor(key string) int {
	return int(xxhash.Sum64String(key) % uint64(len(c.shards)))
}

func (c *Channel) reject(ctx context.Context, events []domain.Event, cause error) {
	for _, event := range events {
		c.metrics.EventFailed(event.EventType())
		c.logger.Error().Err(cause).
			Str("event_id", event.EventID()).
			Str("event_type", event.EventType()).
			Msg("event dropped before delivery")
		c.deadLetter.Put(ctx, event, cause)
	}
}

// Start runs the workers until Stop is called or ctx is done. Batches
// already queued are still delivered before Start returns.
func (c *Channel) Start(ctx context.Context) error {
	c.logger.Info().Int("workers", len(c.shards)).Int("max_attempts", c.maxAttempts).Msg("event channel started")

	var g errgroup.Group
	for i, s := range c.shards {
		g.Go(func() error {
			c.work(i, s)
			return nil
		})
	}

	select {
	case <-ctx.Done():
		c.Stop()
	case <-c.stopped:
	}

	err := g.Wait()
	c.logger.Info().Msg("event channel stopped")
	return err
}

// Stop refuses new asynchronous events and lets workers finish the queue.
func (c *Channel) Stop() {
	c.stopOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		for _, s := range c.shards {
			close(s.queue)
		}
		c.mu.Unlock()
		close(c.stopped)
	})
}

// Wait blocks until every batch accepted by PublishAsync has been handled.
func (c *Channel) Wait() {
	c.pending.Wait()
}

func (c *Channel) work(id int, s *shard) {
	for {
		if spilled := s.takeOverflow(); spilled != nil {
			for _, b := range spilled {
				c.handle(id, b)
			}
			continue
		}

		select {
		case b, ok := <-s.queue:
			if !ok {
				// Closed and drained; overflow is all that can be left.
				for _, b := range s.takeOverflow() {
					c.handle(id, b)
				}
				return
			}
			c.handle(id, b)
		case <-s.wake:
		}
	}
}

func (c *Channel) handle(id int, b batch) {
	defer c.pending.Done()
	for _, event := range b.events {
		for _, h := range c.subscribers() {
			c.deliver(b.ctx, id, h, event)
		}
	}
}

func (c *Channel) deliver(ctx context.Context, worker int, h usecase.EventHandler, event domain.Event) {
	attempt := 0
	operation := func() error {
		attempt++
		return h.Handle(ctx, event)
	}

	notify := func(err error, next time.Duration) {
		c.logger.Warn().Err(err).
			Int("worker", worker).
			Int("attempt", attempt).
			Dur("retry_in", next).
			Str("event_id", event.EventID()).
			Msg("event handler failed, retrying")
	}

	err := backoff.RetryNotify(operation, c.policy(ctx), notify)
	if err == nil {
		return
	}

	c.metrics.EventFailed(event.EventType())
	c.logger.Error().Err(err).
		Int("attempts", attempt).
		Str("event_id", event.EventID()).
		Str("event_type", event.EventType()).
		Msg("event delivery exhausted retries")
	c.deadLetter.Put(ctx, event, fmt.Errorf("%w: %w", domain.ErrEventDelivery, err))
}

func (c *Channel) policy(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.initialBackoff
	b.MaxInterval = c.maxBackoff
	b.Multiplier = 2
	b.RandomizationFactor = 0.2
	b.MaxElapsedTime = 0
	b.Reset()

	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(c.maxAttempts-1)), ctx)
}
