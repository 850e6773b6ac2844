package eventchannel

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"go.uber.org/mock/gomock"

	"github.com/iho/bankledger/internal/domain"
	"github.com/iho/bankledger/internal/usecase/mocks"
)

type recordingHandler struct {
	mu       sync.Mutex
	seen     []string
	failures map[string]int // event id -> remaining failures
	calls    map[string]int
}

func newRecordingHandler() *recordingHandler {
	return &recordingHandler{failures: map[string]int{}, calls: map[string]int{}}
}

func (h *recordingHandler) Handle(ctx context.Context, event domain.Event) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.calls[event.EventID()]++
	if h.failures[event.EventID()] > 0 {
		h.failures[event.EventID()]--
		return errors.New("projection unavailable")
	}
	h.seen = append(h.seen, event.EventID())
	return nil
}

func (h *recordingHandler) snapshot() ([]string, map[string]int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	calls := make(map[string]int, len(h.calls))
	for k, v := range h.calls {
		calls[k] = v
	}
	return append([]string(nil), h.seen...), calls
}

type collectingDeadLetter struct {
	mu     sync.Mutex
	events []domain.Event
	causes []error
}

func (d *collectingDeadLetter) Put(ctx context.Context, event domain.Event, cause error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, event)
	d.causes = append(d.causes, cause)
}

func txEvent(id, accountID string) *domain.TransactionCreatedEvent {
	return &domain.TransactionCreatedEvent{ID: id, AccountID: accountID, TransactionID: "tx-" + id}
}

func startChannel(t *testing.T, cfg Config) *Channel {
	t.Helper()
	if cfg.InitialBackoff == 0 {
		cfg.InitialBackoff = time.Millisecond
	}
	cfg.Logger = zerolog.Nop()

	ch := New(cfg)
	done := make(chan error, 1)
	go func() { done <- ch.Start(context.Background()) }()

	t.Cleanup(func() {
		ch.Stop()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Errorf("channel did not stop")
		}
	})
	return ch
}

func TestPublishInvokesAllHandlers(t *testing.T) {
	ch := New(Config{Logger: zerolog.Nop()})
	first, second := newRecordingHandler(), newRecordingHandler()
	ch.Subscribe(first)
	ch.Subscribe(second)

	if err := ch.Publish(context.Background(), txEvent("e1", "a"), txEvent("e2", "a")); err != nil {
		t.Fatalf("publish: %v", err)
	}

	for _, h := range []*recordingHandler{first, second} {
		seen, _ := h.snapshot()
		if len(seen) != 2 || seen[0] != "e1" || seen[1] != "e2" {
			t.Fatalf("unexpected delivery %v", seen)
		}
	}
}

func TestPublishReportsHandlerFailureWithoutRetry(t *testing.T) {
	ctrl := gomock.NewController(t)
	metrics := mocks.NewMockMetricsSink(ctrl)
	metrics.EXPECT().EventPublished(domain.EventTypeTransactionCreated).Times(1)
	metrics.EXPECT().EventFailed(domain.EventTypeTransactionCreated).Times(1)

	ch := New(Config{Logger: zerolog.Nop(), Metrics: metrics})
	h := newRecordingHandler()
	h.failures["e1"] = 1
	ch.Subscribe(h)

	err := ch.Publish(context.Background(), txEvent("e1", "a"))
	if !errors.Is(err, domain.ErrEventDelivery) {
		t.Fatalf("expected ErrEventDelivery, got %v", err)
	}
	if domain.IsTransient(err) || domain.IsBusinessError(err) {
		t.Fatalf("delivery failure must be classified on its own")
	}

	_, calls := h.snapshot()
	if calls["e1"] != 1 {
		t.Fatalf("synchronous publish must not retry, got %d calls", calls["e1"])
	}
}

func TestPublishAsyncRetriesUntilSuccess(t *testing.T) {
	dead := &collectingDeadLetter{}
	ch := startChannel(t, Config{MaxAttempts: 3, DeadLetter: dead})
	h := newRecordingHandler()
	h.failures["e1"] = 2
	ch.Subscribe(h)

	ch.PublishAsync(context.Background(), txEvent("e1", "a"))
	ch.Wait()

	seen, calls := h.snapshot()
	if len(seen) != 1 || calls["e1"] != 3 {
		t.Fatalf("expected success on third attempt, seen=%v calls=%d", seen, calls["e1"])
	}
	if len(dead.events) != 0 {
		t.Fatalf("nothing should be dead-lettered")
	}
}

func TestPublishAsyncDeadLettersAfterMaxAttempts(t *testing.T) {
	ctrl := gomock.NewController(t)
	metrics := mocks.NewMockMetricsSink(ctrl)
	metrics.EXPECT().EventPublished(domain.EventTypeTransactionCreated).Times(1)
	metrics.EXPECT().EventFailed(domain.EventTypeTransactionCreated).Times(1)

	dead := &collectingDeadLetter{}
	ch := startChannel(t, Config{MaxAttempts: 3, DeadLetter: dead, Metrics: metrics})
	h := newRecordingHandler()
	h.failures["e1"] = 10
	ch.Subscribe(h)

	ch.PublishAsync(context.Background(), txEvent("e1", "a"))
	ch.Wait()

	_, calls := h.snapshot()
	if calls["e1"] != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls["e1"])
	}

	dead.mu.Lock()
	defer dead.mu.Unlock()
	if len(dead.events) != 1 || dead.events[0].EventID() != "e1" {
		t.Fatalf("expected e1 to be dead-lettered, got %v", dead.events)
	}
	if !errors.Is(dead.causes[0], domain.ErrEventDelivery) {
		t.Fatalf("dead letter cause should wrap ErrEventDelivery: %v", dead.causes[0])
	}
}

func TestPublishAsyncPreservesOrderWithinPartition(t *testing.T) {
	ch := startChannel(t, Config{Workers: 4})
	h := newRecordingHandler()
	ch.Subscribe(h)

	const n = 50
	for i := 0; i < n; i++ {
		ch.PublishAsync(context.Background(), txEvent(fmt.Sprintf("e%02d", i), "acc-1"))
	}
	ch.Wait()

	seen, _ := h.snapshot()
	if len(seen) != n {
		t.Fatalf("expected %d events, got %d", n, len(seen))
	}
	for i, id := range seen {
		if want := fmt.Sprintf("e%02d", i); id != want {
			t.Fatalf("event %d out of order: got %s want %s", i, id, want)
		}
	}
}

func TestPublishAsyncBatchKeepsEmissionOrder(t *testing.T) {
	ch := startChannel(t, Config{Workers: 8})
	h := newRecordingHandler()
	ch.Subscribe(h)

	ch.PublishAsync(context.Background(), txEvent("debit", "from"), txEvent("credit", "to"))
	ch.Wait()

	seen, _ := h.snapshot()
	if len(seen) != 2 || seen[0] != "debit" || seen[1] != "credit" {
		t.Fatalf("batch delivered out of order: %v", seen)
	}
}

func TestPublishAsyncAfterStopGoesToDeadLetter(t *testing.T) {
	dead := &collectingDeadLetter{}
	ch := New(Config{Logger: zerolog.Nop(), DeadLetter: dead})
	ch.Stop()

	ch.PublishAsync(context.Background(), txEvent("late", "a"))

	if len(dead.events) != 1 || !errors.Is(dead.causes[0], errClosed) {
		t.Fatalf("expected late event to be dead-lettered, got %v", dead.causes)
	}
}

func TestPublishAsyncFullQueueSpillsWithoutLoss(t *testing.T) {
	dead := &collectingDeadLetter{}
	ch := New(Config{Logger: zerolog.Nop(), DeadLetter: dead, Workers: 1, QueueSize: 1, MaxAttempts: 5})
	h := newRecordingHandler()
	ch.Subscribe(h)

	const n = 6
	for i := 0; i < n; i++ {
		ch.PublishAsync(context.Background(), txEvent(fmt.Sprintf("e%d", i), "a"))
	}

	done := make(chan error, 1)
	go func() { done <- ch.Start(context.Background()) }()
	ch.Wait()

	// Accepted after the backlog drained; goes straight to the queue again.
	ch.PublishAsync(context.Background(), txEvent("e6", "a"))
	ch.Wait()

	ch.Stop()
	if err := <-done; err != nil {
		t.Fatalf("start: %v", err)
	}

	seen, _ := h.snapshot()
	if len(seen) != n+1 {
		t.Fatalf("expected %d events handled, got %v", n+1, seen)
	}
	for i, id := range seen {
		if want := fmt.Sprintf("e%d", i); id != want {
			t.Fatalf("event %d out of order: got %s want %s", i, id, want)
		}
	}
	if len(dead.events) != 0 {
		t.Fatalf("expected nothing dead-lettered, got %d", len(dead.events))
	}
}

func TestStopDeliversSpilledBatches(t *testing.T) {
	ch := New(Config{Logger: zerolog.Nop(), Workers: 1, QueueSize: 1})
	h := newRecordingHandler()
	ch.Subscribe(h)

	for _, id := range []string{"first", "second", "third"} {
		ch.PublishAsync(context.Background(), txEvent(id, "a"))
	}
	ch.Stop()

	if err := ch.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}

	seen, _ := h.snapshot()
	if len(seen) != 3 || seen[0] != "first" || seen[2] != "third" {
		t.Fatalf("expected every queued batch delivered, got %v", seen)
	}
}
