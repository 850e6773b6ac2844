package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"go.uber.org/mock/gomock"

	"github.com/iho/bankledger/internal/domain"
	"github.com/iho/bankledger/internal/usecase/mocks"
)

func depositEvent(id string) *domain.TransactionCreatedEvent {
	return &domain.TransactionCreatedEvent{
		OccurredAt:     time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		ID:             id,
		TransactionID:  "txn-" + id,
		AccountID:      "acc-1",
		Type:           domain.TransactionTypeDeposit,
		Amount:         decimal.RequireFromString("10.00"),
		BalanceAfter:   decimal.RequireFromString("110.00"),
		AccountVersion: 1,
	}
}

func TestDeadLetterPutAndList(t *testing.T) {
	client, _ := newTestRedisClient(t)

	store := NewDeadLetterStore(client, zerolog.Nop())
	ctx := context.Background()

	store.Put(ctx, depositEvent("evt-1"), errors.New("view missing"))
	store.Put(ctx, depositEvent("evt-2"), errors.New("view missing"))

	records, err := store.List(ctx, 10)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].EventID != "evt-2" {
		t.Fatalf("expected newest record first, got %s", records[0].EventID)
	}
	if records[1].Cause != "view missing" || records[1].PartitionKey != "acc-1" {
		t.Fatalf("unexpected record: %+v", records[1])
	}

	event, err := records[1].Event()
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if txn, ok := event.(*domain.TransactionCreatedEvent); !ok || txn.TransactionID != "txn-evt-1" {
		t.Fatalf("unexpected decoded event: %#v", event)
	}
}

func TestDeadLetterIgnoresDuplicates(t *testing.T) {
	client, _ := newTestRedisClient(t)

	store := NewDeadLetterStore(client, zerolog.Nop())
	ctx := context.Background()

	store.Put(ctx, depositEvent("evt-1"), errors.New("first"))
	store.Put(ctx, depositEvent("evt-1"), errors.New("second"))

	n, err := store.Len(ctx)
	if err != nil {
		t.Fatalf("len failed: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 record, got %d", n)
	}
}

func TestDeadLetterTrimsToMaxLen(t *testing.T) {
	client, _ := newTestRedisClient(t)

	store := NewDeadLetterStore(client, zerolog.Nop())
	store.maxLen = 2
	ctx := context.Background()

	for _, id := range []string{"evt-1", "evt-2", "evt-3"} {
		store.Put(ctx, depositEvent(id), nil)
	}

	records, err := store.List(ctx, 10)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(records) != 2 || records[0].EventID != "evt-3" || records[1].EventID != "evt-2" {
		t.Fatalf("unexpected records after trim: %+v", records)
	}
}

func TestDeadLetterRemove(t *testing.T) {
	client, mr := newTestRedisClient(t)

	store := NewDeadLetterStore(client, zerolog.Nop())
	ctx := context.Background()

	store.Put(ctx, depositEvent("evt-1"), nil)
	records, err := store.List(ctx, 1)
	if err != nil || len(records) != 1 {
		t.Fatalf("expected one record, got %v err=%v", records, err)
	}

	removed, err := store.Remove(ctx, records[0])
	if err != nil || !removed {
		t.Fatalf("expected removal, got removed=%v err=%v", removed, err)
	}
	if mr.Exists("deadletter:seen:evt-1") {
		t.Fatal("expected seen marker to be cleared")
	}

	// A cleared event can be dead-lettered again.
	store.Put(ctx, depositEvent("evt-1"), nil)
	if n, _ := store.Len(ctx); n != 1 {
		t.Fatalf("expected event to be stored again, got %d", n)
	}
}

func TestDeadLetterPutLogsWhenRedisIsDown(t *testing.T) {
	client, mr := newTestRedisClient(t)

	store := NewDeadLetterStore(client, zerolog.Nop())
	mr.Close()

	// Must not panic or block.
	store.Put(context.Background(), depositEvent("evt-1"), errors.New("boom"))
}

func TestDeadLetterFailedWriteKeepsEventEligible(t *testing.T) {
	client, mr := newTestRedisClient(t)

	store := NewDeadLetterStore(client, zerolog.Nop())
	ctx := context.Background()

	// A string under the list key makes LPUSH fail after the seen marker is set.
	if err := mr.Set("deadletter:events", "not a list"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := store.put(ctx, depositEvent("evt-1"), nil); err == nil {
		t.Fatal("expected put to fail on a non-list key")
	}
	if mr.Exists("deadletter:seen:evt-1") {
		t.Fatal("expected seen marker to be cleared after a failed write")
	}

	mr.Del("deadletter:events")
	store.Put(ctx, depositEvent("evt-1"), nil)

	n, err := store.Len(ctx)
	if err != nil {
		t.Fatalf("len failed: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected the event to be stored on retry, got %d", n)
	}
}

func TestDeadLetterReplay(t *testing.T) {
	client, _ := newTestRedisClient(t)

	ctrl := gomock.NewController(t)
	publisher := mocks.NewMockEventPublisher(ctrl)

	store := NewDeadLetterStore(client, zerolog.Nop())
	ctx := context.Background()

	store.Put(ctx, depositEvent("evt-1"), nil)
	store.Put(ctx, depositEvent("evt-2"), nil)

	var order []string
	publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, events ...domain.Event) error {
			order = append(order, events[0].EventID())
			if events[0].EventID() == "evt-2" {
				return domain.ErrEventDelivery
			}
			return nil
		}).Times(2)

	replayed, failed, err := store.Replay(ctx, publisher, 10)
	if err != nil {
		t.Fatalf("replay failed: %v", err)
	}
	if replayed != 1 || failed != 1 {
		t.Fatalf("expected 1 replayed and 1 failed, got %d and %d", replayed, failed)
	}
	if len(order) != 2 || order[0] != "evt-1" {
		t.Fatalf("expected oldest record replayed first, got %v", order)
	}

	records, err := store.List(ctx, 10)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(records) != 1 || records[0].EventID != "evt-2" {
		t.Fatalf("expected only the failed record to remain, got %+v", records)
	}
}
