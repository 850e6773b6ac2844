package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestDecodeEvent(t *testing.T) {
	original := &TransactionCreatedEvent{
		OccurredAt:     time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		ID:             "evt-1",
		TransactionID:  "txn-1",
		AccountID:      "acc-1",
		Type:           TransactionTypeDeposit,
		Amount:         decimal.RequireFromString("12.50"),
		BalanceAfter:   decimal.RequireFromString("112.50"),
		AccountVersion: 3,
	}
	payload, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	event, err := DecodeEvent(EventTypeTransactionCreated, payload)
	if err != nil {
		t.Fatalf("DecodeEvent: %v", err)
	}

	got, ok := event.(*TransactionCreatedEvent)
	if !ok {
		t.Fatalf("expected *TransactionCreatedEvent, got %T", event)
	}
	if got.ID != "evt-1" || got.AccountVersion != 3 || !got.Amount.Equal(original.Amount) {
		t.Fatalf("unexpected event: %+v", got)
	}
	if got.PartitionKey() != "acc-1" {
		t.Fatalf("expected partition key acc-1, got %s", got.PartitionKey())
	}
}

func TestDecodeEventErrors(t *testing.T) {
	if _, err := DecodeEvent("account.closed", []byte(`{}`)); err == nil {
		t.Fatal("expected error for unknown event type")
	}
	if _, err := DecodeEvent(EventTypeAccountCreated, []byte(`{`)); err == nil {
		t.Fatal("expected error for malformed payload")
	}
}
