package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Event types
const (
	EventTypeAccountCreated     = "account.created"
	EventTypeTransactionCreated = "transaction.created"
)

// Event is an immutable fact describing a committed ledger mutation.
type Event interface {
	EventID() string
	EventType() string
	// PartitionKey groups events whose relative order must be preserved.
	PartitionKey() string
	OccurredAtTime() time.Time
}

// AccountCreatedEvent payload
type AccountCreatedEvent struct {
	OccurredAt     time.Time       `json:"occurred_at"`
	ID             string          `json:"event_id"`
	AccountID      string          `json:"account_id"`
	AccountNumber  string          `json:"account_number"`
	HolderName     string          `json:"holder_name"`
	InitialBalance decimal.Decimal `json:"initial_balance"`
}

func (e *AccountCreatedEvent) EventID() string           { return e.ID }
func (e *AccountCreatedEvent) EventType() string         { return EventTypeAccountCreated }
func (e *AccountCreatedEvent) PartitionKey() string      { return e.AccountID }
func (e *AccountCreatedEvent) OccurredAtTime() time.Time { return e.OccurredAt }

// TransactionCreatedEvent payload
type TransactionCreatedEvent struct {
	OccurredAt     time.Time       `json:"occurred_at"`
	ID             string          `json:"event_id"`
	TransactionID  string          `json:"transaction_id"`
	AccountID      string          `json:"account_id"`
	Type           TransactionType `json:"type"`
	Description    string          `json:"description"`
	Amount         decimal.Decimal `json:"amount"`
	BalanceAfter   decimal.Decimal `json:"balance_after"`
	AccountVersion int64           `json:"account_version"`
}

func (e *TransactionCreatedEvent) EventID() string           { return e.ID }
func (e *TransactionCreatedEvent) EventType() string         { return EventTypeTransactionCreated }
func (e *TransactionCreatedEvent) PartitionKey() string      { return e.AccountID }
func (e *TransactionCreatedEvent) OccurredAtTime() time.Time { return e.OccurredAt }

// DecodeEvent rebuilds an event from its type and JSON payload.
func DecodeEvent(eventType string, payload []byte) (Event, error) {
	var event Event
	switch eventType {
	case EventTypeAccountCreated:
		event = &AccountCreatedEvent{}
	case EventTypeTransactionCreated:
		event = &TransactionCreatedEvent{}
	default:
		return nil, fmt.Errorf("unknown event type %q", eventType)
	}

	if err := json.Unmarshal(payload, event); err != nil {
		return nil, fmt.Errorf("decode %s: %w", eventType, err)
	}
	return event, nil
}
