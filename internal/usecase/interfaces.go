package usecase

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/bankledger/internal/domain"
)

// AccountRepository defines data access for accounts on the write side.
type AccountRepository interface {
	Create(ctx context.Context, tx Transaction, account *domain.Account) error
	GetByID(ctx context.Context, tx Transaction, id string) (*domain.Account, error)
	GetByNumber(ctx context.Context, tx Transaction, accountNumber string) (*domain.Account, error)
	// GetByNumberForUpdate loads an account and, where the store supports it,
	// locks the row until tx ends.
	GetByNumberForUpdate(ctx context.Context, tx Transaction, accountNumber string) (*domain.Account, error)
	// UpdateBalance persists account.Balance and account.Version only if the
	// stored version still equals expectedVersion.
	UpdateBalance(ctx context.Context, tx Transaction, account *domain.Account, expectedVersion int64) error
	List(ctx context.Context, tx Transaction, limit, offset int) ([]*domain.Account, error)
	Count(ctx context.Context, tx Transaction) (int64, error)
}

// TransactionRepository defines data access for transaction rows.
type TransactionRepository interface {
	Create(ctx context.Context, tx Transaction, txn *domain.Transaction) error
	GetByID(ctx context.Context, tx Transaction, id string) (*domain.Transaction, error)
	ListByAccount(ctx context.Context, tx Transaction, accountID string, limit, offset int) ([]*domain.Transaction, error)
}

// AccountViewRepository defines data access for account read views.
type AccountViewRepository interface {
	// Insert stores view unless one with the same ID exists. Reports whether it inserted.
	Insert(ctx context.Context, tx Transaction, view *domain.AccountReadView) (bool, error)
	GetForUpdate(ctx context.Context, tx Transaction, id string) (*domain.AccountReadView, error)
	GetByNumber(ctx context.Context, tx Transaction, accountNumber string) (*domain.AccountReadView, error)
	Update(ctx context.Context, tx Transaction, view *domain.AccountReadView) error
	List(ctx context.Context, tx Transaction, limit, offset int) ([]*domain.AccountReadView, error)
}

// TransactionViewRepository defines data access for transaction history views.
type TransactionViewRepository interface {
	// Insert stores view unless one with the same ID exists. Reports whether it inserted.
	Insert(ctx context.Context, tx Transaction, view *domain.TransactionReadView) (bool, error)
	ListByAccountNumber(ctx context.Context, tx Transaction, accountNumber string, limit int) ([]*domain.TransactionReadView, error)
}

// Transaction represents a database transaction.
type Transaction interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// TransactionManager handles transaction lifecycle.
type TransactionManager interface {
	Begin(ctx context.Context) (Transaction, error)
	BeginReadOnly(ctx context.Context) (Transaction, error)
}

// IDGenerator generates unique IDs.
type IDGenerator interface {
	Generate() string
}

// Lock is a leased grant returned by LockCoordinator.
type Lock interface {
	Key() string
	// Held reports whether the lease is still owned and unexpired.
	Held() bool
	// Release gives the lock back. Calling it more than once is a no-op.
	// It returns domain.ErrLeaseExpired if the lease ran out while held.
	Release(ctx context.Context) error
}

// LockCoordinator grants named, leased mutual-exclusion locks.
type LockCoordinator interface {
	// Acquire blocks up to waitTimeout. On timeout it returns an error
	// wrapping domain.ErrLockAcquisition.
	Acquire(ctx context.Context, key string, waitTimeout, leaseTime time.Duration) (Lock, error)
}

// EventPublisher delivers domain events to in-process subscribers.
type EventPublisher interface {
	// Publish invokes every subscriber before returning.
	Publish(ctx context.Context, events ...domain.Event) error
	// PublishAsync hands events to a background worker and returns immediately.
	// Events in one call are delivered in order.
	PublishAsync(ctx context.Context, events ...domain.Event)
}

// EventHandler consumes domain events.
type EventHandler interface {
	Handle(ctx context.Context, event domain.Event) error
}

// MetricsSink receives fire-and-forget counters and timers.
type MetricsSink interface {
	AccountCreated()
	SetAccountCount(count int64)
	TransactionRecorded(txType domain.TransactionType, amount decimal.Decimal)
	EventPublished(eventType string)
	EventProcessed(eventType string, took time.Duration)
	EventFailed(eventType string)
	LockAcquired(scope string)
	LockFailed(scope string)
	LeaseExpired(scope string)
}
