package usecase

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/iho/bankledger/internal/domain"
)

//go:generate mockgen -destination=mocks/mock_ports.go -package=mocks github.com/iho/bankledger/internal/usecase Ledger,Guard,LockCoordinator,Lock,EventPublisher,EventHandler,MetricsSink

// Guard runs op under the fault-tolerance policy registered for name.
// Implementations retry transient failures and reject calls while the
// named circuit is open.
type Guard interface {
	Execute(ctx context.Context, name string, op func(ctx context.Context) error) error
}

// Guard names. Single-account commands and transfers trip independently.
const (
	GuardAccount  = "account"
	GuardTransfer = "transfer"
)

// ResilientLedger decorates a Ledger with a Guard.
type ResilientLedger struct {
	next  Ledger
	guard Guard
}

var _ Ledger = (*ResilientLedger)(nil)

// NewResilientLedger wraps next so every call goes through guard.
func NewResilientLedger(next Ledger, guard Guard) *ResilientLedger {
	return &ResilientLedger{next: next, guard: guard}
}

func (l *ResilientLedger) CreateAccount(ctx context.Context, input CreateAccountInput) (*domain.Account, error) {
	var account *domain.Account
	err := l.guard.Execute(ctx, GuardAccount, func(ctx context.Context) error {
		var err error
		account, err = l.next.CreateAccount(ctx, input)
		return err
	})
	if err != nil {
		return nil, err
	}
	return account, nil
}

func (l *ResilientLedger) Deposit(ctx context.Context, accountNumber string, amount decimal.Decimal) (*domain.Account, error) {
	var account *domain.Account
	err := l.guard.Execute(ctx, GuardAccount, func(ctx context.Context) error {
		var err error
		account, err = l.next.Deposit(ctx, accountNumber, amount)
		return err
	})
	if err != nil {
		return nil, err
	}
	return account, nil
}

func (l *ResilientLedger) Withdraw(ctx context.Context, accountNumber string, amount decimal.Decimal) (*domain.Account, error) {
	var account *domain.Account
	err := l.guard.Execute(ctx, GuardAccount, func(ctx context.Context) error {
		var err error
		account, err = l.next.Withdraw(ctx, accountNumber, amount)
		return err
	})
	if err != nil {
		return nil, err
	}
	return account, nil
}

func (l *ResilientLedger) Transfer(ctx context.Context, input TransferInput) (*TransferResult, error) {
	var result *TransferResult
	err := l.guard.Execute(ctx, GuardTransfer, func(ctx context.Context) error {
		var err error
		result, err = l.next.Transfer(ctx, input)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
