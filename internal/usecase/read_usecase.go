package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/iho/bankledger/internal/domain"
)

// ReadUseCase serves queries from the read views only. Results lag the
// write model by the event delivery latency.
type ReadUseCase struct {
	txRunner         *TxRunner
	accountViews     AccountViewRepository
	transactionViews TransactionViewRepository
}

// NewReadUseCase creates a new ReadUseCase.
func NewReadUseCase(txRunner *TxRunner, accountViews AccountViewRepository, transactionViews TransactionViewRepository) *ReadUseCase {
	return &ReadUseCase{
		txRunner:         txRunner,
		accountViews:     accountViews,
		transactionViews: transactionViews,
	}
}

// GetAccount returns the projected account.
func (uc *ReadUseCase) GetAccount(ctx context.Context, accountNumber string) (*domain.AccountReadView, error) {
	var view *domain.AccountReadView
	err := uc.txRunner.RunReadOnly(ctx, func(ctx context.Context, tx Transaction) error {
		v, err := uc.accountViews.GetByNumber(ctx, tx, accountNumber)
		if err != nil {
			if errors.Is(err, domain.ErrReadViewNotFound) {
				return fmt.Errorf("%w: %s", domain.ErrAccountNotFound, accountNumber)
			}
			return err
		}
		view = v
		return nil
	})
	return view, err
}

// GetBalance returns the projected balance of an account.
func (uc *ReadUseCase) GetBalance(ctx context.Context, accountNumber string) (decimal.Decimal, error) {
	view, err := uc.GetAccount(ctx, accountNumber)
	if err != nil {
		return decimal.Zero, err
	}
	return view.Balance, nil
}

// TransactionHistory returns the newest transactions of an account first.
func (uc *ReadUseCase) TransactionHistory(ctx context.Context, accountNumber string, limit int) ([]*domain.TransactionReadView, error) {
	limit, _ = clampPage(limit, 0)

	var views []*domain.TransactionReadView
	err := uc.txRunner.RunReadOnly(ctx, func(ctx context.Context, tx Transaction) error {
		var err error
		views, err = uc.transactionViews.ListByAccountNumber(ctx, tx, accountNumber, limit)
		return err
	})
	return views, err
}

// ListAccountsInput represents input for listing accounts.
type ListAccountsInput struct {
	Limit  int
	Offset int
}

// ListAccounts lists projected accounts with pagination.
func (uc *ReadUseCase) ListAccounts(ctx context.Context, input ListAccountsInput) ([]*domain.AccountReadView, error) {
	limit, offset := clampPage(input.Limit, input.Offset)

	var views []*domain.AccountReadView
	err := uc.txRunner.RunReadOnly(ctx, func(ctx context.Context, tx Transaction) error {
		var err error
		views, err = uc.accountViews.List(ctx, tx, limit, offset)
		return err
	})
	return views, err
}
