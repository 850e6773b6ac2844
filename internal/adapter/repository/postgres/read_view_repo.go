package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/iho/bankledger/internal/domain"
	"github.com/iho/bankledger/internal/infrastructure/postgres/generated"
	"github.com/iho/bankledger/internal/usecase"
)

// AccountViewRepository implements usecase.AccountViewRepository.
type AccountViewRepository struct{}

var _ usecase.AccountViewRepository = (*AccountViewRepository)(nil)

// NewAccountViewRepository creates a new AccountViewRepository.
func NewAccountViewRepository() *AccountViewRepository {
	return &AccountViewRepository{}
}

// Insert stores view unless a view with its ID already exists.
func (r *AccountViewRepository) Insert(ctx context.Context, tx usecase.Transaction, view *domain.AccountReadView) (bool, error) {
	t, err := pgxTxOf(tx)
	if err != nil {
		return false, err
	}

	n, err := t.queries.InsertAccountView(ctx, generated.InsertAccountViewParams{
		ID:               view.ID,
		AccountNumber:    view.AccountNumber,
		HolderName:       view.HolderName,
		Balance:          decimalToNumeric(view.Balance),
		TotalDeposits:    decimalToNumeric(view.TotalDeposits),
		TotalWithdrawals: decimalToNumeric(view.TotalWithdrawals),
		TransactionCount: view.TransactionCount,
		Version:          view.Version,
		CreatedAt:        timeToPgTimestamptz(view.CreatedAt),
		LastUpdatedAt:    timeToPgTimestamptz(view.LastUpdatedAt),
	})
	if err != nil {
		return false, classify("account_view.insert", err)
	}

	return n > 0, nil
}

// GetForUpdate loads a view and row-locks it until tx ends.
func (r *AccountViewRepository) GetForUpdate(ctx context.Context, tx usecase.Transaction, id string) (*domain.AccountReadView, error) {
	t, err := pgxTxOf(tx)
	if err != nil {
		return nil, err
	}

	row, err := t.queries.GetAccountViewForUpdate(ctx, id)
	return viewOrNotFound(row, err)
}

// GetByNumber loads a view by account number.
func (r *AccountViewRepository) GetByNumber(ctx context.Context, tx usecase.Transaction, accountNumber string) (*domain.AccountReadView, error) {
	t, err := pgxTxOf(tx)
	if err != nil {
		return nil, err
	}

	row, err := t.queries.GetAccountViewByNumber(ctx, accountNumber)
	return viewOrNotFound(row, err)
}

// Update overwrites the mutable columns of a view.
func (r *AccountViewRepository) Update(ctx context.Context, tx usecase.Transaction, view *domain.AccountReadView) error {
	t, err := pgxTxOf(tx)
	if err != nil {
		return err
	}

	err = t.queries.UpdateAccountView(ctx, generated.UpdateAccountViewParams{
		ID:               view.ID,
		Balance:          decimalToNumeric(view.Balance),
		TotalDeposits:    decimalToNumeric(view.TotalDeposits),
		TotalWithdrawals: decimalToNumeric(view.TotalWithdrawals),
		TransactionCount: view.TransactionCount,
		Version:          view.Version,
		LastUpdatedAt:    timeToPgTimestamptz(view.LastUpdatedAt),
	})

	return classify("account_view.update", err)
}

// List lists views in creation order.
func (r *AccountViewRepository) List(ctx context.Context, tx usecase.Transaction, limit, offset int) ([]*domain.AccountReadView, error) {
	t, err := pgxTxOf(tx)
	if err != nil {
		return nil, err
	}

	rows, err := t.queries.ListAccountViews(ctx, generated.ListAccountViewsParams{
		Limit:  int32(limit),
		Offset: int32(offset),
	})
	if err != nil {
		return nil, classify("account_view.list", err)
	}

	views := make([]*domain.AccountReadView, 0, len(rows))
	for _, row := range rows {
		views = append(views, rowToAccountView(row))
	}

	return views, nil
}

func viewOrNotFound(row generated.AccountView, err error) (*domain.AccountReadView, error) {
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrReadViewNotFound
		}
		return nil, classify("account_view.get", err)
	}

	return rowToAccountView(row), nil
}

func rowToAccountView(row generated.AccountView) *domain.AccountReadView {
	return &domain.AccountReadView{
		ID:               row.ID,
		AccountNumber:    row.AccountNumber,
		HolderName:       row.HolderName,
		Balance:          numericToDecimal(row.Balance),
		TotalDeposits:    numericToDecimal(row.TotalDeposits),
		TotalWithdrawals: numericToDecimal(row.TotalWithdrawals),
		TransactionCount: row.TransactionCount,
		Version:          row.Version,
		CreatedAt:        row.CreatedAt.Time,
		LastUpdatedAt:    row.LastUpdatedAt.Time,
	}
}

// TransactionViewRepository implements usecase.TransactionViewRepository.
type TransactionViewRepository struct{}

var _ usecase.TransactionViewRepository = (*TransactionViewRepository)(nil)

// NewTransactionViewRepository creates a new TransactionViewRepository.
func NewTransactionViewRepository() *TransactionViewRepository {
	return &TransactionViewRepository{}
}

// Insert stores view unless a view with its ID already exists.
func (r *TransactionViewRepository) Insert(ctx context.Context, tx usecase.Transaction, view *domain.TransactionReadView) (bool, error) {
	t, err := pgxTxOf(tx)
	if err != nil {
		return false, err
	}

	n, err := t.queries.InsertTransactionView(ctx, generated.InsertTransactionViewParams{
		ID:            view.ID,
		AccountID:     view.AccountID,
		AccountNumber: view.AccountNumber,
		HolderName:    view.HolderName,
		Type:          string(view.Type),
		Amount:        decimalToNumeric(view.Amount),
		BalanceAfter:  decimalToNumeric(view.BalanceAfter),
		Description:   view.Description,
		CreatedAt:     timeToPgTimestamptz(view.CreatedAt),
	})
	if err != nil {
		return false, classify("transaction_view.insert", err)
	}

	return n > 0, nil
}

// ListByAccountNumber lists an account's history, newest first.
func (r *TransactionViewRepository) ListByAccountNumber(ctx context.Context, tx usecase.Transaction, accountNumber string, limit int) ([]*domain.TransactionReadView, error) {
	t, err := pgxTxOf(tx)
	if err != nil {
		return nil, err
	}

	rows, err := t.queries.ListTransactionViewsByAccountNumber(ctx, generated.ListTransactionViewsByAccountNumberParams{
		AccountNumber: accountNumber,
		Limit:         int32(limit),
	})
	if err != nil {
		return nil, classify("transaction_view.list", err)
	}

	views := make([]*domain.TransactionReadView, 0, len(rows))
	for _, row := range rows {
		views = append(views, &domain.TransactionReadView{
			ID:            row.ID,
			AccountID:     row.AccountID,
			AccountNumber: row.AccountNumber,
			HolderName:    row.HolderName,
			Type:          domain.TransactionType(row.Type),
			Amount:        numericToDecimal(row.Amount),
			BalanceAfter:  numericToDecimal(row.BalanceAfter),
			Description:   row.Description,
			CreatedAt:     row.CreatedAt.Time,
		})
	}

	return views, nil
}
