package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/iho/bankledger/internal/domain"
	"github.com/iho/bankledger/internal/infrastructure/postgres/generated"
	"github.com/iho/bankledger/internal/usecase"
)

// AccountRepository implements usecase.AccountRepository.
type AccountRepository struct{}

var _ usecase.AccountRepository = (*AccountRepository)(nil)

// NewAccountRepository creates a new AccountRepository.
func NewAccountRepository() *AccountRepository {
	return &AccountRepository{}
}

// Create inserts a new account.
func (r *AccountRepository) Create(ctx context.Context, tx usecase.Transaction, account *domain.Account) error {
	t, err := pgxTxOf(tx)
	if err != nil {
		return err
	}

	err = t.queries.CreateAccount(ctx, generated.CreateAccountParams{
		ID:            account.ID,
		AccountNumber: account.AccountNumber,
		HolderName:    account.HolderName,
		Balance:       decimalToNumeric(account.Balance),
		Version:       account.Version,
		CreatedAt:     timeToPgTimestamptz(account.CreatedAt),
		UpdatedAt:     timeToPgTimestamptz(account.UpdatedAt),
	})

	return classify("account.create", err)
}

// GetByID retrieves an account by ID.
func (r *AccountRepository) GetByID(ctx context.Context, tx usecase.Transaction, id string) (*domain.Account, error) {
	t, err := pgxTxOf(tx)
	if err != nil {
		return nil, err
	}

	row, err := t.queries.GetAccountByID(ctx, id)
	return accountOrNotFound(row, err)
}

// GetByNumber retrieves an account by number.
func (r *AccountRepository) GetByNumber(ctx context.Context, tx usecase.Transaction, accountNumber string) (*domain.Account, error) {
	t, err := pgxTxOf(tx)
	if err != nil {
		return nil, err
	}

	row, err := t.queries.GetAccountByNumber(ctx, accountNumber)
	return accountOrNotFound(row, err)
}

// GetByNumberForUpdate retrieves an account with a FOR UPDATE row lock.
func (r *AccountRepository) GetByNumberForUpdate(ctx context.Context, tx usecase.Transaction, accountNumber string) (*domain.Account, error) {
	t, err := pgxTxOf(tx)
	if err != nil {
		return nil, err
	}

	row, err := t.queries.GetAccountByNumberForUpdate(ctx, accountNumber)
	return accountOrNotFound(row, err)
}

// UpdateBalance writes balance and version if the stored version is expectedVersion.
func (r *AccountRepository) UpdateBalance(ctx context.Context, tx usecase.Transaction, account *domain.Account, expectedVersion int64) error {
	t, err := pgxTxOf(tx)
	if err != nil {
		return err
	}

	n, err := t.queries.UpdateAccountBalance(ctx, generated.UpdateAccountBalanceParams{
		ID:        account.ID,
		Balance:   decimalToNumeric(account.Balance),
		Version:   account.Version,
		UpdatedAt: timeToPgTimestamptz(account.UpdatedAt),
		Version_2: expectedVersion,
	})
	if err != nil {
		return classify("account.update_balance", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s expected version %d", domain.ErrConcurrentModification, account.AccountNumber, expectedVersion)
	}

	return nil
}

// List lists accounts in creation order.
func (r *AccountRepository) List(ctx context.Context, tx usecase.Transaction, limit, offset int) ([]*domain.Account, error) {
	t, err := pgxTxOf(tx)
	if err != nil {
		return nil, err
	}

	rows, err := t.queries.ListAccounts(ctx, generated.ListAccountsParams{
		Limit:  int32(limit),
		Offset: int32(offset),
	})
	if err != nil {
		return nil, classify("account.list", err)
	}

	accounts := make([]*domain.Account, 0, len(rows))
	for _, row := range rows {
		accounts = append(accounts, rowToAccount(row))
	}

	return accounts, nil
}

// Count returns the number of accounts.
func (r *AccountRepository) Count(ctx context.Context, tx usecase.Transaction) (int64, error) {
	t, err := pgxTxOf(tx)
	if err != nil {
		return 0, err
	}

	n, err := t.queries.CountAccounts(ctx)
	return n, classify("account.count", err)
}

func accountOrNotFound(row generated.Account, err error) (*domain.Account, error) {
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, classify("account.get", err)
	}

	return rowToAccount(row), nil
}

func rowToAccount(row generated.Account) *domain.Account {
	return &domain.Account{
		ID:            row.ID,
		AccountNumber: row.AccountNumber,
		HolderName:    row.HolderName,
		Balance:       numericToDecimal(row.Balance),
		Version:       row.Version,
		CreatedAt:     row.CreatedAt.Time,
		UpdatedAt:     row.UpdatedAt.Time,
	}
}

// Type conversion helpers.
func decimalToNumeric(d decimal.Decimal) pgtype.Numeric {
	var n pgtype.Numeric

	_ = n.Scan(d.String())

	return n
}

func numericToDecimal(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid {
		return decimal.Zero
	}

	d := decimal.NewFromBigInt(n.Int, 0)
	if n.Exp != 0 {
		d = d.Shift(n.Exp)
	}

	return d
}

func timeToPgTimestamptz(t time.Time) pgtype.Timestamptz {
	return pgtype.Timestamptz{Time: t, Valid: true}
}
