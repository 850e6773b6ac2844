package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/iho/bankledger/internal/domain"
	"github.com/iho/bankledger/internal/infrastructure/postgres/generated"
	"github.com/iho/bankledger/internal/usecase"
)

// TransactionRepository implements usecase.TransactionRepository.
type TransactionRepository struct{}

var _ usecase.TransactionRepository = (*TransactionRepository)(nil)

// NewTransactionRepository creates a new TransactionRepository.
func NewTransactionRepository() *TransactionRepository {
	return &TransactionRepository{}
}

// Create inserts a transaction row.
func (r *TransactionRepository) Create(ctx context.Context, tx usecase.Transaction, txn *domain.Transaction) error {
	t, err := pgxTxOf(tx)
	if err != nil {
		return err
	}

	err = t.queries.CreateTransaction(ctx, generated.CreateTransactionParams{
		ID:           txn.ID,
		AccountID:    txn.AccountID,
		TransferID:   pgtype.Text{String: txn.TransferID, Valid: txn.TransferID != ""},
		Type:         string(txn.Type),
		Amount:       decimalToNumeric(txn.Amount),
		BalanceAfter: decimalToNumeric(txn.BalanceAfter),
		Description:  txn.Description,
		CreatedAt:    timeToPgTimestamptz(txn.CreatedAt),
	})

	return classify("transaction.create", err)
}

// GetByID retrieves a transaction by ID.
func (r *TransactionRepository) GetByID(ctx context.Context, tx usecase.Transaction, id string) (*domain.Transaction, error) {
	t, err := pgxTxOf(tx)
	if err != nil {
		return nil, err
	}

	row, err := t.queries.GetTransactionByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTransactionNotFound
		}
		return nil, classify("transaction.get", err)
	}

	return rowToTransaction(row), nil
}

// ListByAccount lists an account's transactions, newest first.
func (r *TransactionRepository) ListByAccount(ctx context.Context, tx usecase.Transaction, accountID string, limit, offset int) ([]*domain.Transaction, error) {
	t, err := pgxTxOf(tx)
	if err != nil {
		return nil, err
	}

	rows, err := t.queries.ListTransactionsByAccount(ctx, generated.ListTransactionsByAccountParams{
		AccountID: accountID,
		Limit:     int32(limit),
		Offset:    int32(offset),
	})
	if err != nil {
		return nil, classify("transaction.list", err)
	}

	txns := make([]*domain.Transaction, 0, len(rows))
	for _, row := range rows {
		txns = append(txns, rowToTransaction(row))
	}

	return txns, nil
}

func rowToTransaction(row generated.Transaction) *domain.Transaction {
	return &domain.Transaction{
		ID:           row.ID,
		AccountID:    row.AccountID,
		TransferID:   row.TransferID.String,
		Type:         domain.TransactionType(row.Type),
		Amount:       numericToDecimal(row.Amount),
		BalanceAfter: numericToDecimal(row.BalanceAfter),
		Description:  row.Description,
		CreatedAt:    row.CreatedAt.Time,
	}
}
