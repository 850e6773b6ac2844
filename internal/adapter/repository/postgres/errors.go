package postgres

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/iho/bankledger/internal/domain"
	"github.com/iho/bankledger/internal/usecase"
)

// PostgreSQL error codes the ledger classifies.
const (
	pgErrUniqueViolation      = "23505"
	pgErrDeadlock             = "40P01"
	pgErrSerializationFailure = "40001"
	pgErrLockNotAvailable     = "55P03"
)

// accountNumberConstraint is the unique index on accounts.account_number.
const accountNumberConstraint = "accounts_account_number_key"

var errForeignTx = errors.New("transaction was not started by the postgres TxManager")

// classify maps a driver error onto the domain's error classes. Only a
// clash on the account number is a duplicate number; other unique
// violations and unknown errors become store failures.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgErrUniqueViolation:
			if pgErr.ConstraintName == accountNumberConstraint {
				return fmt.Errorf("%s: %w: %s", op, domain.ErrDuplicateAccountNumber, pgErr.ConstraintName)
			}
		case pgErrDeadlock, pgErrSerializationFailure, pgErrLockNotAvailable:
			return fmt.Errorf("%s: %w: %s", op, domain.ErrConcurrentModification, pgErr.Message)
		}
	}

	return domain.NewStoreError(op, err)
}

// pgxTxOf unwraps a usecase.Transaction started by TxManager.
func pgxTxOf(tx usecase.Transaction) (*Tx, error) {
	t, ok := tx.(*Tx)
	if !ok {
		return nil, errForeignTx
	}
	return t, nil
}
