package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"

	"github.com/iho/bankledger/internal/domain"
	"github.com/iho/bankledger/internal/usecase"
)

func beginMockTx(t *testing.T) (pgxmock.PgxPoolIface, usecase.Transaction) {
	t.Helper()
	mockPool := newMockPool(t)
	mockPool.ExpectBegin()

	tx, err := newTxManagerWithPool(mockPool).Begin(context.Background())
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	return mockPool, tx
}

func testAccount() *domain.Account {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return &domain.Account{
		ID:            "01J0000000000000000000000A",
		AccountNumber: "ACC1",
		HolderName:    "Alice",
		Balance:       decimal.RequireFromString("100.00"),
		Version:       1,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func TestAccountRepositoryCreate(t *testing.T) {
	mockPool, tx := beginMockTx(t)
	mockPool.ExpectExec(regexp.QuoteMeta("INSERT INTO accounts")).
		WithArgs("01J0000000000000000000000A", "ACC1", "Alice", pgxmock.AnyArg(), int64(1), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	if err := NewAccountRepository().Create(context.Background(), tx, testAccount()); err != nil {
		t.Fatalf("create: %v", err)
	}

	assertExpectations(t, mockPool)
}

func TestAccountRepositoryCreateDuplicateNumber(t *testing.T) {
	mockPool, tx := beginMockTx(t)
	mockPool.ExpectExec(regexp.QuoteMeta("INSERT INTO accounts")).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: pgErrUniqueViolation, ConstraintName: accountNumberConstraint})

	err := NewAccountRepository().Create(context.Background(), tx, testAccount())
	if !errors.Is(err, domain.ErrDuplicateAccountNumber) {
		t.Fatalf("expected duplicate account number, got %v", err)
	}
	if !domain.IsTransient(err) {
		t.Fatalf("expected duplicate number to be retryable")
	}

	assertExpectations(t, mockPool)
}

func TestAccountRepositoryCreateDuplicateID(t *testing.T) {
	mockPool, tx := beginMockTx(t)
	mockPool.ExpectExec(regexp.QuoteMeta("INSERT INTO accounts")).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: pgErrUniqueViolation, ConstraintName: "accounts_pkey"})

	err := NewAccountRepository().Create(context.Background(), tx, testAccount())
	if errors.Is(err, domain.ErrDuplicateAccountNumber) {
		t.Fatalf("primary key clash reported as duplicate account number: %v", err)
	}
	if !errors.Is(err, domain.ErrStoreFailure) {
		t.Fatalf("expected store failure, got %v", err)
	}

	assertExpectations(t, mockPool)
}

func TestAccountRepositoryUpdateBalanceVersionMismatch(t *testing.T) {
	mockPool, tx := beginMockTx(t)
	mockPool.ExpectExec(regexp.QuoteMeta("UPDATE accounts SET balance")).
		WithArgs("01J0000000000000000000000A", pgxmock.AnyArg(), int64(2), pgxmock.AnyArg(), int64(1)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	account := testAccount()
	account.Version = 2

	err := NewAccountRepository().UpdateBalance(context.Background(), tx, account, 1)
	if !errors.Is(err, domain.ErrConcurrentModification) {
		t.Fatalf("expected concurrent modification, got %v", err)
	}

	assertExpectations(t, mockPool)
}

func TestAccountRepositoryUpdateBalance(t *testing.T) {
	mockPool, tx := beginMockTx(t)
	mockPool.ExpectExec(regexp.QuoteMeta("UPDATE accounts SET balance")).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	account := testAccount()
	account.Version = 2

	if err := NewAccountRepository().UpdateBalance(context.Background(), tx, account, 1); err != nil {
		t.Fatalf("update: %v", err)
	}

	assertExpectations(t, mockPool)
}

func TestAccountRepositoryGetByNumberNotFound(t *testing.T) {
	mockPool, tx := beginMockTx(t)
	mockPool.ExpectQuery(regexp.QuoteMeta("FROM accounts WHERE account_number = $1 FOR UPDATE")).
		WithArgs("NOPE").
		WillReturnError(pgx.ErrNoRows)

	_, err := NewAccountRepository().GetByNumberForUpdate(context.Background(), tx, "NOPE")
	if !errors.Is(err, domain.ErrAccountNotFound) {
		t.Fatalf("expected account not found, got %v", err)
	}
}

func TestAccountRepositoryCount(t *testing.T) {
	mockPool, tx := beginMockTx(t)
	mockPool.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM accounts")).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(3)))

	n, err := NewAccountRepository().Count(context.Background(), tx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3 accounts, got %d", n)
	}
}

func TestTransactionRepositoryCreateStoresNullTransferID(t *testing.T) {
	mockPool, tx := beginMockTx(t)
	mockPool.ExpectExec(regexp.QuoteMeta("INSERT INTO transactions")).
		WithArgs("t1", "a1", pgxmock.AnyArg(), "DEPOSIT", pgxmock.AnyArg(), pgxmock.AnyArg(), "Deposit of 10.00", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := NewTransactionRepository().Create(context.Background(), tx, &domain.Transaction{
		ID:           "t1",
		AccountID:    "a1",
		Type:         domain.TransactionTypeDeposit,
		Amount:       decimal.NewFromInt(10),
		BalanceAfter: decimal.NewFromInt(110),
		Description:  "Deposit of 10.00",
		CreatedAt:    time.Now(),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	assertExpectations(t, mockPool)
}

func TestAccountViewRepositoryInsertSkipsExisting(t *testing.T) {
	mockPool, tx := beginMockTx(t)
	mockPool.ExpectExec(regexp.QuoteMeta("INSERT INTO account_views")).
		WithArgs("a1", "ACC1", "Alice", pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))

	inserted, err := NewAccountViewRepository().Insert(context.Background(), tx, &domain.AccountReadView{
		ID:            "a1",
		AccountNumber: "ACC1",
		HolderName:    "Alice",
		Balance:       decimal.NewFromInt(100),
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if inserted {
		t.Fatalf("expected existing view to be skipped")
	}

	assertExpectations(t, mockPool)
}

func TestTransactionViewRepositoryInsert(t *testing.T) {
	mockPool, tx := beginMockTx(t)
	mockPool.ExpectExec(regexp.QuoteMeta("INSERT INTO transaction_views")).
		WithArgs("t1", "a1", "ACC1", pgxmock.AnyArg(), "WITHDRAWAL", pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	inserted, err := NewTransactionViewRepository().Insert(context.Background(), tx, &domain.TransactionReadView{
		ID:            "t1",
		AccountID:     "a1",
		AccountNumber: "ACC1",
		Type:          domain.TransactionTypeWithdrawal,
		Amount:        decimal.NewFromInt(5),
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if !inserted {
		t.Fatalf("expected view to be inserted")
	}

	assertExpectations(t, mockPool)
}

func TestRepositoriesRejectForeignTransaction(t *testing.T) {
	var foreign usecase.Transaction = foreignTx{}

	if _, err := NewAccountRepository().Count(context.Background(), foreign); !errors.Is(err, errForeignTx) {
		t.Fatalf("expected foreign tx error, got %v", err)
	}
}

type foreignTx struct{}

func (foreignTx) Commit(context.Context) error   { return nil }
func (foreignTx) Rollback(context.Context) error { return nil }

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"account number clash", &pgconn.PgError{Code: pgErrUniqueViolation, ConstraintName: accountNumberConstraint}, domain.ErrDuplicateAccountNumber},
		{"transaction id clash", &pgconn.PgError{Code: pgErrUniqueViolation, ConstraintName: "transactions_pkey"}, domain.ErrStoreFailure},
		{"view number clash", &pgconn.PgError{Code: pgErrUniqueViolation, ConstraintName: "account_views_account_number_key"}, domain.ErrStoreFailure},
		{"deadlock", &pgconn.PgError{Code: pgErrDeadlock}, domain.ErrConcurrentModification},
		{"serialization failure", &pgconn.PgError{Code: pgErrSerializationFailure}, domain.ErrConcurrentModification},
		{"other pg error", &pgconn.PgError{Code: "42P01"}, domain.ErrStoreFailure},
		{"network error", errors.New("connection reset"), domain.ErrStoreFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classify("op", tt.err)
			if !errors.Is(got, tt.want) {
				t.Fatalf("classify(%v) = %v, want %v", tt.err, got, tt.want)
			}
			if !domain.IsTransient(got) {
				t.Fatalf("expected %v to be transient", got)
			}
		})
	}

	if classify("op", nil) != nil {
		t.Fatalf("expected nil error to stay nil")
	}
}

func TestNumericRoundTrip(t *testing.T) {
	for _, s := range []string{"0", "100.00", "0.01", "123456789.99"} {
		d := decimal.RequireFromString(s)
		if got := numericToDecimal(decimalToNumeric(d)); !got.Equal(d) {
			t.Fatalf("round trip %s: got %s", s, got)
		}
	}
}
