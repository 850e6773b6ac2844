package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestAccountReadView_Apply(t *testing.T) {
	now := time.Now().UTC()
	view := NewAccountReadView(&AccountCreatedEvent{
		AccountID:      "a1",
		AccountNumber:  "ACC1",
		HolderName:     "Kim",
		InitialBalance: decimal.RequireFromString("100.00"),
		OccurredAt:     now,
	}, now)

	view.Apply(&TransactionCreatedEvent{
		Type:           TransactionTypeDeposit,
		Amount:         decimal.RequireFromString("20.00"),
		BalanceAfter:   decimal.RequireFromString("120.00"),
		AccountVersion: 1,
	}, now)
	view.Apply(&TransactionCreatedEvent{
		Type:           TransactionTypeWithdrawal,
		Amount:         decimal.RequireFromString("5.00"),
		BalanceAfter:   decimal.RequireFromString("115.00"),
		AccountVersion: 2,
	}, now)
	view.Apply(&TransactionCreatedEvent{
		Type:           TransactionTypeTransfer,
		Amount:         decimal.RequireFromString("15.00"),
		BalanceAfter:   decimal.RequireFromString("100.00"),
		AccountVersion: 3,
	}, now)

	if view.TransactionCount != 3 {
		t.Errorf("expected 3 transactions, got %d", view.TransactionCount)
	}
	if FormatMoney(view.TotalDeposits) != "20.00" {
		t.Errorf("expected deposits 20.00, got %s", view.TotalDeposits)
	}
	if FormatMoney(view.TotalWithdrawals) != "5.00" {
		t.Errorf("expected withdrawals 5.00, got %s", view.TotalWithdrawals)
	}
	if FormatMoney(view.Balance) != "100.00" || view.Version != 3 {
		t.Errorf("expected balance 100.00 at version 3, got %s at %d", view.Balance, view.Version)
	}
}

func TestAccountReadView_ApplyIgnoresStaleSnapshot(t *testing.T) {
	now := time.Now().UTC()
	view := &AccountReadView{Balance: decimal.RequireFromString("50.00"), Version: 4}

	view.Apply(&TransactionCreatedEvent{
		Type:           TransactionTypeDeposit,
		Amount:         decimal.RequireFromString("10.00"),
		BalanceAfter:   decimal.RequireFromString("30.00"),
		AccountVersion: 3,
	}, now)

	if FormatMoney(view.Balance) != "50.00" || view.Version != 4 {
		t.Fatalf("stale snapshot overwrote balance: %s at %d", view.Balance, view.Version)
	}
	if view.TransactionCount != 1 || FormatMoney(view.TotalDeposits) != "10.00" {
		t.Fatalf("aggregates should still advance: %+v", view)
	}
}

func TestNewTransactionReadView(t *testing.T) {
	owner := &AccountReadView{AccountNumber: "ACC1", HolderName: "Kim"}
	tv := NewTransactionReadView(&TransactionCreatedEvent{
		TransactionID: "t1",
		AccountID:     "a1",
		Type:          TransactionTypeDeposit,
		Amount:        decimal.NewFromInt(1),
		BalanceAfter:  decimal.NewFromInt(2),
		Description:   "Deposit of 1.00",
	}, owner)

	if tv.ID != "t1" || tv.AccountNumber != "ACC1" || tv.HolderName != "Kim" {
		t.Fatalf("unexpected view: %+v", tv)
	}
}
