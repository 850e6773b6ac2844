package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// AccountReadView is the denormalized, eventually consistent projection of an account.
type AccountReadView struct {
	CreatedAt        time.Time
	LastUpdatedAt    time.Time
	ID               string
	AccountNumber    string
	HolderName       string
	Balance          decimal.Decimal
	TotalDeposits    decimal.Decimal
	TotalWithdrawals decimal.Decimal
	TransactionCount int64
	// Version is the highest account version whose balance snapshot was applied.
	Version int64
}

// NewAccountReadView builds a fresh view with zeroed aggregates.
func NewAccountReadView(e *AccountCreatedEvent, now time.Time) *AccountReadView {
	return &AccountReadView{
		ID:               e.AccountID,
		AccountNumber:    e.AccountNumber,
		HolderName:       e.HolderName,
		Balance:          e.InitialBalance,
		TotalDeposits:    decimal.Zero,
		TotalWithdrawals: decimal.Zero,
		CreatedAt:        e.OccurredAt,
		LastUpdatedAt:    now,
	}
}

// Apply folds a transaction event into the aggregates. Counters always advance;
// the balance snapshot is only taken when the event is newer than the last applied one.
func (v *AccountReadView) Apply(e *TransactionCreatedEvent, now time.Time) {
	v.TransactionCount++

	switch e.Type {
	case TransactionTypeDeposit:
		v.TotalDeposits = v.TotalDeposits.Add(e.Amount)
	case TransactionTypeWithdrawal:
		v.TotalWithdrawals = v.TotalWithdrawals.Add(e.Amount)
	}

	if e.AccountVersion > v.Version {
		v.Balance = e.BalanceAfter
		v.Version = e.AccountVersion
	}
	v.LastUpdatedAt = now
}

// TransactionReadView is the query-side copy of a transaction row.
type TransactionReadView struct {
	CreatedAt     time.Time
	ID            string
	AccountID     string
	AccountNumber string
	HolderName    string
	Description   string
	Type          TransactionType
	Amount        decimal.Decimal
	BalanceAfter  decimal.Decimal
}

// NewTransactionReadView builds the history row for e using the owner's view.
func NewTransactionReadView(e *TransactionCreatedEvent, owner *AccountReadView) *TransactionReadView {
	return &TransactionReadView{
		ID:            e.TransactionID,
		AccountID:     e.AccountID,
		AccountNumber: owner.AccountNumber,
		HolderName:    owner.HolderName,
		Type:          e.Type,
		Amount:        e.Amount,
		Description:   e.Description,
		BalanceAfter:  e.BalanceAfter,
		CreatedAt:     e.OccurredAt,
	}
}
