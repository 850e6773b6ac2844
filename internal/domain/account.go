package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account represents a ledger account that holds a non-negative balance.
type Account struct {
	CreatedAt     time.Time
	UpdatedAt     time.Time
	ID            string
	AccountNumber string
	HolderName    string
	Balance       decimal.Decimal
	Version       int64
}

// ValidateDebit checks if account can be debited by amount.
func (a *Account) ValidateDebit(amount decimal.Decimal) error {
	if a.Balance.LessThan(amount) {
		return &InsufficientFundsError{
			AccountNumber: a.AccountNumber,
			Available:     FormatMoney(a.Balance),
			Requested:     FormatMoney(amount),
		}
	}
	return nil
}

// ApplyDebit returns new balance after debit.
func (a *Account) ApplyDebit(amount decimal.Decimal) decimal.Decimal {
	return a.Balance.Sub(amount)
}

// ApplyCredit returns new balance after credit.
func (a *Account) ApplyCredit(amount decimal.Decimal) decimal.Decimal {
	return a.Balance.Add(amount)
}

// Clone returns a copy detached from the receiver.
func (a *Account) Clone() *Account {
	c := *a
	return &c
}
