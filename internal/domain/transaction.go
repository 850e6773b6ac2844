package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType classifies a money movement.
type TransactionType string

const (
	TransactionTypeDeposit    TransactionType = "DEPOSIT"
	TransactionTypeWithdrawal TransactionType = "WITHDRAWAL"
	TransactionTypeTransfer   TransactionType = "TRANSFER"
)

// Valid reports whether t is a known transaction type.
func (t TransactionType) Valid() bool {
	switch t {
	case TransactionTypeDeposit, TransactionTypeWithdrawal, TransactionTypeTransfer:
		return true
	}
	return false
}

// Transaction is one immutable row per account per money movement.
// Both sides of a transfer share TransferID.
type Transaction struct {
	CreatedAt    time.Time
	ID           string
	AccountID    string
	TransferID   string
	Description  string
	Type         TransactionType
	Amount       decimal.Decimal
	BalanceAfter decimal.Decimal
}
