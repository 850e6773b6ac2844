package domain

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Validation constants
const (
	MoneyScale          = 2
	MaxHolderNameLength = 255
	MaxAmount           = "1000000000000" // 1 trillion
)

var maxAmount = decimal.RequireFromString(MaxAmount)

// ValidateHolderName validates the account holder name.
func ValidateHolderName(name string) error {
	name = strings.TrimSpace(name)

	if name == "" {
		return fmt.Errorf("%w: name cannot be empty", ErrInvalidHolderName)
	}

	if len(name) > MaxHolderNameLength {
		return fmt.Errorf("%w: name exceeds %d characters", ErrInvalidHolderName, MaxHolderNameLength)
	}

	return nil
}

// ValidateAmount checks a money movement amount: positive, at most two
// decimal places, and below the ceiling.
func ValidateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("%w: amount must be positive", ErrInvalidAmount)
	}
	return validateMoney(amount)
}

// ValidateInitialBalance checks an opening balance: zero or positive.
func ValidateInitialBalance(balance decimal.Decimal) error {
	if balance.IsNegative() {
		return fmt.Errorf("%w: initial balance cannot be negative", ErrInvalidAmount)
	}
	return validateMoney(balance)
}

func validateMoney(d decimal.Decimal) error {
	if !d.Equal(d.Truncate(MoneyScale)) {
		return fmt.Errorf("%w: more than %d decimal places", ErrInvalidAmount, MoneyScale)
	}

	if d.GreaterThan(maxAmount) {
		return fmt.Errorf("%w: exceeds maximum %s", ErrInvalidAmount, MaxAmount)
	}

	return nil
}

// Money normalizes d to the ledger scale.
func Money(d decimal.Decimal) decimal.Decimal {
	return d.Round(MoneyScale)
}

// FormatMoney renders d with exactly two decimal places.
func FormatMoney(d decimal.Decimal) string {
	return d.StringFixed(MoneyScale)
}

// ParseMoney parses s as a money value.
func ParseMoney(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q is not a number", ErrInvalidAmount, s)
	}
	return d, nil
}
