package domain

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

func TestValidateHolderName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"valid name", "Kim Minsu", false},
		{"empty", "", true},
		{"whitespace only", "   ", true},
		{"too long", strings.Repeat("a", MaxHolderNameLength+1), true},
		{"max length", strings.Repeat("a", MaxHolderNameLength), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateHolderName(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateHolderName(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidHolderName) {
				t.Errorf("expected ErrInvalidHolderName, got %v", err)
			}
		})
	}
}

func TestValidateAmount(t *testing.T) {
	tests := []struct {
		amount  string
		wantErr bool
	}{
		{"0.01", false},
		{"30.00", false},
		{"30.5", false},
		{"0", true},
		{"-1.00", true},
		{"0.001", true},
		{"1000000000000", false},
		{"1000000000000.01", true},
	}

	for _, tt := range tests {
		t.Run(tt.amount, func(t *testing.T) {
			err := ValidateAmount(decimal.RequireFromString(tt.amount))
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateAmount(%s) error = %v, wantErr %v", tt.amount, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidAmount) {
				t.Errorf("expected ErrInvalidAmount, got %v", err)
			}
		})
	}
}

func TestValidateInitialBalance(t *testing.T) {
	if err := ValidateInitialBalance(decimal.Zero); err != nil {
		t.Errorf("zero opening balance should be accepted: %v", err)
	}
	if err := ValidateInitialBalance(decimal.RequireFromString("100.00")); err != nil {
		t.Errorf("positive opening balance should be accepted: %v", err)
	}
	if err := ValidateInitialBalance(decimal.RequireFromString("-0.01")); !errors.Is(err, ErrInvalidAmount) {
		t.Errorf("negative opening balance should be rejected, got %v", err)
	}
}

func TestParseAndFormatMoney(t *testing.T) {
	d, err := ParseMoney(" 12.5 ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if FormatMoney(d) != "12.50" {
		t.Fatalf("expected 12.50, got %s", FormatMoney(d))
	}

	if _, err := ParseMoney("abc"); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}

	if got := Money(decimal.RequireFromString("1.005")); got.String() != "1.01" {
		t.Fatalf("expected 1.01, got %s", got)
	}
}

func TestErrorClassification(t *testing.T) {
	tests := []struct {
		err       error
		business  bool
		transient bool
	}{
		{ErrAccountNotFound, true, false},
		{&InsufficientFundsError{}, true, false},
		{fmt.Errorf("wrap: %w", ErrInvalidAmount), true, false},
		{ErrSameAccount, true, false},
		{ErrLockAcquisition, false, true},
		{NewStoreError("save account", errors.New("conn reset")), false, true},
		{ErrConcurrentModification, false, true},
		{ErrDuplicateAccountNumber, false, true},
		{ErrLeaseExpired, false, false},
		{ErrServiceUnavailable, false, false},
		{errors.New("boom"), false, false},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			if got := IsBusinessError(tt.err); got != tt.business {
				t.Errorf("IsBusinessError = %v, want %v", got, tt.business)
			}
			if got := IsTransient(tt.err); got != tt.transient {
				t.Errorf("IsTransient = %v, want %v", got, tt.transient)
			}
		})
	}
}

func TestNewStoreErrorNil(t *testing.T) {
	if NewStoreError("op", nil) != nil {
		t.Fatal("expected nil for nil cause")
	}
}
