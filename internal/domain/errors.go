package domain

import (
	"errors"
	"fmt"
)

var (
	// Business errors. Deterministic outcomes of a request, never retried.
	ErrAccountNotFound     = errors.New("account not found")
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrSameAccount         = errors.New("cannot transfer to same account")
	ErrInvalidHolderName   = errors.New("invalid holder name")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrReadViewNotFound    = errors.New("read view not found")

	// Transient errors. Retried a bounded number of times by the resilience policy.
	ErrLockAcquisition        = errors.New("lock acquisition failed")
	ErrStoreFailure           = errors.New("store failure")
	ErrConcurrentModification = errors.New("account modified concurrently")
	ErrDuplicateAccountNumber = errors.New("account number already exists")

	// Fatal errors.
	ErrLeaseExpired       = errors.New("lock lease expired before commit")
	ErrServiceUnavailable = errors.New("service temporarily unavailable")
	ErrEventDelivery      = errors.New("event delivery failed")
)

// StoreError wraps an infrastructure failure raised by a store operation.
type StoreError struct {
	Op  string
	Err error
}

// NewStoreError wraps err as a store failure for operation op.
func NewStoreError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StoreError{Op: op, Err: err}
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() []error {
	return []error{ErrStoreFailure, e.Err}
}

// InsufficientFundsError carries the available and requested amounts.
type InsufficientFundsError struct {
	AccountNumber string
	Available     string
	Requested     string
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds on %s: available %s, requested %s",
		e.AccountNumber, e.Available, e.Requested)
}

func (e *InsufficientFundsError) Unwrap() error {
	return ErrInsufficientFunds
}

// IsBusinessError reports whether err is a deterministic business outcome.
func IsBusinessError(err error) bool {
	return errors.Is(err, ErrAccountNotFound) ||
		errors.Is(err, ErrInsufficientFunds) ||
		errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrSameAccount) ||
		errors.Is(err, ErrInvalidHolderName)
}

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool {
	if err == nil || IsBusinessError(err) {
		return false
	}
	return errors.Is(err, ErrLockAcquisition) ||
		errors.Is(err, ErrStoreFailure) ||
		errors.Is(err, ErrConcurrentModification) ||
		errors.Is(err, ErrDuplicateAccountNumber)
}
