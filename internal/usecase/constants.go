package usecase

import "time"

const (
	// DefaultTransactionTimeout is the maximum duration for a database transaction
	// This prevents long-running transactions from blocking tables
	DefaultTransactionTimeout = 5 * time.Second

	// DefaultLockWaitTimeout bounds how long a command waits for its lock.
	DefaultLockWaitTimeout = 5 * time.Second

	// DefaultLockLeaseTime is how long a granted lock lives if never released.
	DefaultLockLeaseTime = 10 * time.Second

	// Lock scopes, used as metric labels.
	LockScopeAccount  = "account"
	LockScopeTransfer = "transfer"

	defaultPageSize = 20
	maxPageSize     = 100
)

func clampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
