package domain

import "sort"

const (
	accountLockPrefix  = "account:lock:"
	transferLockPrefix = "transfer:lock:"
)

// AccountLockKey names the lock guarding a single-account operation.
func AccountLockKey(accountNumber string) string {
	return accountLockPrefix + accountNumber
}

// TransferLockKey names the lock guarding a transfer. Participants are sorted
// so A->B and B->A contend on the same key.
func TransferLockKey(from, to string) string {
	pair := []string{from, to}
	sort.Strings(pair)
	return transferLockPrefix + pair[0] + ":" + pair[1]
}
