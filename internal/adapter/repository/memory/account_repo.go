package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/iho/bankledger/internal/domain"
	"github.com/iho/bankledger/internal/usecase"
)

// AccountRepository implements usecase.AccountRepository.
type AccountRepository struct {
	store *Store
}

var _ usecase.AccountRepository = (*AccountRepository)(nil)

// NewAccountRepository creates a new AccountRepository.
func NewAccountRepository(store *Store) *AccountRepository {
	return &AccountRepository{store: store}
}

// Create stages a new account.
func (r *AccountRepository) Create(ctx context.Context, tx usecase.Transaction, account *domain.Account) error {
	t, err := asTx(tx)
	if err != nil {
		return err
	}
	if err := t.writable("account.create"); err != nil {
		return err
	}

	r.store.mu.RLock()
	_, taken := r.store.accountNumbers[account.AccountNumber]
	r.store.mu.RUnlock()

	if taken || t.stagedNumber(account.AccountNumber) {
		return fmt.Errorf("%w: %s", domain.ErrDuplicateAccountNumber, account.AccountNumber)
	}

	t.newAccounts[account.ID] = account.Clone()
	t.accountOrder = append(t.accountOrder, account.ID)

	return nil
}

func (t *Tx) stagedNumber(accountNumber string) bool {
	for _, acc := range t.newAccounts {
		if acc.AccountNumber == accountNumber {
			return true
		}
	}
	return false
}

// GetByID retrieves an account by ID.
func (r *AccountRepository) GetByID(ctx context.Context, tx usecase.Transaction, id string) (*domain.Account, error) {
	t, err := asTx(tx)
	if err != nil {
		return nil, err
	}

	if acc := t.stagedAccount(id); acc != nil {
		return acc.Clone(), nil
	}

	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	acc, ok := r.store.accounts[id]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	return acc.Clone(), nil
}

// GetByNumber retrieves an account by its account number.
func (r *AccountRepository) GetByNumber(ctx context.Context, tx usecase.Transaction, accountNumber string) (*domain.Account, error) {
	t, err := asTx(tx)
	if err != nil {
		return nil, err
	}

	for id, acc := range t.newAccounts {
		if acc.AccountNumber == accountNumber {
			return t.stagedAccount(id).Clone(), nil
		}
	}

	r.store.mu.RLock()
	id, ok := r.store.accountNumbers[accountNumber]
	r.store.mu.RUnlock()

	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	return r.GetByID(ctx, tx, id)
}

// GetByNumberForUpdate behaves like GetByNumber. Conflicting writers are
// detected by the version check at commit instead of row locks.
func (r *AccountRepository) GetByNumberForUpdate(ctx context.Context, tx usecase.Transaction, accountNumber string) (*domain.Account, error) {
	return r.GetByNumber(ctx, tx, accountNumber)
}

func (t *Tx) stagedAccount(id string) *domain.Account {
	if acc, ok := t.updatedAccounts[id]; ok {
		return acc
	}
	return t.newAccounts[id]
}

// UpdateBalance stages the new balance and version. The expected version is
// checked again at commit.
func (r *AccountRepository) UpdateBalance(ctx context.Context, tx usecase.Transaction, account *domain.Account, expectedVersion int64) error {
	t, err := asTx(tx)
	if err != nil {
		return err
	}
	if err := t.writable("account.update_balance"); err != nil {
		return err
	}

	if staged, ok := t.newAccounts[account.ID]; ok {
		if staged.Version != expectedVersion {
			return fmt.Errorf("%w: account %s", domain.ErrConcurrentModification, account.AccountNumber)
		}
		t.newAccounts[account.ID] = account.Clone()
		return nil
	}

	if staged, ok := t.updatedAccounts[account.ID]; ok {
		if staged.Version != expectedVersion {
			return fmt.Errorf("%w: account %s", domain.ErrConcurrentModification, account.AccountNumber)
		}
		t.updatedAccounts[account.ID] = account.Clone()
		return nil
	}

	r.store.mu.RLock()
	current, ok := r.store.accounts[account.ID]
	r.store.mu.RUnlock()

	if !ok {
		return domain.ErrAccountNotFound
	}
	if current.Version != expectedVersion {
		return fmt.Errorf("%w: account %s at version %d, expected %d",
			domain.ErrConcurrentModification, account.AccountNumber, current.Version, expectedVersion)
	}

	t.updatedAccounts[account.ID] = account.Clone()
	t.expectedVersions[account.ID] = expectedVersion

	return nil
}

// List returns committed accounts in creation order.
func (r *AccountRepository) List(ctx context.Context, tx usecase.Transaction, limit, offset int) ([]*domain.Account, error) {
	if _, err := asTx(tx); err != nil {
		return nil, err
	}

	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	ids := make([]string, 0, len(r.store.accounts))
	for id := range r.store.accounts {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return r.store.accountSeq[ids[i]] < r.store.accountSeq[ids[j]]
	})

	selected := page(ids, limit, offset)
	accounts := make([]*domain.Account, 0, len(selected))
	for _, id := range selected {
		accounts = append(accounts, r.store.accounts[id].Clone())
	}
	return accounts, nil
}

// Count returns the number of committed accounts.
func (r *AccountRepository) Count(ctx context.Context, tx usecase.Transaction) (int64, error) {
	if _, err := asTx(tx); err != nil {
		return 0, err
	}

	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	return int64(len(r.store.accounts)), nil
}

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit >= 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
