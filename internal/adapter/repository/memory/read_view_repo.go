package memory

import (
	"context"
	"sort"

	"github.com/iho/bankledger/internal/domain"
	"github.com/iho/bankledger/internal/usecase"
)

// AccountViewRepository implements usecase.AccountViewRepository.
type AccountViewRepository struct {
	store *Store
}

var _ usecase.AccountViewRepository = (*AccountViewRepository)(nil)

// NewAccountViewRepository creates a new AccountViewRepository.
func NewAccountViewRepository(store *Store) *AccountViewRepository {
	return &AccountViewRepository{store: store}
}

// Insert stages view unless a view with its ID is committed or staged.
func (r *AccountViewRepository) Insert(ctx context.Context, tx usecase.Transaction, view *domain.AccountReadView) (bool, error) {
	t, err := asTx(tx)
	if err != nil {
		return false, err
	}
	if err := t.writable("account_view.insert"); err != nil {
		return false, err
	}

	if _, ok := t.newViews[view.ID]; ok {
		return false, nil
	}

	r.store.mu.RLock()
	_, exists := r.store.accountViews[view.ID]
	r.store.mu.RUnlock()

	if exists {
		return false, nil
	}

	c := *view
	t.newViews[view.ID] = &c
	t.viewOrder = append(t.viewOrder, view.ID)
	return true, nil
}

// GetForUpdate loads a view and remembers its revision so that a concurrent
// update is detected at commit.
func (r *AccountViewRepository) GetForUpdate(ctx context.Context, tx usecase.Transaction, id string) (*domain.AccountReadView, error) {
	t, err := asTx(tx)
	if err != nil {
		return nil, err
	}

	if v, ok := t.updatedViews[id]; ok {
		c := *v
		return &c, nil
	}
	if v, ok := t.newViews[id]; ok {
		c := *v
		return &c, nil
	}

	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	v, ok := r.store.accountViews[id]
	if !ok {
		return nil, domain.ErrReadViewNotFound
	}
	t.readRevisions[id] = r.store.viewRevisions[id]

	c := *v
	return &c, nil
}

// GetByNumber reads a committed view by account number.
func (r *AccountViewRepository) GetByNumber(ctx context.Context, tx usecase.Transaction, accountNumber string) (*domain.AccountReadView, error) {
	if _, err := asTx(tx); err != nil {
		return nil, err
	}

	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	id, ok := r.store.viewNumbers[accountNumber]
	if !ok {
		return nil, domain.ErrReadViewNotFound
	}
	c := *r.store.accountViews[id]
	return &c, nil
}

// Update stages view. It must have been loaded with GetForUpdate or inserted in tx.
func (r *AccountViewRepository) Update(ctx context.Context, tx usecase.Transaction, view *domain.AccountReadView) error {
	t, err := asTx(tx)
	if err != nil {
		return err
	}
	if err := t.writable("account_view.update"); err != nil {
		return err
	}

	c := *view
	if _, ok := t.newViews[view.ID]; ok {
		t.newViews[view.ID] = &c
		return nil
	}
	if _, ok := t.readRevisions[view.ID]; !ok {
		return domain.ErrReadViewNotFound
	}
	t.updatedViews[view.ID] = &c
	return nil
}

// List returns committed views in creation order.
func (r *AccountViewRepository) List(ctx context.Context, tx usecase.Transaction, limit, offset int) ([]*domain.AccountReadView, error) {
	if _, err := asTx(tx); err != nil {
		return nil, err
	}

	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	ids := make([]string, 0, len(r.store.accountViews))
	for id := range r.store.accountViews {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return r.store.viewSeq[ids[i]] < r.store.viewSeq[ids[j]]
	})

	selected := page(ids, limit, offset)
	views := make([]*domain.AccountReadView, 0, len(selected))
	for _, id := range selected {
		c := *r.store.accountViews[id]
		views = append(views, &c)
	}
	return views, nil
}

// TransactionViewRepository implements usecase.TransactionViewRepository.
type TransactionViewRepository struct {
	store *Store
}

var _ usecase.TransactionViewRepository = (*TransactionViewRepository)(nil)

// NewTransactionViewRepository creates a new TransactionViewRepository.
func NewTransactionViewRepository(store *Store) *TransactionViewRepository {
	return &TransactionViewRepository{store: store}
}

// Insert stages view unless it was already projected.
func (r *TransactionViewRepository) Insert(ctx context.Context, tx usecase.Transaction, view *domain.TransactionReadView) (bool, error) {
	t, err := asTx(tx)
	if err != nil {
		return false, err
	}
	if err := t.writable("transaction_view.insert"); err != nil {
		return false, err
	}

	if t.txViewIndex[view.ID] {
		return false, nil
	}

	r.store.mu.RLock()
	_, exists := r.store.transactionViews[view.ID]
	r.store.mu.RUnlock()

	if exists {
		return false, nil
	}

	c := *view
	t.newTxViews = append(t.newTxViews, &c)
	t.txViewIndex[view.ID] = true
	return true, nil
}

// ListByAccountNumber returns projected transactions of an account, newest first.
func (r *TransactionViewRepository) ListByAccountNumber(ctx context.Context, tx usecase.Transaction, accountNumber string, limit int) ([]*domain.TransactionReadView, error) {
	if _, err := asTx(tx); err != nil {
		return nil, err
	}

	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var ids []string
	for id, v := range r.store.transactionViews {
		if v.AccountNumber == accountNumber {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool {
		return r.store.txViewSeq[ids[i]] > r.store.txViewSeq[ids[j]]
	})

	views := make([]*domain.TransactionReadView, 0, len(ids))
	for _, id := range page(ids, limit, 0) {
		c := *r.store.transactionViews[id]
		views = append(views, &c)
	}
	return views, nil
}
