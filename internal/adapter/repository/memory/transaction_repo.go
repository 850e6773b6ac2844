package memory

import (
	"context"
	"sort"

	"github.com/iho/bankledger/internal/domain"
	"github.com/iho/bankledger/internal/usecase"
)

// TransactionRepository implements usecase.TransactionRepository.
type TransactionRepository struct {
	store *Store
}

var _ usecase.TransactionRepository = (*TransactionRepository)(nil)

// NewTransactionRepository creates a new TransactionRepository.
func NewTransactionRepository(store *Store) *TransactionRepository {
	return &TransactionRepository{store: store}
}

// Create stages a transaction row.
func (r *TransactionRepository) Create(ctx context.Context, tx usecase.Transaction, txn *domain.Transaction) error {
	t, err := asTx(tx)
	if err != nil {
		return err
	}
	if err := t.writable("transaction.create"); err != nil {
		return err
	}

	row := *txn
	t.newTransactions = append(t.newTransactions, &row)
	return nil
}

// GetByID retrieves a committed transaction.
func (r *TransactionRepository) GetByID(ctx context.Context, tx usecase.Transaction, id string) (*domain.Transaction, error) {
	if _, err := asTx(tx); err != nil {
		return nil, err
	}

	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	txn, ok := r.store.transactions[id]
	if !ok {
		return nil, domain.ErrTransactionNotFound
	}
	row := *txn
	return &row, nil
}

// ListByAccount lists committed transactions of an account, newest first.
func (r *TransactionRepository) ListByAccount(ctx context.Context, tx usecase.Transaction, accountID string, limit, offset int) ([]*domain.Transaction, error) {
	if _, err := asTx(tx); err != nil {
		return nil, err
	}

	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var ids []string
	for id, txn := range r.store.transactions {
		if txn.AccountID == accountID {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool {
		return r.store.transactionSeq[ids[i]] > r.store.transactionSeq[ids[j]]
	})

	rows := make([]*domain.Transaction, 0, len(ids))
	for _, id := range page(ids, limit, offset) {
		row := *r.store.transactions[id]
		rows = append(rows, &row)
	}
	return rows, nil
}
