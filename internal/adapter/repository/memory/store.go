// Package memory provides a transactional in-process store for accounts,
// transactions and their read views. Writes are staged per transaction and
// validated at commit with compare-and-set checks, which is enough to run
// the ledger in a single process and to exercise it in tests.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/iho/bankledger/internal/domain"
	"github.com/iho/bankledger/internal/usecase"
)

var (
	errTxClosed    = errors.New("transaction already closed")
	errReadOnly    = errors.New("write in read-only transaction")
	errForeignTx   = errors.New("transaction does not belong to the memory store")
	errDuplicateID = errors.New("duplicate id")
)

// FaultFunc is consulted before each write. A non-nil error aborts the write.
type FaultFunc func(op string) error

// Store holds committed state. All access goes through a Tx.
type Store struct {
	mu  sync.RWMutex
	seq int64

	accounts       map[string]*domain.Account
	accountNumbers map[string]string
	accountSeq     map[string]int64

	transactions   map[string]*domain.Transaction
	transactionSeq map[string]int64

	accountViews     map[string]*domain.AccountReadView
	viewNumbers      map[string]string
	viewRevisions    map[string]int64
	viewSeq          map[string]int64
	transactionViews map[string]*domain.TransactionReadView
	txViewSeq        map[string]int64

	faultMu sync.RWMutex
	fault   FaultFunc
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		accounts:         make(map[string]*domain.Account),
		accountNumbers:   make(map[string]string),
		accountSeq:       make(map[string]int64),
		transactions:     make(map[string]*domain.Transaction),
		transactionSeq:   make(map[string]int64),
		accountViews:     make(map[string]*domain.AccountReadView),
		viewNumbers:      make(map[string]string),
		viewRevisions:    make(map[string]int64),
		viewSeq:          make(map[string]int64),
		transactionViews: make(map[string]*domain.TransactionReadView),
		txViewSeq:        make(map[string]int64),
	}
}

// InjectFault installs f, replacing any previous one. Pass nil to clear.
func (s *Store) InjectFault(f FaultFunc) {
	s.faultMu.Lock()
	defer s.faultMu.Unlock()
	s.fault = f
}

func (s *Store) checkFault(op string) error {
	s.faultMu.RLock()
	f := s.fault
	s.faultMu.RUnlock()

	if f == nil {
		return nil
	}
	if err := f(op); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// TxManager implements usecase.TransactionManager over a Store.
type TxManager struct {
	store *Store
}

var _ usecase.TransactionManager = (*TxManager)(nil)

// NewTxManager creates a new TxManager.
func NewTxManager(store *Store) *TxManager {
	return &TxManager{store: store}
}

// Begin starts a read-write transaction.
func (m *TxManager) Begin(ctx context.Context) (usecase.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return newTx(m.store, false), nil
}

// BeginReadOnly starts a read-only transaction.
func (m *TxManager) BeginReadOnly(ctx context.Context) (usecase.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return newTx(m.store, true), nil
}

// Tx stages writes until Commit.
type Tx struct {
	store    *Store
	readOnly bool
	done     bool

	newAccounts      map[string]*domain.Account
	accountOrder     []string
	updatedAccounts  map[string]*domain.Account
	expectedVersions map[string]int64

	newTransactions []*domain.Transaction

	newViews      map[string]*domain.AccountReadView
	viewOrder     []string
	updatedViews  map[string]*domain.AccountReadView
	readRevisions map[string]int64

	newTxViews  []*domain.TransactionReadView
	txViewIndex map[string]bool
}

func newTx(store *Store, readOnly bool) *Tx {
	return &Tx{
		store:            store,
		readOnly:         readOnly,
		newAccounts:      make(map[string]*domain.Account),
		updatedAccounts:  make(map[string]*domain.Account),
		expectedVersions: make(map[string]int64),
		newViews:         make(map[string]*domain.AccountReadView),
		updatedViews:     make(map[string]*domain.AccountReadView),
		readRevisions:    make(map[string]int64),
		txViewIndex:      make(map[string]bool),
	}
}

func asTx(tx usecase.Transaction) (*Tx, error) {
	t, ok := tx.(*Tx)
	if !ok {
		return nil, errForeignTx
	}
	if t.done {
		return nil, errTxClosed
	}
	return t, nil
}

func (t *Tx) writable(op string) error {
	if t.readOnly {
		return fmt.Errorf("%s: %w", op, errReadOnly)
	}
	return t.store.checkFault(op)
}

// Commit validates staged writes against committed state and applies them
// all, or none.
func (t *Tx) Commit(ctx context.Context) error {
	if t.done {
		return errTxClosed
	}
	t.done = true

	if t.readOnly {
		return nil
	}
	if err := t.store.checkFault("commit"); err != nil {
		return err
	}

	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := t.validate(); err != nil {
		return err
	}

	for _, id := range t.accountOrder {
		acc := t.newAccounts[id]
		s.seq++
		s.accounts[id] = acc
		s.accountNumbers[acc.AccountNumber] = id
		s.accountSeq[id] = s.seq
	}
	for id, acc := range t.updatedAccounts {
		s.accounts[id] = acc
	}
	for _, txn := range t.newTransactions {
		s.seq++
		s.transactions[txn.ID] = txn
		s.transactionSeq[txn.ID] = s.seq
	}
	for _, id := range t.viewOrder {
		view := t.newViews[id]
		s.seq++
		s.accountViews[id] = view
		s.viewNumbers[view.AccountNumber] = id
		s.viewRevisions[id] = 1
		s.viewSeq[id] = s.seq
	}
	for id, view := range t.updatedViews {
		s.accountViews[id] = view
		s.viewRevisions[id]++
	}
	for _, view := range t.newTxViews {
		s.seq++
		s.transactionViews[view.ID] = view
		s.txViewSeq[view.ID] = s.seq
	}

	return nil
}

func (t *Tx) validate() error {
	s := t.store

	for _, id := range t.accountOrder {
		acc := t.newAccounts[id]
		if _, ok := s.accounts[id]; ok {
			return fmt.Errorf("account %s: %w", id, errDuplicateID)
		}
		if _, ok := s.accountNumbers[acc.AccountNumber]; ok {
			return fmt.Errorf("%w: %s", domain.ErrDuplicateAccountNumber, acc.AccountNumber)
		}
	}
	for id, expected := range t.expectedVersions {
		if _, staged := t.newAccounts[id]; staged {
			continue
		}
		current, ok := s.accounts[id]
		if !ok {
			return fmt.Errorf("%w: %s", domain.ErrAccountNotFound, id)
		}
		if current.Version != expected {
			return fmt.Errorf("%w: account %s at version %d, expected %d",
				domain.ErrConcurrentModification, current.AccountNumber, current.Version, expected)
		}
	}
	for _, txn := range t.newTransactions {
		if _, ok := s.transactions[txn.ID]; ok {
			return fmt.Errorf("transaction %s: %w", txn.ID, errDuplicateID)
		}
	}
	for _, id := range t.viewOrder {
		if _, ok := s.accountViews[id]; ok {
			return fmt.Errorf("%w: account view %s inserted concurrently", domain.ErrConcurrentModification, id)
		}
	}
	for id := range t.updatedViews {
		if _, staged := t.newViews[id]; staged {
			continue
		}
		if s.viewRevisions[id] != t.readRevisions[id] {
			return fmt.Errorf("%w: account view %s", domain.ErrConcurrentModification, id)
		}
	}
	for _, view := range t.newTxViews {
		if _, ok := s.transactionViews[view.ID]; ok {
			return fmt.Errorf("%w: transaction view %s inserted concurrently", domain.ErrConcurrentModification, view.ID)
		}
	}

	return nil
}

// Rollback discards staged writes. It is a no-op after Commit.
func (t *Tx) Rollback(ctx context.Context) error {
	t.done = true
	return nil
}
