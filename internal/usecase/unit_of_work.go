package usecase

import (
	"context"
	"time"

	"github.com/iho/bankledger/internal/domain"
)

// TxRunner runs blocks inside a unit of work and owns commit/rollback.
type TxRunner struct {
	txManager TransactionManager
	timeout   time.Duration
}

// NewTxRunner creates a TxRunner. A zero timeout uses DefaultTransactionTimeout.
func NewTxRunner(txManager TransactionManager, timeout time.Duration) *TxRunner {
	if timeout <= 0 {
		timeout = DefaultTransactionTimeout
	}
	return &TxRunner{txManager: txManager, timeout: timeout}
}

// RunWrite runs fn in a read-write transaction and commits if fn succeeds.
func (r *TxRunner) RunWrite(ctx context.Context, fn func(ctx context.Context, tx Transaction) error) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	tx, err := r.txManager.Begin(ctx)
	if err != nil {
		return storeError("begin", err)
	}
	return r.finish(ctx, tx, fn)
}

// RunReadOnly runs fn in a read-only transaction.
func (r *TxRunner) RunReadOnly(ctx context.Context, fn func(ctx context.Context, tx Transaction) error) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	tx, err := r.txManager.BeginReadOnly(ctx)
	if err != nil {
		return storeError("begin read-only", err)
	}
	return r.finish(ctx, tx, fn)
}

// RunIndependentWrite runs fn in a fresh transaction detached from the
// caller's cancellation, so its outcome never depends on the caller's unit of work.
func (r *TxRunner) RunIndependentWrite(ctx context.Context, fn func(ctx context.Context, tx Transaction) error) error {
	return r.RunWrite(context.WithoutCancel(ctx), fn)
}

func (r *TxRunner) finish(ctx context.Context, tx Transaction, fn func(ctx context.Context, tx Transaction) error) error {
	defer tx.Rollback(ctx)

	if err := fn(ctx, tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return storeError("commit", err)
	}
	return nil
}

// storeError keeps already classified errors and wraps anything else as a store failure.
func storeError(op string, err error) error {
	if domain.IsBusinessError(err) || domain.IsTransient(err) {
		return err
	}
	return domain.NewStoreError(op, err)
}
