package usecase_test

import (
	"context"
	"errors"
	"testing"

	"github.com/iho/bankledger/internal/domain"
	"github.com/iho/bankledger/internal/usecase"
)

type stubTx struct {
	commitErr  error
	committed  bool
	rolledBack bool
}

func (s *stubTx) Commit(context.Context) error {
	s.committed = true
	return s.commitErr
}

func (s *stubTx) Rollback(context.Context) error {
	s.rolledBack = true
	return nil
}

type stubTxManager struct {
	tx       *stubTx
	beginErr error
	readOnly bool
}

func (m *stubTxManager) Begin(context.Context) (usecase.Transaction, error) {
	return m.tx, m.beginErr
}

func (m *stubTxManager) BeginReadOnly(context.Context) (usecase.Transaction, error) {
	m.readOnly = true
	return m.tx, m.beginErr
}

func TestTxRunnerCommitsOnSuccess(t *testing.T) {
	tm := &stubTxManager{tx: &stubTx{}}
	runner := usecase.NewTxRunner(tm, 0)

	if err := runner.RunWrite(context.Background(), func(ctx context.Context, tx usecase.Transaction) error {
		if _, ok := ctx.Deadline(); !ok {
			t.Errorf("expected unit of work to carry a deadline")
		}
		return nil
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !tm.tx.committed {
		t.Fatalf("expected commit")
	}
}

func TestTxRunnerRollsBackOnError(t *testing.T) {
	tm := &stubTxManager{tx: &stubTx{}}
	runner := usecase.NewTxRunner(tm, 0)

	err := runner.RunWrite(context.Background(), func(context.Context, usecase.Transaction) error {
		return domain.ErrInvalidAmount
	})
	if !errors.Is(err, domain.ErrInvalidAmount) {
		t.Fatalf("expected fn error, got %v", err)
	}
	if tm.tx.committed || !tm.tx.rolledBack {
		t.Fatalf("expected rollback without commit")
	}
}

func TestTxRunnerClassifiesStoreErrors(t *testing.T) {
	t.Run("begin", func(t *testing.T) {
		runner := usecase.NewTxRunner(&stubTxManager{beginErr: errors.New("pool exhausted")}, 0)
		err := runner.RunReadOnly(context.Background(), func(context.Context, usecase.Transaction) error { return nil })
		if !errors.Is(err, domain.ErrStoreFailure) {
			t.Fatalf("expected store failure, got %v", err)
		}
	})

	t.Run("commit conflict stays a conflict", func(t *testing.T) {
		tm := &stubTxManager{tx: &stubTx{commitErr: domain.ErrConcurrentModification}}
		err := usecase.NewTxRunner(tm, 0).RunWrite(context.Background(), func(context.Context, usecase.Transaction) error { return nil })
		if !errors.Is(err, domain.ErrConcurrentModification) || errors.Is(err, domain.ErrStoreFailure) {
			t.Fatalf("expected bare concurrent modification, got %v", err)
		}
	})
}

func TestTxRunnerIndependentWriteIgnoresCallerCancellation(t *testing.T) {
	tm := &stubTxManager{tx: &stubTx{}}
	runner := usecase.NewTxRunner(tm, 0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := runner.RunIndependentWrite(ctx, func(ctx context.Context, tx usecase.Transaction) error {
		return ctx.Err()
	})
	if err != nil {
		t.Fatalf("expected detached context, got %v", err)
	}
	if !tm.tx.committed {
		t.Fatalf("expected commit")
	}
}
