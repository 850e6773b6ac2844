package usecase_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	lockmemory "github.com/iho/bankledger/internal/adapter/lock/memory"
	"github.com/iho/bankledger/internal/adapter/repository/memory"
	"github.com/iho/bankledger/internal/domain"
	"github.com/iho/bankledger/internal/usecase"
)

type seqGen struct {
	prefix string
	n      atomic.Int64
}

func (g *seqGen) Generate() string {
	return fmt.Sprintf("%s%06d", g.prefix, g.n.Add(1))
}

// harness wires the engine, projection and queries over one memory store.
type harness struct {
	store        *memory.Store
	txRunner     *usecase.TxRunner
	accounts     *memory.AccountRepository
	transactions *memory.TransactionRepository
	views        *memory.AccountViewRepository
	txViews      *memory.TransactionViewRepository
	engine       *usecase.LedgerEngine
	projection   *usecase.ProjectionProcessor
	reads        *usecase.ReadUseCase
	reconciler   *usecase.ReconciliationUseCase
}

func newHarness(t *testing.T, opts ...func(*usecase.EngineConfig)) *harness {
	t.Helper()

	store := memory.NewStore()
	h := &harness{
		store:        store,
		txRunner:     usecase.NewTxRunner(memory.NewTxManager(store), 0),
		accounts:     memory.NewAccountRepository(store),
		transactions: memory.NewTransactionRepository(store),
		views:        memory.NewAccountViewRepository(store),
		txViews:      memory.NewTransactionViewRepository(store),
	}

	cfg := usecase.EngineConfig{
		TxRunner:        h.txRunner,
		AccountRepo:     h.accounts,
		TransactionRepo: h.transactions,
		Locks:           lockmemory.NewCoordinator(),
		IDGen:           &seqGen{prefix: "id-"},
		NumberGen:       &seqGen{prefix: "ACC"},
		Logger:          zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	h.engine = usecase.NewLedgerEngine(cfg)
	h.projection = usecase.NewProjectionProcessor(h.txRunner, h.views, h.txViews, nil, zerolog.Nop())
	h.reads = usecase.NewReadUseCase(h.txRunner, h.views, h.txViews)
	h.reconciler = usecase.NewReconciliationUseCase(h.txRunner, h.accounts, h.views, zerolog.Nop())

	return h
}

func (h *harness) open(t *testing.T, holder, balance string) *domain.Account {
	t.Helper()
	acc, err := h.engine.CreateAccount(context.Background(), usecase.CreateAccountInput{
		HolderName:     holder,
		InitialBalance: dec(balance),
	})
	if err != nil {
		t.Fatalf("create account %s: %v", holder, err)
	}
	return acc
}

func (h *harness) balance(t *testing.T, number string) decimal.Decimal {
	t.Helper()
	acc, err := h.engine.GetAccount(context.Background(), number)
	if err != nil {
		t.Fatalf("get account %s: %v", number, err)
	}
	return acc.Balance
}

func (h *harness) history(t *testing.T, accountID string) []*domain.Transaction {
	t.Helper()
	var txns []*domain.Transaction
	err := h.txRunner.RunReadOnly(context.Background(), func(ctx context.Context, tx usecase.Transaction) error {
		var err error
		txns, err = h.transactions.ListByAccount(ctx, tx, accountID, 1000, 0)
		return err
	})
	if err != nil {
		t.Fatalf("list transactions: %v", err)
	}
	return txns
}

// recordingPublisher delivers synchronously to handler and keeps every event.
type recordingPublisher struct {
	mu      sync.Mutex
	handler usecase.EventHandler
	events  []domain.Event
}

func (p *recordingPublisher) Publish(ctx context.Context, events ...domain.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.events = append(p.events, events...)
	if p.handler == nil {
		return nil
	}
	for _, e := range events {
		if err := p.handler.Handle(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

func (p *recordingPublisher) PublishAsync(ctx context.Context, events ...domain.Event) {
	_ = p.Publish(ctx, events...)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertMoney(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	if !got.Equal(dec(want)) {
		t.Fatalf("expected %s, got %s", want, got.StringFixed(2))
	}
}
