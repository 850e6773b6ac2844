package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iho/bankledger/internal/domain"
)

// Ledger is the command side of the ledger.
type Ledger interface {
	CreateAccount(ctx context.Context, input CreateAccountInput) (*domain.Account, error)
	Deposit(ctx context.Context, accountNumber string, amount decimal.Decimal) (*domain.Account, error)
	Withdraw(ctx context.Context, accountNumber string, amount decimal.Decimal) (*domain.Account, error)
	Transfer(ctx context.Context, input TransferInput) (*TransferResult, error)
}

var _ Ledger = (*LedgerEngine)(nil)

// LedgerEngine validates and applies money movements while holding locks
// from the LockCoordinator, and emits one event per committed row.
type LedgerEngine struct {
	txRunner        *TxRunner
	accountRepo     AccountRepository
	transactionRepo TransactionRepository
	locks           LockCoordinator
	events          EventPublisher
	metrics         MetricsSink
	idGen           IDGenerator
	numberGen       IDGenerator
	logger          zerolog.Logger
	now             func() time.Time
	lockWait        time.Duration
	lockLease       time.Duration
	syncEvents      bool

	// accountCount backs the account gauge. Only CreateAccount and
	// LoadAccountCount write it.
	accountCount atomic.Int64
}

// EngineConfig for LedgerEngine.
type EngineConfig struct {
	TxRunner        *TxRunner
	AccountRepo     AccountRepository
	TransactionRepo TransactionRepository
	Locks           LockCoordinator
	Events          EventPublisher
	Metrics         MetricsSink
	IDGen           IDGenerator
	NumberGen       IDGenerator // account numbers; defaults to IDGen
	Logger          zerolog.Logger
	Clock           func() time.Time
	LockWaitTimeout time.Duration
	LockLeaseTime   time.Duration
	SyncEvents      bool // deliver events before returning instead of in the background
}

// NewLedgerEngine creates a new LedgerEngine.
func NewLedgerEngine(cfg EngineConfig) *LedgerEngine {
	if cfg.Metrics == nil {
		cfg.Metrics = NopMetrics{}
	}
	if cfg.NumberGen == nil {
		cfg.NumberGen = cfg.IDGen
	}
	if cfg.Clock == nil {
		cfg.Clock = func() time.Time { return time.Now().UTC() }
	}
	if cfg.LockWaitTimeout <= 0 {
		cfg.LockWaitTimeout = DefaultLockWaitTimeout
	}
	if cfg.LockLeaseTime <= 0 {
		cfg.LockLeaseTime = DefaultLockLeaseTime
	}

	return &LedgerEngine{
		txRunner:        cfg.TxRunner,
		accountRepo:     cfg.AccountRepo,
		transactionRepo: cfg.TransactionRepo,
		locks:           cfg.Locks,
		events:          cfg.Events,
		metrics:         cfg.Metrics,
		idGen:           cfg.IDGen,
		numberGen:       cfg.NumberGen,
		logger:          cfg.Logger,
		now:             cfg.Clock,
		lockWait:        cfg.LockWaitTimeout,
		lockLease:       cfg.LockLeaseTime,
		syncEvents:      cfg.SyncEvents,
	}
}

// CreateAccountInput represents input for creating an account.
type CreateAccountInput struct {
	HolderName     string
	InitialBalance decimal.Decimal
}

// CreateAccount opens an account under a freshly generated account number.
// No lock is taken: nothing else can reference the account yet.
func (e *LedgerEngine) CreateAccount(ctx context.Context, input CreateAccountInput) (*domain.Account, error) {
	if err := domain.ValidateHolderName(input.HolderName); err != nil {
		return nil, err
	}
	if err := domain.ValidateInitialBalance(input.InitialBalance); err != nil {
		return nil, err
	}

	now := e.now()
	account := &domain.Account{
		ID:            e.idGen.Generate(),
		AccountNumber: e.numberGen.Generate(),
		HolderName:    input.HolderName,
		Balance:       domain.Money(input.InitialBalance),
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	var event *domain.AccountCreatedEvent
	err := e.txRunner.RunWrite(ctx, func(ctx context.Context, tx Transaction) error {
		if err := e.accountRepo.Create(ctx, tx, account); err != nil {
			return err
		}
		event = &domain.AccountCreatedEvent{
			ID:             e.idGen.Generate(),
			AccountID:      account.ID,
			AccountNumber:  account.AccountNumber,
			HolderName:     account.HolderName,
			InitialBalance: account.Balance,
			OccurredAt:     now,
		}
		return nil
	})
	if err != nil {
		e.logger.Error().Err(err).Str("holder_name", input.HolderName).Msg("create account failed")
		return nil, err
	}

	e.metrics.AccountCreated()
	e.metrics.SetAccountCount(e.accountCount.Add(1))

	e.logger.Info().
		Str("account_id", account.ID).
		Str("account_number", account.AccountNumber).
		Msg("account created")

	e.emit(ctx, event)

	return account, nil
}

// Deposit adds amount to the account balance.
func (e *LedgerEngine) Deposit(ctx context.Context, accountNumber string, amount decimal.Decimal) (*domain.Account, error) {
	return e.applySingle(ctx, accountNumber, amount, domain.TransactionTypeDeposit,
		func(acc *domain.Account) (decimal.Decimal, error) {
			return acc.ApplyCredit(amount), nil
		})
}

// Withdraw subtracts amount from the account balance, refusing to go below zero.
func (e *LedgerEngine) Withdraw(ctx context.Context, accountNumber string, amount decimal.Decimal) (*domain.Account, error) {
	return e.applySingle(ctx, accountNumber, amount, domain.TransactionTypeWithdrawal,
		func(acc *domain.Account) (decimal.Decimal, error) {
			if err := acc.ValidateDebit(amount); err != nil {
				return decimal.Zero, err
			}
			return acc.ApplyDebit(amount), nil
		})
}

func (e *LedgerEngine) applySingle(
	ctx context.Context,
	accountNumber string,
	amount decimal.Decimal,
	txType domain.TransactionType,
	apply func(acc *domain.Account) (decimal.Decimal, error),
) (*domain.Account, error) {
	if err := domain.ValidateAmount(amount); err != nil {
		return nil, err
	}
	amount = domain.Money(amount)

	var (
		account *domain.Account
		event   *domain.TransactionCreatedEvent
	)

	err := e.withLock(ctx, domain.AccountLockKey(accountNumber), LockScopeAccount, func(lock Lock) error {
		return e.txRunner.RunWrite(ctx, func(ctx context.Context, tx Transaction) error {
			acc, err := e.accountRepo.GetByNumberForUpdate(ctx, tx, accountNumber)
			if err != nil {
				return notFound(err, accountNumber)
			}

			newBalance, err := apply(acc)
			if err != nil {
				return err
			}

			now := e.now()
			txn, err := e.record(ctx, tx, acc, txType, amount, newBalance, describe(txType, amount), "", now)
			if err != nil {
				return err
			}

			account = acc
			event = e.transactionEvent(txn, acc, now)

			return ensureHeld(lock)
		})
	})
	if err != nil {
		e.logFailure(err, string(txType), accountNumber, amount)
		return nil, err
	}

	e.metrics.TransactionRecorded(txType, amount)

	e.logger.Info().
		Str("account_number", accountNumber).
		Str("type", string(txType)).
		Str("amount", domain.FormatMoney(amount)).
		Str("balance_after", domain.FormatMoney(account.Balance)).
		Msg("transaction committed")

	e.emit(ctx, event)

	return account, nil
}

// record writes the transaction row and the new balance guarded by the
// account version read in the same unit of work. acc is updated in place.
func (e *LedgerEngine) record(
	ctx context.Context,
	tx Transaction,
	acc *domain.Account,
	txType domain.TransactionType,
	amount, newBalance decimal.Decimal,
	description, transferID string,
	now time.Time,
) (*domain.Transaction, error) {
	if newBalance.IsNegative() {
		return nil, &domain.InsufficientFundsError{
			AccountNumber: acc.AccountNumber,
			Available:     domain.FormatMoney(acc.Balance),
			Requested:     domain.FormatMoney(amount),
		}
	}

	txn := &domain.Transaction{
		ID:           e.idGen.Generate(),
		AccountID:    acc.ID,
		TransferID:   transferID,
		Type:         txType,
		Amount:       amount,
		Description:  description,
		BalanceAfter: newBalance,
		CreatedAt:    now,
	}

	if err := e.transactionRepo.Create(ctx, tx, txn); err != nil {
		return nil, err
	}

	expected := acc.Version
	acc.Balance = newBalance
	acc.Version++
	acc.UpdatedAt = now

	if err := e.accountRepo.UpdateBalance(ctx, tx, acc, expected); err != nil {
		return nil, err
	}

	return txn, nil
}

func (e *LedgerEngine) transactionEvent(txn *domain.Transaction, acc *domain.Account, now time.Time) *domain.TransactionCreatedEvent {
	return &domain.TransactionCreatedEvent{
		ID:             e.idGen.Generate(),
		TransactionID:  txn.ID,
		AccountID:      acc.ID,
		Type:           txn.Type,
		Amount:         txn.Amount,
		Description:    txn.Description,
		BalanceAfter:   txn.BalanceAfter,
		AccountVersion: acc.Version,
		OccurredAt:     now,
	}
}

// withLock runs fn while holding key. Lock metrics and lease loss are
// accounted for here so no operation can forget them.
func (e *LedgerEngine) withLock(ctx context.Context, key, scope string, fn func(lock Lock) error) error {
	lock, err := e.locks.Acquire(ctx, key, e.lockWait, e.lockLease)
	if err != nil {
		e.metrics.LockFailed(scope)
		e.logger.Warn().Err(err).Str("lock_key", key).Msg("failed to acquire lock")
		return err
	}
	e.metrics.LockAcquired(scope)

	fnErr := fn(lock)

	relErr := lock.Release(context.WithoutCancel(ctx))
	if relErr != nil && !errors.Is(relErr, domain.ErrLeaseExpired) {
		e.logger.Warn().Err(relErr).Str("lock_key", key).Msg("failed to release lock")
	}

	if errors.Is(fnErr, domain.ErrLeaseExpired) || errors.Is(relErr, domain.ErrLeaseExpired) {
		e.metrics.LeaseExpired(scope)
		e.logger.Error().Str("lock_key", key).Bool("committed", fnErr == nil).Msg("lock lease expired while held")
	}

	return fnErr
}

// emit hands events to the channel. A delivery problem never fails the
// command: the mutation is already committed.
func (e *LedgerEngine) emit(ctx context.Context, events ...domain.Event) {
	if e.events == nil || len(events) == 0 {
		return
	}

	if !e.syncEvents {
		e.events.PublishAsync(context.WithoutCancel(ctx), events...)
		return
	}

	if err := e.events.Publish(ctx, events...); err != nil {
		e.logger.Warn().Err(err).Int("events", len(events)).Msg("synchronous event delivery failed")
	}
}

// LoadAccountCount initializes the account gauge from the store.
func (e *LedgerEngine) LoadAccountCount(ctx context.Context) (int64, error) {
	var count int64
	err := e.txRunner.RunReadOnly(ctx, func(ctx context.Context, tx Transaction) error {
		var err error
		count, err = e.accountRepo.Count(ctx, tx)
		return err
	})
	if err != nil {
		return 0, err
	}

	e.accountCount.Store(count)
	e.metrics.SetAccountCount(count)

	return count, nil
}

// AccountCount returns the current value of the account gauge.
func (e *LedgerEngine) AccountCount() int64 {
	return e.accountCount.Load()
}

// GetAccount reads an account from the write model.
func (e *LedgerEngine) GetAccount(ctx context.Context, accountNumber string) (*domain.Account, error) {
	var account *domain.Account
	err := e.txRunner.RunReadOnly(ctx, func(ctx context.Context, tx Transaction) error {
		acc, err := e.accountRepo.GetByNumber(ctx, tx, accountNumber)
		if err != nil {
			return notFound(err, accountNumber)
		}
		account = acc
		return nil
	})
	return account, err
}

func (e *LedgerEngine) logFailure(err error, op, accountNumber string, amount decimal.Decimal) {
	ev := e.logger.Error()
	if domain.IsBusinessError(err) || domain.IsTransient(err) {
		ev = e.logger.Warn()
	}
	ev.Err(err).
		Str("operation", op).
		Str("account_number", accountNumber).
		Str("amount", domain.FormatMoney(amount)).
		Msg("ledger operation rejected")
}

func ensureHeld(lock Lock) error {
	if !lock.Held() {
		return fmt.Errorf("%w: %s", domain.ErrLeaseExpired, lock.Key())
	}
	return nil
}

func notFound(err error, accountNumber string) error {
	if errors.Is(err, domain.ErrAccountNotFound) {
		return fmt.Errorf("%w: %s", domain.ErrAccountNotFound, accountNumber)
	}
	return err
}

func describe(txType domain.TransactionType, amount decimal.Decimal) string {
	switch txType {
	case domain.TransactionTypeDeposit:
		return "Deposit of " + domain.FormatMoney(amount)
	case domain.TransactionTypeWithdrawal:
		return "Withdrawal of " + domain.FormatMoney(amount)
	}
	return string(txType) + " of " + domain.FormatMoney(amount)
}
