package usecase

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/iho/bankledger/internal/domain"
)

// TransferInput represents input for moving money between two accounts.
type TransferInput struct {
	FromAccountNumber string
	ToAccountNumber   string
	Amount            decimal.Decimal
}

// TransferResult holds both sides of a committed transfer.
type TransferResult struct {
	TransferID string
	From       *domain.Account
	To         *domain.Account
	Debit      *domain.Transaction
	Credit     *domain.Transaction
}

// Transfer debits one account and credits another in a single unit of work,
// under the canonical transfer lock for the pair.
func (e *LedgerEngine) Transfer(ctx context.Context, input TransferInput) (*TransferResult, error) {
	if err := domain.ValidateAmount(input.Amount); err != nil {
		return nil, err
	}
	if input.FromAccountNumber == input.ToAccountNumber {
		return nil, domain.ErrSameAccount
	}
	amount := domain.Money(input.Amount)

	var (
		result *TransferResult
		events []domain.Event
	)

	key := domain.TransferLockKey(input.FromAccountNumber, input.ToAccountNumber)
	err := e.withLock(ctx, key, LockScopeTransfer, func(lock Lock) error {
		return e.txRunner.RunWrite(ctx, func(ctx context.Context, tx Transaction) error {
			accounts, err := e.loadPair(ctx, tx, input.FromAccountNumber, input.ToAccountNumber)
			if err != nil {
				return err
			}
			from := accounts[input.FromAccountNumber]
			to := accounts[input.ToAccountNumber]

			if err := from.ValidateDebit(amount); err != nil {
				return err
			}

			now := e.now()
			transferID := e.idGen.Generate()

			debit, err := e.record(ctx, tx, from, domain.TransactionTypeTransfer, amount,
				from.ApplyDebit(amount), "Transfer to "+to.AccountNumber, transferID, now)
			if err != nil {
				return err
			}

			credit, err := e.record(ctx, tx, to, domain.TransactionTypeTransfer, amount,
				to.ApplyCredit(amount), "Transfer from "+from.AccountNumber, transferID, now)
			if err != nil {
				return err
			}

			result = &TransferResult{
				TransferID: transferID,
				From:       from,
				To:         to,
				Debit:      debit,
				Credit:     credit,
			}
			events = []domain.Event{
				e.transactionEvent(debit, from, now),
				e.transactionEvent(credit, to, now),
			}

			return ensureHeld(lock)
		})
	})
	if err != nil {
		e.logFailure(err, "TRANSFER", input.FromAccountNumber+"->"+input.ToAccountNumber, amount)
		return nil, err
	}

	e.metrics.TransactionRecorded(domain.TransactionTypeTransfer, amount)
	e.metrics.TransactionRecorded(domain.TransactionTypeTransfer, amount)

	e.logger.Info().
		Str("transfer_id", result.TransferID).
		Str("from", result.From.AccountNumber).
		Str("to", result.To.AccountNumber).
		Str("amount", domain.FormatMoney(amount)).
		Msg("transfer committed")

	e.emit(ctx, events...)

	return result, nil
}

// loadPair reads both accounts in account-number order so row locks are
// always taken in the same order.
func (e *LedgerEngine) loadPair(ctx context.Context, tx Transaction, a, b string) (map[string]*domain.Account, error) {
	numbers := []string{a, b}
	sort.Strings(numbers)

	accounts := make(map[string]*domain.Account, 2)
	for _, number := range numbers {
		acc, err := e.accountRepo.GetByNumberForUpdate(ctx, tx, number)
		if err != nil {
			return nil, notFound(err, number)
		}
		accounts[number] = acc
	}

	return accounts, nil
}
