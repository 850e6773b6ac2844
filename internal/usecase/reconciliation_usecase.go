package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iho/bankledger/internal/domain"
)

// ReconciliationUseCase compares the write model with the read views and
// reports drift. It never repairs anything.
type ReconciliationUseCase struct {
	txRunner     *TxRunner
	accountRepo  AccountRepository
	accountViews AccountViewRepository
	logger       zerolog.Logger
	now          func() time.Time
}

// NewReconciliationUseCase creates a new reconciliation use case
func NewReconciliationUseCase(
	txRunner *TxRunner,
	accountRepo AccountRepository,
	accountViews AccountViewRepository,
	logger zerolog.Logger,
) *ReconciliationUseCase {
	return &ReconciliationUseCase{
		txRunner:     txRunner,
		accountRepo:  accountRepo,
		accountViews: accountViews,
		logger:       logger,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// ReconciliationResult represents the result of a reconciliation check
type ReconciliationResult struct {
	LastChecked      time.Time
	AccountNumber    string
	RecordedBalance  decimal.Decimal
	ProjectedBalance decimal.Decimal
	Difference       decimal.Decimal
	// VersionLag is how many committed mutations the view has not applied yet.
	VersionLag   int64
	Projected    bool
	IsReconciled bool
}

// ReconcileAccount checks a single account.
func (uc *ReconciliationUseCase) ReconcileAccount(ctx context.Context, accountNumber string) (*ReconciliationResult, error) {
	var result *ReconciliationResult
	err := uc.txRunner.RunReadOnly(ctx, func(ctx context.Context, tx Transaction) error {
		account, err := uc.accountRepo.GetByNumber(ctx, tx, accountNumber)
		if err != nil {
			return notFound(err, accountNumber)
		}
		result, err = uc.compare(ctx, tx, account)
		return err
	})
	return result, err
}

func (uc *ReconciliationUseCase) compare(ctx context.Context, tx Transaction, account *domain.Account) (*ReconciliationResult, error) {
	result := &ReconciliationResult{
		AccountNumber:   account.AccountNumber,
		RecordedBalance: account.Balance,
		LastChecked:     uc.now(),
	}

	view, err := uc.accountViews.GetByNumber(ctx, tx, account.AccountNumber)
	if err != nil {
		if !errors.Is(err, domain.ErrReadViewNotFound) {
			return nil, err
		}
		result.Difference = account.Balance
		result.VersionLag = account.Version + 1
		return result, nil
	}

	result.Projected = true
	result.ProjectedBalance = view.Balance
	result.Difference = account.Balance.Sub(view.Balance)
	result.VersionLag = account.Version - view.Version
	result.IsReconciled = result.Difference.IsZero() && result.VersionLag == 0

	return result, nil
}

// ReconcileAllAccounts reconciles all accounts in the system, page by page.
func (uc *ReconciliationUseCase) ReconcileAllAccounts(ctx context.Context) ([]*ReconciliationResult, error) {
	var results []*ReconciliationResult

	for offset := 0; ; offset += maxPageSize {
		var page []*domain.Account
		err := uc.txRunner.RunReadOnly(ctx, func(ctx context.Context, tx Transaction) error {
			accounts, err := uc.accountRepo.List(ctx, tx, maxPageSize, offset)
			if err != nil {
				return err
			}
			page = accounts

			for _, account := range accounts {
				result, err := uc.compare(ctx, tx, account)
				if err != nil {
					return fmt.Errorf("failed to reconcile account %s: %w", account.AccountNumber, err)
				}
				results = append(results, result)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}

		if len(page) < maxPageSize {
			return results, nil
		}
	}
}

// ReconciliationReport represents a full reconciliation report
type ReconciliationReport struct {
	CheckedAt          time.Time
	Discrepancies      []*ReconciliationResult
	TotalAccounts      int
	ReconciledAccounts int
	// TotalDrift is the sum of write balances minus the sum of projected balances.
	TotalDrift decimal.Decimal
}

// GenerateReconciliationReport generates a comprehensive reconciliation report
func (uc *ReconciliationUseCase) GenerateReconciliationReport(ctx context.Context) (*ReconciliationReport, error) {
	results, err := uc.ReconcileAllAccounts(ctx)
	if err != nil {
		return nil, err
	}

	report := &ReconciliationReport{
		TotalAccounts: len(results),
		Discrepancies: make([]*ReconciliationResult, 0),
		TotalDrift:    decimal.Zero,
		CheckedAt:     uc.now(),
	}

	for _, result := range results {
		report.TotalDrift = report.TotalDrift.Add(result.Difference)
		if result.IsReconciled {
			report.ReconciledAccounts++
		} else {
			report.Discrepancies = append(report.Discrepancies, result)
		}
	}

	if len(report.Discrepancies) > 0 {
		uc.logger.Warn().
			Int("discrepancies", len(report.Discrepancies)).
			Str("total_drift", domain.FormatMoney(report.TotalDrift)).
			Msg("read views drift from ledger")
	}

	return report, nil
}
