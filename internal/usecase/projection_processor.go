package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/iho/bankledger/internal/domain"
)

// ProjectionProcessor folds domain events into the read views. Every event is
// applied in its own unit of work, and redelivered events are detected and skipped.
type ProjectionProcessor struct {
	txRunner         *TxRunner
	accountViews     AccountViewRepository
	transactionViews TransactionViewRepository
	metrics          MetricsSink
	logger           zerolog.Logger
	now              func() time.Time
}

var _ EventHandler = (*ProjectionProcessor)(nil)

// NewProjectionProcessor creates a new ProjectionProcessor.
func NewProjectionProcessor(
	txRunner *TxRunner,
	accountViews AccountViewRepository,
	transactionViews TransactionViewRepository,
	metrics MetricsSink,
	logger zerolog.Logger,
) *ProjectionProcessor {
	if metrics == nil {
		metrics = NopMetrics{}
	}
	return &ProjectionProcessor{
		txRunner:         txRunner,
		accountViews:     accountViews,
		transactionViews: transactionViews,
		metrics:          metrics,
		logger:           logger,
		now:              func() time.Time { return time.Now().UTC() },
	}
}

// Handle projects one event. A returned error asks the channel to retry.
func (p *ProjectionProcessor) Handle(ctx context.Context, event domain.Event) error {
	start := time.Now()

	var err error
	switch e := event.(type) {
	case *domain.AccountCreatedEvent:
		err = p.projectAccountCreated(ctx, e)
	case *domain.TransactionCreatedEvent:
		err = p.projectTransactionCreated(ctx, e)
	default:
		p.logger.Debug().Str("event_type", event.EventType()).Msg("no projection for event type")
		return nil
	}

	if err != nil {
		p.logger.Error().Err(err).
			Str("event_id", event.EventID()).
			Str("event_type", event.EventType()).
			Msg("failed to project event")
		return fmt.Errorf("project %s %s: %w", event.EventType(), event.EventID(), err)
	}

	p.metrics.EventProcessed(event.EventType(), time.Since(start))
	return nil
}

func (p *ProjectionProcessor) projectAccountCreated(ctx context.Context, e *domain.AccountCreatedEvent) error {
	return p.txRunner.RunIndependentWrite(ctx, func(ctx context.Context, tx Transaction) error {
		inserted, err := p.accountViews.Insert(ctx, tx, domain.NewAccountReadView(e, p.now()))
		if err != nil {
			return err
		}

		if !inserted {
			p.logger.Debug().Str("event_id", e.ID).Str("account_id", e.AccountID).Msg("account view exists, skipping duplicate")
			return nil
		}

		p.logger.Info().Str("account_number", e.AccountNumber).Msg("account view created")
		return nil
	})
}

func (p *ProjectionProcessor) projectTransactionCreated(ctx context.Context, e *domain.TransactionCreatedEvent) error {
	return p.txRunner.RunIndependentWrite(ctx, func(ctx context.Context, tx Transaction) error {
		view, err := p.accountViews.GetForUpdate(ctx, tx, e.AccountID)
		if err != nil {
			if errors.Is(err, domain.ErrReadViewNotFound) {
				return fmt.Errorf("%w: account %s not projected yet", err, e.AccountID)
			}
			return err
		}

		inserted, err := p.transactionViews.Insert(ctx, tx, domain.NewTransactionReadView(e, view))
		if err != nil {
			return err
		}

		if !inserted {
			p.logger.Debug().Str("event_id", e.ID).Str("transaction_id", e.TransactionID).Msg("transaction already projected, skipping duplicate")
			return nil
		}

		view.Apply(e, p.now())

		if err := p.accountViews.Update(ctx, tx, view); err != nil {
			return err
		}

		p.logger.Debug().
			Str("account_number", view.AccountNumber).
			Str("transaction_id", e.TransactionID).
			Int64("transaction_count", view.TransactionCount).
			Msg("account view updated")
		return nil
	})
}
