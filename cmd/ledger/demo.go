package main

import (
	"context"
	"fmt"
	"io"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/iho/bankledger/internal/usecase"
)

func newDemoCmd(root *rootOptions) *cobra.Command {
	var transfers int

	demoCmd := &cobra.Command{
		Use:   "demo",
		Short: "Open two accounts, move money between them concurrently and reconcile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := root.open(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer a.close()

			return runDemo(cmd.Context(), root, a, cmd.OutOrStdout(), transfers)
		},
	}
	demoCmd.Flags().IntVar(&transfers, "transfers", 10, "Number of concurrent 1.00 transfers in each direction")

	return demoCmd
}

// runDemo opens ACC1 with 100.00 and ACC2 with 0.00, transfers 30.00 from
// ACC1 to ACC2, then runs opposing transfers in parallel and reports the
// projected balances once every event has been applied.
func runDemo(ctx context.Context, root *rootOptions, a *app, w io.Writer, transfers int) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.channel.Start(gctx)
	})

	err := demoScenario(ctx, root, a, w, transfers)

	a.channel.Stop()
	if werr := g.Wait(); err == nil {
		err = werr
	}
	return err
}

func demoScenario(ctx context.Context, root *rootOptions, a *app, w io.Writer, transfers int) error {
	first, err := a.ledger.CreateAccount(ctx, usecase.CreateAccountInput{
		HolderName:     "Demo Holder One",
		InitialBalance: decimal.NewFromInt(100),
	})
	if err != nil {
		return err
	}
	second, err := a.ledger.CreateAccount(ctx, usecase.CreateAccountInput{
		HolderName:     "Demo Holder Two",
		InitialBalance: decimal.Zero,
	})
	if err != nil {
		return err
	}

	if _, err := a.ledger.Transfer(ctx, usecase.TransferInput{
		FromAccountNumber: first.AccountNumber,
		ToAccountNumber:   second.AccountNumber,
		Amount:            decimal.NewFromInt(30),
	}); err != nil {
		return err
	}

	one := decimal.NewFromInt(1)
	var g errgroup.Group
	for range transfers {
		g.Go(func() error {
			_, err := a.ledger.Transfer(ctx, usecase.TransferInput{
				FromAccountNumber: first.AccountNumber,
				ToAccountNumber:   second.AccountNumber,
				Amount:            one,
			})
			return err
		})
		g.Go(func() error {
			_, err := a.ledger.Transfer(ctx, usecase.TransferInput{
				FromAccountNumber: second.AccountNumber,
				ToAccountNumber:   first.AccountNumber,
				Amount:            one,
			})
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	a.channel.Wait()

	views := make([]accountOutput, 0, 2)
	for _, number := range []string{first.AccountNumber, second.AccountNumber} {
		view, err := a.reads.GetAccount(ctx, number)
		if err != nil {
			return err
		}
		views = append(views, fromAccountView(view))
	}
	if err := root.printAccounts(w, views...); err != nil {
		return err
	}

	report, err := a.reconciler.GenerateReconciliationReport(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Reconciled %d of %d accounts, total drift %s\n",
		report.ReconciledAccounts, report.TotalAccounts, report.TotalDrift.StringFixed(2))

	return nil
}
