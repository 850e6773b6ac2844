package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/iho/bankledger/internal/domain"
	pgstore "github.com/iho/bankledger/internal/infrastructure/postgres"
	"github.com/iho/bankledger/internal/usecase"
)

type accountOutput struct {
	AccountNumber    string `json:"account_number"`
	HolderName       string `json:"holder_name"`
	Balance          string `json:"balance"`
	TotalDeposits    string `json:"total_deposits,omitempty"`
	TotalWithdrawals string `json:"total_withdrawals,omitempty"`
	TransactionCount int64  `json:"transaction_count"`
	Version          int64  `json:"version"`
}

func fromAccount(a *domain.Account) accountOutput {
	return accountOutput{
		AccountNumber: a.AccountNumber,
		HolderName:    a.HolderName,
		Balance:       a.Balance.StringFixed(2),
		Version:       a.Version,
	}
}

func fromAccountView(v *domain.AccountReadView) accountOutput {
	return accountOutput{
		AccountNumber:    v.AccountNumber,
		HolderName:       v.HolderName,
		Balance:          v.Balance.StringFixed(2),
		TotalDeposits:    v.TotalDeposits.StringFixed(2),
		TotalWithdrawals: v.TotalWithdrawals.StringFixed(2),
		TransactionCount: v.TransactionCount,
		Version:          v.Version,
	}
}

type transactionOutput struct {
	ID           string    `json:"id"`
	Type         string    `json:"type"`
	Amount       string    `json:"amount"`
	BalanceAfter string    `json:"balance_after"`
	Description  string    `json:"description"`
	CreatedAt    time.Time `json:"created_at"`
}

type reconciliationOutput struct {
	AccountNumber    string `json:"account_number"`
	RecordedBalance  string `json:"recorded_balance"`
	ProjectedBalance string `json:"projected_balance"`
	Difference       string `json:"difference"`
	VersionLag       int64  `json:"version_lag"`
	Projected        bool   `json:"projected"`
	Reconciled       bool   `json:"reconciled"`
}

func fromReconciliation(r *usecase.ReconciliationResult) reconciliationOutput {
	return reconciliationOutput{
		AccountNumber:    r.AccountNumber,
		RecordedBalance:  r.RecordedBalance.StringFixed(2),
		ProjectedBalance: r.ProjectedBalance.StringFixed(2),
		Difference:       r.Difference.StringFixed(2),
		VersionLag:       r.VersionLag,
		Projected:        r.Projected,
		Reconciled:       r.IsReconciled,
	}
}

func parseAmount(s string) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%w: %q is not a number", domain.ErrInvalidAmount, s)
	}
	return amount, nil
}

// memoryStoreNote is appended to the help of commands that open the store
// for a single operation.
const memoryStoreNote = `With STORE_BACKEND=memory (the default) every invocation starts from an
empty ledger and nothing is kept after it exits. Use --store postgres to
work with persistent accounts, or "ledger demo" to see a full in-memory run.`

func oneShotHelp(short string) string {
	return short + ".\n\n" + memoryStoreNote
}

func (o *rootOptions) printAccounts(w io.Writer, accounts ...accountOutput) error {
	if o.jsonOutput() {
		if len(accounts) == 1 {
			return printJSON(w, accounts[0])
		}
		return printJSON(w, accounts)
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ACCOUNT\tHOLDER\tBALANCE\tVERSION")
	for _, a := range accounts {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", a.AccountNumber, truncate(a.HolderName, 32), a.Balance, a.Version)
	}
	return tw.Flush()
}

func newMigrateCmd(root *rootOptions) *cobra.Command {
	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back database migrations",
	}

	run := func(down bool) func(cmd *cobra.Command, args []string) error {
		return func(cmd *cobra.Command, args []string) error {
			cfg, err := root.config()
			if err != nil {
				return err
			}
			log := newCLILogger(root, cfg)

			if down {
				return pgstore.RunMigrationsDown(cfg.DatabaseURL, cfg.MigrationsPath, log)
			}
			return pgstore.RunMigrations(cfg.DatabaseURL, cfg.MigrationsPath, log)
		}
	}

	migrateCmd.AddCommand(
		&cobra.Command{Use: "up", Short: "Apply all pending migrations", Args: cobra.NoArgs, RunE: run(false)},
		&cobra.Command{Use: "down", Short: "Roll back all migrations", Args: cobra.NoArgs, RunE: run(true)},
	)

	return migrateCmd
}

func newAccountCmd(root *rootOptions) *cobra.Command {
	accountCmd := &cobra.Command{
		Use:   "account",
		Short: "Account operations",
		Long:  oneShotHelp("Account operations"),
	}

	var (
		holder  string
		initial string
	)
	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Open an account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := parseAmount(initial)
			if err != nil {
				return err
			}

			a, err := root.open(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer a.close()

			account, err := a.ledger.CreateAccount(cmd.Context(), usecase.CreateAccountInput{
				HolderName:     holder,
				InitialBalance: amount,
			})
			if err != nil {
				return err
			}
			return root.printAccounts(cmd.OutOrStdout(), fromAccount(account))
		},
	}
	createCmd.Flags().StringVar(&holder, "holder", "", "Account holder name")
	createCmd.Flags().StringVar(&initial, "initial", "0", "Initial balance")
	_ = createCmd.MarkFlagRequired("holder")

	showCmd := &cobra.Command{
		Use:   "show <account-number>",
		Short: "Show the projected view of an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := root.open(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer a.close()

			view, err := a.reads.GetAccount(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			out := fromAccountView(view)
			if root.jsonOutput() {
				return printJSON(cmd.OutOrStdout(), out)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintf(tw, "Account:\t%s\n", out.AccountNumber)
			fmt.Fprintf(tw, "Holder:\t%s\n", out.HolderName)
			fmt.Fprintf(tw, "Balance:\t%s\n", out.Balance)
			fmt.Fprintf(tw, "Deposits:\t%s\n", out.TotalDeposits)
			fmt.Fprintf(tw, "Withdrawals:\t%s\n", out.TotalWithdrawals)
			fmt.Fprintf(tw, "Transactions:\t%d\n", out.TransactionCount)
			return tw.Flush()
		},
	}

	var limit, offset int
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List projected accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := root.open(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer a.close()

			views, err := a.reads.ListAccounts(cmd.Context(), usecase.ListAccountsInput{Limit: limit, Offset: offset})
			if err != nil {
				return err
			}

			out := make([]accountOutput, 0, len(views))
			for _, v := range views {
				out = append(out, fromAccountView(v))
			}
			return root.printAccounts(cmd.OutOrStdout(), out...)
		},
	}
	listCmd.Flags().IntVar(&limit, "limit", 50, "Maximum number of accounts")
	listCmd.Flags().IntVar(&offset, "offset", 0, "Number of accounts to skip")

	accountCmd.AddCommand(createCmd, showCmd, listCmd)
	return accountCmd
}

func newDepositCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "deposit <account-number> <amount>",
		Short: "Credit an account",
		Long:  oneShotHelp("Credit an account"),
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := parseAmount(args[1])
			if err != nil {
				return err
			}

			a, err := root.open(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer a.close()

			account, err := a.ledger.Deposit(cmd.Context(), args[0], amount)
			if err != nil {
				return err
			}
			return root.printAccounts(cmd.OutOrStdout(), fromAccount(account))
		},
	}
}

func newWithdrawCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "withdraw <account-number> <amount>",
		Short: "Debit an account",
		Long:  oneShotHelp("Debit an account"),
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := parseAmount(args[1])
			if err != nil {
				return err
			}

			a, err := root.open(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer a.close()

			account, err := a.ledger.Withdraw(cmd.Context(), args[0], amount)
			if err != nil {
				return err
			}
			return root.printAccounts(cmd.OutOrStdout(), fromAccount(account))
		},
	}
}

func newTransferCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "transfer <from> <to> <amount>",
		Short: "Move money between two accounts",
		Long:  oneShotHelp("Move money between two accounts"),
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := parseAmount(args[2])
			if err != nil {
				return err
			}

			a, err := root.open(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer a.close()

			result, err := a.ledger.Transfer(cmd.Context(), usecase.TransferInput{
				FromAccountNumber: args[0],
				ToAccountNumber:   args[1],
				Amount:            amount,
			})
			if err != nil {
				return err
			}

			if root.jsonOutput() {
				return printJSON(cmd.OutOrStdout(), struct {
					TransferID string        `json:"transfer_id"`
					From       accountOutput `json:"from"`
					To         accountOutput `json:"to"`
				}{result.TransferID, fromAccount(result.From), fromAccount(result.To)})
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Transfer %s\n", result.TransferID)
			return root.printAccounts(cmd.OutOrStdout(), fromAccount(result.From), fromAccount(result.To))
		},
	}
}

func newHistoryCmd(root *rootOptions) *cobra.Command {
	var limit int

	historyCmd := &cobra.Command{
		Use:   "history <account-number>",
		Short: "Show the projected transaction history of an account",
		Long:  oneShotHelp("Show the projected transaction history of an account"),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := root.open(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer a.close()

			views, err := a.reads.TransactionHistory(cmd.Context(), args[0], limit)
			if err != nil {
				return err
			}

			out := make([]transactionOutput, 0, len(views))
			for _, v := range views {
				out = append(out, transactionOutput{
					ID:           v.ID,
					Type:         string(v.Type),
					Amount:       v.Amount.StringFixed(2),
					BalanceAfter: v.BalanceAfter.StringFixed(2),
					Description:  v.Description,
					CreatedAt:    v.CreatedAt,
				})
			}

			if root.jsonOutput() {
				return printJSON(cmd.OutOrStdout(), out)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "TIME\tTYPE\tAMOUNT\tBALANCE\tDESCRIPTION")
			for _, t := range out {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
					t.CreatedAt.Format(time.RFC3339), t.Type, t.Amount, t.BalanceAfter, truncate(t.Description, 40))
			}
			return tw.Flush()
		},
	}
	historyCmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of transactions")

	return historyCmd
}

func newReconcileCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile [account-number]",
		Short: "Compare account balances with their projections",
		Long:  oneShotHelp("Compare account balances with their projections"),
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := root.open(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer a.close()

			if len(args) == 1 {
				result, err := a.reconciler.ReconcileAccount(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return root.printReconciliation(cmd.OutOrStdout(), fromReconciliation(result))
			}

			report, err := a.reconciler.GenerateReconciliationReport(cmd.Context())
			if err != nil {
				return err
			}
			return root.printReport(cmd.OutOrStdout(), report)
		},
	}
}

func (o *rootOptions) printReconciliation(w io.Writer, results ...reconciliationOutput) error {
	if o.jsonOutput() {
		return printJSON(w, results)
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ACCOUNT\tRECORDED\tPROJECTED\tDIFFERENCE\tLAG\tSTATUS")
	for _, r := range results {
		status := "OK"
		switch {
		case !r.Projected:
			status = "UNPROJECTED"
		case !r.Reconciled:
			status = "DRIFT"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\n",
			r.AccountNumber, r.RecordedBalance, r.ProjectedBalance, r.Difference, r.VersionLag, status)
	}
	return tw.Flush()
}

func (o *rootOptions) printReport(w io.Writer, report *usecase.ReconciliationReport) error {
	discrepancies := make([]reconciliationOutput, 0, len(report.Discrepancies))
	for _, r := range report.Discrepancies {
		discrepancies = append(discrepancies, fromReconciliation(r))
	}

	if o.jsonOutput() {
		return printJSON(w, struct {
			CheckedAt          time.Time              `json:"checked_at"`
			TotalAccounts      int                    `json:"total_accounts"`
			ReconciledAccounts int                    `json:"reconciled_accounts"`
			TotalDrift         string                 `json:"total_drift"`
			Discrepancies      []reconciliationOutput `json:"discrepancies"`
		}{report.CheckedAt, report.TotalAccounts, report.ReconciledAccounts, report.TotalDrift.StringFixed(2), discrepancies})
	}

	fmt.Fprintf(w, "Checked %d accounts: %d reconciled, total drift %s\n",
		report.TotalAccounts, report.ReconciledAccounts, report.TotalDrift.StringFixed(2))
	if len(discrepancies) == 0 {
		return nil
	}
	return o.printReconciliation(w, discrepancies...)
}
