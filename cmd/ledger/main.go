package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/iho/bankledger/internal/infrastructure/config"
	"github.com/iho/bankledger/internal/infrastructure/logger"
)

// rootOptions carries the persistent flags. Flags left empty fall back to
// the environment.
type rootOptions struct {
	storeBackend string
	lockBackend  string
	logLevel     string
	output       string

	// loadConfig is swapped in tests.
	loadConfig func() (*config.Config, error)
	logOut     io.Writer
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	return newRootCmdWithOptions(&rootOptions{
		loadConfig: config.Load,
		logOut:     os.Stderr,
	})
}

func newRootCmdWithOptions(opts *rootOptions) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "ledger",
		Short:         "Bank ledger",
		Long:          `Runs the ledger service and performs one-off ledger operations against the configured store.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&opts.storeBackend, "store", "", "Store backend (memory, postgres); overrides STORE_BACKEND")
	rootCmd.PersistentFlags().StringVar(&opts.lockBackend, "lock", "", "Lock backend (memory, redis); overrides LOCK_BACKEND")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Log level; overrides LOG_LEVEL")
	rootCmd.PersistentFlags().StringVarP(&opts.output, "output", "o", "text", "Output format (text, json)")

	rootCmd.AddCommand(
		newServeCmd(opts),
		newMigrateCmd(opts),
		newAccountCmd(opts),
		newDepositCmd(opts),
		newWithdrawCmd(opts),
		newTransferCmd(opts),
		newHistoryCmd(opts),
		newReconcileCmd(opts),
		newDeadLetterCmd(opts),
		newDemoCmd(opts),
	)

	return rootCmd
}

func (o *rootOptions) config() (*config.Config, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}

	if o.storeBackend != "" {
		cfg.StoreBackend = o.storeBackend
	}
	if o.lockBackend != "" {
		cfg.LockBackend = o.lockBackend
	}
	if o.logLevel != "" {
		cfg.LogLevel = o.logLevel
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// open loads the configuration and wires the ledger. syncEvents is set by
// the one-shot commands.
func (o *rootOptions) open(ctx context.Context, syncEvents bool) (*app, error) {
	cfg, err := o.config()
	if err != nil {
		return nil, err
	}

	log := newCLILogger(o, cfg)
	if syncEvents && cfg.StoreBackend == config.BackendMemory {
		log.Warn().Msg("using the in-memory store; changes are not persisted after this command exits")
	}

	return newApp(ctx, cfg, log, syncEvents)
}

func newCLILogger(o *rootOptions, cfg *config.Config) zerolog.Logger {
	return logger.NewWithWriter(logger.Config{
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
		Service: "ledger",
	}, o.logOut)
}

func (o *rootOptions) jsonOutput() bool {
	return o.output == "json"
}

func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	if n <= 3 {
		return s[:n]
	}
	return s[:n-3] + "..."
}
