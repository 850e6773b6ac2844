package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	httpAdapter "github.com/iho/bankledger/internal/adapter/http"
	"github.com/iho/bankledger/internal/adapter/http/handler"
)

func newServeCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the ledger with its operator HTTP endpoints",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := root.open(ctx, false)
			if err != nil {
				return err
			}
			defer a.close()

			return serve(ctx, a)
		},
	}
}

// serve runs the event workers and the HTTP server until ctx is done, then
// drains both.
func serve(ctx context.Context, a *app) error {
	router := httpAdapter.NewRouter(httpAdapter.RouterConfig{
		HealthHandler:         handler.NewHealthHandler(a.policy, a.checks...),
		ReconciliationHandler: handler.NewReconciliationHandler(a.reconciler),
		Metrics:               a.metrics,
		Gatherer:              a.registry,
		Logger:                a.logger,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", a.cfg.HTTPPort),
		Handler:      router,
		ReadTimeout:  a.cfg.HTTPReadTimeout,
		WriteTimeout: a.cfg.HTTPWriteTimeout,
		IdleTimeout:  a.cfg.HTTPIdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return a.channel.Start(gctx)
	})

	g.Go(func() error {
		a.logger.Info().Str("port", a.cfg.HTTPPort).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		a.logger.Info().Msg("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.cfg.HTTPShutdownTimeout)
		defer cancel()

		err := server.Shutdown(shutdownCtx)
		a.channel.Stop()
		return err
	})

	if err := g.Wait(); err != nil {
		return err
	}

	a.logger.Info().Msg("server stopped")
	return nil
}
