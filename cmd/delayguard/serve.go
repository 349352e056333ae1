package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/riandyrn/otelchi"
	"github.com/spf13/cobra"

	"github.com/neomorfeo/delayguard/internal/adapter/fsm"
	otelAdapter "github.com/neomorfeo/delayguard/internal/adapter/otel"
	riverAdapter "github.com/neomorfeo/delayguard/internal/adapter/river"
	"github.com/neomorfeo/delayguard/internal/adapter/sqlite"
	"github.com/neomorfeo/delayguard/internal/app"
	"github.com/neomorfeo/delayguard/internal/config"

	handler "github.com/neomorfeo/delayguard/internal/adapter/http"
)

func serveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the ledger HTTP API and notification workers",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := configFromCommand(cmd)
			if err != nil {
				return err
			}
			logger, err := commonRun()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return serve(ctx, cfg, logger)
		},
	}
}

// serve runs the ledger until ctx is cancelled, then shuts down gracefully.
func serve(ctx context.Context, cfg *config.Config, logger *slog.Logger) (err error) {
	escrow, err := cfg.Escrow()
	if err != nil {
		return err
	}
	tokenAddr, err := cfg.Token()
	if err != nil {
		return err
	}
	shutdownTimeout, err := cfg.ShutdownTimeoutDuration()
	if err != nil {
		return err
	}

	// --- Observability ---
	otelCfg, err := otelAdapter.ConfigFromEnv()
	if err != nil {
		return fmt.Errorf("otel config: %w", err)
	}
	providers, err := otelAdapter.Setup(ctx, otelCfg)
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if shutdownErr := providers.Shutdown(shutdownCtx); shutdownErr != nil {
			err = errors.Join(err, shutdownErr)
		}
	}()

	// --- Adapters (out) ---
	db, err := otelAdapter.OpenDB(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	repo, err := sqlite.NewFromDB(db)
	if err != nil {
		db.Close()
		return fmt.Errorf("database: %w", err)
	}
	defer repo.Close()

	riverClient, err := riverAdapter.Setup(ctx, db, riverAdapter.Options{
		MaxWorkers:  cfg.RiverWorkers,
		MaxAttempts: cfg.RiverAttempts,
		Logger:      logger,
	})
	if err != nil {
		return fmt.Errorf("river: %w", err)
	}
	// River is stopped explicitly below so in-flight jobs can finish.
	if err := riverClient.Start(context.WithoutCancel(ctx)); err != nil {
		return fmt.Errorf("starting river: %w", err)
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if stopErr := riverClient.Stop(stopCtx); stopErr != nil {
			err = errors.Join(err, fmt.Errorf("stopping river: %w", stopErr))
		}
	}()

	publisher, err := otelAdapter.NewTracingPublisher(riverAdapter.NewPublisher(riverClient))
	if err != nil {
		return fmt.Errorf("publisher: %w", err)
	}
	tokens := otelAdapter.NewTracingTokens(sqlite.NewTokenLedger(db, tokenAddr))

	// --- Application ---
	ledger := app.NewPolicyLedger(
		escrow,
		otelAdapter.NewTracingRepository(repo),
		tokens,
		publisher,
		fsm.New(),
		app.WithLogger(logger),
	)

	// --- Adapters (in) ---
	srv := &http.Server{
		Addr:              cfg.ListenAddr(),
		Handler:           newRouter(ledger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("delayguard listening", "addr", srv.Addr, "docs", "/docs", "escrow", escrow.String(), "token", tokenAddr.String())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return fmt.Errorf("server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	logger.Info("stopped")
	return nil
}

func newRouter(ledger *app.PolicyLedger) http.Handler {
	router := chi.NewMux()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	router.Use(otelchi.Middleware(programName, otelchi.WithChiRoutes(router)))

	api := humachi.New(router, huma.DefaultConfig("delayguard", version))
	handler.Register(api, ledger)
	return router
}
