package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"fundvest/internal/engine"
	"fundvest/internal/ledger"
	"fundvest/internal/nav"
	"fundvest/internal/server"
	"fundvest/internal/sip"
	"fundvest/internal/store"
)

func newServeCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the fund transaction engine and HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(app)
		},
	}
}

func runServe(app *App) error {
	cfg := app.Config
	logger := app.Logger

	dataStore, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer dataStore.Close()
	logger.Debug().Str("path", cfg.Database.Path).Msg("SQLite store initialized")

	provider := nav.NewStaticProvider(cfg.NAV.Funds, cfg.NAV.Fallback)
	led := ledger.New(dataStore)

	eng := engine.New(dataStore, led, provider, logger, engine.Options{
		SettlementDelay: cfg.Engine.SettlementDelay,
		StaleAfter:      cfg.Engine.StaleAfter,
	})

	// Resolve orders cut off mid-settlement by a previous shutdown.
	recovered, err := eng.RecoverStale(context.Background())
	if err != nil {
		return err
	}
	if recovered > 0 {
		logger.Warn().Int("recovered", recovered).Msg("Stale processing orders resolved")
	}

	scheduler := sip.NewScheduler(dataStore, eng, logger, cfg.SIP.Schedule)
	if err := scheduler.Start(); err != nil {
		return err
	}

	srv := server.New(eng, dataStore, logger, cfg.Server.JWTSecret)
	httpServer := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: srv.Router(),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cfg.Server.Addr).Msg("HTTP server listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		scheduler.Stop()
		eng.Stop()
		return err
	case sig := <-sigCh:
		logger.Info().Str("signal", sig.String()).Msg("Shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("HTTP shutdown failed")
	}

	scheduler.Stop()
	eng.Stop()
	logger.Info().Msg("Shutdown complete")
	return nil
}
