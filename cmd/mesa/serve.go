package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aretw0/mesa"
	"github.com/aretw0/mesa/internal/presentation/tui"
	"github.com/aretw0/mesa/internal/seed"
	httpAdapter "github.com/aretw0/mesa/pkg/adapters/http"
	"github.com/aretw0/mesa/pkg/auth"
	"github.com/aretw0/mesa/pkg/domain"
	"github.com/aretw0/mesa/pkg/observability"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

const shutdownTimeout = 5 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Starts every agent in one process and exposes them at POST /agents/{agentType}/{instanceId}.
Agent state is restored from the snapshot store on start and saved back on shutdown.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if len(cfg.APIKeys) == 0 {
			return errNoKeys
		}
		logger := newLogger(cfg)

		store, locker, closeStore, err := openStore(cfg.Store)
		if err != nil {
			return err
		}
		defer func() {
			if err := closeStore(); err != nil {
				logger.Warn("failed to close store", "error", err)
			}
		}()

		metrics := observability.NewMetrics()
		streams := httpAdapter.NewStreamManager(logger)
		hooks := []domain.LifecycleHooks{observability.LogHooks(logger)}
		if cfg.HTTP.Metrics {
			hooks = append(hooks, metrics.Hooks())
		}
		if cfg.HTTP.Events {
			hooks = append(hooks, streams.Hooks())
		}

		opts, err := hostOptions(cfg, logger, store, locker)
		if err != nil {
			return err
		}
		opts = append(opts, mesa.WithLifecycleHooks(observability.Combine(hooks...)))
		host := mesa.New(opts...)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if cfg.SeedFile != "" {
			data, err := seed.Load(cfg.SeedFile)
			if err != nil {
				return err
			}
			if err := host.Seed(ctx, data); err != nil {
				return fmt.Errorf("seed: %w", err)
			}
			logger.Info("seed applied", "file", cfg.SeedFile)
		}
		// Snapshots win over the seed for every agent they cover.
		if err := host.Restore(ctx); err != nil {
			return fmt.Errorf("restore: %w", err)
		}

		handlerOpts := []httpAdapter.Option{
			httpAdapter.WithLogger(logger),
			httpAdapter.WithMaxBodyBytes(cfg.HTTP.MaxBodyBytes),
		}
		if cfg.HTTP.Metrics {
			handlerOpts = append(handlerOpts, httpAdapter.WithMetricsHandler(metrics.Handler()))
		}
		if cfg.HTTP.Events {
			handlerOpts = append(handlerOpts, httpAdapter.WithStreams(streams, auth.NewStaticKeys(cfg.APIKeys...)))
		}

		srv := &http.Server{
			Addr:              cfg.Addr,
			Handler:           httpAdapter.NewHandler(host, mesa.Version, handlerOpts...),
			ReadHeaderTimeout: 10 * time.Second,
		}

		if term.IsTerminal(int(os.Stderr.Fd())) {
			tui.PrintBanner(os.Stderr, mesa.Version)
		}

		// Channel to listen for errors coming from the listener.
		serverErrors := make(chan error, 1)
		go func() {
			logger.Info("starting mesa server", "addr", srv.Addr, "agents", host.Agents(), "store", cfg.Store.Backend)
			serverErrors <- srv.ListenAndServe()
		}()

		// Blocking main and waiting for shutdown.
		select {
		case err := <-serverErrors:
			if !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server error: %w", err)
			}
		case <-ctx.Done():
			logger.Info("start shutdown")

			// Give outstanding requests a deadline for completion.
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()

			// Asking listener to shut down and shed load.
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error("graceful shutdown did not complete", "timeout", shutdownTimeout, "error", err)
				if err := srv.Close(); err != nil {
					logger.Error("error killing server", "error", err)
				}
			}
		}

		persistCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := host.Close(persistCtx); err != nil {
			return fmt.Errorf("persist: %w", err)
		}
		logger.Info("mesa server stopped gracefully")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	addServerFlags(serveCmd)
}
