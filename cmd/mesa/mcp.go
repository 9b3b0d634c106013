package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/aretw0/mesa"
	"github.com/aretw0/mesa/internal/seed"
	"github.com/aretw0/mesa/pkg/adapters/mcp"
	"github.com/aretw0/mesa/pkg/observability"
	"github.com/spf13/cobra"
)

// mcpCmd represents the mcp command
var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run the Model Context Protocol (MCP) server",
	Long: `Starts the agents as an MCP Server, so AI assistants can call them as tools.

Supported Transports:
- stdio (default): Uses Standard Input/Output. Ideal for local process integration.
- sse: Uses Server-Sent Events over HTTP. Ideal for remote agents or debuggers.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		transport, _ := cmd.Flags().GetString("transport")
		port, _ := cmd.Flags().GetInt("port")

		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if len(cfg.APIKeys) == 0 {
			return errNoKeys
		}
		// Logs go to stderr so they never corrupt JSON-RPC on stdout.
		logger := newLogger(cfg)
		log.SetOutput(os.Stderr)

		store, locker, closeStore, err := openStore(cfg.Store)
		if err != nil {
			return err
		}
		defer closeStore()

		opts, err := hostOptions(cfg, logger, store, locker)
		if err != nil {
			return err
		}
		opts = append(opts, mesa.WithLifecycleHooks(observability.LogHooks(logger)))
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
		}
		if err := host.Restore(ctx); err != nil {
			return fmt.Errorf("restore: %w", err)
		}
		defer func() {
			if err := host.Close(context.Background()); err != nil {
				logger.Error("persist failed", "error", err)
			}
		}()

		srv := mcp.NewServer(host, cfg.APIKeys[0], mesa.Version, logger)

		switch transport {
		case "stdio":
			logger.Info("Starting mesa MCP Server (Stdio)...")
			return srv.ServeStdio()
		case "sse":
			logger.Info("Starting mesa MCP Server (SSE)", "port", port)
			if err := srv.ServeSSE(ctx, port); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			logger.Info("MCP Server stopped gracefully")
			return nil
		default:
			return fmt.Errorf("unknown transport: %s. Supported: stdio, sse", transport)
		}
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
	addServerFlags(mcpCmd)

	mcpCmd.Flags().String("transport", "stdio", "Transport protocol to use: 'stdio' or 'sse'")
	mcpCmd.Flags().Int("port", 8081, "Port to listen on (only for SSE)")
}
