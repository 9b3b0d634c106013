package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "mesa",
	Short: "Mesa hosts the restaurant agents behind a JSON-RPC 2.0 API",
	Long: `Mesa runs the restaurant agents (menu, stock, promotions, orders, customers,
analytics and messaging) and exposes them over HTTP or MCP as JSON-RPC 2.0 endpoints.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().String("config", "", "Config file (yaml, toml or json)")
}
