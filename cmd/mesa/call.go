package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	httpAdapter "github.com/aretw0/mesa/pkg/adapters/http"
	"github.com/spf13/cobra"
)

var callCmd = &cobra.Command{
	Use:   "call <agent> <method> [params-json]",
	Short: "Send a JSON-RPC request to a running server",
	Example: `  mesa call cardapio cardapio/tasks/list
  mesa call pedidos pedidos/orders/create '{"items":[{"itemId":"item-1","quantity":2}]}'`,
	Args: cobra.RangeArgs(2, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		url, _ := cmd.Flags().GetString("url")
		key, _ := cmd.Flags().GetString("api-key")
		instance, _ := cmd.Flags().GetString("instance")
		timeout, _ := cmd.Flags().GetDuration("timeout")
		if key == "" {
			key = os.Getenv("MESA_API_KEY")
		}

		var params any
		if len(args) == 3 {
			if err := json.Unmarshal([]byte(args[2]), &params); err != nil {
				return fmt.Errorf("params is not valid JSON: %w", err)
			}
		}

		client := httpAdapter.NewClient(url, key)
		client.Instance = instance
		client.Timeout = timeout

		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()

		resp, err := client.Call(ctx, args[0], args[1], params)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(resp); err != nil {
			return err
		}
		if resp.IsError() {
			return fmt.Errorf("rpc error %d: %s", resp.Error.Code, resp.Error.Message)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(callCmd)
	callCmd.Flags().String("url", "http://localhost:8080", "Server base URL")
	callCmd.Flags().String("api-key", "", "API key (defaults to $MESA_API_KEY)")
	callCmd.Flags().String("instance", "default", "Agent instance id")
	callCmd.Flags().Duration("timeout", 10*time.Second, "Request timeout")
}
