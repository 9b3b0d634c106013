package main

import (
	"fmt"

	"github.com/aretw0/mesa"
	"github.com/spf13/cobra"
)

// graphCmd represents the graph command
var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Export the agent interaction graph",
	Long: `Outputs a Mermaid flowchart of the agents, the update events they publish and the
synchronous calls between them. With --orders it outputs the order status board instead.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		orders, _ := cmd.Flags().GetBool("orders")
		current, _ := cmd.Flags().GetString("current")

		if orders {
			fmt.Fprint(cmd.OutOrStdout(), mesa.OrderFlow(current))
			return nil
		}
		fmt.Fprint(cmd.OutOrStdout(), mesa.New().Topology())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
	graphCmd.Flags().Bool("orders", false, "Export the order status state diagram")
	graphCmd.Flags().String("current", "", "Highlight a status in the order diagram")
}
