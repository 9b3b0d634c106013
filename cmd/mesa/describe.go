package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/aretw0/mesa"
	"github.com/aretw0/mesa/internal/presentation/tui"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var describeCmd = &cobra.Command{
	Use:   "describe <agent>",
	Short: "Show the capability card of an agent",
	Long:  `Prints the card returned by agent/authenticatedExtendedCard, rendered as markdown on a terminal.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		host := mesa.New()
		if err := agentArg(host, args[0]); err != nil {
			return err
		}
		instance, _ := cmd.Flags().GetString("instance")
		p, err := host.Profile(args[0], instance)
		if err != nil {
			return err
		}

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(p)
		}

		render := tui.NewRenderer(term.IsTerminal(int(os.Stdout.Fd())))
		out, err := render(tui.CardMarkdown(p))
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), out)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(describeCmd)
	describeCmd.Flags().String("instance", "default", "Instance id shown in the card")
	describeCmd.Flags().Bool("json", false, "Print the raw card as JSON")
}
