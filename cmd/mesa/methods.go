package main

import (
	"strings"

	"github.com/aretw0/mesa"
	"github.com/aretw0/mesa/pkg/schema"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var methodsCmd = &cobra.Command{
	Use:   "methods [agent]",
	Short: "List the methods every agent answers",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		host := mesa.New()

		names := host.Agents()
		if len(args) == 1 {
			if err := agentArg(host, args[0]); err != nil {
				return err
			}
			names = args[:1]
		}

		tw := table.NewWriter()
		tw.SetOutputMirror(cmd.OutOrStdout())
		tw.AppendHeader(table.Row{"Agent", "Method", "Params", "Description"})
		for _, name := range names {
			p, err := host.Profile(name, "")
			if err != nil {
				return err
			}
			for _, c := range p.Capabilities {
				tw.AppendRow(table.Row{name, c.Method, params(c.Params), c.Description})
			}
			tw.AppendSeparator()
		}
		tw.Render()
		return nil
	},
}

func params(s schema.Schema) string {
	parts := make([]string, 0, len(s))
	for _, f := range s.Fields() {
		parts = append(parts, f+" "+s[f].Name())
	}
	return strings.Join(parts, "\n")
}

func init() {
	rootCmd.AddCommand(methodsCmd)
}
