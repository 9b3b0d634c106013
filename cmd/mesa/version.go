package main

import (
	"fmt"

	"github.com/aretw0/mesa"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of mesa",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "mesa version %s\n", mesa.Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
