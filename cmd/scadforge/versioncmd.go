package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"scadforge/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show build information",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if OutputFormat(formatFlag) == FormatHuman {
			fmt.Println(version.Full())
			return nil
		}
		return printResponse(version.Get())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
