package main

import (
	"github.com/spf13/cobra"

	"scadforge/internal/version"
)

var (
	// projectFlag is the CLI --project flag value
	projectFlag string
	// formatFlag is the CLI --format flag value
	formatFlag string
	// logLevelFlag overrides logging.level from config
	logLevelFlag string
)

var rootCmd = &cobra.Command{
	Use:   "scadforge",
	Short: "scadforge - multi-part OpenSCAD rendering",
	Long: `scadforge splits OpenSCAD scripts into parts along their "// @export" markers,
collects each part's project imports, materializes them into an isolated filesystem
with the shared library, and renders one mesh per part.`,
	Version:       version.Info(),
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.SetVersionTemplate("scadforge version {{.Version}}\n")
	rootCmd.PersistentFlags().StringVarP(&projectFlag, "project", "C", "",
		"Project root (default: nearest directory holding .scadforge, else the working directory)")
	rootCmd.PersistentFlags().StringVar(&formatFlag, "format", string(FormatHuman),
		"Output format (json, human, yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "",
		"Log level: debug, info, warn, error (default from config)")
}
