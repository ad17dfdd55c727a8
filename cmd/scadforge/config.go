package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"scadforge/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage scadforge configuration",
	Long:  "View scadforge configuration stored in .scadforge/config.json",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Long: `Display the configuration after defaults, config.json, .env and
SCADFORGE_* environment variables are applied. S3 credentials are masked.

Examples:
  scadforge config show
  scadforge config show --format json`,
	Args: cobra.NoArgs,
	RunE: runConfigShow,
}

var configEnvCmd = &cobra.Command{
	Use:   "env",
	Short: "List SCADFORGE_* variables set in the environment",
	Args:  cobra.NoArgs,
	Run:   runConfigEnv,
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configEnvCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	a, err := newApp("")
	if err != nil {
		return err
	}
	defer a.Close()

	cfg := *a.cfg
	cfg.ProjectRoot = a.root
	cfg.Export.S3.AccessKey = mask(cfg.Export.S3.AccessKey)
	cfg.Export.S3.SecretKey = mask(cfg.Export.S3.SecretKey)
	return printResponse(&cfg)
}

func runConfigEnv(cmd *cobra.Command, args []string) {
	prefix := config.EnvPrefix + "_"
	found := false
	for _, kv := range os.Environ() {
		if !strings.HasPrefix(kv, prefix) {
			continue
		}
		name, value, _ := strings.Cut(kv, "=")
		if strings.Contains(name, "KEY") {
			value = mask(value)
		}
		fmt.Printf("%s=%s\n", name, value)
		found = true
	}
	if !found {
		fmt.Printf("No %s* variables set.\n", prefix)
	}
}

func mask(secret string) string {
	if secret == "" {
		return ""
	}
	return "****"
}
