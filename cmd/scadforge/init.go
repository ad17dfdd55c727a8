package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"scadforge/internal/config"
	"scadforge/internal/errors"
	"scadforge/internal/paths"
)

var (
	initForce bool
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a scadforge project",
	Long:  "Creates a .scadforge/ directory with default configuration in the project root",
	Args:  cobra.NoArgs,
	RunE:  runInit,
}

func init() {
	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "Overwrite an existing configuration")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	root := projectFlag
	if root == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return errors.New(errors.InternalError, "failed to get current directory", err)
		}
		root = cwd
	}

	configPath := filepath.Join(paths.DataDir(root), "config.json")
	if _, err := os.Stat(configPath); err == nil && !initForce {
		// Already initialized is success
		fmt.Println("scadforge already initialized.")
		fmt.Printf("Configuration at: %s\n", configPath)
		fmt.Println("\nRun 'scadforge init --force' to overwrite it with defaults.")
		return nil
	}

	cfg := config.DefaultConfig()
	if err := cfg.Save(root); err != nil {
		return errors.New(errors.InternalError, "failed to write config file", err)
	}

	logger := newLogger(cfg.Logging)
	logger.Info("scadforge initialized", map[string]interface{}{
		"config_path": configPath,
	})

	fmt.Println("scadforge initialized successfully!")
	fmt.Printf("Configuration written to: %s\n", configPath)
	fmt.Println("\nNext steps:")
	fmt.Println("  1. Point library.dir or library.baseURL at your shared library")
	fmt.Println("  2. Run 'scadforge doctor' to check your setup")
	fmt.Println("  3. Run 'scadforge render <script>'")
	return nil
}
