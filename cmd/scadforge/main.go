package main

import (
	"os"

	"github.com/fatih/color"

	"scadforge/internal/errors"
	"scadforge/internal/logging"
)

func main() {
	logger := logging.NewLogger(logging.Config{
		Format: logging.HumanFormat,
		Level:  logging.InfoLevel,
		Output: os.Stderr,
		Color:  !color.NoColor,
	})

	if err := rootCmd.Execute(); err != nil {
		fields := map[string]interface{}{"error": err.Error()}
		if code := errors.CodeOf(err); code != "" {
			fields["code"] = string(code)
		}
		logger.Error("Command execution failed", fields)
		os.Exit(1)
	}
}
