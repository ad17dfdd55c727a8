package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"scadforge/internal/config"
	"scadforge/internal/library"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog [libdir]",
	Short: "Build the library catalog",
	Long: `Walk a library directory and write catalog.json listing every .scad file,
so the library can be mounted from a plain file server.

The directory defaults to library.dir from the project configuration.

Examples:
  scadforge catalog
  scadforge catalog ./SFLibs`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCatalog,
}

func init() {
	rootCmd.AddCommand(catalogCmd)
}

// CatalogResponseCLI is the output of the catalog command
type CatalogResponseCLI struct {
	Dir     string `json:"dir"`
	Path    string `json:"path"`
	Prefix  string `json:"prefix"`
	Version string `json:"version,omitempty"`
	Files   int    `json:"files"`
}

func runCatalog(cmd *cobra.Command, args []string) error {
	a, err := newApp("")
	if err != nil {
		return err
	}
	defer a.Close()

	dir := config.ResolvePath(a.root, a.cfg.Library.Dir)
	if len(args) == 1 {
		dir, err = filepath.Abs(args[0])
		if err != nil {
			return err
		}
	}
	if dir == "" {
		return fmt.Errorf("no library directory given and library.dir is not set")
	}

	c, err := library.BuildCatalog(dir)
	if err != nil {
		return err
	}
	path, err := library.WriteCatalog(dir, c)
	if err != nil {
		return err
	}

	a.logger.Info("Wrote library catalog", map[string]interface{}{
		"path":  path,
		"files": len(c.Files()),
	})

	return printResponse(&CatalogResponseCLI{
		Dir:     dir,
		Path:    path,
		Prefix:  c.Prefix(a.cfg.Library.Prefix),
		Version: c.Descriptor.Version,
		Files:   len(c.Files()),
	})
}
