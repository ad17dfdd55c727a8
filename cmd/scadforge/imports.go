package main

import (
	"github.com/spf13/cobra"

	"scadforge/internal/imports"
)

var importsCmd = &cobra.Command{
	Use:   "imports <script>",
	Short: "Show the transitive imports of a script",
	Long: `Collect every project file a script reaches through include, use and
import("*.stl"), and list the external imports it needs.

Examples:
  scadforge imports designs/box.scad
  scadforge imports designs/box.scad --format yaml`,
	Args: cobra.ExactArgs(1),
	RunE: runImports,
}

func init() {
	rootCmd.AddCommand(importsCmd)
}

// ImportsResponseCLI is the output of the imports command
type ImportsResponseCLI struct {
	Entry     string          `json:"entry"`
	Files     []ImportFileCLI `json:"files"`
	External  []ExternalCLI   `json:"external"`
	TotalSize int             `json:"totalSize"`
}

// ImportFileCLI is one collected project file
type ImportFileCLI struct {
	Path   string `json:"path"`
	Size   int    `json:"size"`
	Binary bool   `json:"binary,omitempty"`
}

// ExternalCLI is one external import
type ExternalCLI struct {
	Path    string `json:"path"`
	Library bool   `json:"library"`
}

func runImports(cmd *cobra.Command, args []string) error {
	a, err := newApp(args[0])
	if err != nil {
		return err
	}
	defer a.Close()

	entry, err := a.entry(args[0])
	if err != nil {
		return err
	}

	ctx, cancel := newContext()
	defer cancel()

	set, err := a.collector().Collect(ctx, entry)
	if err != nil {
		return err
	}
	return printResponse(convertImports(entry, set, a.resolver()))
}

func convertImports(entry string, set *imports.FileSet, resolver *imports.Resolver) *ImportsResponseCLI {
	resp := &ImportsResponseCLI{
		Entry:     entry,
		Files:     make([]ImportFileCLI, 0, len(set.Files)),
		External:  make([]ExternalCLI, 0, len(set.External)),
		TotalSize: set.Size(),
	}
	for _, p := range set.Paths() {
		f := set.Files[p]
		resp.Files = append(resp.Files, ImportFileCLI{Path: p, Size: len(f.Data), Binary: f.Binary})
	}
	for _, e := range set.ExternalPaths() {
		resp.External = append(resp.External, ExternalCLI{
			Path:    e,
			Library: resolver.Classify(e, "").Kind == imports.Library,
		})
	}
	return resp
}
