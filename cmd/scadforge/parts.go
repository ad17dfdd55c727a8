package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"scadforge/internal/errors"
	"scadforge/internal/parts"
)

var partsCmd = &cobra.Command{
	Use:   "parts <script>",
	Short: "List the export parts of a script",
	Long: `Split a script along its "// @export" markers and list the resulting parts.

Examples:
  scadforge parts box.scad
  scadforge parts box.scad --format json`,
	Args: cobra.ExactArgs(1),
	RunE: runParts,
}

func init() {
	rootCmd.AddCommand(partsCmd)
}

// PartsResponseCLI is the output of the parts command
type PartsResponseCLI struct {
	Script   string    `json:"script"`
	Fallback bool      `json:"fallback"`
	Parts    []PartCLI `json:"parts"`
}

// PartCLI describes one part
type PartCLI struct {
	Index     int    `json:"index"`
	Name      string `json:"name"`
	Exported  bool   `json:"exported"`
	Color     string `json:"color,omitempty"`
	StartLine int    `json:"startLine"`
	EndLine   int    `json:"endLine"`
	Source    string `json:"source,omitempty"`
}

func runParts(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return errors.New(errors.MissingDependency, fmt.Sprintf("cannot read %s", args[0]), err)
	}

	found, err := parts.Identify(string(data))
	if err != nil {
		return err
	}

	return printResponse(convertParts(args[0], found, formatFlag != string(FormatHuman)))
}

func convertParts(script string, found map[string]*parts.Part, withSource bool) *PartsResponseCLI {
	resp := &PartsResponseCLI{
		Script:   script,
		Fallback: parts.IsFallback(found),
		Parts:    make([]PartCLI, 0, len(found)),
	}
	for _, p := range parts.Ordered(found) {
		pc := PartCLI{
			Index:     p.Index,
			Name:      p.Name,
			Exported:  p.Exported,
			Color:     p.Color,
			StartLine: p.StartLine,
			EndLine:   p.EndLine,
		}
		if withSource {
			pc.Source = p.OwnSourceCode
		}
		resp.Parts = append(resp.Parts, pc)
	}
	return resp
}
