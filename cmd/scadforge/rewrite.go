package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
	"github.com/spf13/cobra"

	"scadforge/internal/errors"
	"scadforge/internal/parts"
)

var (
	rewritePart string
	rewriteDiff bool
)

var rewriteCmd = &cobra.Command{
	Use:   "rewrite <script>",
	Short: "Show a script with its project imports rewritten for the VM",
	Long: `Rewrite every project-relative and project-root import of a script into an
absolute path under the VM project root, exactly as a render would.

Examples:
  scadforge rewrite designs/box.scad
  scadforge rewrite designs/box.scad --part Lid --diff`,
	Args: cobra.ExactArgs(1),
	RunE: runRewrite,
}

func init() {
	rewriteCmd.Flags().StringVar(&rewritePart, "part", "", "Rewrite only this part's source")
	rewriteCmd.Flags().BoolVar(&rewriteDiff, "diff", false, "Show a line diff instead of the rewritten text")
	rootCmd.AddCommand(rewriteCmd)
}

// RewriteResponseCLI is the output of the rewrite command
type RewriteResponseCLI struct {
	Path      string `json:"path"`
	VMPath    string `json:"vmPath"`
	Part      string `json:"part,omitempty"`
	Text      string `json:"text,omitempty"`
	Diff      string `json:"diff,omitempty"`
	Unchanged bool   `json:"unchanged"`
}

func runRewrite(cmd *cobra.Command, args []string) error {
	a, err := newApp(args[0])
	if err != nil {
		return err
	}
	defer a.Close()

	entry, err := a.entry(args[0])
	if err != nil {
		return err
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return errors.New(errors.MissingDependency, fmt.Sprintf("cannot read %s", args[0]), err)
	}

	text := string(data)
	if rewritePart != "" {
		found, err := parts.Identify(text)
		if err != nil {
			return err
		}
		p, ok := found[rewritePart]
		if !ok {
			return fmt.Errorf("script has no part named %q", rewritePart)
		}
		text = p.OwnSourceCode
	}

	w := a.rewriter()
	rewritten := w.Rewrite(text, entry)

	resp := &RewriteResponseCLI{
		Path:      entry,
		VMPath:    w.ToVMPath(entry),
		Part:      rewritePart,
		Unchanged: rewritten == text,
	}
	if rewriteDiff {
		if !resp.Unchanged {
			resp.Diff = lineDiff(text, rewritten)
		}
	} else {
		resp.Text = rewritten
	}
	return printResponse(resp)
}

// lineDiff renders a line-level diff with "+", "-" and " " prefixes
func lineDiff(before, after string) string {
	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(before, after)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)

	var out strings.Builder
	for _, d := range diffs {
		prefix := " "
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			prefix = "+"
		case diffmatchpatch.DiffDelete:
			prefix = "-"
		}
		for _, line := range strings.Split(strings.TrimSuffix(d.Text, "\n"), "\n") {
			out.WriteString(prefix + line + "\n")
		}
	}
	return out.String()
}
