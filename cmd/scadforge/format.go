package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"gopkg.in/yaml.v3"
)

// OutputFormat represents the output format type
type OutputFormat string

const (
	FormatJSON  OutputFormat = "json"
	FormatHuman OutputFormat = "human"
	FormatYAML  OutputFormat = "yaml"
)

// FormatResponse formats a response according to the specified format
func FormatResponse(resp interface{}, format OutputFormat) (string, error) {
	switch format {
	case FormatJSON:
		return formatJSON(resp)
	case FormatYAML:
		return formatYAML(resp)
	case FormatHuman:
		return formatHuman(resp)
	default:
		return "", fmt.Errorf("unsupported format: %s", format)
	}
}

// formatJSON formats the response as JSON
func formatJSON(resp interface{}) (string, error) {
	data, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return string(data), nil
}

// formatYAML formats the response as YAML using the JSON field names.
// The JSON document is decoded into a node tree so key order survives.
func formatYAML(resp interface{}) (string, error) {
	data, err := json.Marshal(resp)
	if err != nil {
		return "", fmt.Errorf("failed to marshal JSON: %w", err)
	}
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return "", fmt.Errorf("failed to convert to YAML: %w", err)
	}
	blockStyle(&doc)

	out, err := yaml.Marshal(&doc)
	if err != nil {
		return "", fmt.Errorf("failed to marshal YAML: %w", err)
	}
	return strings.TrimRight(string(out), "\n"), nil
}

// blockStyle drops the flow and quoting styles inherited from JSON
func blockStyle(n *yaml.Node) {
	n.Style = 0
	for _, c := range n.Content {
		blockStyle(c)
	}
}

// formatHuman formats the response in human-readable format
func formatHuman(resp interface{}) (string, error) {
	switch v := resp.(type) {
	case *PartsResponseCLI:
		return formatPartsHuman(v)
	case *ImportsResponseCLI:
		return formatImportsHuman(v)
	case *RewriteResponseCLI:
		return formatRewriteHuman(v)
	case *RenderResponseCLI:
		return formatRenderHuman(v)
	case *CatalogResponseCLI:
		return formatCatalogHuman(v)
	case *HistoryResponseCLI:
		return formatHistoryHuman(v)
	case *CacheResponseCLI:
		return formatCacheHuman(v)
	case *DoctorResponseCLI:
		return formatDoctorHuman(v)
	default:
		// For unknown types, fall back to YAML
		return formatYAML(resp)
	}
}

func newTable() table.Writer {
	tbl := table.NewWriter()
	tbl.SetStyle(table.StyleLight)
	tbl.Style().Options.DrawBorder = false
	tbl.Style().Options.SeparateColumns = false
	return tbl
}

func header(title string) string {
	return title + "\n" + strings.Repeat("=", 60) + "\n\n"
}

var (
	okText   = color.New(color.FgGreen).SprintFunc()
	warnText = color.New(color.FgYellow).SprintFunc()
	failText = color.New(color.FgRed).SprintFunc()
	dimText  = color.New(color.Faint).SprintFunc()
)

// statusText colours a status word
func statusText(status string) string {
	switch status {
	case "ok", "completed", "rendered", "cached", "pass":
		return okText(status)
	case "partial", "skipped", "warn", "running":
		return warnText(status)
	case "failed", "fail":
		return failText(status)
	default:
		return status
	}
}

func formatPartsHuman(resp *PartsResponseCLI) (string, error) {
	var b strings.Builder
	b.WriteString(header("Parts of " + resp.Script))

	if resp.Fallback {
		b.WriteString(warnText("! no export markers; the whole script is one preview part") + "\n\n")
	}

	tbl := newTable()
	tbl.AppendHeader(table.Row{"#", "Name", "Exported", "Color", "Lines"})
	for _, p := range resp.Parts {
		lines := "all"
		if p.EndLine > 0 {
			lines = fmt.Sprintf("%d-%d", p.StartLine+1, p.EndLine)
		}
		exported := okText("yes")
		if !p.Exported {
			exported = dimText("no")
		}
		tbl.AppendRow(table.Row{p.Index + 1, p.Name, exported, p.Color, lines})
	}
	tbl.AppendFooter(table.Row{"", fmt.Sprintf("Total: %d parts", len(resp.Parts))})
	b.WriteString(tbl.Render())
	return b.String(), nil
}

func formatImportsHuman(resp *ImportsResponseCLI) (string, error) {
	var b strings.Builder
	b.WriteString(header("Imports of " + resp.Entry))

	tbl := newTable()
	tbl.AppendHeader(table.Row{"Project file", "Kind", "Size"})
	for _, f := range resp.Files {
		kind := "source"
		if f.Binary {
			kind = "mesh"
		}
		tbl.AppendRow(table.Row{f.Path, kind, formatBytes(int64(f.Size))})
	}
	tbl.AppendFooter(table.Row{fmt.Sprintf("Total: %d files", len(resp.Files)), "", formatBytes(int64(resp.TotalSize))})
	b.WriteString(tbl.Render())

	if len(resp.External) > 0 {
		b.WriteString("\n\nExternal imports:\n")
		for _, e := range resp.External {
			tag := ""
			if e.Library {
				tag = dimText(" (library)")
			}
			b.WriteString(fmt.Sprintf("  %s%s\n", e.Path, tag))
		}
	}
	return b.String(), nil
}

func formatRewriteHuman(resp *RewriteResponseCLI) (string, error) {
	if resp.Diff != "" || resp.Unchanged {
		if resp.Unchanged {
			return dimText("(no project imports to rewrite)"), nil
		}
		return colorDiff(resp.Diff), nil
	}
	return resp.Text, nil
}

func colorDiff(diff string) string {
	lines := strings.Split(strings.TrimRight(diff, "\n"), "\n")
	for i, l := range lines {
		switch {
		case strings.HasPrefix(l, "+"):
			lines[i] = okText(l)
		case strings.HasPrefix(l, "-"):
			lines[i] = failText(l)
		}
	}
	return strings.Join(lines, "\n")
}

func formatRenderHuman(resp *RenderResponseCLI) (string, error) {
	var b strings.Builder
	b.WriteString(header(fmt.Sprintf("Render %s (run %s)", resp.Script, shortID(resp.RunID))))

	if resp.Fallback {
		b.WriteString(warnText("! no export markers found; this looks like a library file") + "\n\n")
	}

	tbl := newTable()
	tbl.AppendHeader(table.Row{"Part", "Status", "Size", "Time", "Output"})
	for _, p := range resp.Parts {
		output := p.Location
		if p.Error != "" {
			output = p.ErrorCode + ": " + p.Error
		}
		size := ""
		if p.Size > 0 {
			size = formatBytes(int64(p.Size))
		}
		tbl.AppendRow(table.Row{p.Name, statusText(p.Status), size, formatDuration(p.DurationMs), output})
	}
	for _, name := range resp.Skipped {
		tbl.AppendRow(table.Row{name, statusText("skipped"), "", "", ""})
	}
	tbl.AppendFooter(table.Row{fmt.Sprintf("%d rendered", len(resp.Parts)-resp.Failed), fmt.Sprintf("%d failed", resp.Failed)})
	b.WriteString(tbl.Render())

	for _, p := range resp.Parts {
		for _, w := range p.Warnings {
			b.WriteString(fmt.Sprintf("\n%s %s: %s", warnText("!"), p.Name, w))
		}
	}
	if resp.Manifest != "" {
		b.WriteString(fmt.Sprintf("\n\nManifest: %s", resp.Manifest))
	}
	return b.String(), nil
}

func formatCatalogHuman(resp *CatalogResponseCLI) (string, error) {
	var b strings.Builder
	b.WriteString(header("Library catalog"))
	b.WriteString(fmt.Sprintf("Directory: %s\n", resp.Dir))
	b.WriteString(fmt.Sprintf("Prefix:    %s\n", resp.Prefix))
	if resp.Version != "" {
		b.WriteString(fmt.Sprintf("Version:   %s\n", resp.Version))
	}
	b.WriteString(fmt.Sprintf("Files:     %d\n", resp.Files))
	b.WriteString(fmt.Sprintf("Written:   %s", resp.Path))
	return b.String(), nil
}

func formatHistoryHuman(resp *HistoryResponseCLI) (string, error) {
	var b strings.Builder
	b.WriteString(header("Render history"))

	if resp.Pruned > 0 {
		b.WriteString(fmt.Sprintf("Pruned %d runs.\n", resp.Pruned))
	}
	if len(resp.Runs) == 0 {
		b.WriteString("No runs recorded.")
		return b.String(), nil
	}

	tbl := newTable()
	tbl.AppendHeader(table.Row{"Run", "Script", "Status", "Parts", "Failed", "Started"})
	for _, r := range resp.Runs {
		tbl.AppendRow(table.Row{shortID(r.ID), r.Script, statusText(r.Status), r.Parts, r.Failed, humanize.Time(r.StartedAt)})
	}
	b.WriteString(tbl.Render())

	if resp.Detail != nil {
		b.WriteString("\n\nParts:\n")
		dt := newTable()
		dt.AppendHeader(table.Row{"Part", "Status", "Size", "Location"})
		for _, p := range resp.Detail {
			status := "rendered"
			if p.Cached {
				status = "cached"
			}
			if p.ErrorCode != "" {
				status = "failed"
			}
			loc := p.Location
			if p.ErrorMessage != "" {
				loc = p.ErrorCode + ": " + p.ErrorMessage
			}
			dt.AppendRow(table.Row{p.Name, statusText(status), formatBytes(int64(p.Size)), loc})
		}
		b.WriteString(dt.Render())
	}
	return b.String(), nil
}

func formatCacheHuman(resp *CacheResponseCLI) (string, error) {
	var b strings.Builder
	b.WriteString(header("Render cache"))
	if resp.Action != "" {
		b.WriteString(fmt.Sprintf("%s: removed %d entries\n", resp.Action, resp.Removed))
	}
	if resp.Stats != nil {
		b.WriteString(fmt.Sprintf("Entries:     %d\n", resp.Stats.Entries))
		b.WriteString(fmt.Sprintf("Mesh size:   %s\n", formatBytes(resp.Stats.Size)))
		b.WriteString(fmt.Sprintf("Stored size: %s\n", formatBytes(resp.Stats.StoredSize)))
		b.WriteString(fmt.Sprintf("Hits:        %s", humanize.Comma(resp.Stats.Hits)))
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

func formatDoctorHuman(resp *DoctorResponseCLI) (string, error) {
	var b strings.Builder
	b.WriteString(header("scadforge doctor"))
	for _, c := range resp.Checks {
		b.WriteString(fmt.Sprintf("%-6s %s: %s\n", statusText(c.Status), c.Name, c.Message))
	}
	if resp.Healthy {
		b.WriteString("\n" + okText("All checks passed."))
	} else {
		b.WriteString("\n" + failText("Some checks failed."))
	}
	return b.String(), nil
}

// formatBytes formats a byte count with binary units
func formatBytes(bytes int64) string {
	if bytes < 0 {
		bytes = 0
	}
	return humanize.IBytes(uint64(bytes))
}

func formatDuration(ms int64) string {
	if ms <= 0 {
		return ""
	}
	return (time.Duration(ms) * time.Millisecond).String()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
