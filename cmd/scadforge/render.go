package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"scadforge/internal/export"
	"scadforge/internal/library"
	"scadforge/internal/render"
	"scadforge/internal/storage"
	"scadforge/internal/watcher"
)

var (
	renderNoCache     bool
	renderNoExport    bool
	renderOutDir      string
	renderConcurrency int
	renderPreview     bool
	renderMetricsFile string
	renderWatch       bool
)

var renderCmd = &cobra.Command{
	Use:   "render <script>",
	Short: "Render every exported part of a script",
	Long: `Render each exported part of a script to a mesh in its own isolated
filesystem and export the meshes with a manifest.

Meshes go to export.dir, or to S3 when export.s3.enabled is set.

Examples:
  scadforge render designs/box.scad
  scadforge render designs/box.scad --out ./stl --no-cache
  scadforge render lib/gears.scad --preview
  scadforge render designs/box.scad --watch`,
	Args: cobra.ExactArgs(1),
	RunE: runRender,
}

func init() {
	renderCmd.Flags().BoolVar(&renderNoCache, "no-cache", false, "Bypass the render cache")
	renderCmd.Flags().BoolVar(&renderNoExport, "no-export", false, "Render without exporting meshes")
	renderCmd.Flags().StringVarP(&renderOutDir, "out", "o", "", "Export to this directory instead of the configured sink")
	renderCmd.Flags().IntVarP(&renderConcurrency, "concurrency", "j", 0, "Parts rendered at once (default from config)")
	renderCmd.Flags().BoolVar(&renderPreview, "preview", false, "Render scripts without export markers as a single part")
	renderCmd.Flags().StringVar(&renderMetricsFile, "metrics-file", "", "Write Prometheus metrics for this run to a file")
	renderCmd.Flags().BoolVarP(&renderWatch, "watch", "w", false, "Re-render whenever the script or one of its imports changes")
	rootCmd.AddCommand(renderCmd)
}

// RenderResponseCLI is the output of the render command
type RenderResponseCLI struct {
	RunID    string          `json:"runId"`
	Script   string          `json:"script"`
	Fallback bool            `json:"fallback"`
	Parts    []RenderPartCLI `json:"parts"`
	Skipped  []string        `json:"skipped,omitempty"`
	Failed   int             `json:"failed"`
	Manifest string          `json:"manifest,omitempty"`
}

// RenderPartCLI is one rendered part
type RenderPartCLI struct {
	Name       string   `json:"name"`
	Status     string   `json:"status"`
	Color      string   `json:"color,omitempty"`
	Size       int      `json:"size"`
	DurationMs int64    `json:"durationMs"`
	Location   string   `json:"location,omitempty"`
	ErrorCode  string   `json:"errorCode,omitempty"`
	Error      string   `json:"error,omitempty"`
	Warnings   []string `json:"warnings,omitempty"`
}

func runRender(cmd *cobra.Command, args []string) error {
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

	opts := render.Options{
		Concurrency:     a.cfg.Render.Concurrency,
		PreviewFallback: a.cfg.Render.PreviewFallback || renderPreview,
		CacheTTL:        a.cfg.CacheTTL(),
		OutputDir:       a.cfg.VM.OutputDir,
		TempDir:         a.cfg.VM.TempDir,
		MaxFiles:        a.cfg.ImportScan.MaxFiles,
	}
	if renderConcurrency > 0 {
		opts.Concurrency = renderConcurrency
	}

	orch, err := render.NewOrchestrator(a.source(), a.rewriter(), a.engine(), a.logger, opts)
	if err != nil {
		return err
	}

	fetcher, err := a.fetcher()
	if err != nil {
		return err
	}
	if fetcher != nil {
		if catalog := a.catalog(ctx, fetcher); catalog != nil {
			orch.WithLibrary(fetcher, library.NewMounter(fetcher, catalog, a.cfg.Library.Prefix, a.logger))
		} else {
			orch.WithLibrary(fetcher, nil)
		}
	}

	db, err := a.openDB()
	if err != nil {
		return err
	}
	orch.WithRunStore(storage.NewRunStore(db))
	if a.cfg.Render.Cache && !renderNoCache {
		orch.WithCache(storage.NewRenderCache(db))
	}

	if !renderNoExport {
		sink, err := a.sink(renderOutDir)
		if err != nil {
			return err
		}
		orch.WithExporter(export.NewExporter(sink, a.logger))
	}

	var metrics *render.Metrics
	if renderMetricsFile != "" {
		metrics = render.NewMetrics()
		orch.WithMetrics(metrics)
	}

	if renderWatch {
		return watchAndRender(ctx, a, orch, metrics, entry)
	}
	return renderOnce(ctx, a, orch, metrics, entry)
}

func renderOnce(ctx context.Context, a *app, orch *render.Orchestrator, metrics *render.Metrics, entry string) error {
	report, renderErr := orch.RenderScript(ctx, entry)

	if metrics != nil {
		if err := metrics.WriteFile(renderMetricsFile); err != nil {
			a.logger.Warn("Failed to write metrics", map[string]interface{}{"error": err.Error()})
		}
	}
	if report == nil {
		return renderErr
	}

	if err := printResponse(convertReport(report)); err != nil {
		return err
	}
	if renderErr != nil {
		return renderErr
	}
	if failed := len(report.Failed()); failed > 0 {
		return fmt.Errorf("%d of %d parts failed", failed, len(report.Parts))
	}
	return nil
}

// watchAndRender renders entry, then again after every change to a file it
// imports, until interrupted
func watchAndRender(ctx context.Context, a *app, orch *render.Orchestrator, metrics *render.Metrics, entry string) error {
	changed := make(chan struct{}, 1)
	w := watcher.New(a.root, watcher.Config{
		PollInterval: time.Duration(a.cfg.Watch.PollIntervalMs) * time.Millisecond,
		Debounce:     time.Duration(a.cfg.Watch.DebounceMs) * time.Millisecond,
	}, a.logger, func(events []watcher.Event) {
		for _, ev := range events {
			a.logger.Info("Changed", map[string]interface{}{"path": ev.Path, "event": ev.Type.String()})
		}
		select {
		case changed <- struct{}{}:
		default:
		}
	})
	w.SetFiles([]string{entry})
	go func() { _ = w.Run(ctx) }()

	for {
		if err := renderOnce(ctx, a, orch, metrics, entry); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			a.logger.Warn("Render failed", map[string]interface{}{"error": err.Error()})
		}
		w.SetFiles(watchedFiles(ctx, a, entry))

		select {
		case <-ctx.Done():
			return nil
		case <-changed:
		}
	}
}

// watchedFiles lists the project files entry depends on; the entry alone
// when its imports cannot be collected
func watchedFiles(ctx context.Context, a *app, entry string) []string {
	set, err := a.collector().Collect(ctx, entry)
	if err != nil {
		return []string{entry}
	}
	return append(set.Paths(), entry)
}

func convertReport(report *render.Report) *RenderResponseCLI {
	resp := &RenderResponseCLI{
		RunID:    report.RunID,
		Script:   report.Script,
		Fallback: report.Fallback,
		Parts:    make([]RenderPartCLI, 0, len(report.Parts)),
		Skipped:  report.Skipped,
		Failed:   len(report.Failed()),
	}
	for _, p := range report.Parts {
		pc := RenderPartCLI{
			Name:       p.Name,
			Status:     "rendered",
			Color:      p.Color,
			Size:       len(p.Mesh),
			DurationMs: p.Duration.Milliseconds(),
			Location:   p.Location,
			Warnings:   p.Warnings,
		}
		if p.Cached {
			pc.Status = "cached"
		}
		if p.Failed() {
			pc.Status = "failed"
			pc.ErrorCode = string(p.ErrorCode())
			pc.Error = p.Err.Error()
		}
		resp.Parts = append(resp.Parts, pc)
	}
	if report.Manifest != nil {
		resp.Manifest = report.Manifest.Location
	}
	return resp
}
