// Package render turns a script into one mesh per exported part.
//
// Every part is rendered in its own freshly created VM filesystem: the
// part's import closure is collected, rewritten into the VM namespace and
// written out, the library and any other external files are mounted, and
// the engine is run against the part's text. One part's failure is recorded
// on that part only.
package render

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"scadforge/internal/engine"
	"scadforge/internal/errors"
	"scadforge/internal/export"
	"scadforge/internal/imports"
	"scadforge/internal/library"
	"scadforge/internal/logging"
	"scadforge/internal/parts"
	"scadforge/internal/paths"
	"scadforge/internal/storage"
	"scadforge/internal/vmfs"
)

// DefaultConcurrency bounds parts rendered at once
const DefaultConcurrency = 4

// DefaultOutputDir is the VM directory the engine writes meshes to
const DefaultOutputDir = "/out"

// meshFile is the engine output name inside each part's VM
const meshFile = "part.stl"

// Options configures an Orchestrator
type Options struct {
	Concurrency int

	// PreviewFallback renders the Full part of a script without markers
	PreviewFallback bool

	// CacheTTL bounds render cache entries; zero keeps them forever
	CacheTTL time.Duration

	// OutputDir is the VM directory for engine output
	OutputDir string

	// TempDir is the host directory VM directories are created in
	TempDir string

	// MaxFiles bounds one part's import closure
	MaxFiles int
}

// Orchestrator renders scripts part by part
type Orchestrator struct {
	source   imports.FileSource
	resolver *imports.Resolver
	rewriter *imports.Rewriter
	engine   engine.Engine
	parts    *parts.Cache
	logger   *logging.Logger
	opts     Options

	fetcher  library.Fetcher
	mounter  *library.Mounter
	cache    *storage.RenderCache
	runs     *storage.RunStore
	exporter *export.Exporter
	metrics  *Metrics
}

// NewOrchestrator creates an orchestrator reading project files from
// source. A nil rewriter uses the default VM layout.
func NewOrchestrator(source imports.FileSource, rewriter *imports.Rewriter, eng engine.Engine, logger *logging.Logger, opts Options) (*Orchestrator, error) {
	if opts.Concurrency < 1 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.OutputDir == "" {
		opts.OutputDir = DefaultOutputDir
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	if rewriter == nil {
		rewriter = imports.DefaultRewriter()
	}

	pc, err := parts.NewCache(parts.DefaultCacheSize)
	if err != nil {
		return nil, err
	}

	return &Orchestrator{
		source:   source,
		resolver: rewriter.Resolver(),
		rewriter: rewriter,
		engine:   eng,
		parts:    pc,
		logger:   logger,
		opts:     opts,
	}, nil
}

// WithLibrary sets how external files are fetched and, when mounter is
// non-nil, mounts the whole library for parts that import from it
func (o *Orchestrator) WithLibrary(fetcher library.Fetcher, mounter *library.Mounter) *Orchestrator {
	o.fetcher = fetcher
	o.mounter = mounter
	return o
}

// WithCache enables the render cache
func (o *Orchestrator) WithCache(cache *storage.RenderCache) *Orchestrator {
	o.cache = cache
	return o
}

// WithRunStore records every run
func (o *Orchestrator) WithRunStore(runs *storage.RunStore) *Orchestrator {
	o.runs = runs
	return o
}

// WithExporter exports the meshes of every run
func (o *Orchestrator) WithExporter(exporter *export.Exporter) *Orchestrator {
	o.exporter = exporter
	return o
}

// WithMetrics reports part outcomes to m
func (o *Orchestrator) WithMetrics(m *Metrics) *Orchestrator {
	o.metrics = m
	return o
}

// RenderScript reads entry from the project and renders it
func (o *Orchestrator) RenderScript(ctx context.Context, entry string) (*Report, error) {
	entry = paths.Normalize(entry)
	text, err := o.source.ReadTextFile(ctx, entry)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, errors.New(errors.MissingDependency, fmt.Sprintf("cannot read %s", entry), err).
			WithDetails(map[string]interface{}{"path": entry})
	}
	return o.RenderText(ctx, entry, text)
}

// RenderText renders text standing in for the project file entry. It fails
// as a whole only when the script cannot be partitioned or the run cannot
// be exported; part failures are reported on each PartResult.
func (o *Orchestrator) RenderText(ctx context.Context, entry, text string) (*Report, error) {
	entry = paths.Normalize(entry)
	report := &Report{Script: entry}

	var run *storage.Run
	if o.runs != nil {
		r, err := o.runs.Begin(entry)
		if err != nil {
			o.logger.Warn("Failed to record run", map[string]interface{}{"error": err.Error()})
		} else {
			run = r
			report.RunID = r.ID
		}
	}
	if report.RunID == "" {
		report.RunID = uuid.New().String()
	}

	found, err := o.parts.Identify(text)
	if err != nil {
		o.finish(run, report, err)
		return nil, err
	}

	selected := o.selectParts(entry, found, report)
	report.Parts = o.renderAll(ctx, entry, selected)

	var runErr error
	if o.exporter != nil {
		runErr = o.export(ctx, report)
	}
	o.finish(run, report, runErr)

	if runErr != nil {
		return report, runErr
	}
	return report, nil
}

func (o *Orchestrator) selectParts(entry string, found map[string]*parts.Part, report *Report) []*parts.Part {
	if parts.IsFallback(found) {
		report.Fallback = true
		o.metrics.fallback()
		o.logger.Warn("Script has no export markers", map[string]interface{}{
			"script":  entry,
			"preview": o.opts.PreviewFallback,
		})
		if !o.opts.PreviewFallback {
			report.Skipped = []string{parts.FullPartName}
			return nil
		}
		return []*parts.Part{found[parts.FullPartName]}
	}

	var selected []*parts.Part
	for _, p := range parts.Ordered(found) {
		if !p.Exported {
			report.Skipped = append(report.Skipped, p.Name)
			continue
		}
		selected = append(selected, p)
	}
	return selected
}

// renderAll renders every part with bounded concurrency, preserving order
func (o *Orchestrator) renderAll(ctx context.Context, entry string, selected []*parts.Part) []*PartResult {
	results := make([]*PartResult, len(selected))
	sem := semaphore.NewWeighted(int64(o.opts.Concurrency))

	var wg sync.WaitGroup
	for i, p := range selected {
		if err := sem.Acquire(ctx, 1); err != nil {
			results[i] = o.newResult(p)
			results[i].Err = err
			continue
		}
		wg.Add(1)
		go func(i int, p *parts.Part) {
			defer wg.Done()
			defer sem.Release(1)
			results[i] = o.renderPart(ctx, entry, p)
		}(i, p)
	}
	wg.Wait()

	for _, r := range results {
		o.metrics.observe(r)
	}
	return results
}

func (o *Orchestrator) newResult(p *parts.Part) *PartResult {
	return &PartResult{Name: p.Name, Color: p.Color, Exported: p.Exported}
}

func (o *Orchestrator) renderPart(ctx context.Context, entry string, p *parts.Part) *PartResult {
	result := o.newResult(p)
	start := time.Now()
	defer func() { result.Duration = time.Since(start) }()

	log := o.logger.With(map[string]interface{}{"part": p.Name, "script": entry})

	mesh, cached, warnings, err := o.produce(ctx, entry, p)
	if err != nil {
		result.Err = err
		log.Error("Part failed", map[string]interface{}{
			"code":  string(errors.CodeOf(err)),
			"error": err.Error(),
		})
		return result
	}

	result.Mesh = mesh
	result.Cached = cached
	result.Warnings = warnings
	log.Debug("Part rendered", map[string]interface{}{
		"cached": cached,
		"bytes":  len(mesh),
	})
	return result
}

func (o *Orchestrator) produce(ctx context.Context, entry string, p *parts.Part) ([]byte, bool, []string, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, nil, err
	}
	collector := imports.NewCollector(o.source, o.resolver, o.logger).WithMaxFiles(o.opts.MaxFiles)
	set, err := collector.CollectText(ctx, entry, p.OwnSourceCode)
	if err != nil {
		return nil, false, nil, err
	}

	key := CacheKey(set, o.engine.Identity(), o.rewriter.Root(), o.opts.OutputDir)
	if o.cache != nil {
		mesh, ok, err := o.cache.Get(key)
		if err != nil {
			o.logger.Warn("Render cache read failed", map[string]interface{}{"error": err.Error()})
		} else if ok {
			return mesh, true, nil, nil
		}
	}

	fs, err := vmfs.NewDirFS(o.opts.TempDir)
	if err != nil {
		return nil, false, nil, errors.New(errors.InternalError, "failed to create VM filesystem", err)
	}
	defer fs.Close()

	if err := o.materialize(ctx, fs, set); err != nil {
		return nil, false, nil, err
	}
	if err := fs.Mkdir(o.opts.OutputDir); err != nil {
		return nil, false, nil, errors.New(errors.InternalError, "failed to create output directory", err)
	}

	res, err := o.engine.Render(ctx, engine.Job{
		FS:     fs,
		Input:  o.rewriter.ToVMPath(entry),
		Output: paths.NormalizeAbs(o.opts.OutputDir, meshFile),
	})
	if err != nil {
		return nil, false, nil, err
	}

	if o.cache != nil {
		if err := o.cache.Put(key, res.Mesh, o.opts.CacheTTL); err != nil {
			o.logger.Warn("Render cache write failed", map[string]interface{}{"error": err.Error()})
		}
	}
	return res.Mesh, false, res.Warnings, nil
}

// materialize writes the rewritten project files, the library and every
// other external file into fs
func (o *Orchestrator) materialize(ctx context.Context, fs vmfs.FS, set *imports.FileSet) error {
	for path, data := range o.rewriter.RewriteFileSet(set) {
		if err := vmfs.WriteAll(fs, path, data); err != nil {
			return errors.New(errors.InternalError, fmt.Sprintf("failed to write %s", path), err)
		}
	}

	var needLibrary bool
	var others []string
	for _, ext := range set.ExternalPaths() {
		if o.mounter != nil && o.resolver.Classify(ext, "").Kind == imports.Library {
			needLibrary = true
			continue
		}
		others = append(others, ext)
	}

	if needLibrary {
		if _, err := o.mounter.Mount(ctx, fs); err != nil {
			return err
		}
	}

	for _, ext := range others {
		if o.fetcher == nil {
			return errors.New(errors.MissingExternal, fmt.Sprintf("no fetcher configured for %s", ext), nil).
				WithDetails(map[string]interface{}{"path": ext})
		}
		data, err := o.fetcher.Fetch(ctx, ext)
		if err != nil {
			return err
		}
		if err := vmfs.WriteAll(fs, ext, data); err != nil {
			return errors.New(errors.InternalError, fmt.Sprintf("failed to write %s", ext), err)
		}
	}
	return nil
}

func (o *Orchestrator) export(ctx context.Context, report *Report) error {
	meshes := report.Meshes()
	if len(meshes) == 0 {
		return nil
	}

	manifest, err := o.exporter.Export(ctx, report.RunID, report.Script, meshes)
	if err != nil {
		return err
	}
	report.Manifest = manifest

	locations := make(map[string]string, len(manifest.Parts))
	for _, mp := range manifest.Parts {
		locations[mp.Name] = mp.Location
	}
	for _, p := range report.Parts {
		p.Location = locations[p.Name]
	}
	return nil
}

func (o *Orchestrator) finish(run *storage.Run, report *Report, runErr error) {
	if run == nil {
		return
	}
	if err := o.runs.Finish(run, report.records(), runErr); err != nil {
		o.logger.Warn("Failed to record run outcome", map[string]interface{}{
			"runId": run.ID,
			"error": err.Error(),
		})
	}
}
