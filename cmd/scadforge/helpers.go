package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/fatih/color"

	"scadforge/internal/config"
	"scadforge/internal/engine"
	"scadforge/internal/errors"
	"scadforge/internal/export"
	"scadforge/internal/imports"
	"scadforge/internal/library"
	"scadforge/internal/logging"
	"scadforge/internal/paths"
	"scadforge/internal/project"
	"scadforge/internal/storage"
)

// app bundles what every command needs for one project
type app struct {
	root   string
	cfg    *config.Config
	logger *logging.Logger
	db     *storage.DB
}

// newApp resolves the project root from --project, else from start
// (a script path or the working directory), and loads its configuration.
func newApp(start string) (*app, error) {
	root, err := resolveProjectRoot(start)
	if err != nil {
		return nil, err
	}

	cfg, err := config.LoadConfig(root)
	if err != nil {
		return nil, errors.New(errors.ConfigInvalid, "failed to load configuration", err)
	}
	if logLevelFlag != "" {
		cfg.Logging.Level = logLevelFlag
	}
	if err := cfg.Validate(); err != nil {
		details := map[string]interface{}{}
		if ce, ok := err.(*config.ConfigError); ok {
			details["field"] = ce.Field
		}
		return nil, errors.New(errors.ConfigInvalid, err.Error(), err).WithDetails(details)
	}

	return &app{
		root:   root,
		cfg:    cfg,
		logger: newLogger(cfg.Logging),
	}, nil
}

func resolveProjectRoot(start string) (string, error) {
	if projectFlag != "" {
		return filepath.Abs(projectFlag)
	}
	if start == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return "", errors.New(errors.InternalError, "failed to get current directory", err)
		}
		start = cwd
	}
	root, _ := project.FindRoot(start)
	return root, nil
}

// newLogger creates a stderr logger from the logging section
func newLogger(cfg config.LoggingConfig) *logging.Logger {
	format := logging.HumanFormat
	if cfg.Format == "json" {
		format = logging.JSONFormat
	}
	return logging.NewLogger(logging.Config{
		Format: format,
		Level:  logging.ParseLevel(cfg.Level),
		Output: os.Stderr,
		Color:  !color.NoColor,
	})
}

// newContext creates a context cancelled on interrupt
func newContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt)
}

// entry converts a script argument into a project-relative path
func (a *app) entry(script string) (string, error) {
	rel, err := project.EntryPath(a.root, script)
	if err != nil {
		return "", errors.New(errors.MissingDependency,
			fmt.Sprintf("%s is not inside project %s", script, a.root), err)
	}
	return rel, nil
}

func (a *app) source() *project.DirSource {
	return project.NewDirSource(a.root)
}

func (a *app) resolver() *imports.Resolver {
	return imports.NewResolver(a.cfg.Library.Prefix)
}

func (a *app) rewriter() *imports.Rewriter {
	return imports.NewRewriter(a.cfg.VM.ProjectRoot, a.resolver())
}

func (a *app) collector() *imports.Collector {
	return imports.NewCollector(a.source(), a.resolver(), a.logger).WithMaxFiles(a.cfg.ImportScan.MaxFiles)
}

func (a *app) engine() *engine.CLI {
	return engine.NewCLI(engine.Options{
		Command: a.cfg.Engine.Command,
		Timeout: a.cfg.EngineTimeout(),
		Rebase:  a.cfg.Engine.Rebase,
	}, nil, a.logger)
}

// libraryDir returns the host library directory, or "" when not configured or absent
func (a *app) libraryDir() string {
	dir := config.ResolvePath(a.root, a.cfg.Library.Dir)
	if dir == "" {
		return ""
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return ""
	}
	return dir
}

// fetcher chains the library directory and the HTTP base URL behind an LRU
func (a *app) fetcher() (library.Fetcher, error) {
	var chain library.Chain
	if dir := a.libraryDir(); dir != "" {
		chain = append(chain, library.NewDirFetcher(a.cfg.Library.Prefix, dir))
	}
	if a.cfg.Library.BaseURL != "" {
		chain = append(chain, library.NewHTTPFetcher(a.cfg.Library.BaseURL, nil))
	}
	if len(chain) == 0 {
		return nil, nil
	}
	cached, err := library.NewCachingFetcher(chain, a.cfg.Library.CacheEntries, a.logger)
	if err != nil {
		return nil, err
	}
	return cached, nil
}

// catalog loads the library catalog: catalog.json through the fetcher,
// else a walk of the library directory. Returns nil when neither exists.
func (a *app) catalog(ctx context.Context, fetcher library.Fetcher) *library.Catalog {
	if fetcher != nil {
		data, err := fetcher.Fetch(ctx, paths.NormalizeAbs(a.cfg.Library.Prefix, library.CatalogFileName))
		if err == nil {
			c, err := library.ParseCatalog(a.libraryDir(), data)
			if err == nil {
				return c
			}
			a.logger.Warn("Ignoring malformed library catalog", map[string]interface{}{"error": err.Error()})
		}
	}
	if dir := a.libraryDir(); dir != "" {
		c, err := library.BuildCatalog(dir)
		if err == nil {
			return c
		}
		a.logger.Warn("Failed to scan library directory", map[string]interface{}{
			"dir":   dir,
			"error": err.Error(),
		})
	}
	return nil
}

func (a *app) openDB() (*storage.DB, error) {
	if a.db != nil {
		return a.db, nil
	}
	db, err := storage.Open(a.root, a.logger)
	if err != nil {
		return nil, errors.New(errors.StorageFailed, "failed to open database", err)
	}
	a.db = db
	return db, nil
}

// sink returns the S3 sink when enabled, else a directory sink (dirOverride wins)
func (a *app) sink(dirOverride string) (export.Sink, error) {
	if s3 := a.cfg.Export.S3; s3.Enabled && dirOverride == "" {
		return export.NewS3Sink(export.S3Config{
			Endpoint:  s3.Endpoint,
			Region:    s3.Region,
			AccessKey: s3.AccessKey,
			SecretKey: s3.SecretKey,
			Bucket:    s3.Bucket,
			Prefix:    s3.Prefix,
			UseSSL:    s3.UseSSL,
		}, a.logger)
	}
	dir := dirOverride
	if dir == "" {
		dir = config.ResolvePath(a.root, a.cfg.Export.Dir)
	}
	return export.NewDirSink(dir, a.cfg.Export.PerRun, a.logger), nil
}

func (a *app) Close() {
	if a.db != nil {
		_ = a.db.Close()
	}
}

// printResponse formats resp with --format and writes it to stdout
func printResponse(resp interface{}) error {
	out, err := FormatResponse(resp, OutputFormat(formatFlag))
	if err != nil {
		return err
	}
	fmt.Println(out)
	return nil
}
