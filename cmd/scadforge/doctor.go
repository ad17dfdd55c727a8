package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"scadforge/internal/config"
	"scadforge/internal/paths"
	"scadforge/internal/storage"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Diagnose scadforge setup issues",
	Long: `Check the configuration, the geometry engine, the shared library and the
project database. Exits non-zero when a check fails.`,
	Args: cobra.NoArgs,
	RunE: runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

// DoctorResponseCLI is the output of the doctor command
type DoctorResponseCLI struct {
	Healthy bool             `json:"healthy"`
	Checks  []DoctorCheckCLI `json:"checks"`
}

// DoctorCheckCLI is one diagnostic
type DoctorCheckCLI struct {
	Name    string `json:"name"`
	Status  string `json:"status"` // pass, warn, fail
	Message string `json:"message"`
}

func (r *DoctorResponseCLI) add(name, status, format string, args ...interface{}) {
	r.Checks = append(r.Checks, DoctorCheckCLI{Name: name, Status: status, Message: fmt.Sprintf(format, args...)})
	if status == "fail" {
		r.Healthy = false
	}
}

func runDoctor(cmd *cobra.Command, args []string) error {
	start := time.Now()
	resp := &DoctorResponseCLI{Healthy: true}

	a, err := newApp("")
	if err != nil {
		resp.add("config", "fail", "%v", err)
		if perr := printResponse(resp); perr != nil {
			return perr
		}
		return err
	}
	defer a.Close()

	if _, err := os.Stat(paths.DataDir(a.root)); err != nil {
		resp.add("config", "warn", "no %s directory in %s; using defaults (run 'scadforge init')", paths.DataDirName, a.root)
	} else {
		resp.add("config", "pass", "project root %s", a.root)
	}

	if bin, ok := a.engine().Available(); ok {
		resp.add("engine", "pass", "found %s", bin)
	} else {
		resp.add("engine", "fail", "%q not found on PATH; set engine.command", a.cfg.Engine.Command[0])
	}

	ctx, cancel := newContext()
	defer cancel()
	fetcher, err := a.fetcher()
	switch {
	case err != nil:
		resp.add("library", "fail", "%v", err)
	case fetcher == nil:
		resp.add("library", "warn", "neither library.dir nor library.baseURL is usable; %s imports will fail", a.cfg.Library.Prefix)
	default:
		if c := a.catalog(ctx, fetcher); c != nil {
			resp.add("library", "pass", "%d files under %s", len(c.Files()), c.Prefix(a.cfg.Library.Prefix))
		} else {
			resp.add("library", "warn", "no catalog; only single external files can be fetched (run 'scadforge catalog')")
		}
	}

	if db, err := a.openDB(); err != nil {
		resp.add("storage", "fail", "%v", err)
	} else if stats, err := storage.NewRenderCache(db).Stats(); err != nil {
		resp.add("storage", "fail", "%v", err)
	} else {
		resp.add("storage", "pass", "%s, %d cached meshes", db.Path(), stats.Entries)
	}

	if _, err := a.sink(""); err != nil {
		resp.add("export", "fail", "%v", err)
	} else if a.cfg.Export.S3.Enabled {
		resp.add("export", "pass", "s3://%s/%s", a.cfg.Export.S3.Bucket, a.cfg.Export.S3.Prefix)
	} else {
		resp.add("export", "pass", "%s", config.ResolvePath(a.root, a.cfg.Export.Dir))
	}

	if err := printResponse(resp); err != nil {
		return err
	}
	if OutputFormat(formatFlag) == FormatHuman {
		fmt.Printf("\n(Diagnostics took %dms)\n", time.Since(start).Milliseconds())
	}
	if !resp.Healthy {
		return fmt.Errorf("doctor found problems")
	}
	return nil
}
