// Package engine drives the external geometry engine that turns a
// materialized script into a mesh.
package engine

import (
	"context"
	stderrors "errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"scadforge/internal/errors"
	"scadforge/internal/imports"
	"scadforge/internal/logging"
	"scadforge/internal/vmfs"
)

// Placeholders recognised in a command template
const (
	PlaceholderRoot     = "{root}"
	PlaceholderInput    = "{input}"
	PlaceholderOutput   = "{output}"
	PlaceholderVMInput  = "{vmInput}"
	PlaceholderVMOutput = "{vmOutput}"
)

// DefaultTimeout bounds one engine invocation
const DefaultTimeout = 5 * time.Minute

// DefaultCommand renders with an openscad binary on PATH
var DefaultCommand = []string{"openscad", "--export-format", "binstl", "-o", PlaceholderOutput, PlaceholderInput}

// Job is one render request. Input and Output are VM paths inside FS.
type Job struct {
	FS     *vmfs.DirFS
	Input  string
	Output string
}

// Result is the outcome of a successful render
type Result struct {
	Mesh     []byte        `json:"-"`
	Stdout   string        `json:"stdout,omitempty"`
	Warnings []string      `json:"warnings,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Engine renders a job into a mesh
type Engine interface {
	Render(ctx context.Context, job Job) (*Result, error)

	// Identity distinguishes engines whose output may differ; it is part of
	// every render cache key.
	Identity() string
}

// Options configures a CLI engine
type Options struct {
	Command []string
	Timeout time.Duration

	// Rebase rewrites absolute VM paths inside the materialized sources to
	// host paths before running. Disable it when the command itself maps
	// the VM root, e.g. through a container bind mount.
	Rebase bool
}

// CLI runs the engine as a child process
type CLI struct {
	opts   Options
	runner Runner
	logger *logging.Logger
}

// NewCLI creates a command-line engine. A nil runner uses ExecRunner.
func NewCLI(opts Options, runner Runner, logger *logging.Logger) *CLI {
	if len(opts.Command) == 0 {
		opts.Command = DefaultCommand
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if runner == nil {
		runner = ExecRunner{}
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &CLI{opts: opts, runner: runner, logger: logger}
}

// Identity returns the command template
func (c *CLI) Identity() string {
	id := strings.Join(c.opts.Command, " ")
	if c.opts.Rebase {
		id += " +rebase"
	}
	return id
}

// Available reports whether the engine binary can be found
func (c *CLI) Available() (string, bool) {
	path, err := c.runner.LookPath(c.opts.Command[0])
	return path, err == nil
}

// Render runs the command against job and reads back the mesh
func (c *CLI) Render(ctx context.Context, job Job) (*Result, error) {
	bin := c.opts.Command[0]
	if _, err := c.runner.LookPath(bin); err != nil {
		return nil, errors.New(errors.EngineUnavailable, fmt.Sprintf("engine binary %q not found", bin), err)
	}

	if c.opts.Rebase {
		if err := rebaseSources(job.FS); err != nil {
			return nil, errors.New(errors.InternalError, "failed to prepare sources for the engine", err)
		}
	}

	args := c.expand(job)
	c.logger.Debug("Running engine", map[string]interface{}{
		"command": bin,
		"args":    args,
	})

	runCtx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	start := time.Now()
	stdout, stderr, err := c.runner.Run(runCtx, job.FS.Root(), bin, args...)
	duration := time.Since(start)
	warnings, failures := SplitDiagnostics(stderr)

	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		details := map[string]interface{}{
			"errors": failures,
			"stderr": strings.TrimSpace(stderr),
		}
		var exitErr *exec.ExitError
		if stderrors.As(err, &exitErr) {
			details["exitCode"] = exitErr.ExitCode()
		}
		msg := "engine failed"
		if runCtx.Err() == context.DeadlineExceeded {
			msg = fmt.Sprintf("engine timed out after %s", c.opts.Timeout)
		} else if len(failures) > 0 {
			msg = failures[0]
		}
		return nil, errors.New(errors.EngineFailed, msg, err).WithDetails(details)
	}

	mesh, err := job.FS.ReadFile(job.Output)
	if err != nil || len(mesh) == 0 {
		return nil, errors.New(errors.EngineFailed, "engine produced no mesh", err).
			WithDetails(map[string]interface{}{
				"output": job.Output,
				"errors": failures,
			})
	}

	return &Result{
		Mesh:     mesh,
		Stdout:   stdout,
		Warnings: warnings,
		Duration: duration,
	}, nil
}

func (c *CLI) expand(job Job) []string {
	r := strings.NewReplacer(
		PlaceholderRoot, job.FS.Root(),
		PlaceholderInput, job.FS.HostPath(job.Input),
		PlaceholderOutput, job.FS.HostPath(job.Output),
		PlaceholderVMInput, job.Input,
		PlaceholderVMOutput, job.Output,
	)
	args := make([]string, 0, len(c.opts.Command)-1)
	for _, a := range c.opts.Command[1:] {
		args = append(args, r.Replace(a))
	}
	return args
}

// SplitDiagnostics separates engine stderr into warnings and errors.
// Lines prefixed WARNING: or DEPRECATED: are warnings; ERROR: and
// TRACE: lines are errors. Everything else is dropped.
func SplitDiagnostics(stderr string) (warnings, failures []string) {
	for _, line := range strings.Split(stderr, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "WARNING:"), strings.HasPrefix(line, "DEPRECATED:"):
			warnings = append(warnings, line)
		case strings.HasPrefix(line, "ERROR:"), strings.HasPrefix(line, "TRACE:"):
			failures = append(failures, line)
		}
	}
	return warnings, failures
}

func rebaseSources(fs *vmfs.DirFS) error {
	files, err := fs.Files()
	if err != nil {
		return err
	}
	for _, p := range files {
		if strings.HasSuffix(p, imports.MeshExtension) {
			continue
		}
		data, err := fs.ReadFile(p)
		if err != nil {
			return err
		}
		rebased := imports.RebaseAbsolute(string(data), filepath.ToSlash(fs.Root()))
		if rebased == string(data) {
			continue
		}
		if err := fs.WriteFile(p, []byte(rebased)); err != nil {
			return err
		}
	}
	return nil
}
