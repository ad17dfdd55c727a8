package engine

import (
	"bytes"
	"context"
	"os/exec"
)

// Runner abstracts command execution for testability
type Runner interface {
	// LookPath checks if a binary exists in PATH
	LookPath(name string) (string, error)

	// Run executes a command in dir and returns its output
	Run(ctx context.Context, dir, name string, args ...string) (stdout, stderr string, err error)
}

// ExecRunner implements Runner using os/exec
type ExecRunner struct{}

// LookPath checks if a binary exists in PATH
func (ExecRunner) LookPath(name string) (string, error) {
	return exec.LookPath(name)
}

// Run executes a command and returns its output
func (ExecRunner) Run(ctx context.Context, dir, name string, args ...string) (string, string, error) {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec // G204: argv comes from the engine config
	cmd.Dir = dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	return stdout.String(), stderr.String(), err
}
