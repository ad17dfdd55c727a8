// Package project provides access to the files of one scadforge project.
package project

import (
	"os"
	"path/filepath"

	"scadforge/internal/paths"
)

// FindRoot walks up from start looking for a directory that holds the
// .scadforge data directory. Returns the starting directory and false
// when none is found.
func FindRoot(start string) (string, bool) {
	abs, err := filepath.Abs(start)
	if err != nil {
		return start, false
	}
	if info, err := os.Stat(abs); err == nil && !info.IsDir() {
		abs = filepath.Dir(abs)
	}

	dir := abs
	for {
		if info, err := os.Stat(paths.DataDir(dir)); err == nil && info.IsDir() {
			return dir, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return abs, false
		}
		dir = parent
	}
}

// EntryPath converts a host path to the script into a project-relative path
func EntryPath(root, hostPath string) (string, error) {
	abs, err := filepath.Abs(hostPath)
	if err != nil {
		return "", err
	}
	if !paths.IsWithinRepo(abs, root) {
		return "", os.ErrNotExist
	}
	rel, err := paths.CanonicalizePath(abs, root)
	if err != nil {
		return "", err
	}
	return paths.Normalize(rel), nil
}
