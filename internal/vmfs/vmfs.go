// Package vmfs materializes the isolated filesystem a single render sees.
//
// Paths are absolute slash paths inside the VM ("/project/box.scad",
// "/SFLibs/core.scad"). A filesystem is created per render and discarded
// afterwards.
package vmfs

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"scadforge/internal/paths"
)

// FS is a writable VM filesystem
type FS interface {
	Mkdir(path string) error
	WriteFile(path string, data []byte) error
	ReadFile(path string) ([]byte, error)
}

// WriteAll writes data at path, creating every missing parent directory
func WriteAll(fsys FS, path string, data []byte) error {
	path = paths.NormalizeAbs(path)
	if dir := parentDir(path); dir != "/" {
		if err := fsys.Mkdir(dir); err != nil {
			return err
		}
	}
	return fsys.WriteFile(path, data)
}

func parentDir(p string) string {
	i := strings.LastIndex(p, "/")
	if i <= 0 {
		return "/"
	}
	return p[:i]
}

// MemFS keeps VM files in memory
type MemFS struct {
	mu    sync.RWMutex
	dirs  map[string]bool
	files map[string][]byte
}

// NewMemFS creates an empty in-memory filesystem
func NewMemFS() *MemFS {
	return &MemFS{
		dirs:  map[string]bool{"/": true},
		files: make(map[string][]byte),
	}
}

// Mkdir creates path and its parents
func (m *MemFS) Mkdir(path string) error {
	path = paths.NormalizeAbs(path)
	m.mu.Lock()
	defer m.mu.Unlock()

	var missing []string
	for p := path; p != "/"; p = parentDir(p) {
		if _, isFile := m.files[p]; isFile {
			return fmt.Errorf("mkdir %s: %s is a file", path, p)
		}
		missing = append(missing, p)
	}
	for _, p := range missing {
		m.dirs[p] = true
	}
	return nil
}

// WriteFile writes a file whose parent directory must exist
func (m *MemFS) WriteFile(path string, data []byte) error {
	path = paths.NormalizeAbs(path)
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.dirs[parentDir(path)] {
		return &fs.PathError{Op: "write", Path: path, Err: fs.ErrNotExist}
	}
	if m.dirs[path] {
		return fmt.Errorf("write %s: is a directory", path)
	}
	m.files[path] = append([]byte(nil), data...)
	return nil
}

// ReadFile reads a file
func (m *MemFS) ReadFile(path string) ([]byte, error) {
	path = paths.NormalizeAbs(path)
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.files[path]
	if !ok {
		return nil, &fs.PathError{Op: "read", Path: path, Err: fs.ErrNotExist}
	}
	return append([]byte(nil), data...), nil
}

// Files lists every file path in lexical order
func (m *MemFS) Files() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]string, 0, len(m.files))
	for p := range m.files {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// DirFS maps the VM onto a private host directory so an external engine
// process can read the files
type DirFS struct {
	root string
}

// NewDirFS creates a fresh temporary host directory under parent
// (the system temp directory when empty)
func NewDirFS(parent string) (*DirFS, error) {
	root, err := os.MkdirTemp(parent, "scadforge-vm-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create VM directory: %w", err)
	}
	return &DirFS{root: root}, nil
}

// Root returns the host directory backing "/"
func (d *DirFS) Root() string {
	return d.root
}

// HostPath maps a VM path onto the host
func (d *DirFS) HostPath(path string) string {
	return paths.JoinRepoPath(d.root, paths.Normalize(path))
}

// Mkdir creates path and its parents
func (d *DirFS) Mkdir(path string) error {
	return os.MkdirAll(d.HostPath(path), 0755)
}

// WriteFile writes a file whose parent directory must exist
func (d *DirFS) WriteFile(path string, data []byte) error {
	return os.WriteFile(d.HostPath(path), data, 0644)
}

// ReadFile reads a file
func (d *DirFS) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(d.HostPath(path))
}

// Close removes the backing directory
func (d *DirFS) Close() error {
	return os.RemoveAll(d.root)
}

// Files lists every file path in lexical order
func (d *DirFS) Files() ([]string, error) {
	var out []string
	err := filepath.WalkDir(d.root, func(p string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(d.root, p)
		if err != nil {
			return err
		}
		out = append(out, "/"+filepath.ToSlash(rel))
		return nil
	})
	sort.Strings(out)
	return out, err
}
