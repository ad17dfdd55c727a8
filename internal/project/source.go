package project

import (
	"context"
	"fmt"
	"os"
	"sync"

	"scadforge/internal/paths"
)

// DirSource reads project files from a host directory
type DirSource struct {
	root string
}

// NewDirSource creates a source rooted at root
func NewDirSource(root string) *DirSource {
	return &DirSource{root: root}
}

// Root returns the host directory
func (s *DirSource) Root() string {
	return s.root
}

// ReadTextFile reads a project file as text
func (s *DirSource) ReadTextFile(ctx context.Context, path string) (string, error) {
	data, err := s.ReadBinaryFile(ctx, path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// ReadBinaryFile reads a project file. Paths resolving outside the root,
// including through symlinks, are reported as not existing.
func (s *DirSource) ReadBinaryFile(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	host := paths.JoinRepoPath(s.root, paths.Normalize(path))
	if !paths.IsWithinRepo(host, s.root) {
		return nil, fmt.Errorf("%s escapes the project root: %w", path, os.ErrNotExist)
	}
	return os.ReadFile(host)
}

// MapSource serves project files from memory
type MapSource struct {
	mu    sync.RWMutex
	files map[string][]byte
}

// NewMapSource creates a source over files keyed by project-relative path
func NewMapSource(files map[string]string) *MapSource {
	s := &MapSource{files: make(map[string][]byte, len(files))}
	for p, data := range files {
		s.files[paths.Normalize(p)] = []byte(data)
	}
	return s
}

// Set adds or replaces a file
func (s *MapSource) Set(path string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[paths.Normalize(path)] = data
}

// ReadTextFile reads a file as text
func (s *MapSource) ReadTextFile(ctx context.Context, path string) (string, error) {
	data, err := s.ReadBinaryFile(ctx, path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// ReadBinaryFile reads a file
func (s *MapSource) ReadBinaryFile(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.files[paths.Normalize(path)]
	if !ok {
		return nil, fmt.Errorf("%s: %w", path, os.ErrNotExist)
	}
	return data, nil
}
