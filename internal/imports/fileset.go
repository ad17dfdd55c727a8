package imports

import (
	"context"
	"sort"
)

// FileSource reads files of one project by project-relative path
type FileSource interface {
	ReadTextFile(ctx context.Context, path string) (string, error)
	ReadBinaryFile(ctx context.Context, path string) ([]byte, error)
}

// File is one collected project file
type File struct {
	Path   string
	Data   []byte
	Binary bool
}

// Text returns the file content as a string
func (f *File) Text() string {
	return string(f.Data)
}

// FileSet is the transitive closure of a project entry's imports.
// Files are keyed by project-relative path; External holds normalized
// absolute paths. The two never share a key since only External paths
// carry a leading slash.
type FileSet struct {
	Files    map[string]*File
	External map[string]struct{}
}

// NewFileSet creates an empty file set
func NewFileSet() *FileSet {
	return &FileSet{
		Files:    make(map[string]*File),
		External: make(map[string]struct{}),
	}
}

// Paths returns the project file paths in lexical order
func (s *FileSet) Paths() []string {
	out := make([]string, 0, len(s.Files))
	for p := range s.Files {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// ExternalPaths returns the external imports in lexical order
func (s *FileSet) ExternalPaths() []string {
	out := make([]string, 0, len(s.External))
	for p := range s.External {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Text returns the text of a collected source file
func (s *FileSet) Text(path string) (string, bool) {
	f, ok := s.Files[path]
	if !ok || f.Binary {
		return "", false
	}
	return f.Text(), true
}

// Size returns the total byte count of collected files
func (s *FileSet) Size() int {
	n := 0
	for _, f := range s.Files {
		n += len(f.Data)
	}
	return n
}
