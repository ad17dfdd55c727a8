package imports

import (
	"strings"

	"scadforge/internal/paths"
)

const (
	// ProjectRootMarker prefixes imports resolved from the project root
	ProjectRootMarker = "@/"

	// DefaultLibraryPrefix is where the shared library is mounted
	DefaultLibraryPrefix = "/SFLibs"
)

// Resolver classifies and resolves import operands. The zero value treats
// no absolute path as library.
type Resolver struct {
	// LibraryPrefix marks external-absolute imports that the library loader mounts
	LibraryPrefix string
}

// NewResolver creates a resolver for the given library prefix
func NewResolver(libraryPrefix string) *Resolver {
	return &Resolver{LibraryPrefix: libraryPrefix}
}

// DefaultResolver uses DefaultLibraryPrefix
func DefaultResolver() *Resolver {
	return NewResolver(DefaultLibraryPrefix)
}

// Classify classifies raw as written in the file at referencer (a
// project-relative path) and computes its resolved path.
func (r *Resolver) Classify(raw string, referencer string) Reference {
	ref := Reference{Raw: raw, From: referencer}

	switch {
	case strings.HasPrefix(raw, ProjectRootMarker):
		ref.Kind = ProjectRoot
		ref.Resolved = paths.Normalize(strings.TrimPrefix(raw, ProjectRootMarker))

	case paths.IsAbs(raw):
		ref.Resolved = paths.NormalizeAbs(raw)
		ref.Kind = ExternalAbsolute
		if r.isLibrary(ref.Resolved) {
			ref.Kind = Library
		}

	default:
		ref.Kind = ProjectRelative
		ref.Resolved = paths.Join(paths.Dir(referencer), raw)
	}

	return ref
}

func (r *Resolver) isLibrary(resolved string) bool {
	if r == nil || strings.Trim(r.LibraryPrefix, "/") == "" {
		return false
	}
	return paths.HasPrefix(resolved, paths.NormalizeAbs(r.LibraryPrefix))
}

// ClassifyAll classifies every occurrence of an extraction in text order,
// includes first and meshes second.
func (r *Resolver) ClassifyAll(ex Extraction, referencer string) []Reference {
	refs := make([]Reference, 0, len(ex.Includes)+len(ex.Meshes))
	for _, occ := range ex.Includes {
		ref := r.Classify(occ.Raw, referencer)
		ref.Line = occ.Line
		refs = append(refs, ref)
	}
	for _, occ := range ex.Meshes {
		ref := r.Classify(occ.Raw, referencer)
		ref.Line = occ.Line
		ref.Mesh = true
		refs = append(refs, ref)
	}
	return refs
}
