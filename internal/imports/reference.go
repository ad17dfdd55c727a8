package imports

// Kind represents the classification of an import operand
type Kind string

const (
	// ProjectRelative is resolved against the importing file's own directory (helpers/x.scad)
	ProjectRelative Kind = "project-relative"

	// ProjectRoot is resolved against the project root regardless of the importer (@/lib/x.scad)
	ProjectRoot Kind = "project-root"

	// ExternalAbsolute lives outside the project tree and is fetched separately (/vendor/x.scad)
	ExternalAbsolute Kind = "external-absolute"

	// Library is an external-absolute import under the shared library prefix (/SFLibs/x.scad).
	// It is mounted by the library loader and never rewritten.
	Library Kind = "library"
)

// IsProject returns true if the import resolves inside the project tree
func (k Kind) IsProject() bool {
	return k == ProjectRelative || k == ProjectRoot
}

// IsExternal returns true if the import is fetched from outside the project
func (k Kind) IsExternal() bool {
	return k == ExternalAbsolute || k == Library
}

// Reference is one classified include/use/import occurrence
type Reference struct {
	// Raw is the operand exactly as written in the source
	Raw string `json:"raw"`

	// Kind is the classification of this import
	Kind Kind `json:"kind"`

	// Resolved is project-relative for project kinds and absolute for external kinds
	Resolved string `json:"resolved"`

	// From is the project-relative path of the referencing file
	From string `json:"from,omitempty"`

	// Mesh is true for import("*.stl") occurrences
	Mesh bool `json:"mesh,omitempty"`

	// Line is the 1-based line where the operand appears (optional)
	Line int `json:"line,omitempty"`
}
