package imports

import (
	"regexp"
	"strings"
)

// MeshExtension is the suffix an import() operand needs to be treated as a mesh
const MeshExtension = ".stl"

var (
	// include <X> / use <X>
	inclusionPattern = regexp.MustCompile(`\b(?:include|use)\s*<([^>\n]+)>`)

	// import("X.stl") / import('X.stl'); the suffix is checked separately so
	// the check stays case-sensitive and independent of the quote style.
	meshImportPattern = regexp.MustCompile(`\bimport\s*\(\s*(?:"([^"\n]*)"|'([^'\n]*)')\s*\)`)
)

// Occurrence is one operand found by a scanner. Start and End are byte
// offsets of the operand itself inside the scanned text.
type Occurrence struct {
	Raw   string
	Start int
	End   int
	Line  int
}

// Extraction holds the results of both scanners, each in text order
type Extraction struct {
	Includes []Occurrence
	Meshes   []Occurrence
}

// Extract runs the inclusion and mesh-import scanners over text.
// The two scans are independent; a span could in principle be reported by both.
func Extract(text string) Extraction {
	return Extraction{
		Includes: ExtractIncludes(text),
		Meshes:   ExtractMeshImports(text),
	}
}

// ExtractIncludes returns every include <X> / use <X> operand
func ExtractIncludes(text string) []Occurrence {
	matches := inclusionPattern.FindAllStringSubmatchIndex(text, -1)
	out := make([]Occurrence, 0, len(matches))
	for _, m := range matches {
		out = append(out, occurrence(text, m[2], m[3]))
	}
	return out
}

// ExtractMeshImports returns every import("X.stl") operand
func ExtractMeshImports(text string) []Occurrence {
	matches := meshImportPattern.FindAllStringSubmatchIndex(text, -1)
	out := make([]Occurrence, 0, len(matches))
	for _, m := range matches {
		start, end := m[2], m[3]
		if start < 0 {
			start, end = m[4], m[5]
		}
		if !strings.HasSuffix(text[start:end], MeshExtension) {
			continue
		}
		out = append(out, occurrence(text, start, end))
	}
	return out
}

func occurrence(text string, start, end int) Occurrence {
	return Occurrence{
		Raw:   text[start:end],
		Start: start,
		End:   end,
		Line:  strings.Count(text[:start], "\n") + 1,
	}
}
