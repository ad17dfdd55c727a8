// Package export writes rendered meshes and the run manifest to a sink.
package export

import (
	"context"
	"regexp"
	"strings"
	"time"
)

const (
	// MeshExtension is appended to part file names
	MeshExtension = ".stl"
	// ManifestName is the per-run manifest object
	ManifestName = "manifest.json"
)

// Sink stores export objects. name is a file name, not a path.
// Put returns where the object ended up (a host path or an object URL).
type Sink interface {
	Put(ctx context.Context, runID, name string, data []byte) (string, error)
}

// Manifest describes the meshes exported for one run
type Manifest struct {
	RunID     string         `json:"runId"`
	Script    string         `json:"script"`
	Generated string         `json:"generated"` // ISO 8601 timestamp
	Parts     []ManifestPart `json:"parts"`

	// Location is where the manifest itself was written
	Location string `json:"-"`
}

// ManifestPart is one exported mesh
type ManifestPart struct {
	Name     string `json:"name"`
	File     string `json:"file"`
	Color    string `json:"color,omitempty"`
	Size     int    `json:"size"`
	Location string `json:"location"`
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9_.\-]+`)

// FileName turns a part name into a safe file stem
func FileName(part string) string {
	name := unsafeChars.ReplaceAllString(strings.TrimSpace(part), "_")
	name = strings.Trim(name, ".")
	if name == "" {
		return "part"
	}
	return name
}

// MeshName is FileName plus the mesh extension
func MeshName(part string) string {
	return FileName(part) + MeshExtension
}

func generatedAt(now time.Time) string {
	return now.UTC().Format(time.RFC3339)
}
