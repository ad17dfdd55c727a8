package render

import (
	"time"

	"scadforge/internal/errors"
	"scadforge/internal/export"
	"scadforge/internal/storage"
)

// PartResult is the outcome of rendering one part
type PartResult struct {
	Name     string        `json:"name"`
	Color    string        `json:"color,omitempty"`
	Exported bool          `json:"exported"`
	Mesh     []byte        `json:"-"`
	Cached   bool          `json:"cached"`
	Warnings []string      `json:"warnings,omitempty"`
	Duration time.Duration `json:"duration"`
	Location string        `json:"location,omitempty"`
	Err      error         `json:"-"`
}

// Failed reports whether the part produced no mesh
func (r *PartResult) Failed() bool {
	return r.Err != nil
}

// ErrorCode returns the coded reason for a failure, or "" on success
func (r *PartResult) ErrorCode() errors.ErrorCode {
	if r.Err == nil {
		return ""
	}
	return errors.CodeOf(r.Err)
}

func (r *PartResult) record() *storage.PartRecord {
	rec := &storage.PartRecord{
		Name:     r.Name,
		Exported: r.Exported,
		Color:    r.Color,
		Cached:   r.Cached,
		Size:     len(r.Mesh),
		Duration: r.Duration,
		Location: r.Location,
		Warnings: r.Warnings,
	}
	if r.Err != nil {
		rec.ErrorCode = string(r.ErrorCode())
		rec.ErrorMessage = r.Err.Error()
	}
	return rec
}

// Report is the outcome of one RenderScript call
type Report struct {
	RunID  string `json:"runId,omitempty"`
	Script string `json:"script"`

	// Fallback is set when the script had no export markers
	Fallback bool `json:"fallback"`

	Parts []*PartResult `json:"parts"`

	// Skipped lists non-exported parts that were not rendered
	Skipped []string `json:"skipped,omitempty"`

	Manifest *export.Manifest `json:"manifest,omitempty"`
}

// Failed returns the parts that produced no mesh
func (r *Report) Failed() []*PartResult {
	var out []*PartResult
	for _, p := range r.Parts {
		if p.Failed() {
			out = append(out, p)
		}
	}
	return out
}

// Meshes returns the successful parts as export meshes in report order
func (r *Report) Meshes() []export.Mesh {
	out := make([]export.Mesh, 0, len(r.Parts))
	for _, p := range r.Parts {
		if p.Failed() {
			continue
		}
		out = append(out, export.Mesh{Name: p.Name, Color: p.Color, Data: p.Mesh})
	}
	return out
}

func (r *Report) records() []*storage.PartRecord {
	out := make([]*storage.PartRecord, 0, len(r.Parts))
	for _, p := range r.Parts {
		out = append(out, p.record())
	}
	return out
}
