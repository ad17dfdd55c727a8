package export

import (
	"context"
	"encoding/json"
	"time"

	"scadforge/internal/logging"
)

// Mesh is one rendered part handed to the exporter
type Mesh struct {
	Name  string
	Color string
	Data  []byte
}

// Exporter writes a run's meshes and manifest to a sink
type Exporter struct {
	sink   Sink
	logger *logging.Logger
	now    func() time.Time
}

// NewExporter creates an exporter over sink
func NewExporter(sink Sink, logger *logging.Logger) *Exporter {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Exporter{sink: sink, logger: logger, now: time.Now}
}

// Export writes every mesh, then the manifest. A failed mesh aborts the
// export; meshes already written stay in the sink.
func (e *Exporter) Export(ctx context.Context, runID, script string, meshes []Mesh) (*Manifest, error) {
	manifest := &Manifest{
		RunID:     runID,
		Script:    script,
		Generated: generatedAt(e.now()),
		Parts:     make([]ManifestPart, 0, len(meshes)),
	}

	for _, m := range meshes {
		file := MeshName(m.Name)
		location, err := e.sink.Put(ctx, runID, file, m.Data)
		if err != nil {
			return nil, err
		}
		manifest.Parts = append(manifest.Parts, ManifestPart{
			Name:     m.Name,
			File:     file,
			Color:    m.Color,
			Size:     len(m.Data),
			Location: location,
		})
	}

	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return nil, err
	}
	location, err := e.sink.Put(ctx, runID, ManifestName, data)
	if err != nil {
		return nil, err
	}
	manifest.Location = location

	e.logger.Info("Exported meshes", map[string]interface{}{
		"runId": runID,
		"parts": len(manifest.Parts),
	})
	return manifest, nil
}
