package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"scadforge/internal/errors"
	"scadforge/internal/logging"
)

// DirSink writes objects to a host directory
type DirSink struct {
	dir    string
	perRun bool
	logger *logging.Logger
}

// NewDirSink creates a directory sink. With perRun set each run gets its
// own subdirectory; otherwise the latest export overwrites the previous one.
func NewDirSink(dir string, perRun bool, logger *logging.Logger) *DirSink {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &DirSink{dir: dir, perRun: perRun, logger: logger}
}

// Put writes data to <dir>[/<runID>]/<name>
func (s *DirSink) Put(ctx context.Context, runID, name string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	dir := s.dir
	if s.perRun && runID != "" {
		dir = filepath.Join(dir, FileName(runID))
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", errors.New(errors.ExportFailed, fmt.Sprintf("cannot create %s", dir), err)
	}

	path := filepath.Join(dir, filepath.Base(name))
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return "", errors.New(errors.ExportFailed, fmt.Sprintf("cannot write %s", path), err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return "", errors.New(errors.ExportFailed, fmt.Sprintf("cannot write %s", path), err)
	}

	s.logger.Debug("Exported file", map[string]interface{}{
		"path": path,
		"size": len(data),
	})
	return path, nil
}
