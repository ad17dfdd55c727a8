package library

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"scadforge/internal/imports"
	"scadforge/internal/logging"
	"scadforge/internal/paths"
	"scadforge/internal/vmfs"
)

// DefaultMountParallelism bounds concurrent fetches during Mount
const DefaultMountParallelism = 8

// Mounter copies a whole library into a VM under its prefix
type Mounter struct {
	fetcher Fetcher
	prefix  string
	catalog *Catalog
	logger  *logging.Logger
}

// NewMounter creates a mounter. An empty prefix uses the catalog's
// descriptor, then the default library prefix.
func NewMounter(fetcher Fetcher, catalog *Catalog, prefix string, logger *logging.Logger) *Mounter {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	if prefix == "" {
		prefix = catalog.Prefix(imports.DefaultLibraryPrefix)
	}
	return &Mounter{
		fetcher: fetcher,
		prefix:  paths.NormalizeAbs(prefix),
		catalog: catalog,
		logger:  logger,
	}
}

// Prefix returns the VM directory the library is mounted at
func (m *Mounter) Prefix() string {
	return m.prefix
}

// Mount fetches every catalog file and writes it into fs. Returns the
// number of files written. The first failure aborts the mount.
func (m *Mounter) Mount(ctx context.Context, fs vmfs.FS) (int, error) {
	files := m.catalog.Files()
	if err := fs.Mkdir(m.prefix); err != nil {
		return 0, err
	}

	var written int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(DefaultMountParallelism)
	for _, rel := range files {
		abs := paths.NormalizeAbs(m.prefix, rel)
		g.Go(func() error {
			data, err := m.fetcher.Fetch(gctx, abs)
			if err != nil {
				return err
			}
			if err := vmfs.WriteAll(fs, abs, data); err != nil {
				return err
			}
			atomic.AddInt64(&written, 1)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return int(written), err
	}

	m.logger.Debug("Mounted library", map[string]interface{}{
		"prefix": m.prefix,
		"files":  written,
	})
	return int(written), nil
}
