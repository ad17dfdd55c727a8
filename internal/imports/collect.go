package imports

import (
	"context"
	"fmt"

	"scadforge/internal/errors"
	"scadforge/internal/logging"
	"scadforge/internal/paths"
)

// DefaultMaxFiles bounds one collection
const DefaultMaxFiles = 10000

// Collector walks a project's include graph from an entry file
type Collector struct {
	source   FileSource
	resolver *Resolver
	logger   *logging.Logger
	maxFiles int
}

// NewCollector creates a new collector. A nil resolver uses DefaultResolver.
func NewCollector(source FileSource, resolver *Resolver, logger *logging.Logger) *Collector {
	if resolver == nil {
		resolver = DefaultResolver()
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Collector{
		source:   source,
		resolver: resolver,
		logger:   logger,
		maxFiles: DefaultMaxFiles,
	}
}

// WithMaxFiles overrides the per-collection file limit
func (c *Collector) WithMaxFiles(n int) *Collector {
	if n > 0 {
		c.maxFiles = n
	}
	return c
}

// walk is the traversal state of one Collect call
type walk struct {
	visited map[string]bool
	result  *FileSet
}

// Collect reads entry from the file source and returns its transitive imports,
// including entry itself.
func (c *Collector) Collect(ctx context.Context, entry string) (*FileSet, error) {
	entry = paths.Normalize(entry)
	text, err := c.source.ReadTextFile(ctx, entry)
	if err != nil {
		return nil, missingDependency(entry, "", err)
	}
	return c.collect(ctx, entry, text)
}

// CollectText is Collect starting from in-memory text standing in for entry.
// entry itself is recorded with that text.
func (c *Collector) CollectText(ctx context.Context, entry, text string) (*FileSet, error) {
	return c.collect(ctx, paths.Normalize(entry), text)
}

func (c *Collector) collect(ctx context.Context, entry, text string) (*FileSet, error) {
	w := &walk{
		visited: map[string]bool{entry: true},
		result:  NewFileSet(),
	}
	w.result.Files[entry] = &File{Path: entry, Data: []byte(text)}

	if err := c.visit(ctx, w, entry, text); err != nil {
		return nil, err
	}

	c.logger.Debug("Collected imports", map[string]interface{}{
		"entry":    entry,
		"files":    len(w.result.Files),
		"external": len(w.result.External),
	})
	return w.result, nil
}

func (c *Collector) visit(ctx context.Context, w *walk, from, text string) error {
	for _, ref := range c.resolver.ClassifyAll(Extract(text), from) {
		if ref.Kind.IsExternal() {
			w.result.External[ref.Resolved] = struct{}{}
			continue
		}
		if w.visited[ref.Resolved] {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if len(w.result.Files) >= c.maxFiles {
			return errors.Newf(errors.InternalError, "import graph exceeds %d files", c.maxFiles).
				WithDetails(map[string]interface{}{"entry": from})
		}
		w.visited[ref.Resolved] = true

		if ref.Mesh {
			data, err := c.source.ReadBinaryFile(ctx, ref.Resolved)
			if err != nil {
				return missingDependency(ref.Resolved, from, err)
			}
			w.result.Files[ref.Resolved] = &File{Path: ref.Resolved, Data: data, Binary: true}
			continue
		}

		child, err := c.source.ReadTextFile(ctx, ref.Resolved)
		if err != nil {
			return missingDependency(ref.Resolved, from, err)
		}
		w.result.Files[ref.Resolved] = &File{Path: ref.Resolved, Data: []byte(child)}
		if err := c.visit(ctx, w, ref.Resolved, child); err != nil {
			return err
		}
	}
	return nil
}

func missingDependency(path, from string, cause error) error {
	msg := fmt.Sprintf("cannot read %s", path)
	if from != "" {
		msg = fmt.Sprintf("cannot read %s (imported from %s)", path, from)
	}
	return errors.New(errors.MissingDependency, msg, cause).
		WithDetails(map[string]interface{}{
			"path":           path,
			"referencedFrom": from,
		})
}
