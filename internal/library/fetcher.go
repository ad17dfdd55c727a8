// Package library fetches files that live outside the project: the
// bundled library mounted under its VM prefix and any other absolute
// import.
package library

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"scadforge/internal/errors"
	"scadforge/internal/logging"
	"scadforge/internal/paths"
)

// Fetcher reads an external file by its normalized absolute VM path
type Fetcher interface {
	Fetch(ctx context.Context, absPath string) ([]byte, error)
}

// missingExternal builds the error every fetcher returns for an unavailable file
func missingExternal(path string, cause error) error {
	return errors.New(errors.MissingExternal, fmt.Sprintf("cannot fetch %s", path), cause).
		WithDetails(map[string]interface{}{"path": path})
}

// DirFetcher serves the paths under one prefix from a host directory
type DirFetcher struct {
	prefix string
	dir    string
}

// NewDirFetcher maps prefix (e.g. /SFLibs) onto dir
func NewDirFetcher(prefix, dir string) *DirFetcher {
	return &DirFetcher{prefix: paths.NormalizeAbs(prefix), dir: dir}
}

// Fetch reads absPath from the directory
func (f *DirFetcher) Fetch(ctx context.Context, absPath string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	absPath = paths.NormalizeAbs(absPath)
	if !paths.HasPrefix(absPath, f.prefix) {
		return nil, missingExternal(absPath, fmt.Errorf("not under %s", f.prefix))
	}
	rel := strings.TrimPrefix(strings.TrimPrefix(absPath, f.prefix), "/")
	host := paths.JoinRepoPath(f.dir, rel)
	if !paths.IsWithinRepo(host, f.dir) {
		return nil, missingExternal(absPath, os.ErrNotExist)
	}
	data, err := os.ReadFile(host)
	if err != nil {
		return nil, missingExternal(absPath, err)
	}
	return data, nil
}

// DefaultHTTPTimeout bounds one HTTP fetch
const DefaultHTTPTimeout = 30 * time.Second

// HTTPFetcher requests baseURL + absPath, the way a browser resolves an
// absolute import against the page origin
type HTTPFetcher struct {
	baseURL string
	client  *http.Client
}

// NewHTTPFetcher creates a fetcher. A nil client gets DefaultHTTPTimeout.
func NewHTTPFetcher(baseURL string, client *http.Client) *HTTPFetcher {
	if client == nil {
		client = &http.Client{Timeout: DefaultHTTPTimeout}
	}
	return &HTTPFetcher{baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

// Fetch issues a GET for absPath
func (f *HTTPFetcher) Fetch(ctx context.Context, absPath string) ([]byte, error) {
	absPath = paths.NormalizeAbs(absPath)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.baseURL+absPath, nil)
	if err != nil {
		return nil, missingExternal(absPath, err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, missingExternal(absPath, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, missingExternal(absPath, fmt.Errorf("HTTP %d", resp.StatusCode))
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, missingExternal(absPath, err)
	}
	return data, nil
}

// Chain tries each fetcher in order and returns the first success.
// Only MISSING_EXTERNAL moves on to the next fetcher.
type Chain []Fetcher

// Fetch implements Fetcher
func (c Chain) Fetch(ctx context.Context, absPath string) ([]byte, error) {
	var lastErr error
	for _, f := range c {
		data, err := f.Fetch(ctx, absPath)
		if err == nil {
			return data, nil
		}
		if !errors.HasCode(err, errors.MissingExternal) {
			return nil, err
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = missingExternal(paths.NormalizeAbs(absPath), fmt.Errorf("no fetcher configured"))
	}
	return nil, lastErr
}

// DefaultCacheEntries is the default CachingFetcher capacity
const DefaultCacheEntries = 512

// CachingFetcher remembers fetched files and collapses concurrent
// requests for the same path into one
type CachingFetcher struct {
	inner  Fetcher
	cache  *lru.Cache[string, []byte]
	group  singleflight.Group
	logger *logging.Logger
}

// NewCachingFetcher wraps inner with an LRU of size entries
func NewCachingFetcher(inner Fetcher, size int, logger *logging.Logger) (*CachingFetcher, error) {
	if size <= 0 {
		size = DefaultCacheEntries
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	cache, err := lru.New[string, []byte](size)
	if err != nil {
		return nil, err
	}
	return &CachingFetcher{inner: inner, cache: cache, logger: logger}, nil
}

// Fetch returns the cached bytes or fetches them once. Failures are not cached.
func (f *CachingFetcher) Fetch(ctx context.Context, absPath string) ([]byte, error) {
	absPath = paths.NormalizeAbs(absPath)
	if data, ok := f.cache.Get(absPath); ok {
		return data, nil
	}

	v, err, shared := f.group.Do(absPath, func() (interface{}, error) {
		data, err := f.inner.Fetch(ctx, absPath)
		if err != nil {
			return nil, err
		}
		f.cache.Add(absPath, data)
		return data, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		f.logger.Debug("Shared external fetch", map[string]interface{}{"path": absPath})
	}
	return v.([]byte), nil
}

// Len returns the number of cached files
func (f *CachingFetcher) Len() int {
	return f.cache.Len()
}
