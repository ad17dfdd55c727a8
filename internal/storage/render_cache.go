package storage

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"
)

var (
	codecOnce sync.Once
	encoder   *zstd.Encoder
	decoder   *zstd.Decoder
	codecErr  error
)

// codec returns the shared zstd encoder/decoder; both are safe for
// concurrent EncodeAll/DecodeAll calls
func codec() (*zstd.Encoder, *zstd.Decoder, error) {
	codecOnce.Do(func() {
		encoder, codecErr = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if codecErr != nil {
			return
		}
		decoder, codecErr = zstd.NewReader(nil)
	})
	return encoder, decoder, codecErr
}

// CacheStats summarises the render cache
type CacheStats struct {
	Entries    int   `json:"entries"`
	Size       int64 `json:"size"`
	StoredSize int64 `json:"storedSize"`
	Hits       int64 `json:"hits"`
}

// RenderCache stores rendered meshes compressed with zstd, keyed by a
// digest of everything that went into the render
type RenderCache struct {
	db  *DB
	now func() time.Time
}

// NewRenderCache creates a render cache on db
func NewRenderCache(db *DB) *RenderCache {
	return &RenderCache{db: db, now: time.Now}
}

// Get returns the mesh for key. Expired entries are deleted and reported as misses.
func (c *RenderCache) Get(key string) ([]byte, bool, error) {
	var blob []byte
	var expiresAt sql.NullString

	err := c.db.QueryRow(`
		SELECT mesh, expires_at FROM render_cache WHERE key = ?
	`, key).Scan(&blob, &expiresAt)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("render cache lookup failed: %w", err)
	}

	if expiresAt.Valid && expiresAt.String != "" {
		expires, err := time.Parse(time.RFC3339, expiresAt.String)
		if err != nil {
			return nil, false, fmt.Errorf("invalid expires_at format: %w", err)
		}
		if c.now().After(expires) {
			_, _ = c.db.Exec("DELETE FROM render_cache WHERE key = ?", key)
			return nil, false, nil
		}
	}

	_, dec, err := codec()
	if err != nil {
		return nil, false, err
	}
	mesh, err := dec.DecodeAll(blob, nil)
	if err != nil {
		// A corrupt entry is dropped so the next render replaces it
		_, _ = c.db.Exec("DELETE FROM render_cache WHERE key = ?", key)
		return nil, false, nil
	}

	_, _ = c.db.Exec("UPDATE render_cache SET hits = hits + 1 WHERE key = ?", key)
	return mesh, true, nil
}

// Put stores mesh under key. A ttl of zero or less never expires.
func (c *RenderCache) Put(key string, mesh []byte, ttl time.Duration) error {
	enc, _, err := codec()
	if err != nil {
		return err
	}
	blob := enc.EncodeAll(mesh, nil)

	now := c.now()
	var expiresAt interface{}
	if ttl > 0 {
		expiresAt = now.Add(ttl).UTC().Format(time.RFC3339)
	}

	_, err = c.db.Exec(`
		INSERT OR REPLACE INTO render_cache (key, mesh, size, stored_size, expires_at, created_at, hits)
		VALUES (?, ?, ?, ?, ?, ?, 0)
	`, key, blob, len(mesh), len(blob), expiresAt, now.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to store mesh in render cache: %w", err)
	}
	return nil
}

// Prune deletes expired entries and returns how many were removed
func (c *RenderCache) Prune() (int64, error) {
	res, err := c.db.Exec(`
		DELETE FROM render_cache WHERE expires_at IS NOT NULL AND expires_at < ?
	`, c.now().UTC().Format(time.RFC3339))
	if err != nil {
		return 0, fmt.Errorf("failed to prune render cache: %w", err)
	}
	return res.RowsAffected()
}

// Clear deletes every entry and returns how many were removed
func (c *RenderCache) Clear() (int64, error) {
	res, err := c.db.Exec("DELETE FROM render_cache")
	if err != nil {
		return 0, fmt.Errorf("failed to clear render cache: %w", err)
	}
	return res.RowsAffected()
}

// Stats returns entry count, sizes and total hits
func (c *RenderCache) Stats() (*CacheStats, error) {
	var stats CacheStats
	err := c.db.QueryRow(`
		SELECT COUNT(*), COALESCE(SUM(size), 0), COALESCE(SUM(stored_size), 0), COALESCE(SUM(hits), 0)
		FROM render_cache
	`).Scan(&stats.Entries, &stats.Size, &stats.StoredSize, &stats.Hits)
	if err != nil {
		return nil, fmt.Errorf("failed to read render cache stats: %w", err)
	}
	return &stats, nil
}
