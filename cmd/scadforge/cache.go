package main

import (
	"github.com/spf13/cobra"

	"scadforge/internal/storage"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and manage the render cache",
	Long:  "Show statistics for the render cache stored in .scadforge/scadforge.db, or purge it",
	Args:  cobra.NoArgs,
	RunE:  runCacheStats,
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every cached mesh",
	Args:  cobra.NoArgs,
	RunE:  runCacheClear,
}

var cachePruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete expired cached meshes",
	Args:  cobra.NoArgs,
	RunE:  runCachePrune,
}

func init() {
	cacheCmd.AddCommand(cacheClearCmd)
	cacheCmd.AddCommand(cachePruneCmd)
	rootCmd.AddCommand(cacheCmd)
}

// CacheResponseCLI is the output of the cache commands
type CacheResponseCLI struct {
	Action  string              `json:"action,omitempty"`
	Removed int64               `json:"removed"`
	Stats   *storage.CacheStats `json:"stats"`
}

func withRenderCache(fn func(*storage.RenderCache) (*CacheResponseCLI, error)) error {
	a, err := newApp("")
	if err != nil {
		return err
	}
	defer a.Close()

	db, err := a.openDB()
	if err != nil {
		return err
	}
	cache := storage.NewRenderCache(db)

	resp, err := fn(cache)
	if err != nil {
		return err
	}
	if resp.Stats, err = cache.Stats(); err != nil {
		return err
	}
	return printResponse(resp)
}

func runCacheStats(cmd *cobra.Command, args []string) error {
	return withRenderCache(func(c *storage.RenderCache) (*CacheResponseCLI, error) {
		return &CacheResponseCLI{}, nil
	})
}

func runCacheClear(cmd *cobra.Command, args []string) error {
	return withRenderCache(func(c *storage.RenderCache) (*CacheResponseCLI, error) {
		n, err := c.Clear()
		return &CacheResponseCLI{Action: "clear", Removed: n}, err
	})
}

func runCachePrune(cmd *cobra.Command, args []string) error {
	return withRenderCache(func(c *storage.RenderCache) (*CacheResponseCLI, error) {
		n, err := c.Prune()
		return &CacheResponseCLI{Action: "prune", Removed: n}, err
	})
}
