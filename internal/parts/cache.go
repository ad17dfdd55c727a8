package parts

import (
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/crypto/blake2b"
)

// DefaultCacheSize is the number of distinct scripts remembered
const DefaultCacheSize = 256

// Cache memoizes Identify by script content
type Cache struct {
	entries *lru.Cache[[32]byte, map[string]*Part]
}

// NewCache creates a cache holding up to size scripts
func NewCache(size int) (*Cache, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	entries, err := lru.New[[32]byte, map[string]*Part](size)
	if err != nil {
		return nil, err
	}
	return &Cache{entries: entries}, nil
}

// Identify returns the cached partition of text, computing it on a miss.
// Errors are not cached. Callers get their own copies of the parts.
func (c *Cache) Identify(text string) (map[string]*Part, error) {
	key := blake2b.Sum256([]byte(normalizeNewlines(text)))
	if parts, ok := c.entries.Get(key); ok {
		return clone(parts), nil
	}

	parts, err := Identify(text)
	if err != nil {
		return nil, err
	}
	c.entries.Add(key, parts)
	return clone(parts), nil
}

// Len returns the number of cached scripts
func (c *Cache) Len() int {
	return c.entries.Len()
}

func clone(parts map[string]*Part) map[string]*Part {
	out := make(map[string]*Part, len(parts))
	for name, p := range parts {
		cp := *p
		out[name] = &cp
	}
	return out
}
