// Package movecache caches recent search results keyed by position and
// search budget, so repeated hint requests for the same position skip the
// engine entirely.
package movecache

import (
	"strconv"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/openboard/enginebridge/internal/uci"
)

// Cache is an LRU of search results. Safe for concurrent use.
type Cache struct {
	cache *lru.Cache[string, *uci.SearchResult]
}

// New creates a cache holding up to capacity results.
func New(capacity int) (*Cache, error) {
	c, err := lru.New[string, *uci.SearchResult](capacity)
	if err != nil {
		return nil, err
	}
	return &Cache{cache: c}, nil
}

// Key builds a cache key. Results are only comparable when both the
// position and the search budget match.
func Key(fen string, movetime time.Duration, depth int) string {
	return fen + "|" + strconv.FormatInt(movetime.Milliseconds(), 10) + "|" + strconv.Itoa(depth)
}

// Get retrieves a cached result.
func (c *Cache) Get(key string) (*uci.SearchResult, bool) {
	return c.cache.Get(key)
}

// Add stores a result.
func (c *Cache) Add(key string, res *uci.SearchResult) {
	c.cache.Add(key, res)
}

// Len returns the number of cached results.
func (c *Cache) Len() int {
	return c.cache.Len()
}
