package plans

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
)

// CachedCatalog caches successful lookups of another catalog.
// Misses and errors are never cached.
type CachedCatalog struct {
	next  Catalog
	cache *lru.LRU[string, Plan]
}

// NewCachedCatalog wraps next with an LRU of at most size entries that expire after ttl
func NewCachedCatalog(next Catalog, size int, ttl time.Duration) *CachedCatalog {
	if size <= 0 {
		size = 64
	}
	return &CachedCatalog{
		next:  next,
		cache: lru.NewLRU[string, Plan](size, nil, ttl),
	}
}

// Lookup returns the cached plan or falls through to the wrapped catalog
func (c *CachedCatalog) Lookup(ctx context.Context, name string) (Plan, error) {
	if p, ok := c.cache.Get(name); ok {
		return p, nil
	}
	p, err := c.next.Lookup(ctx, name)
	if err != nil {
		return Plan{}, err
	}
	c.cache.Add(name, p)
	return p, nil
}

// Purge drops every cached plan
func (c *CachedCatalog) Purge() {
	c.cache.Purge()
}

// Len returns the number of cached plans
func (c *CachedCatalog) Len() int {
	return c.cache.Len()
}
