package owners

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/flooanalytics/ingest/pkg/observability"
)

const cacheName = "owners"

// CachedResolver caches successful resolutions of another Resolver.
// Unknown sites are not cached so newly created sites resolve immediately.
type CachedResolver struct {
	next    Resolver
	cache   *lru.LRU[string, Owner]
	metrics *observability.Metrics
}

// NewCachedResolver wraps next with an LRU of at most size entries expiring after ttl.
// metrics may be nil.
func NewCachedResolver(next Resolver, size int, ttl time.Duration, metrics *observability.Metrics) *CachedResolver {
	if size <= 0 {
		size = 1024
	}
	return &CachedResolver{
		next:    next,
		cache:   lru.NewLRU[string, Owner](size, nil, ttl),
		metrics: metrics,
	}
}

// Resolve implements Resolver
func (c *CachedResolver) Resolve(ctx context.Context, siteID string) (Owner, error) {
	if owner, ok := c.cache.Get(siteID); ok {
		c.metrics.RecordCacheHit(cacheName)
		return owner, nil
	}
	c.metrics.RecordCacheMiss(cacheName)

	owner, err := c.next.Resolve(ctx, siteID)
	if err != nil {
		return Owner{}, err
	}
	c.cache.Add(siteID, owner)
	return owner, nil
}

// Invalidate drops a single site, e.g. after its owner changed plan
func (c *CachedResolver) Invalidate(siteID string) {
	c.cache.Remove(siteID)
}

// Purge drops every cached site
func (c *CachedResolver) Purge() {
	c.cache.Purge()
}
