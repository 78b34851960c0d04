package arcgis

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/joeblew999/plat-marine/internal/metrics"
)

// CachedClient memoizes map-service metadata per URL for a while. Every
// viewer session checks the same handful of services, so only the first
// check in a TTL window reaches upstream. Failures are not cached and
// feature queries always go upstream.
type CachedClient struct {
	*Client
	meta *expirable.LRU[string, *MapServiceInfo]
}

// NewCached wraps c with a metadata cache of size entries living ttl.
func NewCached(c *Client, size int, ttl time.Duration) *CachedClient {
	if size <= 0 {
		size = 32
	}
	return &CachedClient{
		Client: c,
		meta:   expirable.NewLRU[string, *MapServiceInfo](size, nil, ttl),
	}
}

// MapService returns cached metadata for metadataURL or fetches it.
func (c *CachedClient) MapService(ctx context.Context, metadataURL string) (*MapServiceInfo, error) {
	if info, ok := c.meta.Get(metadataURL); ok {
		metrics.MetadataCache.WithLabelValues("hit").Inc()
		return info, nil
	}
	metrics.MetadataCache.WithLabelValues("miss").Inc()

	info, err := c.Client.MapService(ctx, metadataURL)
	if err != nil {
		return nil, err
	}
	c.meta.Add(metadataURL, info)
	return info, nil
}
