package opentopo

import (
	"context"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/couchcryptid/pivot-coverage-service/internal/domain"
	"github.com/couchcryptid/pivot-coverage-service/internal/observability"
)

// CachedProvider wraps an ElevationProvider with a TTL cache keyed by
// coordinate. Only points with a known elevation are cached so gaps in the
// dataset are retried.
type CachedProvider struct {
	inner   domain.ElevationProvider
	cache   *cache.Cache
	metrics *observability.Metrics
}

// NewCachedProvider creates a cache decorator around an elevation provider.
func NewCachedProvider(inner domain.ElevationProvider, ttl time.Duration, metrics *observability.Metrics) *CachedProvider {
	return &CachedProvider{
		inner:   inner,
		cache:   cache.New(ttl, 2*ttl),
		metrics: metrics,
	}
}

// Elevations serves cached points locally and asks the inner provider only
// for the rest, preserving input order.
func (c *CachedProvider) Elevations(ctx context.Context, points []domain.Coordinate) ([]*float64, error) {
	out := make([]*float64, len(points))
	var missIdx []int
	var missing []domain.Coordinate

	for i, p := range points {
		if v, ok := c.cache.Get(cacheKey(p)); ok {
			elev := v.(float64)
			out[i] = &elev
			continue
		}
		missIdx = append(missIdx, i)
		missing = append(missing, p)
	}
	c.metrics.ElevationCache.WithLabelValues("hit").Add(float64(len(points) - len(missing)))
	c.metrics.ElevationCache.WithLabelValues("miss").Add(float64(len(missing)))

	if len(missing) == 0 {
		return out, nil
	}

	fetched, err := c.inner.Elevations(ctx, missing)
	if err != nil {
		return nil, err
	}
	if len(fetched) != len(missing) {
		return nil, fmt.Errorf("%w: requested %d, got %d", domain.ErrElevationCount, len(missing), len(fetched))
	}
	for j, v := range fetched {
		out[missIdx[j]] = v
		if v != nil {
			c.cache.SetDefault(cacheKey(missing[j]), *v)
		}
	}
	return out, nil
}

func cacheKey(p domain.Coordinate) string {
	return fmt.Sprintf("%.6f,%.6f", p.Lat, p.Lon)
}
