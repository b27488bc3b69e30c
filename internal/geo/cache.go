package geo

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/district-analytics-service/internal/domain"
	"github.com/couchcryptid/district-analytics-service/internal/observability"
)

const cacheName = "geo"

// CachedResolver wraps a Resolver with a TTL-bounded LRU keyed by
// coordinates rounded to three decimals (roughly 100 m). Both matches and
// NotFound answers are cached.
type CachedResolver struct {
	inner   Resolver
	cache   *lru.Cache
	ttl     time.Duration
	clock   clockwork.Clock
	metrics *observability.Metrics
}

type cacheEntry struct {
	district domain.District
	notFound bool
	expires  time.Time
}

// NewCachedResolver creates the decorator. metrics may be nil.
func NewCachedResolver(inner Resolver, size int, ttl time.Duration, clock clockwork.Clock, metrics *observability.Metrics) (*CachedResolver, error) {
	cache, err := lru.New(size)
	if err != nil {
		return nil, fmt.Errorf("geo cache: %w", err)
	}
	return &CachedResolver{
		inner:   inner,
		cache:   cache,
		ttl:     ttl,
		clock:   clock,
		metrics: metrics,
	}, nil
}

func (c *CachedResolver) Resolve(ctx context.Context, lat, lon float64) (domain.District, error) {
	if !domain.ValidCoordinates(lat, lon) {
		return domain.District{}, fmt.Errorf("%w: lat=%v lon=%v", domain.ErrInvalidCoordinates, lat, lon)
	}

	key := cacheKey(lat, lon)
	now := c.clock.Now()
	if v, ok := c.cache.Get(key); ok {
		e := v.(cacheEntry)
		if now.Before(e.expires) {
			c.hit()
			if e.notFound {
				return domain.District{}, fmt.Errorf("no district contains %.5f,%.5f: %w", lat, lon, domain.ErrNotFound)
			}
			return e.district, nil
		}
		c.cache.Remove(key)
	}
	c.miss()

	d, err := c.inner.Resolve(ctx, lat, lon)
	switch {
	case err == nil:
		c.cache.Add(key, cacheEntry{district: d, expires: now.Add(c.ttl)})
	case errors.Is(err, domain.ErrNotFound):
		c.cache.Add(key, cacheEntry{notFound: true, expires: now.Add(c.ttl)})
	}
	return d, err
}

// Purge drops every cached answer.
func (c *CachedResolver) Purge() {
	c.cache.Purge()
}

func (c *CachedResolver) hit() {
	if c.metrics != nil {
		c.metrics.CacheHit(cacheName)
	}
}

func (c *CachedResolver) miss() {
	if c.metrics != nil {
		c.metrics.CacheMiss(cacheName)
	}
}

func cacheKey(lat, lon float64) string {
	return fmt.Sprintf("%.3f,%.3f", round3(lat), round3(lon))
}

// round3 avoids "-0.000" keys for tiny negative values.
func round3(v float64) float64 {
	r := math.Round(v*1000) / 1000
	if r == 0 {
		return 0
	}
	return r
}
