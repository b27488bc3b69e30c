package analytics

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"

	"github.com/couchcryptid/district-analytics-service/internal/domain"
	"github.com/couchcryptid/district-analytics-service/internal/observability"
)

const overviewKey = "state-overview"

// OverviewSource computes a state overview.
type OverviewSource interface {
	Overview(ctx context.Context) (domain.StateOverview, error)
}

// SharedCache is a cache tier shared across replicas. A miss is reported as
// found=false with a nil error.
type SharedCache interface {
	GetOverview(ctx context.Context, key string) (domain.StateOverview, bool, error)
	SetOverview(ctx context.Context, key string, ov domain.StateOverview, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// CachedOverview serves the overview from an in-process TTL cache, then an
// optional shared tier, and recomputes on a miss. Concurrent misses share
// one recomputation. Shared-tier errors are logged and bypassed.
type CachedOverview struct {
	inner   OverviewSource
	local   *cache.Cache
	shared  SharedCache
	ttl     time.Duration
	group   singleflight.Group
	gen     atomic.Uint64 // bumped by Invalidate
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewCachedOverview wraps inner. shared may be nil.
func NewCachedOverview(inner OverviewSource, shared SharedCache, ttl time.Duration, logger *slog.Logger, metrics *observability.Metrics) *CachedOverview {
	return &CachedOverview{
		inner:   inner,
		local:   cache.New(ttl, 2*ttl),
		shared:  shared,
		ttl:     ttl,
		logger:  logger,
		metrics: metrics,
	}
}

// Overview returns the cached overview or recomputes it. The recomputation
// ignores caller cancellation; a caller whose ctx ends gets ctx.Err() while
// the recomputation keeps going for the other waiters.
func (c *CachedOverview) Overview(ctx context.Context) (domain.StateOverview, error) {
	if v, ok := c.local.Get(overviewKey); ok {
		c.metrics.CacheHit("overview")
		return v.(domain.StateOverview), nil
	}
	c.metrics.CacheMiss("overview")

	flight := context.WithoutCancel(ctx)
	ch := c.group.DoChan(overviewKey, func() (any, error) {
		return c.recompute(flight)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return domain.StateOverview{}, res.Err
		}
		return res.Val.(domain.StateOverview), nil
	case <-ctx.Done():
		return domain.StateOverview{}, ctx.Err()
	}
}

// recompute loads the overview from the shared tier or the inner source. The
// result is cached only if no Invalidate happened while it was computed.
func (c *CachedOverview) recompute(ctx context.Context) (domain.StateOverview, error) {
	gen := c.gen.Load()

	if ov, ok := c.fromShared(ctx); ok {
		if c.gen.Load() == gen {
			c.local.SetDefault(overviewKey, ov)
		}
		return ov, nil
	}

	ov, err := c.inner.Overview(ctx)
	if err != nil {
		return domain.StateOverview{}, err
	}
	c.metrics.DistrictsReported.Set(float64(ov.DistrictsReporting))
	if c.gen.Load() != gen {
		c.logger.Debug("overview invalidated during recompute, not caching")
		return ov, nil
	}
	c.local.SetDefault(overviewKey, ov)
	c.toShared(ctx, ov)
	return ov, nil
}

// Invalidate drops the cached overview from both tiers. The ingestion
// pipeline calls it after every stored batch.
func (c *CachedOverview) Invalidate(ctx context.Context) {
	c.gen.Add(1)
	c.group.Forget(overviewKey)
	c.local.Delete(overviewKey)
	if c.shared == nil {
		return
	}
	if err := c.shared.Delete(ctx, overviewKey); err != nil {
		c.logger.Warn("shared overview cache delete failed", "error", err)
	}
}

func (c *CachedOverview) fromShared(ctx context.Context) (domain.StateOverview, bool) {
	if c.shared == nil {
		return domain.StateOverview{}, false
	}
	ov, ok, err := c.shared.GetOverview(ctx, overviewKey)
	if err != nil {
		c.logger.Warn("shared overview cache read failed", "error", err)
		return domain.StateOverview{}, false
	}
	if ok {
		c.metrics.CacheHit("overview_shared")
	} else {
		c.metrics.CacheMiss("overview_shared")
	}
	return ov, ok
}

func (c *CachedOverview) toShared(ctx context.Context, ov domain.StateOverview) {
	if c.shared == nil {
		return
	}
	if err := c.shared.SetOverview(ctx, overviewKey, ov, c.ttl); err != nil {
		c.logger.Warn("shared overview cache write failed", "error", err)
	}
}
