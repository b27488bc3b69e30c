//go:build integration

package integration_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/district-analytics-service/internal/adapter/rediscache"
	"github.com/couchcryptid/district-analytics-service/internal/analytics"
	"github.com/couchcryptid/district-analytics-service/internal/domain"
	"github.com/couchcryptid/district-analytics-service/internal/observability"
)

type countingOverview struct {
	calls int
}

func (c *countingOverview) Overview(context.Context) (domain.StateOverview, error) {
	c.calls++
	return domain.StateOverview{TotalDistricts: 75, DistrictsReporting: c.calls}, nil
}

// TestSharedOverviewCache checks that a second replica is served from Redis.
func TestSharedOverviewCache(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	addr := startRedis(ctx, t)
	rc, err := rediscache.Open(ctx, addr, "", 0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rc.Close() })
	require.NoError(t, rc.CheckReadiness(ctx))

	_, ok, err := rc.GetOverview(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	source := &countingOverview{}
	replicaA := analytics.NewCachedOverview(source, rc, time.Minute, discardLogger(), observability.NewMetricsForTesting())
	replicaB := analytics.NewCachedOverview(source, rc, time.Minute, discardLogger(), observability.NewMetricsForTesting())

	a, err := replicaA.Overview(ctx)
	require.NoError(t, err)
	b, err := replicaB.Overview(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, source.calls)
	assert.Equal(t, a, b)

	replicaA.Invalidate(ctx)
	_, ok, err = rc.GetOverview(ctx, "state-overview")
	require.NoError(t, err)
	assert.False(t, ok)
}
