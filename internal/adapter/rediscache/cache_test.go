package rediscache

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/district-analytics-service/internal/domain"
)

// unreachable returns a client pointed at a port nothing listens on.
func unreachable(t *testing.T) *Cache {
	t.Helper()
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	c := New(client)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestCache_UnreachableReturnsErrors(t *testing.T) {
	c := unreachable(t)
	ctx := context.Background()

	_, ok, err := c.GetOverview(ctx, "state-overview")
	require.Error(t, err)
	assert.False(t, ok)

	err = c.SetOverview(ctx, "state-overview", domain.StateOverview{TotalDistricts: 1}, time.Minute)
	require.Error(t, err)

	require.Error(t, c.Delete(ctx, "state-overview"))
	require.Error(t, c.CheckReadiness(ctx))
}

func TestOpen_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := Open(ctx, "127.0.0.1:1", "", 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ping redis")
}
