// Package rediscache is the shared overview cache tier backed by Redis.
package rediscache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/couchcryptid/district-analytics-service/internal/domain"
)

const keyPrefix = "district-analytics:"

// Cache stores JSON-encoded overviews in Redis.
type Cache struct {
	client redis.UniversalClient
}

// New wraps an existing client.
func New(client redis.UniversalClient) *Cache {
	return &Cache{client: client}
}

// Open connects to addr and verifies the connection.
func Open(ctx context.Context, addr, password string, db int) (*Cache, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", addr, err)
	}
	return New(client), nil
}

func (c *Cache) GetOverview(ctx context.Context, key string) (domain.StateOverview, bool, error) {
	data, err := c.client.Get(ctx, keyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.StateOverview{}, false, nil
	}
	if err != nil {
		return domain.StateOverview{}, false, fmt.Errorf("redis get %s: %w", key, err)
	}

	var ov domain.StateOverview
	if err := json.Unmarshal(data, &ov); err != nil {
		return domain.StateOverview{}, false, fmt.Errorf("decode cached overview: %w", err)
	}
	return ov, true, nil
}

func (c *Cache) SetOverview(ctx context.Context, key string, ov domain.StateOverview, ttl time.Duration) error {
	data, err := json.Marshal(ov)
	if err != nil {
		return fmt.Errorf("encode overview: %w", err)
	}
	if err := c.client.Set(ctx, keyPrefix+key, data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (c *Cache) Delete(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, keyPrefix+key).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", key, err)
	}
	return nil
}

// CheckReadiness pings Redis.
func (c *Cache) CheckReadiness(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *Cache) Close() error {
	return c.client.Close()
}
