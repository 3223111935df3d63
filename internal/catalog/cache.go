package catalog

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache wraps Redis helpers for menu snapshot JSON.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache constructs a cache helper.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

func menuCacheKey(tenantID string) string {
	return "catalog:menu:" + tenantID
}

// GetMenu returns the cached menu snapshot for a tenant, if present.
func (c *Cache) GetMenu(ctx context.Context, tenantID string) (*Menu, bool, error) {
	if c == nil || c.client == nil || tenantID == "" {
		return nil, false, nil
	}
	data, err := c.client.Get(ctx, menuCacheKey(tenantID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, false, nil
		}
		return nil, false, err
	}
	var menu Menu
	if err := json.Unmarshal(data, &menu); err != nil {
		return nil, false, err
	}
	return &menu, true, nil
}

// SetMenu stores the menu snapshot with the configured TTL.
func (c *Cache) SetMenu(ctx context.Context, tenantID string, menu *Menu) error {
	if c == nil || c.client == nil || tenantID == "" || menu == nil {
		return nil
	}
	data, err := json.Marshal(menu)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, menuCacheKey(tenantID), data, c.ttl).Err()
}

// Invalidate drops the cached snapshot so the next load hits Postgres.
// Called after every admin catalog write.
func (c *Cache) Invalidate(ctx context.Context, tenantID string) error {
	if c == nil || c.client == nil || tenantID == "" {
		return nil
	}
	return c.client.Del(ctx, menuCacheKey(tenantID)).Err()
}
