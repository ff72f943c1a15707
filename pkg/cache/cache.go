package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/thanhledev/audiomart-backend/pkg/redis"
)

// Prefixes group cached payloads so writes can invalidate whole families.
const (
	PrefixProducts  = "products"
	PrefixInventory = "inventory"
	PrefixOrders    = "orders"
)

type store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	DelByPrefix(ctx context.Context, prefix string) error
	CacheKey(parts ...string) string
}

// Cache is a read-through JSON cache over redis.
type Cache struct {
	store      store
	defaultTTL time.Duration
}

func New(client *redis.Client, defaultTTL time.Duration) *Cache {
	return &Cache{store: client, defaultTTL: defaultTTL}
}

func newWithStore(s store, defaultTTL time.Duration) *Cache {
	return &Cache{store: s, defaultTTL: defaultTTL}
}

// GetJSON loads the cached payload at prefix/key into dest. The second return
// reports whether the key was present.
func (c *Cache) GetJSON(ctx context.Context, prefix, key string, dest any) (bool, error) {
	if c == nil || c.store == nil {
		return false, nil
	}
	raw, err := c.store.Get(ctx, c.store.CacheKey(prefix, key))
	if err != nil {
		if redis.IsNil(err) {
			return false, nil
		}
		return false, fmt.Errorf("cache get %s/%s: %w", prefix, key, err)
	}
	if err := json.Unmarshal([]byte(raw), dest); err != nil {
		return false, fmt.Errorf("cache decode %s/%s: %w", prefix, key, err)
	}
	return true, nil
}

// SetJSON stores value under prefix/key with the default TTL.
func (c *Cache) SetJSON(ctx context.Context, prefix, key string, value any) error {
	if c == nil || c.store == nil {
		return nil
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache encode %s/%s: %w", prefix, key, err)
	}
	return c.store.Set(ctx, c.store.CacheKey(prefix, key), string(payload), c.defaultTTL)
}

// InvalidatePrefix drops every cached payload under the prefix.
func (c *Cache) InvalidatePrefix(ctx context.Context, prefix string) error {
	if c == nil || c.store == nil {
		return nil
	}
	return c.store.DelByPrefix(ctx, c.store.CacheKey(prefix))
}
