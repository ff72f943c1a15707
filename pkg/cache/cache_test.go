package cache

import (
	"context"
	"strings"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

type memStore struct {
	data map[string]string
}

func newMemStore() *memStore {
	return &memStore{data: make(map[string]string)}
}

func (m *memStore) Get(ctx context.Context, key string) (string, error) {
	v, ok := m.data[key]
	if !ok {
		return "", goredis.Nil
	}
	return v, nil
}

func (m *memStore) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	m.data[key] = value.(string)
	return nil
}

func (m *memStore) DelByPrefix(ctx context.Context, prefix string) error {
	for key := range m.data {
		if strings.HasPrefix(key, prefix) {
			delete(m.data, key)
		}
	}
	return nil
}

func (m *memStore) CacheKey(parts ...string) string {
	return "am:cache:" + strings.Join(parts, ":")
}

type payload struct {
	Name string `json:"name"`
	Qty  int    `json:"qty"`
}

func TestCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	c := newWithStore(newMemStore(), time.Minute)

	if err := c.SetJSON(ctx, PrefixProducts, "p1", payload{Name: "Studio Monitor", Qty: 3}); err != nil {
		t.Fatalf("SetJSON failed: %v", err)
	}

	var got payload
	hit, err := c.GetJSON(ctx, PrefixProducts, "p1", &got)
	if err != nil {
		t.Fatalf("GetJSON failed: %v", err)
	}
	if !hit {
		t.Fatal("expected cache hit")
	}
	if got.Name != "Studio Monitor" || got.Qty != 3 {
		t.Fatalf("unexpected payload %+v", got)
	}
}

func TestCacheMissIsNotAnError(t *testing.T) {
	ctx := context.Background()
	c := newWithStore(newMemStore(), time.Minute)

	var got payload
	hit, err := c.GetJSON(ctx, PrefixProducts, "absent", &got)
	if err != nil {
		t.Fatalf("miss should not error: %v", err)
	}
	if hit {
		t.Fatal("expected miss")
	}
}

func TestInvalidatePrefixScopesToFamily(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	c := newWithStore(store, time.Minute)

	if err := c.SetJSON(ctx, PrefixProducts, "p1", payload{Name: "a"}); err != nil {
		t.Fatalf("SetJSON failed: %v", err)
	}
	if err := c.SetJSON(ctx, PrefixOrders, "o1", payload{Name: "b"}); err != nil {
		t.Fatalf("SetJSON failed: %v", err)
	}

	if err := c.InvalidatePrefix(ctx, PrefixProducts); err != nil {
		t.Fatalf("InvalidatePrefix failed: %v", err)
	}

	var got payload
	if hit, _ := c.GetJSON(ctx, PrefixProducts, "p1", &got); hit {
		t.Fatal("products entry should be gone")
	}
	if hit, _ := c.GetJSON(ctx, PrefixOrders, "o1", &got); !hit {
		t.Fatal("orders entry should survive")
	}
}

func TestNilCacheIsSafe(t *testing.T) {
	var c *Cache
	ctx := context.Background()
	if err := c.SetJSON(ctx, PrefixProducts, "p1", payload{}); err != nil {
		t.Fatalf("nil cache SetJSON should no-op: %v", err)
	}
	var got payload
	if hit, err := c.GetJSON(ctx, PrefixProducts, "p1", &got); err != nil || hit {
		t.Fatalf("nil cache GetJSON should miss: hit=%v err=%v", hit, err)
	}
}
