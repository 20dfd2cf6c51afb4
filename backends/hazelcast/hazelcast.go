// Package hazelcast adapts a Hazelcast distributed map into an
// httpqueue.Cache, storing each entry as diskcache-encoded bytes.
package hazelcast

import (
	"context"
	"fmt"

	"github.com/hazelcast/hazelcast-go-client"

	"github.com/sandrolain/httpqueue"
	"github.com/sandrolain/httpqueue/diskcache"
)

// Cache is an httpqueue.Cache implementation backed by a Hazelcast map.
type Cache struct {
	m   *hazelcast.Map
	ctx context.Context
}

func cacheKey(key string) string {
	return "httpqueue:" + key
}

// NewWithMap adapts an already-opened *hazelcast.Map, using
// context.Background() for every operation.
func NewWithMap(m *hazelcast.Map) *Cache {
	return &Cache{m: m, ctx: context.Background()}
}

// NewWithMapAndContext is NewWithMap with an explicit base context.
func NewWithMapAndContext(ctx context.Context, m *hazelcast.Map) *Cache {
	return &Cache{m: m, ctx: ctx}
}

func (c *Cache) Get(key string) (*httpqueue.CacheEntry, bool) {
	val, err := c.m.Get(c.ctx, cacheKey(key))
	if err != nil || val == nil {
		return nil, false
	}
	raw, ok := val.([]byte)
	if !ok {
		return nil, false
	}
	entry, err := diskcache.DecodeEntry(key, raw)
	if err != nil {
		_ = c.Remove(key)
		return nil, false
	}
	return entry, true
}

func (c *Cache) Put(key string, entry *httpqueue.CacheEntry) error {
	raw := diskcache.EncodeEntry(key, entry)
	if err := c.m.Set(c.ctx, cacheKey(key), raw); err != nil {
		return fmt.Errorf("hazelcast: set: %w", err)
	}
	return nil
}

func (c *Cache) Invalidate(key string, fullExpire bool) error {
	entry, ok := c.Get(key)
	if !ok {
		return nil
	}
	entry.SoftTTL = 0
	if fullExpire {
		entry.TTL = 0
	}
	return c.Put(key, entry)
}

func (c *Cache) Remove(key string) error {
	if _, err := c.m.Remove(c.ctx, cacheKey(key)); err != nil {
		return fmt.Errorf("hazelcast: remove: %w", err)
	}
	return nil
}

// Clear clears the entire underlying map, since Hazelcast maps used by this
// backend are assumed dedicated to one cache instance.
func (c *Cache) Clear() error {
	if err := c.m.Clear(c.ctx); err != nil {
		return fmt.Errorf("hazelcast: clear: %w", err)
	}
	return nil
}

var _ httpqueue.Cache = (*Cache)(nil)
