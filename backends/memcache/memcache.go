// Package memcache adapts a Memcache server into an httpqueue.Cache using
// gomemcache, with values encoded via diskcache's on-disk byte format.
package memcache

import (
	"fmt"

	"github.com/bradfitz/gomemcache/memcache"
	"github.com/sandrolain/httpqueue"
	"github.com/sandrolain/httpqueue/diskcache"
)

// Cache is an httpqueue.Cache implementation backed by Memcache. Memcache
// has no Scan/key-enumeration primitive, so Clear is a best-effort flush of
// the whole server rather than a prefix-scoped delete.
type Cache struct {
	client *memcache.Client
}

// cacheKey prefixes keys to avoid collision with other data in the same
// memcache instance.
func cacheKey(key string) string {
	return "httpqueue:" + key
}

// New dials the given memcache servers.
func New(servers ...string) *Cache {
	return &Cache{client: memcache.New(servers...)}
}

// NewWithClient adapts an already-constructed *memcache.Client.
func NewWithClient(client *memcache.Client) *Cache {
	return &Cache{client: client}
}

func (c *Cache) Get(key string) (*httpqueue.CacheEntry, bool) {
	item, err := c.client.Get(cacheKey(key))
	if err != nil {
		return nil, false
	}
	entry, err := diskcache.DecodeEntry(key, item.Value)
	if err != nil {
		_ = c.Remove(key)
		return nil, false
	}
	return entry, true
}

func (c *Cache) Put(key string, entry *httpqueue.CacheEntry) error {
	raw := diskcache.EncodeEntry(key, entry)
	if err := c.client.Set(&memcache.Item{Key: cacheKey(key), Value: raw}); err != nil {
		return fmt.Errorf("memcache: set: %w", err)
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
	if err := c.client.Delete(cacheKey(key)); err != nil && err != memcache.ErrCacheMiss {
		return fmt.Errorf("memcache: delete: %w", err)
	}
	return nil
}

// Clear flushes the entire memcache server, since memcache has no way to
// enumerate or delete only this cache's keys.
func (c *Cache) Clear() error {
	if err := c.client.FlushAll(); err != nil {
		return fmt.Errorf("memcache: flush_all: %w", err)
	}
	return nil
}

var _ httpqueue.Cache = (*Cache)(nil)
