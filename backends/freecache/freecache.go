// Package freecache adapts coocood/freecache's zero-GC-overhead in-memory
// store into an httpqueue.Cache. Freecache has no key enumeration
// primitive, so Clear and Remove rely on what freecache itself exposes.
package freecache

import (
	"fmt"

	"github.com/coocood/freecache"

	"github.com/sandrolain/httpqueue"
	"github.com/sandrolain/httpqueue/diskcache"
)

// Cache is an httpqueue.Cache implementation backed by freecache.
type Cache struct {
	cache *freecache.Cache
}

// New creates a new Cache with the given size in bytes (512KB minimum,
// enforced by freecache itself).
func New(size int) *Cache {
	return &Cache{cache: freecache.NewCache(size)}
}

func (c *Cache) Get(key string) (*httpqueue.CacheEntry, bool) {
	raw, err := c.cache.Get([]byte(key))
	if err != nil {
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
	if err := c.cache.Set([]byte(key), raw, 0); err != nil {
		return fmt.Errorf("freecache: set: %w", err)
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
	c.cache.Del([]byte(key))
	return nil
}

// Clear drops every entry from the underlying freecache instance.
func (c *Cache) Clear() error {
	c.cache.Clear()
	return nil
}

var _ httpqueue.Cache = (*Cache)(nil)
