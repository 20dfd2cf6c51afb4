// Package memory provides a process-local, dependency-free httpqueue.Cache
// backed by a plain map. Useful for tests and as a quick-start default
// before wiring a persistent backend.
package memory

import (
	"sync"

	"github.com/sandrolain/httpqueue"
)

// Cache is an httpqueue.Cache implementation backed by an in-process map.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]*httpqueue.CacheEntry
}

// New creates an empty in-memory Cache.
func New() *Cache {
	return &Cache{entries: make(map[string]*httpqueue.CacheEntry)}
}

func (c *Cache) Get(key string) (*httpqueue.CacheEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	return entry.Clone(), true
}

func (c *Cache) Put(key string, entry *httpqueue.CacheEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry.Clone()
	return nil
}

func (c *Cache) Invalidate(key string, fullExpire bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[key]
	if !ok {
		return nil
	}
	entry.SoftTTL = 0
	if fullExpire {
		entry.TTL = 0
	}
	return nil
}

func (c *Cache) Remove(key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
	return nil
}

func (c *Cache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*httpqueue.CacheEntry)
	return nil
}

var _ httpqueue.Cache = (*Cache)(nil)
