// Package diskv adapts github.com/peterbourgon/diskv into an
// httpqueue.Cache. It is grounded directly on the teacher's own
// diskcache.go, which already used diskv as its disk-backed store, but
// generalizes the wire format to the shared diskcache.EncodeEntry/
// DecodeEntry pair so every httpqueue.CacheEntry field (ETag, TTL, SoftTTL,
// response headers) survives a round trip rather than just a raw response
// body. Use this instead of the repo's own byte-exact diskcache package
// when diskv's sharded directory layout or its in-memory LRU front (via
// CacheSizeMax) is wanted over diskcache's custom file naming.
package diskv

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"

	"github.com/peterbourgon/diskv"

	"github.com/sandrolain/httpqueue"
	"github.com/sandrolain/httpqueue/diskcache"
)

// Cache is an httpqueue.Cache backed by a *diskv.Diskv store.
type Cache struct {
	d *diskv.Diskv
}

// New returns a Cache sharding files under basePath, with a 100MB
// in-memory LRU front matching the teacher's own diskcache.New default.
func New(basePath string) *Cache {
	return &Cache{d: diskv.New(diskv.Options{
		BasePath:     basePath,
		CacheSizeMax: 100 * 1024 * 1024,
	})}
}

// NewWithDiskv adapts an already-configured *diskv.Diskv, for callers who
// want a custom Transform (sharding strategy) or cache size.
func NewWithDiskv(d *diskv.Diskv) *Cache {
	return &Cache{d: d}
}

// diskvKey hashes the cache key with SHA-256, mirroring the teacher's own
// keyToFilename, so arbitrary URLs never collide with diskv's filesystem
// naming restrictions.
func diskvKey(key string) string {
	hash := sha256.Sum256([]byte(key))
	return hex.EncodeToString(hash[:])
}

func (c *Cache) Get(key string) (*httpqueue.CacheEntry, bool) {
	raw, err := c.d.Read(diskvKey(key))
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
	return c.d.WriteStream(diskvKey(key), bytes.NewReader(raw), true)
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

// Remove deletes key's entry. Per the teacher's own Delete, an Erase error
// for a file that was never written is not treated as a real error.
func (c *Cache) Remove(key string) error {
	_ = c.d.Erase(diskvKey(key))
	return nil
}

// Clear erases every key diskv knows about. diskv has no bulk-delete
// primitive, so this drains its Keys channel the same way blobcache.Clear
// drains a bucket listing.
func (c *Cache) Clear() error {
	cancel := make(chan struct{})
	defer close(cancel)
	for key := range c.d.Keys(cancel) {
		_ = c.d.Erase(key)
	}
	return nil
}

var _ httpqueue.Cache = (*Cache)(nil)
