// Package leveldb adapts an embedded goleveldb database into an
// httpqueue.Cache, storing each entry's diskcache-encoded bytes under its
// raw key.
package leveldb

import (
	"fmt"

	"github.com/syndtr/goleveldb/leveldb"

	"github.com/sandrolain/httpqueue"
	"github.com/sandrolain/httpqueue/diskcache"
)

// Cache is an httpqueue.Cache implementation backed by goleveldb.
type Cache struct {
	db *leveldb.DB
}

// Open opens (creating if necessary) a LevelDB database at path.
func Open(path string) (*Cache, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("leveldb: open: %w", err)
	}
	return &Cache{db: db}, nil
}

// NewWithDB adapts an already-opened *leveldb.DB.
func NewWithDB(db *leveldb.DB) *Cache {
	return &Cache{db: db}
}

func (c *Cache) Get(key string) (*httpqueue.CacheEntry, bool) {
	raw, err := c.db.Get([]byte(key), nil)
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
	if err := c.db.Put([]byte(key), raw, nil); err != nil {
		return fmt.Errorf("leveldb: put: %w", err)
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
	if err := c.db.Delete([]byte(key), nil); err != nil {
		return fmt.Errorf("leveldb: delete: %w", err)
	}
	return nil
}

// Clear iterates the whole keyspace and deletes every key. goleveldb has no
// bulk-truncate primitive.
func (c *Cache) Clear() error {
	iter := c.db.NewIterator(nil, nil)
	defer iter.Release()

	batch := new(leveldb.Batch)
	for iter.Next() {
		batch.Delete(append([]byte(nil), iter.Key()...))
	}
	if err := iter.Error(); err != nil {
		return fmt.Errorf("leveldb: iterate: %w", err)
	}
	if err := c.db.Write(batch, nil); err != nil {
		return fmt.Errorf("leveldb: clear: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (c *Cache) Close() error {
	return c.db.Close()
}

var _ httpqueue.Cache = (*Cache)(nil)
