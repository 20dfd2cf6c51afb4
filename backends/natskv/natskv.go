// Package natskv adapts a NATS JetStream Key/Value bucket into an
// httpqueue.Cache, using nats.go as the client and diskcache's on-disk byte
// encoding as each value's wire format.
package natskv

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/sandrolain/httpqueue"
	"github.com/sandrolain/httpqueue/diskcache"
)

// Config holds the configuration for creating a NATS K/V cache.
type Config struct {
	NATSUrl     string
	Bucket      string
	Description string
	TTL         time.Duration
	NATSOptions []nats.Option
}

// Cache is an httpqueue.Cache implementation backed by a NATS JetStream
// Key/Value bucket.
type Cache struct {
	kv jetstream.KeyValue
	nc *nats.Conn
}

// cacheKey prefixes keys for the bucket; NATS K/V keys may not contain ':'.
func cacheKey(key string) string {
	return "httpqueue." + key
}

// New connects to NATS, opens a JetStream context, and creates or updates
// the configured K/V bucket.
func New(ctx context.Context, config Config) (*Cache, error) {
	if config.Bucket == "" {
		return nil, fmt.Errorf("natskv: bucket name is required")
	}
	url := config.NATSUrl
	if url == "" {
		url = nats.DefaultURL
	}

	nc, err := nats.Connect(url, config.NATSOptions...)
	if err != nil {
		return nil, fmt.Errorf("natskv: connect: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("natskv: jetstream: %w", err)
	}

	kv, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      config.Bucket,
		Description: config.Description,
		TTL:         config.TTL,
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("natskv: create bucket: %w", err)
	}

	return &Cache{kv: kv, nc: nc}, nil
}

// NewWithKeyValue adapts an already-opened jetstream.KeyValue. Close is a
// no-op in this case; the caller owns the NATS connection.
func NewWithKeyValue(kv jetstream.KeyValue) *Cache {
	return &Cache{kv: kv}
}

func (c *Cache) Get(key string) (*httpqueue.CacheEntry, bool) {
	entry, err := c.kv.Get(context.Background(), cacheKey(key))
	if err != nil {
		return nil, false
	}
	decoded, err := diskcache.DecodeEntry(key, entry.Value())
	if err != nil {
		_ = c.Remove(key)
		return nil, false
	}
	return decoded, true
}

func (c *Cache) Put(key string, entry *httpqueue.CacheEntry) error {
	raw := diskcache.EncodeEntry(key, entry)
	if _, err := c.kv.Put(context.Background(), cacheKey(key), raw); err != nil {
		return fmt.Errorf("natskv: put: %w", err)
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
	if err := c.kv.Delete(context.Background(), cacheKey(key)); err != nil && err != jetstream.ErrKeyNotFound {
		return fmt.Errorf("natskv: delete: %w", err)
	}
	return nil
}

// Clear deletes every key under the "httpqueue." prefix in the bucket.
func (c *Cache) Clear() error {
	ctx := context.Background()
	keys, err := c.kv.ListKeys(ctx)
	if err != nil {
		return fmt.Errorf("natskv: list keys: %w", err)
	}
	for key := range keys.Keys() {
		if !strings.HasPrefix(key, cacheKey("")) {
			continue
		}
		_ = c.kv.Delete(ctx, key)
	}
	return nil
}

// Close closes the NATS connection if this Cache created it (via New).
func (c *Cache) Close() error {
	if c.nc != nil {
		c.nc.Close()
	}
	return nil
}

var _ httpqueue.Cache = (*Cache)(nil)
