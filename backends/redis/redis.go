// Package redis adapts a Redis server into an httpqueue.Cache, using
// go-redis/v9 as the client and diskcache's on-disk byte encoding as the
// wire format for values, so entries written by this backend are
// byte-compatible with diskcache.Store files.
package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/sandrolain/httpqueue"
	"github.com/sandrolain/httpqueue/diskcache"
)

// Config holds the configuration for creating a Redis-backed Cache.
type Config struct {
	Address  string
	Password string
	DB       int

	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// KeyPrefix namespaces every key this cache writes, to avoid collision
	// with other data stored in the same Redis keyspace. Defaults to
	// "httpqueue:".
	KeyPrefix string
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		DialTimeout:  5 * time.Second,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
		KeyPrefix:    "httpqueue:",
	}
}

// Cache is an httpqueue.Cache implementation backed by Redis.
type Cache struct {
	client *goredis.Client
	prefix string
}

// New connects to the Redis server described by config and returns a Cache.
func New(config Config) (*Cache, error) {
	if config.Address == "" {
		return nil, fmt.Errorf("redis: address is required")
	}
	def := DefaultConfig()
	if config.DialTimeout == 0 {
		config.DialTimeout = def.DialTimeout
	}
	if config.ReadTimeout == 0 {
		config.ReadTimeout = def.ReadTimeout
	}
	if config.WriteTimeout == 0 {
		config.WriteTimeout = def.WriteTimeout
	}
	if config.KeyPrefix == "" {
		config.KeyPrefix = def.KeyPrefix
	}

	client := goredis.NewClient(&goredis.Options{
		Addr:         config.Address,
		Password:     config.Password,
		DB:           config.DB,
		DialTimeout:  config.DialTimeout,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), config.DialTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis: connect: %w", err)
	}

	return &Cache{client: client, prefix: config.KeyPrefix}, nil
}

// NewWithClient adapts an already-constructed *goredis.Client.
func NewWithClient(client *goredis.Client, keyPrefix string) *Cache {
	if keyPrefix == "" {
		keyPrefix = "httpqueue:"
	}
	return &Cache{client: client, prefix: keyPrefix}
}

func (c *Cache) wireKey(key string) string {
	return c.prefix + key
}

func (c *Cache) Get(key string) (*httpqueue.CacheEntry, bool) {
	raw, err := c.client.Get(context.Background(), c.wireKey(key)).Bytes()
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
	if err := c.client.Set(context.Background(), c.wireKey(key), raw, 0).Err(); err != nil {
		return fmt.Errorf("redis: set: %w", err)
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
	if err := c.client.Del(context.Background(), c.wireKey(key)).Err(); err != nil {
		return fmt.Errorf("redis: del: %w", err)
	}
	return nil
}

// Clear deletes every key under this cache's prefix. Uses SCAN rather than
// KEYS so it doesn't block the Redis server on a large keyspace.
func (c *Cache) Clear() error {
	ctx := context.Background()
	iter := c.client.Scan(ctx, 0, c.prefix+"*", 0).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis: scan: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}

// Close releases the underlying connection pool.
func (c *Cache) Close() error {
	return c.client.Close()
}

var _ httpqueue.Cache = (*Cache)(nil)
