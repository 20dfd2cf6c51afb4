// Package postgresql adapts a PostgreSQL table into an httpqueue.Cache
// using pgx/v5, storing each entry's diskcache-encoded bytes in a BYTEA
// column.
package postgresql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sandrolain/httpqueue"
	"github.com/sandrolain/httpqueue/diskcache"
)

// ErrNilPool is returned when a nil pool is provided to NewWithPool.
var ErrNilPool = errors.New("postgresql: pool cannot be nil")

const (
	DefaultTableName = "httpqueue"
	DefaultKeyPrefix = "cache:"
)

// Config holds the configuration for the PostgreSQL cache.
type Config struct {
	TableName string
	KeyPrefix string
	Timeout   time.Duration
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{TableName: DefaultTableName, KeyPrefix: DefaultKeyPrefix, Timeout: 5 * time.Second}
}

// Cache is an httpqueue.Cache implementation backed by a PostgreSQL table.
type Cache struct {
	pool      *pgxpool.Pool
	tableName string
	keyPrefix string
	timeout   time.Duration
}

func (c *Cache) cacheKey(key string) string {
	return c.keyPrefix + key
}

func (c *Cache) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, has := ctx.Deadline(); has {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.timeout)
}

func (c *Cache) Get(key string) (*httpqueue.CacheEntry, bool) {
	ctx, cancel := c.withTimeout(context.Background())
	defer cancel()

	var data []byte
	query := `SELECT data FROM ` + c.tableName + ` WHERE key = $1`
	if err := c.pool.QueryRow(ctx, query, c.cacheKey(key)).Scan(&data); err != nil {
		return nil, false
	}

	entry, err := diskcache.DecodeEntry(key, data)
	if err != nil {
		_ = c.Remove(key)
		return nil, false
	}
	return entry, true
}

func (c *Cache) Put(key string, entry *httpqueue.CacheEntry) error {
	ctx, cancel := c.withTimeout(context.Background())
	defer cancel()

	raw := diskcache.EncodeEntry(key, entry)
	query := `
		INSERT INTO ` + c.tableName + ` (key, data, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE SET data = $2, updated_at = $3
	`
	if _, err := c.pool.Exec(ctx, query, c.cacheKey(key), raw, time.Now()); err != nil {
		return fmt.Errorf("postgresql: insert: %w", err)
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
	ctx, cancel := c.withTimeout(context.Background())
	defer cancel()
	query := `DELETE FROM ` + c.tableName + ` WHERE key = $1`
	if _, err := c.pool.Exec(ctx, query, c.cacheKey(key)); err != nil {
		return fmt.Errorf("postgresql: delete: %w", err)
	}
	return nil
}

func (c *Cache) Clear() error {
	ctx, cancel := c.withTimeout(context.Background())
	defer cancel()
	query := `DELETE FROM ` + c.tableName + ` WHERE key LIKE $1`
	if _, err := c.pool.Exec(ctx, query, c.keyPrefix+"%"); err != nil {
		return fmt.Errorf("postgresql: delete_all: %w", err)
	}
	return nil
}

// CreateTable creates the cache table if it doesn't exist.
func (c *Cache) CreateTable(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS ` + c.tableName + ` (
			key TEXT PRIMARY KEY,
			data BYTEA NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)
	`
	_, err := c.pool.Exec(ctx, query)
	return err
}

// Close closes the connection pool.
func (c *Cache) Close() {
	c.pool.Close()
}

// NewWithPool returns a new Cache using the provided connection pool. The
// caller must ensure CreateTable has been called once.
func NewWithPool(pool *pgxpool.Pool, config *Config) (*Cache, error) {
	if pool == nil {
		return nil, ErrNilPool
	}
	if config == nil {
		config = DefaultConfig()
	}
	return &Cache{pool: pool, tableName: config.TableName, keyPrefix: config.KeyPrefix, timeout: config.Timeout}, nil
}

// New creates a new Cache with a connection pool from connString, creating
// the cache table if it doesn't already exist.
func New(ctx context.Context, connString string, config *Config) (*Cache, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("postgresql: connect: %w", err)
	}
	if config == nil {
		config = DefaultConfig()
	}
	c := &Cache{pool: pool, tableName: config.TableName, keyPrefix: config.KeyPrefix, timeout: config.Timeout}
	if err := c.CreateTable(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgresql: create table: %w", err)
	}
	return c, nil
}

var _ httpqueue.Cache = (*Cache)(nil)
