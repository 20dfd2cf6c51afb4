// Package blobcache adapts Go Cloud Development Kit blob storage
// (gocloud.dev/blob) into an httpqueue.Cache, so the same cache
// implementation runs unmodified against S3, GCS, Azure Blob Storage, an
// in-memory bucket, or the local filesystem depending on which driver is
// blank-imported by the caller.
package blobcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"time"

	"gocloud.dev/blob"
	"gocloud.dev/gcerrors"

	"github.com/sandrolain/httpqueue"
	"github.com/sandrolain/httpqueue/diskcache"
)

// Config holds the configuration for the blob cache.
type Config struct {
	// BucketURL is the Go Cloud blob URL (e.g. "s3://bucket?region=us-west-2").
	BucketURL string

	// KeyPrefix is prepended to all cache keys (default "cache/").
	KeyPrefix string

	// Timeout bounds each blob operation (default 30s).
	Timeout time.Duration

	// Bucket is an optional pre-opened bucket; if set, BucketURL is ignored.
	Bucket *blob.Bucket
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{KeyPrefix: "cache/", Timeout: 30 * time.Second}
}

// Cache is an httpqueue.Cache implementation backed by a Go Cloud blob
// bucket.
type Cache struct {
	bucket     *blob.Bucket
	keyPrefix  string
	timeout    time.Duration
	ownsBucket bool
}

// New opens the bucket named by config.BucketURL and returns a Cache. Call
// Close to release the bucket when done.
func New(ctx context.Context, config Config) (*Cache, error) {
	if config.BucketURL == "" && config.Bucket == nil {
		return nil, fmt.Errorf("blobcache: either BucketURL or Bucket must be provided")
	}
	if config.KeyPrefix == "" {
		config.KeyPrefix = DefaultConfig().KeyPrefix
	}
	if config.Timeout == 0 {
		config.Timeout = DefaultConfig().Timeout
	}

	if config.Bucket != nil {
		return &Cache{bucket: config.Bucket, keyPrefix: config.KeyPrefix, timeout: config.Timeout}, nil
	}

	bucket, err := blob.OpenBucket(ctx, config.BucketURL)
	if err != nil {
		return nil, fmt.Errorf("blobcache: open bucket: %w", err)
	}
	return &Cache{bucket: bucket, keyPrefix: config.KeyPrefix, timeout: config.Timeout, ownsBucket: true}, nil
}

// NewWithBucket adapts an already-opened bucket. The caller retains
// ownership and must close it.
func NewWithBucket(bucket *blob.Bucket, keyPrefix string, timeout time.Duration) *Cache {
	if keyPrefix == "" {
		keyPrefix = DefaultConfig().KeyPrefix
	}
	if timeout == 0 {
		timeout = DefaultConfig().Timeout
	}
	return &Cache{bucket: bucket, keyPrefix: keyPrefix, timeout: timeout}
}

// blobKey hashes the cache key with SHA-256 to sidestep character
// restrictions imposed by individual cloud blob stores.
func (c *Cache) blobKey(key string) string {
	hash := sha256.Sum256([]byte(key))
	return c.keyPrefix + hex.EncodeToString(hash[:])
}

func (c *Cache) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, hasDeadline := ctx.Deadline(); hasDeadline {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.timeout)
}

func (c *Cache) Get(key string) (*httpqueue.CacheEntry, bool) {
	ctx, cancel := c.withTimeout(context.Background())
	defer cancel()

	reader, err := c.bucket.NewReader(ctx, c.blobKey(key), nil)
	if err != nil {
		return nil, false
	}
	defer reader.Close()

	raw, err := io.ReadAll(reader)
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
	ctx, cancel := c.withTimeout(context.Background())
	defer cancel()

	raw := diskcache.EncodeEntry(key, entry)
	writer, err := c.bucket.NewWriter(ctx, c.blobKey(key), nil)
	if err != nil {
		return fmt.Errorf("blobcache: new writer: %w", err)
	}
	if _, err := writer.Write(raw); err != nil {
		writer.Close()
		return fmt.Errorf("blobcache: write: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("blobcache: close writer: %w", err)
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

	err := c.bucket.Delete(ctx, c.blobKey(key))
	if err != nil && gcerrors.Code(err) != gcerrors.NotFound {
		return fmt.Errorf("blobcache: delete: %w", err)
	}
	return nil
}

// Clear lists every blob under the configured prefix and deletes it. Cloud
// blob stores have no bulk-prefix-delete primitive, so this is a
// list-then-delete loop.
func (c *Cache) Clear() error {
	ctx, cancel := c.withTimeout(context.Background())
	defer cancel()

	iter := c.bucket.List(&blob.ListOptions{Prefix: c.keyPrefix})
	for {
		obj, err := iter.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("blobcache: list: %w", err)
		}
		if err := c.bucket.Delete(ctx, obj.Key); err != nil && gcerrors.Code(err) != gcerrors.NotFound {
			return fmt.Errorf("blobcache: clear delete %q: %w", obj.Key, err)
		}
	}
	return nil
}

// Close closes the bucket if this Cache opened it via New.
func (c *Cache) Close() error {
	if c.ownsBucket {
		return c.bucket.Close()
	}
	return nil
}

var _ httpqueue.Cache = (*Cache)(nil)
