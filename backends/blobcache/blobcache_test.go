package blobcache

import (
	"context"
	"testing"
	"time"

	_ "gocloud.dev/blob/memblob" // register mem:// scheme

	"github.com/sandrolain/httpqueue"
	"github.com/sandrolain/httpqueue/test"
)

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	c, err := New(context.Background(), Config{BucketURL: "mem://", KeyPrefix: "test/", Timeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestCache(t *testing.T) {
	test.Cache(t, newTestCache(t))
}

func TestNewRequiresBucketURLOrBucket(t *testing.T) {
	_, err := New(context.Background(), Config{})
	if err == nil {
		t.Fatal("expected an error when neither BucketURL nor Bucket is set")
	}
}

func TestNewWithPreOpenedBucketDoesNotOwnIt(t *testing.T) {
	owned, err := New(context.Background(), Config{BucketURL: "mem://"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer owned.Close()

	c, err := New(context.Background(), Config{Bucket: owned.bucket})
	if err != nil {
		t.Fatalf("New with a pre-opened bucket: %v", err)
	}
	if c.ownsBucket {
		t.Fatal("a caller-supplied bucket must not be marked as owned")
	}
	if err := c.Close(); err != nil {
		t.Fatalf("Close on a non-owned bucket should be a no-op, got %v", err)
	}
}

func TestBlobKeyIsPrefixedAndHashed(t *testing.T) {
	c := newTestCache(t)
	key := c.blobKey("http://example.com/a")
	if len(key) <= len("test/") {
		t.Fatalf("blobKey(%q) = %q, want a prefix followed by a hash", "http://example.com/a", key)
	}
	if got := key[:len("test/")]; got != "test/" {
		t.Fatalf("blobKey prefix = %q, want \"test/\"", got)
	}
}

func TestClearOnlyAffectsConfiguredPrefix(t *testing.T) {
	base, err := New(context.Background(), Config{BucketURL: "mem://"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer base.Close()

	cacheA := NewWithBucket(base.bucket, "a/", 0)
	cacheB := NewWithBucket(base.bucket, "b/", 0)

	entry := &httpqueue.CacheEntry{Data: []byte("v")}
	if err := cacheA.Put("key", entry); err != nil {
		t.Fatalf("Put into cacheA: %v", err)
	}
	if err := cacheB.Put("key", entry); err != nil {
		t.Fatalf("Put into cacheB: %v", err)
	}

	if err := cacheA.Clear(); err != nil {
		t.Fatalf("Clear on cacheA: %v", err)
	}

	if _, ok := cacheA.Get("key"); ok {
		t.Fatal("cacheA's entry should have been cleared")
	}
	if _, ok := cacheB.Get("key"); !ok {
		t.Fatal("cacheB's entry under a different prefix should survive cacheA.Clear")
	}
}

var _ httpqueue.Cache = (*Cache)(nil)
