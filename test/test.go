// Package test provides a shared conformance check for httpqueue.Cache
// implementations. The memory, leveldb, freecache, blobcache and diskv
// backends run it from their own tests.
package test

import (
	"bytes"
	"testing"

	"github.com/sandrolain/httpqueue"
)

// Cache exercises an httpqueue.Cache implementation's Get/Put/Invalidate/
// Remove/Clear contract.
func Cache(t *testing.T, cache httpqueue.Cache) {
	t.Helper()
	key := "test-key"

	if _, ok := cache.Get(key); ok {
		t.Fatal("retrieved key before adding it")
	}

	entry := &httpqueue.CacheEntry{
		Data:            []byte("some bytes"),
		ETag:            `"abc123"`,
		ServerDate:      1000,
		LastModified:    500,
		TTL:             2000,
		SoftTTL:         1500,
		ResponseHeaders: httpqueue.HeaderList{{Name: "Content-Type", Value: "text/plain"}},
	}
	if err := cache.Put(key, entry); err != nil {
		t.Fatalf("error putting entry: %v", err)
	}

	got, ok := cache.Get(key)
	if !ok {
		t.Fatal("could not retrieve an entry we just put")
	}
	if !bytes.Equal(got.Data, entry.Data) {
		t.Fatalf("retrieved different data: got %q want %q", got.Data, entry.Data)
	}
	if got.ETag != entry.ETag {
		t.Fatalf("retrieved different ETag: got %q want %q", got.ETag, entry.ETag)
	}
	if got.TTL != entry.TTL || got.SoftTTL != entry.SoftTTL {
		t.Fatalf("retrieved different TTLs: got (%d,%d) want (%d,%d)", got.TTL, got.SoftTTL, entry.TTL, entry.SoftTTL)
	}
	if v, ok := got.ResponseHeaders.Get("Content-Type"); !ok || v != "text/plain" {
		t.Fatalf("retrieved different headers: got %v", got.ResponseHeaders)
	}

	if err := cache.Invalidate(key, false); err != nil {
		t.Fatalf("error invalidating entry: %v", err)
	}
	got, ok = cache.Get(key)
	if !ok {
		t.Fatal("invalidated entry should still be retrievable")
	}
	if got.SoftTTL != 0 {
		t.Fatalf("invalidate should zero SoftTTL, got %d", got.SoftTTL)
	}
	if got.TTL == 0 {
		t.Fatal("partial invalidate should not zero TTL")
	}

	if err := cache.Invalidate(key, true); err != nil {
		t.Fatalf("error fully invalidating entry: %v", err)
	}
	got, ok = cache.Get(key)
	if !ok {
		t.Fatal("fully invalidated entry should still be retrievable")
	}
	if got.TTL != 0 {
		t.Fatalf("full invalidate should zero TTL, got %d", got.TTL)
	}

	if err := cache.Remove(key); err != nil {
		t.Fatalf("error removing entry: %v", err)
	}
	if _, ok := cache.Get(key); ok {
		t.Fatal("removed entry still present")
	}

	for i := 0; i < 3; i++ {
		if err := cache.Put(keyN(i), entry); err != nil {
			t.Fatalf("error putting entry %d: %v", i, err)
		}
	}
	if err := cache.Clear(); err != nil {
		t.Fatalf("error clearing cache: %v", err)
	}
	for i := 0; i < 3; i++ {
		if _, ok := cache.Get(keyN(i)); ok {
			t.Fatalf("entry %d survived Clear", i)
		}
	}
}

func keyN(i int) string {
	return "test-key-" + string(rune('a'+i))
}
