package freecache

import (
	"testing"

	"github.com/sandrolain/httpqueue"
	"github.com/sandrolain/httpqueue/test"
)

// minSize is freecache's own enforced minimum cache size.
const minSize = 512 * 1024

func TestCache(t *testing.T) {
	test.Cache(t, New(minSize))
}

func TestGetOnMissReturnsFalse(t *testing.T) {
	c := New(minSize)
	if _, ok := c.Get("missing"); ok {
		t.Fatal("expected a miss on an empty cache")
	}
}

func TestGetAfterCorruptRawBytesRemovesTheEntry(t *testing.T) {
	c := New(minSize)
	// Bypass EncodeEntry to store bytes that DecodeEntry cannot parse, then
	// confirm Get treats the corrupt entry as a miss and self-heals by
	// removing it instead of returning a decode error to the caller.
	if err := c.cache.Set([]byte("bad-key"), []byte("not a valid entry"), 0); err != nil {
		t.Fatalf("freecache Set: %v", err)
	}
	if _, ok := c.Get("bad-key"); ok {
		t.Fatal("expected corrupt bytes to read back as a miss")
	}
	if _, err := c.cache.Get([]byte("bad-key")); err == nil {
		t.Fatal("expected Get to have removed the corrupt entry from freecache")
	}
}

var _ httpqueue.Cache = (*Cache)(nil)
