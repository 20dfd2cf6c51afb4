package compresscache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sandrolain/httpqueue"
	"github.com/sandrolain/httpqueue/backends/memory"
)

func TestNewRejectsNilCache(t *testing.T) {
	_, err := New(Config{Cache: nil, Algorithm: Gzip})
	assert.Error(t, err)
}

func TestNewRejectsInvalidLevels(t *testing.T) {
	_, err := New(Config{Cache: memory.New(), Algorithm: Gzip, Level: 100})
	assert.Error(t, err)

	_, err = New(Config{Cache: memory.New(), Algorithm: Brotli, Level: 42})
	assert.Error(t, err)
}

func TestRoundTripEachAlgorithm(t *testing.T) {
	for _, algo := range []Algorithm{Gzip, Brotli, Snappy} {
		t.Run(algo.String(), func(t *testing.T) {
			inner := memory.New()
			c, err := New(Config{Cache: inner, Algorithm: algo})
			require.NoError(t, err)

			entry := &httpqueue.CacheEntry{
				Data: []byte("the quick brown fox jumps over the lazy dog, repeated for compressibility: " +
					"the quick brown fox jumps over the lazy dog"),
				ETag: `"v1"`,
				TTL:  1000,
			}
			require.NoError(t, c.Put("key", entry))

			rawStored, ok := inner.Get("key")
			require.True(t, ok)
			assert.NotEqual(t, entry.Data, rawStored.Data, "stored bytes should differ from original (compressed + marker byte)")

			got, ok := c.Get("key")
			require.True(t, ok)
			assert.Equal(t, entry.Data, got.Data)
			assert.Equal(t, entry.ETag, got.ETag)
			assert.Equal(t, entry.TTL, got.TTL)
		})
	}
}

func TestGetOnMissReturnsFalse(t *testing.T) {
	c, err := New(Config{Cache: memory.New(), Algorithm: Gzip})
	require.NoError(t, err)

	_, ok := c.Get("missing")
	assert.False(t, ok)
}

func TestInvalidateRemoveClearDelegate(t *testing.T) {
	inner := memory.New()
	c, err := New(Config{Cache: inner, Algorithm: Snappy})
	require.NoError(t, err)

	require.NoError(t, c.Put("key", &httpqueue.CacheEntry{Data: []byte("payload"), TTL: 1000, SoftTTL: 500}))

	require.NoError(t, c.Invalidate("key", false))
	_, ok := inner.Get("key")
	require.True(t, ok, "soft invalidate should not remove the entry")

	require.NoError(t, c.Remove("key"))
	_, ok = c.Get("key")
	assert.False(t, ok)

	require.NoError(t, c.Put("key2", &httpqueue.CacheEntry{Data: []byte("payload2")}))
	require.NoError(t, c.Clear())
	_, ok = c.Get("key2")
	assert.False(t, ok)
}

var _ httpqueue.Cache = (*Cache)(nil)
