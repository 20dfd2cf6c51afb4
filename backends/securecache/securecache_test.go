package securecache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sandrolain/httpqueue"
	"github.com/sandrolain/httpqueue/backends/memory"
)

func TestNewRejectsNilCache(t *testing.T) {
	_, err := New(Config{Cache: nil})
	assert.Error(t, err)
}

func TestKeyHashingWithoutPassphrase(t *testing.T) {
	inner := memory.New()
	c, err := New(Config{Cache: inner})
	require.NoError(t, err)
	assert.False(t, c.IsEncrypted())

	entry := &httpqueue.CacheEntry{Data: []byte("plaintext"), TTL: 1000}
	require.NoError(t, c.Put("my-key", entry))

	_, ok := inner.Get("my-key")
	assert.False(t, ok, "underlying cache should never see the raw key")

	got, ok := c.Get("my-key")
	require.True(t, ok)
	assert.Equal(t, []byte("plaintext"), got.Data, "data is unchanged without a passphrase")
}

func TestEncryptionRoundTrip(t *testing.T) {
	inner := memory.New()
	c, err := New(Config{Cache: inner, Passphrase: "correct horse battery staple"})
	require.NoError(t, err)
	assert.True(t, c.IsEncrypted())

	entry := &httpqueue.CacheEntry{Data: []byte("super secret payload"), ETag: `"v1"`, TTL: 1000}
	require.NoError(t, c.Put("my-key", entry))

	hashedKey := c.hashKey("my-key")
	raw, ok := inner.Get(hashedKey)
	require.True(t, ok)
	assert.NotEqual(t, entry.Data, raw.Data, "stored bytes should be ciphertext, not plaintext")

	got, ok := c.Get("my-key")
	require.True(t, ok)
	assert.Equal(t, entry.Data, got.Data)
	assert.Equal(t, entry.ETag, got.ETag)
}

func TestDecryptWithWrongPassphraseFails(t *testing.T) {
	inner := memory.New()
	writer, err := New(Config{Cache: inner, Passphrase: "passphrase-one"})
	require.NoError(t, err)
	require.NoError(t, writer.Put("my-key", &httpqueue.CacheEntry{Data: []byte("secret")}))

	reader, err := New(Config{Cache: inner, Passphrase: "passphrase-two"})
	require.NoError(t, err)

	_, ok := reader.Get("my-key")
	assert.False(t, ok, "wrong passphrase must not decrypt the entry")
}

func TestInvalidateRemoveClearUseHashedKeys(t *testing.T) {
	inner := memory.New()
	c, err := New(Config{Cache: inner, Passphrase: "p"})
	require.NoError(t, err)

	require.NoError(t, c.Put("key", &httpqueue.CacheEntry{Data: []byte("v"), TTL: 1000, SoftTTL: 500}))
	require.NoError(t, c.Invalidate("key", false))
	_, ok := c.Get("key")
	require.True(t, ok, "soft invalidate keeps the entry retrievable")

	require.NoError(t, c.Remove("key"))
	_, ok = c.Get("key")
	assert.False(t, ok)

	require.NoError(t, c.Put("key2", &httpqueue.CacheEntry{Data: []byte("v2")}))
	require.NoError(t, c.Clear())
	_, ok = c.Get("key2")
	assert.False(t, ok)
}

var _ httpqueue.Cache = (*Cache)(nil)
