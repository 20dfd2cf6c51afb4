// Package securecache wraps an httpqueue.Cache to add SHA-256 key hashing
// (always on) and optional AES-256-GCM encryption of the CacheEntry body
// (when a passphrase is configured), independent of whatever storage engine
// the wrapped Cache uses.
package securecache

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"

	"golang.org/x/crypto/scrypt"

	"github.com/sandrolain/httpqueue"
)

const (
	scryptN   = 32768
	scryptR   = 8
	scryptP   = 1
	keyLength = 32
	nonceSize = 12
)

// Cache wraps an underlying httpqueue.Cache with key hashing and optional
// body encryption.
type Cache struct {
	cache      httpqueue.Cache
	gcm        cipher.AEAD
	passphrase string
}

// Config holds the configuration for a securing cache wrapper.
type Config struct {
	// Cache is the underlying cache implementation to wrap (required).
	Cache httpqueue.Cache
	// Passphrase enables AES-256-GCM encryption of CacheEntry.Data when set.
	// If empty, only key hashing is performed.
	Passphrase string
}

// New creates a new Cache wrapping config.Cache.
func New(config Config) (*Cache, error) {
	if config.Cache == nil {
		return nil, fmt.Errorf("securecache: underlying cache cannot be nil")
	}
	sc := &Cache{cache: config.Cache, passphrase: config.Passphrase}
	if config.Passphrase != "" {
		if err := sc.initEncryption(); err != nil {
			return nil, fmt.Errorf("securecache: init encryption: %w", err)
		}
	}
	return sc, nil
}

func (sc *Cache) initEncryption() error {
	salt := sha256.Sum256([]byte("httpqueue-securecache-salt-v1"))
	key, err := scrypt.Key([]byte(sc.passphrase), salt[:], scryptN, scryptR, scryptP, keyLength)
	if err != nil {
		return fmt.Errorf("derive key: %w", err)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return fmt.Errorf("new cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return fmt.Errorf("new gcm: %w", err)
	}
	sc.gcm = gcm
	return nil
}

func (sc *Cache) hashKey(key string) string {
	hash := sha256.Sum256([]byte(key))
	return hex.EncodeToString(hash[:])
}

func (sc *Cache) encrypt(data []byte) ([]byte, error) {
	if sc.gcm == nil {
		return data, nil
	}
	nonce := make([]byte, sc.gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	return sc.gcm.Seal(nonce, nonce, data, nil), nil
}

func (sc *Cache) decrypt(data []byte) ([]byte, error) {
	if sc.gcm == nil {
		return data, nil
	}
	if len(data) < nonceSize {
		return nil, fmt.Errorf("ciphertext too short")
	}
	nonce, ciphertext := data[:nonceSize], data[nonceSize:]
	return sc.gcm.Open(nil, nonce, ciphertext, nil)
}

func (sc *Cache) Get(key string) (*httpqueue.CacheEntry, bool) {
	hashedKey := sc.hashKey(key)
	entry, ok := sc.cache.Get(hashedKey)
	if !ok {
		return nil, false
	}
	if sc.gcm != nil {
		plaintext, err := sc.decrypt(entry.Data)
		if err != nil {
			httpqueue.GetLogger().Warn("securecache: decrypt failed", "key", hashedKey, "error", err)
			return nil, false
		}
		entry.Data = plaintext
	}
	return entry, true
}

func (sc *Cache) Put(key string, entry *httpqueue.CacheEntry) error {
	hashedKey := sc.hashKey(key)
	stored := *entry
	if sc.gcm != nil {
		encrypted, err := sc.encrypt(entry.Data)
		if err != nil {
			return fmt.Errorf("securecache: encrypt: %w", err)
		}
		stored.Data = encrypted
	}
	return sc.cache.Put(hashedKey, &stored)
}

func (sc *Cache) Invalidate(key string, fullExpire bool) error {
	return sc.cache.Invalidate(sc.hashKey(key), fullExpire)
}

func (sc *Cache) Remove(key string) error {
	return sc.cache.Remove(sc.hashKey(key))
}

func (sc *Cache) Clear() error {
	return sc.cache.Clear()
}

// IsEncrypted reports whether this cache was configured with a passphrase.
func (sc *Cache) IsEncrypted() bool {
	return sc.gcm != nil
}

var _ httpqueue.Cache = (*Cache)(nil)
