// Package compresscache wraps an httpqueue.Cache to transparently compress
// the response body of each CacheEntry, trading CPU for storage and
// transport bandwidth on whatever cache it wraps. Headers and freshness
// metadata are passed through untouched.
package compresscache

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"io"

	"github.com/andybalholm/brotli"
	"github.com/golang/snappy"

	"github.com/sandrolain/httpqueue"
)

// Algorithm selects the compression codec.
type Algorithm int

const (
	Gzip Algorithm = iota
	Brotli
	Snappy
)

func (a Algorithm) String() string {
	switch a {
	case Gzip:
		return "gzip"
	case Brotli:
		return "brotli"
	case Snappy:
		return "snappy"
	default:
		return "unknown"
	}
}

// noneMarker indicates an entry body was stored uncompressed, e.g. because
// compression failed or the algorithm marker byte was unrecognized.
const noneMarker = 0

// Cache wraps an underlying httpqueue.Cache, compressing CacheEntry.Data
// with the configured algorithm before storing and decompressing on read.
type Cache struct {
	cache     httpqueue.Cache
	algorithm Algorithm
	level     int
}

// Config holds the configuration for a compressing cache wrapper.
type Config struct {
	// Cache is the underlying cache to wrap (required).
	Cache httpqueue.Cache
	// Algorithm selects the codec (default Gzip).
	Algorithm Algorithm
	// Level is the compression level for Gzip (-2..9) or Brotli (0..11).
	// Zero selects the codec's default (gzip.DefaultCompression, or 6 for
	// Brotli). Unused for Snappy.
	Level int
}

// New creates a new compressing Cache wrapper.
func New(config Config) (*Cache, error) {
	if config.Cache == nil {
		return nil, fmt.Errorf("compresscache: underlying cache cannot be nil")
	}
	level := config.Level
	switch config.Algorithm {
	case Gzip:
		if level == 0 {
			level = gzip.DefaultCompression
		}
		if level < gzip.HuffmanOnly || level > gzip.BestCompression {
			return nil, fmt.Errorf("compresscache: invalid gzip level %d", level)
		}
	case Brotli:
		if level == 0 {
			level = 6
		}
		if level < 0 || level > 11 {
			return nil, fmt.Errorf("compresscache: invalid brotli level %d", level)
		}
	}
	return &Cache{cache: config.Cache, algorithm: config.Algorithm, level: level}, nil
}

func (c *Cache) compress(data []byte) ([]byte, error) {
	switch c.algorithm {
	case Gzip:
		var buf bytes.Buffer
		w, err := gzip.NewWriterLevel(&buf, c.level)
		if err != nil {
			return nil, fmt.Errorf("gzip writer: %w", err)
		}
		if _, err := w.Write(data); err != nil {
			w.Close()
			return nil, fmt.Errorf("gzip write: %w", err)
		}
		if err := w.Close(); err != nil {
			return nil, fmt.Errorf("gzip close: %w", err)
		}
		return buf.Bytes(), nil
	case Brotli:
		var buf bytes.Buffer
		w := brotli.NewWriterLevel(&buf, c.level)
		if _, err := w.Write(data); err != nil {
			w.Close()
			return nil, fmt.Errorf("brotli write: %w", err)
		}
		if err := w.Close(); err != nil {
			return nil, fmt.Errorf("brotli close: %w", err)
		}
		return buf.Bytes(), nil
	case Snappy:
		return snappy.Encode(nil, data), nil
	default:
		return nil, fmt.Errorf("compresscache: unknown algorithm %v", c.algorithm)
	}
}

func (c *Cache) decompress(data []byte, algorithm Algorithm) ([]byte, error) {
	switch algorithm {
	case Gzip:
		r, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("gzip reader: %w", err)
		}
		defer r.Close()
		return io.ReadAll(r)
	case Brotli:
		return io.ReadAll(brotli.NewReader(bytes.NewReader(data)))
	case Snappy:
		return snappy.Decode(nil, data)
	default:
		return nil, fmt.Errorf("compresscache: unknown algorithm %v", algorithm)
	}
}

func (c *Cache) Get(key string) (*httpqueue.CacheEntry, bool) {
	entry, ok := c.cache.Get(key)
	if !ok {
		return nil, false
	}
	if len(entry.Data) < 1 {
		return entry, true
	}

	marker := entry.Data[0]
	if marker == noneMarker {
		entry.Data = entry.Data[1:]
		return entry, true
	}

	decompressed, err := c.decompress(entry.Data[1:], Algorithm(marker-1))
	if err != nil {
		httpqueue.GetLogger().Warn("compresscache: decompression failed", "key", key, "error", err)
		return nil, false
	}
	entry.Data = decompressed
	return entry, true
}

func (c *Cache) Put(key string, entry *httpqueue.CacheEntry) error {
	compressed, err := c.compress(entry.Data)
	stored := *entry
	if err != nil {
		httpqueue.GetLogger().Warn("compresscache: compression failed, storing raw", "key", key, "algorithm", c.algorithm.String(), "error", err)
		stored.Data = append([]byte{noneMarker}, entry.Data...)
		return c.cache.Put(key, &stored)
	}
	stored.Data = append([]byte{byte(c.algorithm + 1)}, compressed...)
	return c.cache.Put(key, &stored)
}

func (c *Cache) Invalidate(key string, fullExpire bool) error {
	return c.cache.Invalidate(key, fullExpire)
}

func (c *Cache) Remove(key string) error {
	return c.cache.Remove(key)
}

func (c *Cache) Clear() error {
	return c.cache.Clear()
}

var _ httpqueue.Cache = (*Cache)(nil)
