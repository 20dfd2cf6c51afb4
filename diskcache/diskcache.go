package diskcache

import (
	"container/list"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/sandrolain/httpqueue"
)

// DefaultMaxSize is used by New when no explicit capacity is supplied.
const DefaultMaxSize int64 = 20 * 1024 * 1024

// hysteresis is the H factor of spec §4.2's trim algorithm: trimming stops
// once current_size + new_entry_size <= H * max_size, leaving headroom so a
// write doesn't immediately re-trigger a trim.
const hysteresis = 0.9

type indexEntry struct {
	fileSize int64
	elem     *list.Element // position in writeOrder, value is the key
}

// Store is a synchronous, size-bounded on-disk implementation of
// httpqueue.Cache (component B, spec §4.2). Its in-memory index is rebuilt
// from per-file headers at construction, so there is no separate index
// file to keep consistent with the cache directory's contents.
type Store struct {
	root    string
	maxSize int64

	mu          sync.Mutex
	index       map[string]*indexEntry
	writeOrder  *list.List // front = oldest write, back = newest
	currentSize int64
}

// New opens (creating if necessary) a disk cache rooted at dir, bounded to
// maxSize total payload bytes, and rebuilds its index by scanning dir.
func New(dir string, maxSize int64) (*Store, error) {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("diskcache: create root: %w", err)
	}
	s := &Store{
		root:       dir,
		maxSize:    maxSize,
		index:      make(map[string]*indexEntry),
		writeOrder: list.New(),
	}
	if err := s.initialize(); err != nil {
		return nil, err
	}
	return s, nil
}

// initialize scans the cache directory, rebuilding the index and deleting
// any file that fails to parse (spec §4.2's initialize()).
func (s *Store) initialize() error {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return fmt.Errorf("diskcache: read root: %w", err)
	}
	for _, de := range entries {
		if de.IsDir() {
			continue
		}
		path := filepath.Join(s.root, de.Name())
		raw, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		key, derr := decodeStoredKey(raw)
		if derr != nil {
			_ = os.Remove(path)
			continue
		}
		elem := s.writeOrder.PushBack(key)
		s.index[key] = &indexEntry{fileSize: int64(len(raw)), elem: elem}
		s.currentSize += int64(len(raw))
	}
	return nil
}

func (s *Store) path(filename string) string {
	return filepath.Join(s.root, filename)
}

// Get implements httpqueue.Cache. A stored-key mismatch or magic mismatch
// deletes the file and removes it from the index, per spec §4.2.
func (s *Store) Get(key string) (*httpqueue.CacheEntry, bool) {
	filename := keyToFilename(key)

	s.mu.Lock()
	_, tracked := s.index[key]
	s.mu.Unlock()
	if !tracked {
		return nil, false
	}

	raw, err := os.ReadFile(s.path(filename))
	if err != nil {
		s.removeFromIndex(key)
		return nil, false
	}

	entry, err := decodeEntry(key, raw)
	if err != nil {
		_ = os.Remove(s.path(filename))
		s.removeFromIndex(key)
		return nil, false
	}
	return entry, true
}

// Put implements httpqueue.Cache: trims the cache if needed, then writes
// key's file. A payload larger than maxSize-1 bytes is refused outright.
func (s *Store) Put(key string, entry *httpqueue.CacheEntry) error {
	if int64(len(entry.Data)) > s.maxSize-1 {
		return fmt.Errorf("diskcache: entry for %q (%d bytes) exceeds max size %d", key, len(entry.Data), s.maxSize)
	}

	encoded := encodeEntry(key, entry)
	newSize := int64(len(encoded))

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.index[key]; ok {
		s.currentSize -= existing.fileSize
		s.writeOrder.Remove(existing.elem)
		delete(s.index, key)
	}

	if s.currentSize+newSize > s.maxSize {
		if !s.trimLocked(newSize) {
			// Even after evicting everything evictable, it still doesn't
			// fit within the hysteresis bound: abandon the write.
			return fmt.Errorf("diskcache: entry for %q does not fit after trim", key)
		}
	}

	if err := os.WriteFile(s.path(keyToFilename(key)), encoded, 0o644); err != nil {
		return fmt.Errorf("diskcache: write: %w", err)
	}

	elem := s.writeOrder.PushBack(key)
	s.index[key] = &indexEntry{fileSize: newSize, elem: elem}
	s.currentSize += newSize
	return nil
}

// trimLocked evicts entries in current on-disk (write) order until
// current_size + newSize <= H * max_size. Caller holds s.mu. Returns false
// if the target still isn't reachable after evicting everything.
func (s *Store) trimLocked(newSize int64) bool {
	limit := int64(hysteresis * float64(s.maxSize))
	for s.currentSize+newSize > limit {
		front := s.writeOrder.Front()
		if front == nil {
			return s.currentSize+newSize <= limit
		}
		key := front.Value.(string)
		idx := s.index[key]
		s.writeOrder.Remove(front)
		delete(s.index, key)
		s.currentSize -= idx.fileSize
		_ = os.Remove(s.path(keyToFilename(key)))
	}
	return true
}

// Invalidate implements httpqueue.Cache via read-modify-write, per spec
// §4.2: zeroes soft_ttl, and ttl too when fullExpire is set.
func (s *Store) Invalidate(key string, fullExpire bool) error {
	entry, ok := s.Get(key)
	if !ok {
		return nil
	}
	entry.SoftTTL = 0
	if fullExpire {
		entry.TTL = 0
	}
	return s.Put(key, entry)
}

// Remove implements httpqueue.Cache.
func (s *Store) Remove(key string) error {
	filename := keyToFilename(key)
	s.removeFromIndex(key)
	if err := os.Remove(s.path(filename)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("diskcache: remove: %w", err)
	}
	return nil
}

func (s *Store) removeFromIndex(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if idx, ok := s.index[key]; ok {
		s.writeOrder.Remove(idx.elem)
		s.currentSize -= idx.fileSize
		delete(s.index, key)
	}
}

// Clear implements httpqueue.Cache: deletes every tracked file and resets
// the index.
func (s *Store) Clear() error {
	s.mu.Lock()
	keys := make([]string, 0, len(s.index))
	for k := range s.index {
		keys = append(keys, k)
	}
	s.index = make(map[string]*indexEntry)
	s.writeOrder = list.New()
	s.currentSize = 0
	s.mu.Unlock()

	for _, k := range keys {
		_ = os.Remove(s.path(keyToFilename(k)))
	}
	return nil
}

// Size returns the current total payload size tracked by the index, for
// diagnostics and tests.
func (s *Store) Size() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentSize
}
