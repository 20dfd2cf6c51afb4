package diskcache

import (
	"os"
	"testing"

	"github.com/sandrolain/httpqueue"
)

func newTestStore(t *testing.T, maxSize int64) *Store {
	t.Helper()
	dir, err := os.MkdirTemp("", "httpqueue-diskcache")
	if err != nil {
		t.Fatalf("MkdirTemp: %v", err)
	}
	t.Cleanup(func() { _ = os.RemoveAll(dir) })

	s, err := New(dir, maxSize)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func TestPutGetRoundTrip(t *testing.T) {
	s := newTestStore(t, DefaultMaxSize)

	entry := &httpqueue.CacheEntry{
		Data:            []byte("hello world"),
		ETag:            `"abc123"`,
		ServerDate:      1000,
		LastModified:    500,
		TTL:             2000,
		SoftTTL:         1500,
		ResponseHeaders: httpqueue.HeaderList{{Name: "Content-Type", Value: "text/plain"}},
	}

	if err := s.Put("https://example.com/a", entry); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, ok := s.Get("https://example.com/a")
	if !ok {
		t.Fatalf("Get: entry not found")
	}
	if string(got.Data) != "hello world" {
		t.Errorf("Data = %q, want %q", got.Data, "hello world")
	}
	if got.ETag != entry.ETag {
		t.Errorf("ETag = %q, want %q", got.ETag, entry.ETag)
	}
	if got.TTL != entry.TTL || got.SoftTTL != entry.SoftTTL {
		t.Errorf("TTL/SoftTTL = %d/%d, want %d/%d", got.TTL, got.SoftTTL, entry.TTL, entry.SoftTTL)
	}
	if v := got.ResponseHeaders.GetOrEmpty("Content-Type"); v != "text/plain" {
		t.Errorf("Content-Type header = %q, want text/plain", v)
	}
}

func TestGetMissing(t *testing.T) {
	s := newTestStore(t, DefaultMaxSize)
	if _, ok := s.Get("nope"); ok {
		t.Fatalf("Get: expected miss")
	}
}

func TestEmptyHeaderListAndEmptyETagRoundTrip(t *testing.T) {
	s := newTestStore(t, DefaultMaxSize)
	entry := &httpqueue.CacheEntry{Data: []byte("x")}

	if err := s.Put("k", entry); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, ok := s.Get("k")
	if !ok {
		t.Fatalf("Get: not found")
	}
	if got.ETag != "" {
		t.Errorf("ETag = %q, want empty", got.ETag)
	}
	if len(got.ResponseHeaders) != 0 {
		t.Errorf("ResponseHeaders = %v, want empty", got.ResponseHeaders)
	}
}

func TestInvalidate(t *testing.T) {
	s := newTestStore(t, DefaultMaxSize)
	entry := &httpqueue.CacheEntry{Data: []byte("x"), TTL: 9999, SoftTTL: 9999}
	_ = s.Put("k", entry)

	if err := s.Invalidate("k", false); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}
	got, _ := s.Get("k")
	if got.SoftTTL != 0 {
		t.Errorf("SoftTTL = %d, want 0", got.SoftTTL)
	}
	if got.TTL != 9999 {
		t.Errorf("TTL = %d, want unchanged 9999", got.TTL)
	}

	if err := s.Invalidate("k", true); err != nil {
		t.Fatalf("Invalidate full: %v", err)
	}
	got, _ = s.Get("k")
	if got.TTL != 0 {
		t.Errorf("TTL = %d, want 0 after full expire", got.TTL)
	}
}

func TestRemoveAndClear(t *testing.T) {
	s := newTestStore(t, DefaultMaxSize)
	_ = s.Put("a", &httpqueue.CacheEntry{Data: []byte("1")})
	_ = s.Put("b", &httpqueue.CacheEntry{Data: []byte("2")})

	if err := s.Remove("a"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, ok := s.Get("a"); ok {
		t.Errorf("Get(a): expected miss after Remove")
	}

	if err := s.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if _, ok := s.Get("b"); ok {
		t.Errorf("Get(b): expected miss after Clear")
	}
	if s.Size() != 0 {
		t.Errorf("Size = %d, want 0 after Clear", s.Size())
	}
}

func TestEvictionRespectsHysteresis(t *testing.T) {
	// Small cache: each entry is 57 bytes on disk (header, one-byte key) + payload.
	const maxSize = 300
	s := newTestStore(t, maxSize)

	payload := make([]byte, 50)
	for i := 0; i < 10; i++ {
		key := string(rune('a' + i))
		if err := s.Put(key, &httpqueue.CacheEntry{Data: payload}); err != nil {
			t.Fatalf("Put(%s): %v", key, err)
		}
	}

	if s.Size() > int64(hysteresis*float64(maxSize))+int64(len(payload))+64 {
		t.Errorf("Size = %d exceeds hysteresis-bounded capacity", s.Size())
	}

	// The most recently written entry must have survived eviction.
	if _, ok := s.Get("j"); !ok {
		t.Errorf("Get(j): most recent entry should not have been evicted")
	}
}

func TestOversizedEntryRejected(t *testing.T) {
	s := newTestStore(t, 100)
	big := make([]byte, 200)
	if err := s.Put("huge", &httpqueue.CacheEntry{Data: big}); err == nil {
		t.Fatalf("Put: expected error for oversized entry")
	}
}

func TestInitializeRebuildsIndexFromDirectory(t *testing.T) {
	dir, err := os.MkdirTemp("", "httpqueue-diskcache")
	if err != nil {
		t.Fatalf("MkdirTemp: %v", err)
	}
	defer os.RemoveAll(dir)

	s1, err := New(dir, DefaultMaxSize)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	_ = s1.Put("persisted", &httpqueue.CacheEntry{Data: []byte("data")})

	s2, err := New(dir, DefaultMaxSize)
	if err != nil {
		t.Fatalf("New (reopen): %v", err)
	}
	got, ok := s2.Get("persisted")
	if !ok {
		t.Fatalf("Get: expected entry rebuilt from directory scan")
	}
	if string(got.Data) != "data" {
		t.Errorf("Data = %q, want %q", got.Data, "data")
	}
}
