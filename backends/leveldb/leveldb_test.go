package leveldb

import (
	"testing"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/storage"

	"github.com/sandrolain/httpqueue"
	"github.com/sandrolain/httpqueue/test"
)

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	db, err := leveldb.Open(storage.NewMemStorage(), nil)
	if err != nil {
		t.Fatalf("leveldb.Open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return NewWithDB(db)
}

func TestCache(t *testing.T) {
	test.Cache(t, newTestCache(t))
}

func TestClearOnNonEmptyKeyspace(t *testing.T) {
	c := newTestCache(t)
	for i, key := range []string{"a", "b", "c"} {
		if err := c.Put(key, &httpqueue.CacheEntry{Data: []byte{byte(i)}}); err != nil {
			t.Fatalf("Put(%s): %v", key, err)
		}
	}
	if err := c.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	for _, key := range []string{"a", "b", "c"} {
		if _, ok := c.Get(key); ok {
			t.Fatalf("key %q survived Clear", key)
		}
	}
}
