package multicache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sandrolain/httpqueue"
	"github.com/sandrolain/httpqueue/backends/memory"
)

func TestNew(t *testing.T) {
	tier1, tier2 := memory.New(), memory.New()

	tests := []struct {
		name   string
		tiers  []httpqueue.Cache
		expect bool
	}{
		{name: "no tiers", tiers: nil, expect: false},
		{name: "nil tier", tiers: []httpqueue.Cache{tier1, nil}, expect: false},
		{name: "valid tiers", tiers: []httpqueue.Cache{tier1, tier2}, expect: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(tt.tiers...)
			if tt.expect {
				require.NotNil(t, c)
			} else {
				assert.Nil(t, c)
			}
		})
	}
}

func TestGetPromotesToFasterTiers(t *testing.T) {
	fast, slow := memory.New(), memory.New()
	c := New(fast, slow)
	require.NotNil(t, c)

	entry := &httpqueue.CacheEntry{Data: []byte("hello")}
	require.NoError(t, slow.Put("key", entry))

	_, ok := fast.Get("key")
	require.False(t, ok, "fast tier should not have the entry before a Get promotes it")

	got, ok := c.Get("key")
	require.True(t, ok)
	assert.Equal(t, []byte("hello"), got.Data)

	promoted, ok := fast.Get("key")
	require.True(t, ok, "Get through multicache should promote the hit to the faster tier")
	assert.Equal(t, []byte("hello"), promoted.Data)
}

func TestPutFansOutToAllTiers(t *testing.T) {
	tier1, tier2 := memory.New(), memory.New()
	c := New(tier1, tier2)
	require.NoError(t, c.Put("key", &httpqueue.CacheEntry{Data: []byte("v")}))

	for _, tier := range []*memory.Cache{tier1, tier2} {
		_, ok := tier.Get("key")
		assert.True(t, ok)
	}
}

func TestClearFansOutToAllTiers(t *testing.T) {
	tier1, tier2 := memory.New(), memory.New()
	c := New(tier1, tier2)
	require.NoError(t, c.Put("key", &httpqueue.CacheEntry{Data: []byte("v")}))
	require.NoError(t, c.Clear())

	for _, tier := range []*memory.Cache{tier1, tier2} {
		_, ok := tier.Get("key")
		assert.False(t, ok)
	}
}

var _ httpqueue.Cache = (*Cache)(nil)
