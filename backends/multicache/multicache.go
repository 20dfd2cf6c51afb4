// Package multicache combines several httpqueue.Cache tiers into one,
// ordered from fastest/smallest to slowest/largest. Reads search each tier
// in order and promote hits back to the faster tiers; writes and
// invalidations fan out to every tier.
package multicache

import (
	"github.com/sandrolain/httpqueue"
)

// Cache is a multi-tiered httpqueue.Cache. Tier 0 is checked first on Get
// and is the promotion target for hits found in slower tiers.
type Cache struct {
	tiers []httpqueue.Cache
}

// New creates a Cache with the given tiers, ordered fastest to slowest.
// Returns nil if no tiers are given or any tier is nil.
func New(tiers ...httpqueue.Cache) *Cache {
	if len(tiers) == 0 {
		return nil
	}
	for _, tier := range tiers {
		if tier == nil {
			return nil
		}
	}
	return &Cache{tiers: tiers}
}

func (c *Cache) Get(key string) (*httpqueue.CacheEntry, bool) {
	for i, tier := range c.tiers {
		entry, ok := tier.Get(key)
		if !ok {
			continue
		}
		c.promoteToFasterTiers(key, entry, i)
		return entry, true
	}
	return nil, false
}

func (c *Cache) Put(key string, entry *httpqueue.CacheEntry) error {
	for _, tier := range c.tiers {
		if err := tier.Put(key, entry); err != nil {
			return err
		}
	}
	return nil
}

func (c *Cache) Invalidate(key string, fullExpire bool) error {
	for _, tier := range c.tiers {
		if err := tier.Invalidate(key, fullExpire); err != nil {
			return err
		}
	}
	return nil
}

func (c *Cache) Remove(key string) error {
	for _, tier := range c.tiers {
		if err := tier.Remove(key); err != nil {
			return err
		}
	}
	return nil
}

func (c *Cache) Clear() error {
	for _, tier := range c.tiers {
		if err := tier.Clear(); err != nil {
			return err
		}
	}
	return nil
}

// promoteToFasterTiers writes entry to every tier faster than foundAtTier,
// best-effort; promotion failures do not fail the Get that triggered them.
func (c *Cache) promoteToFasterTiers(key string, entry *httpqueue.CacheEntry, foundAtTier int) {
	for i := 0; i < foundAtTier; i++ {
		_ = c.tiers[i].Put(key, entry)
	}
}

var _ httpqueue.Cache = (*Cache)(nil)
