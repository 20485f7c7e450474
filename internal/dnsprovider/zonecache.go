package dnsprovider

import (
	"strings"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
)

// zoneCache pairs the zoneName -> zoneId mapping with a lazily populated
// hostname -> zoneId cache. The two are an invariant-preserving unit:
// clearing one always clears the other, so resolution never returns a
// zone id for a zone that has since disappeared from the account.
//
// The hostname cache uses patrickmn/go-cache purely for its thread-safe
// map semantics (no expiry is configured) — entries live until Refresh
// is called, not until a TTL elapses.
type zoneCache struct {
	mu         sync.RWMutex
	zoneByName map[string]string

	hostnameZone *cache.Cache
}

func newZoneCache() *zoneCache {
	return &zoneCache{
		zoneByName:   map[string]string{},
		hostnameZone: cache.New(cache.NoExpiration, cache.NoExpiration),
	}
}

// Refresh replaces the zone name -> id mapping and drops every cached
// hostname resolution, since a stale entry could now point at a zone
// that was removed from the account.
func (c *zoneCache) Refresh(zones map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.zoneByName = zones
	c.hostnameZone.Flush()
}

// Count returns the number of zones currently cached.
func (c *zoneCache) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.zoneByName)
}

// Resolve returns the zone id owning hostname, trying the longest
// registrable-looking suffix first down to the shortest. A hit is
// memoized so repeat lookups for the same hostname are O(1).
func (c *zoneCache) Resolve(hostname string) (string, bool) {
	if id, found := c.hostnameZone.Get(hostname); found {
		return id.(string), true
	}

	c.mu.RLock()
	labels := strings.Split(hostname, ".")
	var zoneID string
	var ok bool
	for i := 0; i < len(labels); i++ {
		candidate := strings.Join(labels[i:], ".")
		if id, present := c.zoneByName[candidate]; present {
			zoneID, ok = id, true
			break
		}
	}
	c.mu.RUnlock()

	if ok {
		c.hostnameZone.Set(hostname, zoneID, cache.NoExpiration)
	}
	return zoneID, ok
}

// cacheEntryTTL exists only to document intent for future maintainers:
// this cache is write-once-per-hostname, not time-based, despite sharing
// a library with TTL caches elsewhere in the codebase.
const cacheEntryTTL = time.Duration(0)
