package dnsprovider

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestZoneCacheResolveLongestSuffix(t *testing.T) {
	zc := newZoneCache()
	zc.Refresh(map[string]string{
		"example.com":     "zone-root",
		"sub.example.com": "zone-sub",
	})

	id, ok := zc.Resolve("worker-1.sub.example.com")
	assert.True(t, ok)
	assert.Equal(t, "zone-sub", id)

	id, ok = zc.Resolve("worker-1.example.com")
	assert.True(t, ok)
	assert.Equal(t, "zone-root", id)

	_, ok = zc.Resolve("worker-1.other.net")
	assert.False(t, ok)
}

func TestZoneCacheResolveMemoizes(t *testing.T) {
	zc := newZoneCache()
	zc.Refresh(map[string]string{"example.com": "zone-root"})

	id1, ok1 := zc.Resolve("a.example.com")
	assert.True(t, ok1)

	// Mutating the backing map after the fact must not affect an
	// already-memoized hostname resolution.
	zc.mu.Lock()
	zc.zoneByName["example.com"] = "zone-changed"
	zc.mu.Unlock()

	id2, ok2 := zc.Resolve("a.example.com")
	assert.True(t, ok2)
	assert.Equal(t, id1, id2)
}

func TestZoneCacheRefreshDropsHostnameCache(t *testing.T) {
	zc := newZoneCache()
	zc.Refresh(map[string]string{"example.com": "zone-root"})
	_, _ = zc.Resolve("a.example.com")

	zc.Refresh(map[string]string{})
	_, ok := zc.Resolve("a.example.com")
	assert.False(t, ok)
}
