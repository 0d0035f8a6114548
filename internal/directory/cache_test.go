package directory

import (
	"fmt"
	"testing"
	"time"
)

func TestTTLCache_GetSet(t *testing.T) {
	cache := NewTTLCache(time.Minute, 0)

	if _, ok := cache.Get("missing"); ok {
		t.Error("Get() on empty cache reported a hit")
	}

	cache.Set("MANAGER/emp-7", "mgr-42")
	value, ok := cache.Get("MANAGER/emp-7")
	if !ok || value != "mgr-42" {
		t.Errorf("Get() = (%q, %v), want (mgr-42, true)", value, ok)
	}
}

func TestTTLCache_Expiry(t *testing.T) {
	current := time.Now()
	cache := NewTTLCache(time.Minute, 0)
	cache.now = func() time.Time { return current }

	cache.Set("key", "value")

	current = current.Add(30 * time.Second)
	if _, ok := cache.Get("key"); !ok {
		t.Error("entry expired before its TTL")
	}

	current = current.Add(31 * time.Second)
	if _, ok := cache.Get("key"); ok {
		t.Error("entry survived past its TTL")
	}
	if cache.Len() != 0 {
		t.Errorf("Len() = %d after lazy eviction, want 0", cache.Len())
	}
}

func TestTTLCache_BoundedGrowth(t *testing.T) {
	cache := NewTTLCache(time.Minute, 4)

	for i := 0; i < 10; i++ {
		cache.Set(fmt.Sprintf("key-%d", i), "value")
	}

	if cache.Len() > 4 {
		t.Errorf("Len() = %d, want at most 4", cache.Len())
	}
}

func TestTTLCache_SetEvictsExpiredBeforeDroppingFresh(t *testing.T) {
	current := time.Now()
	cache := NewTTLCache(time.Minute, 2)
	cache.now = func() time.Time { return current }

	cache.Set("stale", "old")
	current = current.Add(2 * time.Minute)
	cache.Set("fresh", "new")
	cache.Set("newer", "new")

	if _, ok := cache.Get("fresh"); !ok {
		t.Error("fresh entry evicted while an expired one could be dropped")
	}
	if _, ok := cache.Get("stale"); ok {
		t.Error("expired entry survived eviction")
	}
}

func TestTTLCache_Delete(t *testing.T) {
	cache := NewTTLCache(time.Minute, 0)
	cache.Set("key", "value")
	cache.Delete("key")

	if _, ok := cache.Get("key"); ok {
		t.Error("Get() after Delete() reported a hit")
	}
}
