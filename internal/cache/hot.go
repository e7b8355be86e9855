package cache

import (
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// HotTier is the bounded in-process tier. Entries carry their own TTL
// for freshness checks; the underlying store evicts on a longer horizon
// so expired entries can still serve as stale fallbacks until pressure
// pushes them out.
type HotTier struct {
	cache      *gocache.Cache
	maxEntries int
}

// hotEvictionWindow keeps stale-candidate entries around after their
// logical TTL lapses.
const hotEvictionWindow = 24 * time.Hour

// NewHotTier creates the hot tier with a maximum entry count.
func NewHotTier(maxEntries int) *HotTier {
	return &HotTier{
		cache:      gocache.New(hotEvictionWindow, hotEvictionWindow/2),
		maxEntries: maxEntries,
	}
}

func hotKey(collectorKey, requestHash string) string {
	return collectorKey + ":" + requestHash
}

// Get retrieves an entry; freshness is the caller's concern.
func (h *HotTier) Get(collectorKey, requestHash string) (*Entry, bool) {
	v, found := h.cache.Get(hotKey(collectorKey, requestHash))
	if !found {
		return nil, false
	}
	entry, ok := v.(*Entry)
	return entry, ok
}

// Set stores an entry, shedding expired items when the bound is hit.
func (h *HotTier) Set(entry *Entry) {
	if h.cache.ItemCount() >= h.maxEntries {
		h.cache.DeleteExpired()
	}
	h.cache.Set(hotKey(entry.CollectorKey, entry.RequestHash), entry, hotEvictionWindow)
}

// ItemCount returns the number of resident entries.
func (h *HotTier) ItemCount() int {
	return h.cache.ItemCount()
}
