// ABOUTME: Bounded LRU cache for backend object metadata
// ABOUTME: Keyed by object type name, holds the last-fetched describe blob

package adapter

import (
	"container/list"
	"encoding/json"
	"sync"
)

// DefaultCacheCapacity bounds the metadata cache when no explicit
// capacity is configured.
const DefaultCacheCapacity = 128

// metaEntry is the list payload for a cached describe blob.
type metaEntry struct {
	key   string
	value json.RawMessage
}

// MetadataCache is a thread-safe, size-bounded LRU cache for describe
// blobs. Repeated describes of the same object type answer from here
// without a backend round-trip. Least-recently-used entries are evicted
// once the capacity is reached; there is no TTL.
type MetadataCache struct {
	mu       sync.Mutex
	entries  map[string]*list.Element
	order    *list.List // front = most recently used
	capacity int
}

// NewMetadataCache creates a cache holding at most capacity entries.
// A non-positive capacity falls back to DefaultCacheCapacity.
func NewMetadataCache(capacity int) *MetadataCache {
	if capacity <= 0 {
		capacity = DefaultCacheCapacity
	}
	return &MetadataCache{
		entries:  make(map[string]*list.Element),
		order:    list.New(),
		capacity: capacity,
	}
}

// Get returns the cached blob for key, marking it most recently used.
func (c *MetadataCache) Get(key string) (json.RawMessage, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	c.order.MoveToFront(elem)
	return elem.Value.(*metaEntry).value, true
}

// Put stores a blob under key, evicting the least-recently-used entry
// if the cache is at capacity.
func (c *MetadataCache) Put(key string, value json.RawMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[key]; ok {
		elem.Value.(*metaEntry).value = value
		c.order.MoveToFront(elem)
		return
	}

	if len(c.entries) >= c.capacity {
		c.evictOldest()
	}

	elem := c.order.PushFront(&metaEntry{key: key, value: value})
	c.entries[key] = elem
}

// Len returns the number of cached entries.
func (c *MetadataCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// evictOldest removes the entry at the back of the recency list.
// Must be called with mu held.
func (c *MetadataCache) evictOldest() {
	back := c.order.Back()
	if back == nil {
		return
	}
	entry := back.Value.(*metaEntry)
	c.order.Remove(back)
	delete(c.entries, entry.key)
}
