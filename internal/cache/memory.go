package cache

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/tidwall/match"
)

// MemoryCache is an in-process LRU cache with per-entry expiry.
type MemoryCache struct {
	capacity int
	cache    map[string]*list.Element
	lru      *list.List
	mu       sync.Mutex
	now      func() time.Time
}

type cacheEntry struct {
	key       string
	value     []byte
	expiresAt time.Time
}

// NewMemoryCache creates a new cache with the given capacity.
func NewMemoryCache(capacity int) *MemoryCache {
	if capacity <= 0 {
		capacity = 1000
	}
	return &MemoryCache{
		capacity: capacity,
		cache:    make(map[string]*list.Element),
		lru:      list.New(),
		now:      time.Now,
	}
}

// Get returns the cached value for key if present and not expired.
func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.cache[key]
	if !ok {
		return nil, false, nil
	}
	entry := elem.Value.(*cacheEntry)
	if c.expired(entry) {
		c.removeElement(elem)
		return nil, false, nil
	}
	c.lru.MoveToFront(elem)
	return entry.value, true, nil
}

// Set stores value for key, evicting the least recently used entry if at capacity.
// A zero ttl means the entry does not expire.
func (c *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = c.now().Add(ttl)
	}

	if elem, ok := c.cache[key]; ok {
		c.lru.MoveToFront(elem)
		entry := elem.Value.(*cacheEntry)
		entry.value = value
		entry.expiresAt = expiresAt
		return nil
	}

	entry := &cacheEntry{key: key, value: value, expiresAt: expiresAt}
	elem := c.lru.PushFront(entry)
	c.cache[key] = elem

	if c.lru.Len() > c.capacity {
		if oldest := c.lru.Back(); oldest != nil {
			c.removeElement(oldest)
		}
	}
	return nil
}

// Delete removes keys; missing keys are ignored.
func (c *MemoryCache) Delete(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, key := range keys {
		if elem, ok := c.cache[key]; ok {
			c.removeElement(elem)
		}
	}
	return nil
}

// Keys returns the live keys matching pattern.
func (c *MemoryCache) Keys(_ context.Context, pattern string) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var keys []string
	for key, elem := range c.cache {
		if c.expired(elem.Value.(*cacheEntry)) {
			c.removeElement(elem)
			continue
		}
		if match.Match(key, pattern) {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

// Len returns the number of entries, including expired ones not yet evicted.
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

func (c *MemoryCache) Ping(context.Context) error { return nil }

func (c *MemoryCache) Close() error { return nil }

func (c *MemoryCache) expired(e *cacheEntry) bool {
	return !e.expiresAt.IsZero() && !c.now().Before(e.expiresAt)
}

func (c *MemoryCache) removeElement(elem *list.Element) {
	c.lru.Remove(elem)
	delete(c.cache, elem.Value.(*cacheEntry).key)
}
