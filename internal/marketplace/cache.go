package marketplace

import "sync"

// Cache is a small concurrent string lookup cache. Instances are injected
// into the client rather than living as package state.
type Cache struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{values: make(map[string]string)}
}

// Get returns the cached value for key.
func (c *Cache) Get(key string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	value, ok := c.values[key]
	return value, ok
}

// Put stores a value.
func (c *Cache) Put(key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[key] = value
}

// Reset clears all entries.
func (c *Cache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values = make(map[string]string)
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.values)
}
