package scrape

import "sync"

// StoreIdentity is the last-known resolved store for a ZIP.
type StoreIdentity struct {
	ID   string
	Name string
}

// StoreCache remembers the last successful store resolution per ZIP so a
// persistent profile that already carries the right store can be confirmed
// via the badge alone, skipping the interactive switcher flow. Lifetime is
// the process; it is injected rather than hidden in a package global.
type StoreCache struct {
	mu      sync.Mutex
	entries map[string]StoreIdentity
}

// NewStoreCache constructs an empty cache.
func NewStoreCache() *StoreCache {
	return &StoreCache{entries: make(map[string]StoreIdentity)}
}

// Get returns the cached identity for zip, if any.
func (c *StoreCache) Get(zip string) (StoreIdentity, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id, ok := c.entries[zip]
	return id, ok
}

// Put records a successful resolution.
func (c *StoreCache) Put(zip string, id StoreIdentity) {
	if id.ID == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[zip] = id
}
