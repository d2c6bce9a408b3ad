package memory

import (
	"sync"
	"time"
)

// CooldownMap stores last-request timestamps per (connection, target) key.
type CooldownMap struct {
	mu      sync.Mutex
	entries map[string]time.Time
}

func NewCooldownMap() *CooldownMap {
	return &CooldownMap{entries: make(map[string]time.Time)}
}

func (c *CooldownMap) Last(key string) (time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	at, ok := c.entries[key]
	return at, ok
}

func (c *CooldownMap) Set(key string, at time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = at
}

func (c *CooldownMap) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

func (c *CooldownMap) PurgeBefore(cutoff time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	purged := 0
	for key, at := range c.entries {
		if at.Before(cutoff) {
			delete(c.entries, key)
			purged++
		}
	}
	return purged
}
