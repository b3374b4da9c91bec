// ABOUTME: Time-limited in-memory cache of agent metadata keyed by handle
// ABOUTME: Expired entries are treated as absent on read, never evicted early

package directory

import (
	"sync"
	"time"

	"github.com/parlorhq/parlor-go/internal/api"
)

// DefaultTTL bounds how stale a cached agent may be before a session open
// goes back to the network.
const DefaultTTL = 5 * time.Minute

// cacheEntry stores the agent and the time it was set.
type cacheEntry struct {
	agent api.Agent
	setAt time.Time
}

// Cache is a TTL-bounded map of agent metadata. Entries past the TTL are
// not proactively removed; they simply read as absent, and the next Set
// overwrites them with a fresh timestamp.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
	ttl     time.Duration
	now     func() time.Time
}

// New creates a cache with the given TTL. A non-positive TTL falls back to
// DefaultTTL.
func New(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		entries: make(map[string]cacheEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Get returns the cached agent for handle, or absent if never set or if
// the entry's TTL has elapsed.
func (c *Cache) Get(handle string) (api.Agent, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[handle]
	if !ok {
		return api.Agent{}, false
	}
	if c.now().Sub(entry.setAt) >= c.ttl {
		return api.Agent{}, false
	}
	return entry.agent, true
}

// Set stores the agent under handle, unconditionally overwriting any prior
// entry with a fresh timestamp.
func (c *Cache) Set(handle string, agent api.Agent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[handle] = cacheEntry{agent: agent, setAt: c.now()}
}
