package alertgate

import (
	"context"
	"sync"
	"time"
)

// DedupCache answers "have I seen this key recently", marking it seen as a
// side effect. The in-process implementation is always available; a
// Redis-backed implementation (§4.18) can replace it so multiple Supervisor
// instances share one dedup window.
type DedupCache interface {
	// SeenRecently returns true if key was already marked within ttl, and
	// marks it seen now regardless of the result.
	SeenRecently(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// InProcessDedup is a map-backed DedupCache with lazy TTL eviction.
type InProcessDedup struct {
	mu   sync.Mutex
	seen map[string]time.Time
}

// NewInProcessDedup builds an empty in-process dedup cache.
func NewInProcessDedup() *InProcessDedup {
	return &InProcessDedup{seen: make(map[string]time.Time)}
}

func (c *InProcessDedup) SeenRecently(_ context.Context, key string, ttl time.Duration) (bool, error) {
	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()

	expiry, ok := c.seen[key]
	recently := ok && now.Before(expiry)
	c.seen[key] = now.Add(ttl)

	// lazily forget long-expired keys so the map doesn't grow unbounded
	if len(c.seen) > 100000 {
		for k, exp := range c.seen {
			if now.After(exp) {
				delete(c.seen, k)
			}
		}
	}
	return recently, nil
}
