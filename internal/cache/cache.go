// ABOUTME: TTL cache with access statistics, popular-key promotion, and refresh hints.
// ABOUTME: Entries expire lazily on read; a background sweep removes the rest.

package cache

import (
	"log/slog"
	"sync"
	"time"
)

// Defaults for a cache instance.
const (
	DefaultTTL                 = 5 * time.Minute
	DefaultMaxEntries          = 100
	DefaultPopularityThreshold = 5

	// refreshFraction of the TTL after which a hit on a popular key emits a
	// refresh hint.
	refreshFraction = 0.8
)

// RefreshFunc is invoked (on the caller's goroutine) when a popular key is
// read close to its expiry. Implementations typically schedule an eager
// recompute; the default is to do nothing.
type RefreshFunc func(key string)

// entry is a stored value and the time it was stored. Owned exclusively by
// the cache that created it.
type entry struct {
	value    any
	storedAt time.Time
}

// accessStats tracks per-key read frequency.
type accessStats struct {
	count      int
	lastAccess time.Time
}

// Stats is a point-in-time snapshot of a cache instance.
type Stats struct {
	Name          string  `json:"name"`
	Size          int     `json:"size"`
	TotalAccesses int     `json:"total_accesses"`
	PopularKeys   int     `json:"popular_keys"`
	HitRate       float64 `json:"hit_rate"`
}

// Cache is a thread-safe expiring key/value store.
type Cache struct {
	mu         sync.Mutex
	name       string
	entries    map[string]entry
	access     map[string]*accessStats
	popular    map[string]struct{}
	ttl        time.Duration
	maxEntries int
	threshold  int
	onRefresh  RefreshFunc
	logger     *slog.Logger
	done       chan struct{}
	closed     bool
}

// Option configures a cache instance.
type Option func(*Cache)

// WithMaxEntries sets the soft size cap past which a Set triggers an
// opportunistic expired-entry cleanup.
func WithMaxEntries(n int) Option {
	return func(c *Cache) {
		if n > 0 {
			c.maxEntries = n
		}
	}
}

// WithPopularityThreshold sets the access count past which a key is promoted
// to popular.
func WithPopularityThreshold(n int) Option {
	return func(c *Cache) {
		if n > 0 {
			c.threshold = n
		}
	}
}

// WithRefreshFunc registers the callback invoked on near-expiry hits of
// popular keys.
func WithRefreshFunc(fn RefreshFunc) Option {
	return func(c *Cache) { c.onRefresh = fn }
}

// New creates a named cache with the given default TTL. A background
// goroutine sweeps expired entries once per TTL period; call Close to stop it.
func New(name string, ttl time.Duration, opts ...Option) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	c := &Cache{
		name:       name,
		entries:    make(map[string]entry),
		access:     make(map[string]*accessStats),
		popular:    make(map[string]struct{}),
		ttl:        ttl,
		maxEntries: DefaultMaxEntries,
		threshold:  DefaultPopularityThreshold,
		logger:     slog.Default().With("component", "cache", "cache", name),
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	go c.sweep()
	return c
}

// Get returns the value stored under key, or ok=false if the key is unknown
// or its TTL has lapsed. An expired entry is deleted as a side effect of
// being observed. A hit past 80% of the TTL on a popular key emits a refresh
// hint via the registered callback.
func (c *Cache) Get(key string) (any, bool) {
	c.mu.Lock()

	e, ok := c.entries[key]
	if !ok {
		c.mu.Unlock()
		return nil, false
	}

	c.trackAccessLocked(key)

	now := time.Now()
	elapsed := now.Sub(e.storedAt)
	if elapsed > c.ttl {
		delete(c.entries, key)
		_, wasPopular := c.popular[key]
		c.mu.Unlock()
		if wasPopular {
			c.logger.Debug("popular entry expired", "key", truncateKey(key))
		}
		return nil, false
	}

	var hint RefreshFunc
	if elapsed > time.Duration(float64(c.ttl)*refreshFraction) {
		if _, isPopular := c.popular[key]; isPopular {
			hint = c.onRefresh
		}
	}
	c.mu.Unlock()

	if hint != nil {
		c.logger.Debug("refresh hint for popular entry", "key", truncateKey(key))
		hint(key)
	}
	return e.value, true
}

// Set stores value under key, overwriting any previous entry. When the table
// has grown past the size cap, expired entries are purged opportunistically.
// Live entries are never evicted, so a cache whose working set exceeds the
// cap may grow beyond it.
func (c *Cache) Set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = entry{value: value, storedAt: time.Now()}

	if len(c.entries) > c.maxEntries {
		c.cleanupExpiredLocked(time.Now())
	}
}

// Delete removes the entry for key, if present.
func (c *Cache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// CleanupExpired removes every entry whose TTL has lapsed and returns how
// many were removed.
func (c *Cache) CleanupExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cleanupExpiredLocked(time.Now())
}

// cleanupExpiredLocked must be called with mu held.
func (c *Cache) cleanupExpiredLocked(now time.Time) int {
	removed := 0
	for key, e := range c.entries {
		if now.Sub(e.storedAt) > c.ttl {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

// trackAccessLocked bumps the access count for key and promotes it to
// popular once the count crosses the threshold. Popularity is monotonic for
// the life of the cache unless Clear is called. Must be called with mu held.
func (c *Cache) trackAccessLocked(key string) {
	st := c.access[key]
	if st == nil {
		st = &accessStats{}
		c.access[key] = st
	}
	st.count++
	st.lastAccess = time.Now()

	if st.count > c.threshold {
		c.popular[key] = struct{}{}
	}
}

// Preload asynchronously populates the cache with loader(key) for every key
// not already present. It returns immediately; keys are not guaranteed to be
// populated by the time it returns. Loader errors skip the key.
func (c *Cache) Preload(loader func(key string) (any, error), keys []string) {
	go func() {
		for _, key := range keys {
			c.mu.Lock()
			_, present := c.entries[key]
			c.mu.Unlock()
			if present {
				continue
			}

			value, err := loader(key)
			if err != nil {
				c.logger.Warn("preload failed", "key", truncateKey(key), "error", err)
				continue
			}
			c.Set(key, value)
			c.logger.Debug("preloaded entry", "key", truncateKey(key))
		}
	}()
}

// Clear removes all entries and resets access statistics and popularity.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]entry)
	c.access = make(map[string]*accessStats)
	c.popular = make(map[string]struct{})
}

// Stats returns a snapshot of the cache. HitRate is the heuristic
// (totalAccesses - size) / totalAccesses inherited from the original design;
// it approximates how often reads were served from an already-present entry
// and is not an exact hit/miss ratio.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	total := 0
	for _, st := range c.access {
		total += st.count
	}

	rate := 0.0
	if total > 0 {
		rate = float64(total-len(c.entries)) / float64(total)
		if rate < 0 {
			rate = 0
		}
	}

	return Stats{
		Name:          c.name,
		Size:          len(c.entries),
		TotalAccesses: total,
		PopularKeys:   len(c.popular),
		HitRate:       rate,
	}
}

// sweep periodically removes expired entries so an idle cache does not pin
// dead values.
func (c *Cache) sweep() {
	ticker := time.NewTicker(c.ttl)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.CleanupExpired()
		case <-c.done:
			return
		}
	}
}

// Close stops the background sweep goroutine. Safe to call multiple times.
func (c *Cache) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		close(c.done)
		c.closed = true
	}
}

// truncateKey shortens cache keys for logging; keys embed raw user text.
func truncateKey(key string) string {
	const max = 20
	if len(key) <= max {
		return key
	}
	return key[:max] + "..."
}
