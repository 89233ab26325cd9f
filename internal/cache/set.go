// ABOUTME: Named cache instances for the different data classes the gateway serves.
// ABOUTME: Same algorithm per instance, different TTL configuration.

package cache

import "time"

// Default TTLs per data class. Image analysis results are expensive to
// recompute and change rarely; per-user profile data goes stale quickly.
const (
	DefaultAppTTL      = 5 * time.Minute
	DefaultNLPTTL      = 10 * time.Minute
	DefaultImageTTL    = 30 * time.Minute
	DefaultUserTTL     = 5 * time.Minute
	DefaultResponseTTL = 10 * time.Minute
)

// Set bundles the named cache instances used across the gateway. They are
// constructed once at startup and passed by reference into the components
// that need them.
type Set struct {
	App      *Cache // general short-lived data
	NLP      *Cache // intent classification results
	Image    *Cache // image analysis results
	User     *Cache // per-user profile data
	Response *Cache // memoized quick answers
}

// NewSet creates the five named instances with their default TTLs.
func NewSet(opts ...Option) *Set {
	return &Set{
		App:      New("app", DefaultAppTTL, opts...),
		NLP:      New("nlp", DefaultNLPTTL, opts...),
		Image:    New("image", DefaultImageTTL, opts...),
		User:     New("user", DefaultUserTTL, opts...),
		Response: New("response", DefaultResponseTTL, opts...),
	}
}

// All returns the instances in a stable order for stats aggregation.
func (s *Set) All() []*Cache {
	return []*Cache{s.App, s.NLP, s.Image, s.User, s.Response}
}

// Close stops the sweep goroutine of every instance.
func (s *Set) Close() {
	for _, c := range s.All() {
		c.Close()
	}
}
