// Package cache provides an in-memory key/value store with per-entry TTL,
// access-frequency tracking, and a popular-key promotion policy. Entries
// expire lazily on read and are swept periodically; a near-expiry read of a
// popular key emits a refresh hint so callers can recompute ahead of time.
//
// Several named instances with different TTLs model different data classes
// (short-lived general data, long-lived image analysis results, per-user
// profiles, memoized quick answers); the algorithm is identical, only the
// configuration differs.
package cache
