// ABOUTME: Package monitor aggregates runtime stats and serves health endpoints.
// ABOUTME: Snapshots are advisory; counters come from components' own atomic counters.

// Package monitor collects point-in-time statistics from the caches, the
// connection pool, the responder, and the deduplicator, and serves them
// over /healthz and /stats for operators. It also renders the same data
// as a line-oriented text report for the CLI.
package monitor
