// Package gateway orchestrates the foodbot-gateway server components.
//
// # Overview
//
// The gateway package is the central coordinator of the server. It owns and
// manages all major components: the sqlite store and its connection pool,
// the cache set, the event deduplicator, the tiered responder, the LINE
// client, the slow-path worker pool, and the HTTP server.
//
// # Wiring
//
// New() constructs everything from configuration and injects dependencies
// explicitly; there are no package-level singletons. The request flow is:
//
//	POST /webhook
//	  → signature check
//	  → dedupe
//	  → responder (cache → exact → pattern → FAQ)
//	      hit  → LINE reply
//	      miss → slow path (worker pool → store / LINE reply)
//
// # HTTP API
//
//   - POST /webhook - LINE webhook deliveries
//   - GET /healthz - liveness plus registered dependency probes
//   - GET /stats - aggregated cache/pool/responder/dedup statistics
//
// # Lifecycle
//
// Run() serves until the context is cancelled, then shuts down in order:
// stop accepting HTTP, drain in-flight slow-path tasks, close the
// deduplicator and caches, close the store.
package gateway
