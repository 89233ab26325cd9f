// Package config handles configuration loading for foodbot-gateway.
//
// # Overview
//
// Configuration is loaded from YAML files with environment variable expansion.
// The package provides validation and sensible defaults.
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	line:
//	  channel_secret: "${LINE_CHANNEL_SECRET}"
//	  channel_access_token: "${LINE_CHANNEL_ACCESS_TOKEN}"
//
// Syntax: ${VAR_NAME}
//
// # Duration Parsing
//
// Duration values use Go's time.ParseDuration syntax:
//
//	database:
//	  acquire_timeout: "3s"
//	dedupe:
//	  window: "5m"
//	worker:
//	  task_timeout: "30s"
//
// Supported units: ns, us, ms, s, m, h
//
// # Configuration Sections
//
// Server settings:
//
//	server:
//	  http_addr: "0.0.0.0:8080"   # webhook, health, and stats endpoints
//
// LINE Messaging API:
//
//	line:
//	  channel_secret: "${LINE_CHANNEL_SECRET}"
//	  channel_access_token: "${LINE_CHANNEL_ACCESS_TOKEN}"
//
// Database and connection pool:
//
//	database:
//	  path: "/var/lib/foodbot/gateway.db"
//	  min_connections: 2
//	  max_connections: 5
//	  acquire_timeout: "3s"
//
// Event deduplication:
//
//	dedupe:
//	  window: "5m"
//	  max_entries: 1000
//
// Cache tuning (shared by all instances):
//
//	caches:
//	  max_entries: 100
//	  popularity_threshold: 5
//
// Fast-path response tables:
//
//	responder:
//	  tables_path: "/etc/foodbot/responses.toml"  # optional override
//
// Slow-path workers:
//
//	worker:
//	  max_workers: 3
//	  task_timeout: "30s"
//
// Logging:
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
//
// # Validation
//
// Load() validates:
//
//   - HTTP address and database path presence
//   - Pool bounds consistency (max >= min)
//   - LINE credentials set together or not at all
//   - Duration format validity
//
// # Usage
//
// Load configuration from a path:
//
//	cfg, err := config.Load("/etc/foodbot/gateway.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
package config
