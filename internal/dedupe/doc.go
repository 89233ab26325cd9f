// Package dedupe guarantees at-most-once local processing of webhook events
// by fingerprinting each event and rejecting fingerprints seen within a
// trailing time window. The table is process-local and bounded in size.
package dedupe
