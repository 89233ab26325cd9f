// Package webhook is the inbound entry point for platform events. It parses
// the webhook payload, validates its signature, and coordinates each event
// through the fast path: deduplication first, then the tiered responder;
// only a full miss is handed off to the slow path.
//
// The coordinator returns an explicit per-event Outcome instead of raising:
// duplicates are a normal skip, resolver misses a normal hand-off, and one
// malformed event can never abort the rest of its batch.
package webhook
