// Package responder resolves free-text input against a tiered set of
// recognized inputs so trivial messages never reach the expensive slow path.
//
// Tiers are tried in strict order, stopping at the first match:
//
//  1. eligibility gate (short messages and small-talk intents only)
//  2. memoized-answer cache keyed by user and raw text
//  3. exact-phrase table
//  4. compiled pattern table
//  5. FAQ similarity (token-set Jaccard)
//
// Every hit is written back into the cache so identical repeats from the
// same user short-circuit at the cache tier. Anything else is a miss and the
// caller proceeds to the slow path.
package responder
