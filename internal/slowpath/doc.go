// ABOUTME: Package slowpath handles messages the fast path could not answer.
// ABOUTME: Tasks run on the bounded worker pool and touch sqlite through the connection pool.

// Package slowpath is the assistant's fallback for substantive messages:
// food descriptions become stored records, calorie questions are answered
// from the store, and anything that fails gets a generic apology so the
// user is never left without a reply.
package slowpath
