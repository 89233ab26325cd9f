// Package pool provides a bounded pool of reusable backing-store connections
// with liveness validation and blocking acquisition with a timeout.
//
// The pool eagerly creates a minimum number of connections at startup and
// grows lazily up to a maximum on demand. Connections are probed on acquire;
// a failed probe discards that connection and tries again within the
// caller's deadline rather than surfacing the failure. Acquire never panics:
// on timeout it returns ErrTimeout and callers treat that as "no connection
// available".
package pool
