// Package line is a thin client for the LINE Messaging API: reply dispatch,
// user profiles, and message content URLs. The reply endpoint is guarded by
// a circuit breaker so a dead API fails fast instead of stalling webhook
// processing. Reply tokens are single-use; a rejected reply is terminal and
// must not be retried.
package line
