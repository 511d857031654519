// Package reconnect holds the retry policy and connection-state tracking
// shared by the broker and agent managers.
//
// Both links retry forever with a fixed delay; the Policy interface keeps the
// schedule replaceable without touching the connection loops.
package reconnect
