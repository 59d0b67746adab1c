// Package storage persists pending timers.
//
// The durable store is the sole source of truth for the dispatch service:
// every timer row lives here until it is fired or cancelled, and the service
// re-reads the nearest row rather than trusting in-memory state.
package storage
