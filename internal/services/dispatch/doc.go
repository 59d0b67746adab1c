// Package dispatch owns the timer dispatch loop.
//
// # Overview
//
// The service persists one-shot timers through the durable store and runs a
// single background loop that waits for the nearest expiry. On expiry the row
// is deleted first, then a timer.expired event is published on the bus,
// never the reverse. A crash between the two loses that one event rather
// than firing it twice: at most one dispatch per timer.
//
// # Preemption
//
// Only the nearest timer is held in memory; pending counts may reach the
// thousands across many guilds. Every create, update and cancel wakes the
// loop and forces a fresh nearest-row fetch, so a timer created one second
// out fires within roughly that second regardless of the prior wait's
// remaining time. The wakeup is deliberately unconditional: the loop's
// cached timer can be stale while its own fetch is in flight, so urgency
// comparisons against it cannot be trusted to skip the kick.
//
// # Failure model
//
// Transient store errors are logged (rate-limited) and back the loop off
// briefly; they never kill it. Panics are recovered by the supervisor and the
// loop restarts with backoff. A timer that came due during downtime is still
// in the store, so it fires on the first pass after a restart. A
// low-frequency rescan job re-kicks the loop as a safety net against missed
// wakeups.
package dispatch
