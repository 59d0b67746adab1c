// Package ratelimit gates externally triggered actions so a burst of events
// does not translate one-to-one into a burst of side effects.
//
// A Bucket is a token bucket whose quota is scoped to a key derived from the
// triggering Identity (global, per-guild, per-channel, per-user, or
// per-member). Callers get two entry points over the same per-key state:
//
//   - IsRateLimited: a cheap non-mutating peek, to decide whether to even
//     attempt an expensive action.
//   - Acquire: enqueue for a token; optionally block until granted.
//
// Tokens are granted strictly FIFO within a key by a lazily spawned,
// self-terminating drain goroutine. Idle keys are never evicted; the observed
// key set is finite.
package ratelimit
