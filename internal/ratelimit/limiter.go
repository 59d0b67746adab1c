package ratelimit

import (
	"context"
	"time"
)

// Limiter binds one bucket configuration behind a small facade. Feature code
// holds a Limiter per concern (spam detection, punishment suppression, click
// throttling) and never touches bucket internals.
type Limiter struct {
	bucket *Bucket
	kind   Kind
}

// NewLimiter builds a limiter over a fresh bucket.
func NewLimiter(period time.Duration, limit int, kind Kind, blocking bool) *Limiter {
	return &Limiter{
		bucket: NewBucket(period, limit, kind.KeyFunc(), blocking),
		kind:   kind,
	}
}

// Kind reports the key strategy this limiter was built with.
func (l *Limiter) Kind() Kind { return l.kind }

// IsRateLimited is a non-mutating peek at the identity's quota.
func (l *Limiter) IsRateLimited(id Identity) bool { return l.bucket.IsRateLimited(id) }

// Acquire queues for a token; blocks only if the limiter is blocking.
func (l *Limiter) Acquire(ctx context.Context, id Identity) error {
	return l.bucket.Acquire(ctx, id)
}

// Reset forces an immediate refill for the identity's key.
func (l *Limiter) Reset(id Identity) { l.bucket.Reset(id) }
