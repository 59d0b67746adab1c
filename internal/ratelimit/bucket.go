package ratelimit

import (
	"context"
	"sync"
	"time"
)

// state is the quota bookkeeping for one derived key.
type state struct {
	resetAt   time.Time
	remaining int
	queue     []chan struct{} // FIFO waiters, closed on grant
	draining  bool
}

// Bucket is a token bucket with a pluggable key-extraction strategy.
//
// limit tokens are available per period, per key. Refill is lazy: nothing
// runs for a key until someone queues on it, and the per-key drain goroutine
// exits as soon as its queue empties.
type Bucket struct {
	period   time.Duration
	limit    int
	keyFn    KeyFunc
	blocking bool

	mu     sync.Mutex
	states map[string]*state
}

// NewBucket configures a bucket. period and limit must be positive; keyFn
// defaults to GlobalKey. When blocking is false, Acquire returns immediately
// after enqueueing (bookkeeping only).
func NewBucket(period time.Duration, limit int, keyFn KeyFunc, blocking bool) *Bucket {
	if period <= 0 {
		period = time.Second
	}
	if limit <= 0 {
		limit = 1
	}
	if keyFn == nil {
		keyFn = GlobalKey
	}
	return &Bucket{
		period:   period,
		limit:    limit,
		keyFn:    keyFn,
		blocking: blocking,
		states:   map[string]*state{},
	}
}

// IsRateLimited reports whether the identity's key is currently exhausted.
// It never mutates quota state: an absent key, or one whose reset instant has
// passed, is simply not limited.
func (b *Bucket) IsRateLimited(id Identity) bool {
	key := b.keyFn(id)
	now := time.Now()

	b.mu.Lock()
	defer b.mu.Unlock()
	st, ok := b.states[key]
	if !ok {
		return false
	}
	if !st.resetAt.After(now) {
		return false
	}
	return st.remaining <= 0
}

// Acquire enqueues a waiter for the identity's key and, if the bucket is
// blocking, suspends until a token is granted or ctx is cancelled.
//
// Cancellation abandons this waiter's grant but does not reorder the rest of
// the queue; the abandoned slot still consumes a token when its turn comes.
func (b *Bucket) Acquire(ctx context.Context, id Identity) error {
	key := b.keyFn(id)
	granted := make(chan struct{})

	b.mu.Lock()
	st := b.stateLocked(key, time.Now())
	st.queue = append(st.queue, granted)
	if !st.draining {
		st.draining = true
		go b.drain(key)
	}
	b.mu.Unlock()

	if !b.blocking {
		return nil
	}
	select {
	case <-granted:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Reset forces an immediate refill of the identity's key (administrative
// override). Unknown keys are a no-op.
func (b *Bucket) Reset(id Identity) {
	key := b.keyFn(id)

	b.mu.Lock()
	if st, ok := b.states[key]; ok {
		b.refillLocked(st, time.Now())
	}
	b.mu.Unlock()
}

// stateLocked returns the key's state, creating it with a full quota on
// first reference.
func (b *Bucket) stateLocked(key string, now time.Time) *state {
	st, ok := b.states[key]
	if !ok {
		st = &state{resetAt: now.Add(b.period), remaining: b.limit}
		b.states[key] = st
	}
	return st
}

func (b *Bucket) refillLocked(st *state, now time.Time) {
	st.remaining = b.limit
	st.resetAt = now.Add(b.period)
}

// drain grants queued waiters tokens as quota allows. One instance runs per
// key; it exits when the queue empties and a later waiter re-spawns it.
func (b *Bucket) drain(key string) {
	for {
		b.mu.Lock()
		st := b.states[key]
		now := time.Now()

		if !st.resetAt.After(now) {
			b.refillLocked(st, now)
		}

		if st.remaining <= 0 {
			// Exhausted mid-window: sleep out the rest of it.
			wait := st.resetAt.Sub(now)
			b.mu.Unlock()
			time.Sleep(wait)
			continue
		}

		for st.remaining > 0 && len(st.queue) > 0 {
			st.remaining--
			close(st.queue[0])
			st.queue[0] = nil
			st.queue = st.queue[1:]
		}

		if len(st.queue) == 0 {
			st.draining = false
			b.mu.Unlock()
			return
		}
		b.mu.Unlock()
	}
}
