package ratelimit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestBucketQuotaAndRefill(t *testing.T) {
	t.Parallel()
	const period = 300 * time.Millisecond
	l := NewLimiter(period, 3, KindUser, true)
	id := Identity{UserID: 7}
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if l.IsRateLimited(id) {
			t.Fatalf("limited before consuming token %d", i+1)
		}
		if err := l.Acquire(ctx, id); err != nil {
			t.Fatalf("Acquire %d: %v", i+1, err)
		}
	}
	if !l.IsRateLimited(id) {
		t.Fatal("not limited after exhausting quota")
	}

	time.Sleep(period + 50*time.Millisecond)
	if l.IsRateLimited(id) {
		t.Fatal("still limited after the period elapsed")
	}
}

func TestBucketKeysAreIndependent(t *testing.T) {
	t.Parallel()
	l := NewLimiter(time.Second, 1, KindGuild, true)
	ctx := context.Background()

	if err := l.Acquire(ctx, Identity{GuildID: 1}); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if !l.IsRateLimited(Identity{GuildID: 1}) {
		t.Fatal("guild 1 should be exhausted")
	}
	if l.IsRateLimited(Identity{GuildID: 2}) {
		t.Fatal("guild 2 shares quota with guild 1")
	}
}

func TestAcquireBlocksUntilReset(t *testing.T) {
	t.Parallel()
	const period = 250 * time.Millisecond
	l := NewLimiter(period, 1, KindGlobal, true)
	id := Identity{}
	ctx := context.Background()

	start := time.Now()
	if err := l.Acquire(ctx, id); err != nil {
		t.Fatalf("first Acquire: %v", err)
	}
	if err := l.Acquire(ctx, id); err != nil {
		t.Fatalf("second Acquire: %v", err)
	}
	if elapsed := time.Since(start); elapsed < period {
		t.Fatalf("second Acquire returned after %v, before the %v reset", elapsed, period)
	}
}

func TestAcquireGrantsFIFO(t *testing.T) {
	t.Parallel()
	const period = 150 * time.Millisecond
	b := NewBucket(period, 1, GlobalKey, true)
	ctx := context.Background()

	// Exhaust the quota so subsequent waiters queue up.
	if err := b.Acquire(ctx, Identity{}); err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	const waiters = 4
	var (
		mu    sync.Mutex
		order []int
		wg    sync.WaitGroup
	)
	for i := 0; i < waiters; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := b.Acquire(ctx, Identity{}); err != nil {
				t.Errorf("waiter %d: %v", i, err)
				return
			}
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
		}()
		// Stagger starts so queue order is deterministic.
		time.Sleep(20 * time.Millisecond)
	}
	wg.Wait()

	for i := 1; i < len(order); i++ {
		if order[i] < order[i-1] {
			t.Fatalf("grants out of FIFO order: %v", order)
		}
	}
}

func TestAcquireNonBlocking(t *testing.T) {
	t.Parallel()
	l := NewLimiter(time.Minute, 1, KindGlobal, false)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 5; i++ {
		if err := l.Acquire(ctx, Identity{}); err != nil {
			t.Fatalf("Acquire %d: %v", i, err)
		}
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Fatalf("non-blocking Acquire took %v", elapsed)
	}

	// Bookkeeping from the queued waiters must show up in the peek.
	time.Sleep(50 * time.Millisecond)
	if !l.IsRateLimited(Identity{}) {
		t.Fatal("quota not consumed by queued waiters")
	}
}

func TestAcquireCancellation(t *testing.T) {
	t.Parallel()
	l := NewLimiter(time.Minute, 1, KindGlobal, true)

	if err := l.Acquire(context.Background(), Identity{}); err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	err := l.Acquire(ctx, Identity{})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want DeadlineExceeded", err)
	}
}

func TestReset(t *testing.T) {
	t.Parallel()
	l := NewLimiter(time.Minute, 1, KindMember, true)
	id := Identity{GuildID: 1, UserID: 2}

	if err := l.Acquire(context.Background(), id); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if !l.IsRateLimited(id) {
		t.Fatal("expected exhausted bucket")
	}
	l.Reset(id)
	if l.IsRateLimited(id) {
		t.Fatal("still limited after Reset")
	}
}

func TestMissingContextPanics(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		fn   KeyFunc
		id   Identity
	}{
		{name: "guild", fn: GuildKey, id: Identity{UserID: 1}},
		{name: "channel", fn: ChannelKey, id: Identity{UserID: 1}},
		{name: "user", fn: UserKey, id: Identity{GuildID: 1}},
		{name: "member", fn: MemberKey, id: Identity{GuildID: 1}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			defer func() {
				r := recover()
				if r == nil {
					t.Fatal("expected panic")
				}
				if _, ok := r.(*MissingContextError); !ok {
					t.Fatalf("panic value %T, want *MissingContextError", r)
				}
			}()
			tt.fn(tt.id)
		})
	}
}

func TestKeyDerivation(t *testing.T) {
	t.Parallel()
	id := Identity{GuildID: 123, ChannelID: 456, UserID: 789}
	tests := []struct {
		fn   KeyFunc
		want string
	}{
		{GlobalKey, "global"},
		{GuildKey, "guild:123"},
		{ChannelKey, "channel:456"},
		{UserKey, "user:789"},
		{MemberKey, "member:123:789"},
	}
	for _, tt := range tests {
		if got := tt.fn(id); got != tt.want {
			t.Fatalf("key = %q, want %q", got, tt.want)
		}
	}
}
