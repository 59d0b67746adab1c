package supervisor

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestGoRecoversPanic(t *testing.T) {
	t.Parallel()
	s := New(context.Background())
	s.Go("boom", func(ctx context.Context) error {
		panic("kaboom")
	})
	if !s.Stop(2 * time.Second) {
		t.Fatal("goroutine did not exit")
	}
	if err := s.Err(); err == nil {
		t.Fatal("panic not recorded as first error")
	}
	if c := s.Counters(); c.Panics != 1 {
		t.Fatalf("panics = %d, want 1", c.Panics)
	}
}

func TestGoKeepsFirstError(t *testing.T) {
	t.Parallel()
	s := New(context.Background())
	first := errors.New("first")
	s.Go("a", func(ctx context.Context) error { return first })
	s.Wait()
	s.Go("b", func(ctx context.Context) error { return errors.New("second") })
	s.Wait()
	if !errors.Is(s.Err(), first) {
		t.Fatalf("Err = %v, want first", s.Err())
	}
}

func TestGoRestartRetriesUntilSuccess(t *testing.T) {
	t.Parallel()
	s := New(context.Background())

	var runs atomic.Int32
	s.GoRestart("flaky", func(ctx context.Context) error {
		if runs.Add(1) < 3 {
			return errors.New("transient")
		}
		return nil
	}, WithRestartBackoff(time.Millisecond, 5*time.Millisecond))

	s.Wait()
	if got := runs.Load(); got != 3 {
		t.Fatalf("runs = %d, want 3", got)
	}
	if c := s.Counters(); c.Restarts != 2 {
		t.Fatalf("restarts = %d, want 2", c.Restarts)
	}
}

func TestGoRestartStopsOnCancel(t *testing.T) {
	t.Parallel()
	s := New(context.Background())

	started := make(chan struct{})
	var once atomic.Bool
	s.GoRestart("loop", func(ctx context.Context) error {
		if once.CompareAndSwap(false, true) {
			close(started)
		}
		<-ctx.Done()
		return ctx.Err()
	})

	<-started
	s.Cancel()
	if !s.Stop(2 * time.Second) {
		t.Fatal("loop did not stop after cancel")
	}
	// Canceled is a clean stop, not a recorded failure.
	if err := s.Err(); err != nil {
		t.Fatalf("Err = %v, want nil", err)
	}
}
