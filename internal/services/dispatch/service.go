package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/time/rate"

	"timercore/internal/eventbus"
	"timercore/internal/runtime/supervisor"
	"timercore/internal/storage"
	logx "timercore/pkg/logx"
)

func New(store storage.Store, bus eventbus.Bus, cfg Config, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		cfg:    cfg.withDefaults(),
		store:  store,
		bus:    bus,
		log:    log,
		kick:   make(chan struct{}, 1),
		errLim: rate.NewLimiter(rate.Every(5*time.Second), 3),
	}
}

// Start spawns the dispatch loop and the rescan job. Idempotent.
func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true

	s.sup = supervisor.New(ctx, supervisor.WithLogger(s.log))
	s.sup.GoRestart("dispatch", s.run,
		supervisor.WithRestartBackoff(250*time.Millisecond, 15*time.Second))

	// Safety net: periodically re-kick the loop so timers entering the
	// lookahead window, or a missed wakeup, never stall dispatch for long.
	s.c = cron.New()
	_, err := s.c.AddFunc(fmt.Sprintf("@every %s", s.cfg.Rescan), s.Kick)
	if err != nil {
		s.log.Error("rescan job register failed", logx.Err(err))
	}
	s.c.Start()

	s.log.Info("dispatch started",
		logx.Duration("lookahead", s.cfg.Lookahead),
		logx.Duration("rescan", s.cfg.Rescan),
	)
}

// Stop halts the loop and waits for it to exit (bounded by ctx).
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	c := s.c
	sup := s.sup
	s.c = nil
	s.sup = nil
	s.current = nil
	s.mu.Unlock()

	if c != nil {
		<-c.Stop().Done()
	}
	if sup != nil {
		sup.Cancel()
		done := make(chan struct{})
		go func() {
			sup.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
			// loop exits in background
		}
	}
	s.log.Info("dispatch stopped")
}

// Apply updates loop tuning at runtime (config hot reload). The rescan
// interval takes effect on the next Start.
func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	s.cfg = cfg.withDefaults()
	s.mu.Unlock()
	s.Kick()
}

// Kick interrupts the loop's current wait so it re-fetches the nearest
// timer. Safe to call any time, including while stopped.
func (s *Service) Kick() {
	select {
	case s.kick <- struct{}{}:
	default:
	}
}

// Snapshot returns a diagnostic view of the service.
func (s *Service) Snapshot() Snapshot {
	s.mu.Lock()
	snap := Snapshot{
		Running:    s.running,
		Dispatched: s.dispatched.Load(),
	}
	if s.current != nil {
		snap.AwaitedID = s.current.ID
		snap.AwaitedExpiry = s.current.ExpiresAt
	}
	if s.sup != nil {
		snap.Goroutines = s.sup.Counters()
	}
	s.mu.Unlock()
	return snap
}

// ExpiredTimer extracts the payload of an EventTimerExpired event.
func ExpiredTimer(e eventbus.Event) (storage.Timer, bool) {
	t, ok := e.Data.(storage.Timer)
	return t, ok
}

func (s *Service) setCurrent(t *storage.Timer) {
	s.mu.Lock()
	s.current = t
	s.mu.Unlock()
}
