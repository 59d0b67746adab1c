package app

import (
	"context"
	"sync"
	"time"

	"timercore/internal/config"
	"timercore/internal/eventbus"
	"timercore/internal/ratelimit"
	"timercore/internal/runtime/supervisor"
	"timercore/internal/services/dispatch"
	"timercore/internal/storage"
	logx "timercore/pkg/logx"
)

// App wires config, logging, storage, the dispatch loop and the declared
// rate-limit buckets into one lifecycle.
type App struct {
	cfgPath string

	cfgm *config.Manager
	sup  *supervisor.Supervisor

	log   logx.Logger
	logs  *logx.Service
	bus   eventbus.Bus
	store storage.Store

	disp *dispatch.Service

	limMu    sync.RWMutex
	limiters map[string]*ratelimit.Limiter
}

func New(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	logSvc, log := logx.New(cfg.LogxConfig())
	log = log.With(logx.String("comp", "app"))

	bus := eventbus.New()

	// Storage (optional)
	var store storage.Store
	sc, err := cfg.StorageOptions()
	if err != nil {
		return nil, err
	}
	st, err := storage.Open(sc, log.With(logx.String("comp", "storage")))
	if err != nil {
		return nil, err
	}
	if st != nil {
		store = st
		log.Info("storage enabled", logx.String("driver", sc.Driver))
	} else {
		// The dispatch loop needs a store; without one timers are volatile.
		store = storage.NewMemory()
		log.Warn("storage disabled; timers will not survive restarts")
	}

	lookahead, rescan, backoff, err := cfg.DispatchOptions()
	if err != nil {
		return nil, err
	}
	disp := dispatch.New(store, bus, dispatch.Config{
		Lookahead:    lookahead,
		Rescan:       rescan,
		ErrorBackoff: backoff,
	}, log.With(logx.String("comp", "dispatch")))

	limiters, err := cfg.BuildLimiters()
	if err != nil {
		return nil, err
	}

	return &App{
		cfgPath:  cfgPath,
		cfgm:     cfgm,
		log:      log,
		logs:     logSvc,
		bus:      bus,
		store:    store,
		disp:     disp,
		limiters: limiters,
	}, nil
}

func (a *App) Bus() eventbus.Bus           { return a.bus }
func (a *App) Dispatch() *dispatch.Service { return a.disp }
func (a *App) Logger() logx.Logger         { return a.log }

// Limiter returns the named bucket, or nil when not declared.
func (a *App) Limiter(name string) *ratelimit.Limiter {
	a.limMu.RLock()
	defer a.limMu.RUnlock()
	return a.limiters[name]
}

// Done is closed when the app supervisor context is canceled (fatal error or Stop()).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor (if any).
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.New(ctx, supervisor.WithLogger(a.log))

	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))

	a.disp.Start(a.sup.Context())

	// Optional: log events for observability/debug (components can also subscribe themselves).
	events, unsub := a.bus.Subscribe(128)
	a.sup.Go0("eventbus.log", func(c context.Context) {
		defer unsub()
		for {
			select {
			case <-c.Done():
				return
			case e, ok := <-events:
				if !ok {
					return
				}
				a.log.Debug("event", logx.String("type", e.Type), logx.Time("time", e.Time))
			}
		}
	})

	// hot reload config fan-out
	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		lastApplied := a.cfgm.Get()
		for {
			select {
			case <-c.Done():
				return
			case newCfg, ok := <-sub:
				if !ok {
					return
				}
				// Coalesce bursts: keep only the latest config in the channel.
				for {
					select {
					case newer := <-sub:
						if newer != nil {
							newCfg = newer
						}
					default:
						goto APPLY
					}
				}
			APPLY:
				a.applyReload(lastApplied, newCfg)
				lastApplied = newCfg
			}
		}
	})

	a.sup.Go("config.watch", func(c context.Context) error {
		return a.cfgm.Watch(c)
	})

	a.log.Info("app started")
	return nil
}

func (a *App) applyReload(prev, next *config.Config) {
	if next == nil {
		return
	}

	// The watcher validated before publishing, so mapping errors here are
	// unexpected; keep the previous component state when they happen anyway.
	a.logs.Apply(next.LogxConfig())

	if prev != nil && prev.Storage != next.Storage {
		a.log.Warn("storage config changed; restart required for changes to take effect")
	}

	lookahead, rescan, backoff, err := next.DispatchOptions()
	if err != nil {
		a.log.Warn("invalid dispatch config; keeping previous", logx.Err(err))
	} else {
		a.disp.Apply(dispatch.Config{
			Lookahead:    lookahead,
			Rescan:       rescan,
			ErrorBackoff: backoff,
		})
	}

	limiters, err := next.BuildLimiters()
	if err != nil {
		a.log.Warn("invalid bucket config; keeping previous", logx.Err(err))
	} else {
		a.limMu.Lock()
		a.limiters = limiters
		a.limMu.Unlock()
	}

	a.log.Info("config reloaded")
}

func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))

	// Cancel the run context first so background loops start unwinding.
	a.sup.Cancel()

	stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	a.disp.Stop(stopCtx)
	cancel()

	if !a.sup.Stop(5 * time.Second) {
		a.log.Warn("some goroutines did not exit in time")
	}

	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn("storage close failed", logx.Err(err))
		}
	}

	a.log.Info("stopped")
	return a.logs.Close()
}
