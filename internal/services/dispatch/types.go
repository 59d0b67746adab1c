package dispatch

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/time/rate"

	"timercore/internal/eventbus"
	"timercore/internal/runtime/supervisor"
	"timercore/internal/storage"
	logx "timercore/pkg/logx"
)

// EventTimerExpired is published on the bus with a storage.Timer payload,
// exactly once per timer, strictly after its row is deleted.
const EventTimerExpired = "timer.expired"

// ErrTimerNotFound reports a cancel/get on a missing id. Recoverable; the
// timer may have fired or been cancelled already.
var ErrTimerNotFound = errors.New("timer not found")

// Config controls the dispatch loop.
//
// Zero fields take defaults: 40 days lookahead, 1h rescan, 2s error backoff.
type Config struct {
	// Lookahead bounds the nearest-expiry scan so far-future rows are not
	// considered until the rescan job brings them into range.
	Lookahead time.Duration

	// Rescan is the interval of the safety-net job that re-kicks the loop.
	Rescan time.Duration

	// ErrorBackoff is the pause after a store failure before the loop
	// restarts its scan.
	ErrorBackoff time.Duration
}

func (c Config) withDefaults() Config {
	if c.Lookahead <= 0 {
		c.Lookahead = 40 * 24 * time.Hour
	}
	if c.Rescan <= 0 {
		c.Rescan = time.Hour
	}
	if c.ErrorBackoff <= 0 {
		c.ErrorBackoff = 2 * time.Second
	}
	return c
}

type Service struct {
	mu  sync.Mutex
	cfg Config

	store storage.Store
	bus   eventbus.Bus
	log   logx.Logger

	// current caches the awaited timer. The store stays the source of truth:
	// the loop re-validates against it before acting.
	current *storage.Timer

	// kick interrupts the loop's in-flight wait (preemption). Buffered so a
	// preempting call never blocks; a spurious kick only costs one re-fetch.
	kick chan struct{}

	sup     *supervisor.Supervisor
	c       *cron.Cron
	running bool

	// errLim throttles store-failure log lines during an outage.
	errLim *rate.Limiter

	dispatched atomic.Uint64
}

// Snapshot is a point-in-time diagnostic view of the service.
type Snapshot struct {
	Running       bool                `json:"running"`
	AwaitedID     int64               `json:"awaited_id,omitempty"`
	AwaitedExpiry time.Time           `json:"awaited_expiry,omitempty"`
	Dispatched    uint64              `json:"dispatched"`
	Goroutines    supervisor.Counters `json:"goroutines"`
}
