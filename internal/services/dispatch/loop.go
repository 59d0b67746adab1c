package dispatch

import (
	"context"
	"time"

	"timercore/internal/eventbus"
	logx "timercore/pkg/logx"
)

// run is one life of the dispatch loop. It exits only on context
// cancellation; store failures back off and retry, and the supervisor
// restarts the loop on panic.
//
// A fired timer is only ever taken from a fresh nearest-row fetch that
// reports it due. That single rule closes the race between a natural wake
// and a concurrent preempting call: whoever wakes the loop, it re-fetches
// and re-confirms before acting.
func (s *Service) run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		s.mu.Lock()
		lookahead := s.cfg.Lookahead
		backoff := s.cfg.ErrorBackoff
		s.mu.Unlock()

		t, err := s.store.FetchNearest(ctx, time.Now().Add(lookahead))
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if s.errLim.Allow() {
				s.log.Error("nearest-timer fetch failed; backing off",
					logx.Err(err), logx.Duration("backoff", backoff))
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			continue
		}

		s.setCurrent(t)

		if t == nil {
			// Nothing within the lookahead window. Idle until a create,
			// update, or the rescan job kicks us.
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-s.kick:
			}
			continue
		}

		if wait := time.Until(t.ExpiresAt); wait > 0 {
			s.log.Debug("awaiting timer",
				logx.Int64("id", t.ID),
				logx.String("event", t.Event),
				logx.Duration("in", wait),
			)
			wake := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				wake.Stop()
				return ctx.Err()
			case <-s.kick:
				// Preempted: a more urgent timer appeared or the awaited one
				// changed. Abandon this wait and re-fetch.
				wake.Stop()
				continue
			case <-wake.C:
				// Natural wake. Loop to re-fetch and confirm this timer is
				// still the nearest before firing.
				continue
			}
		}

		// Due. Delete the row first, then publish. A crash in between loses
		// the event rather than double-firing it: at most one dispatch per
		// timer.
		ok, err := s.store.DeleteTimer(ctx, t.ID, t.GuildID)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if s.errLim.Allow() {
				s.log.Error("due-timer delete failed; backing off",
					logx.Int64("id", t.ID), logx.Err(err), logx.Duration("backoff", backoff))
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			continue
		}

		s.setCurrent(nil)

		if !ok {
			// Row vanished between fetch and delete: cancelled concurrently.
			continue
		}

		s.bus.Publish(eventbus.Event{Type: EventTimerExpired, Data: *t})
		s.dispatched.Add(1)
		s.log.Info("timer dispatched",
			logx.Int64("id", t.ID),
			logx.String("event", t.Event),
			logx.Int64("guild_id", t.GuildID),
		)
	}
}
