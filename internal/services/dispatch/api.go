package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"timercore/internal/storage"
	logx "timercore/pkg/logx"
)

// Create persists a new timer and schedules it.
//
// The caller validates future-relativity of the expiry (typically via
// timeparse); an already-past expiry is accepted here and simply fires on
// the loop's next pass. Returns the timer with its store-assigned id.
func (s *Service) Create(ctx context.Context, t storage.Timer) (storage.Timer, error) {
	if err := validateTimer(t); err != nil {
		return storage.Timer{}, err
	}
	t.ExpiresAt = t.ExpiresAt.Truncate(time.Second).UTC()

	id, err := s.store.InsertTimer(ctx, t)
	if err != nil {
		return storage.Timer{}, fmt.Errorf("insert timer: %w", err)
	}
	t.ID = id

	// Wake the loop unconditionally. The cached current timer can be stale
	// while the loop's own fetch is in flight, so any urgency comparison
	// against it can skip a wakeup the new row needs; a spurious kick only
	// costs one re-fetch and the buffered channel coalesces bursts.
	s.Kick()

	s.log.Debug("timer created",
		logx.Int64("id", t.ID),
		logx.String("event", t.Event),
		logx.Int64("guild_id", t.GuildID),
		logx.Time("expires_at", t.ExpiresAt),
	)
	return t, nil
}

// Update persists changed fields of an existing timer (expiry and/or notes,
// e.g. extending a timeout or adding a reminder recipient).
func (s *Service) Update(ctx context.Context, t storage.Timer) error {
	if t.ID == 0 {
		return errors.New("timer id required")
	}
	if err := validateTimer(t); err != nil {
		return err
	}
	t.ExpiresAt = t.ExpiresAt.Truncate(time.Second).UTC()

	if err := s.store.UpdateTimer(ctx, t); err != nil {
		return fmt.Errorf("update timer: %w", err)
	}

	// Wake the loop unconditionally, same as Create: the changed row may be
	// the awaited one, may now be nearer than it, or may have moved inside
	// the lookahead window while the loop idles.
	s.Kick()
	return nil
}

// Cancel prematurely removes a pending timer and returns it.
// No timer.expired event will ever be published for a cancelled id.
func (s *Service) Cancel(ctx context.Context, id, guildID int64) (storage.Timer, error) {
	t, err := s.Get(ctx, id, guildID)
	if err != nil {
		return storage.Timer{}, err
	}

	if _, err := s.store.DeleteTimer(ctx, id, guildID); err != nil {
		return storage.Timer{}, fmt.Errorf("delete timer: %w", err)
	}

	s.Kick()

	s.log.Debug("timer cancelled", logx.Int64("id", id), logx.String("event", t.Event))
	return t, nil
}

// Get retrieves a pending timer by id and guild.
func (s *Service) Get(ctx context.Context, id, guildID int64) (storage.Timer, error) {
	t, err := s.store.FetchTimer(ctx, id, guildID)
	if err != nil {
		return storage.Timer{}, fmt.Errorf("fetch timer: %w", err)
	}
	if t == nil {
		return storage.Timer{}, fmt.Errorf("%w: id=%d guild=%d", ErrTimerNotFound, id, guildID)
	}
	return *t, nil
}

func validateTimer(t storage.Timer) error {
	if strings.TrimSpace(t.Event) == "" {
		return errors.New("timer event kind required")
	}
	if t.GuildID == 0 {
		return errors.New("timer guild_id required")
	}
	if t.UserID == 0 {
		return errors.New("timer user_id required")
	}
	if t.ExpiresAt.IsZero() {
		return errors.New("timer expiry required")
	}
	return nil
}
