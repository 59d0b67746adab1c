package storage

import (
	"errors"
	"time"
)

var ErrDisabled = errors.New("storage disabled")

// Config configures storage.
//
// Driver values:
//   - "sqlite": SQLite database file
//   - "memory": in-process store (tests, embedders without a data dir)
//
// If Driver is empty or "none", storage is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Timer is one persisted future one-shot action.
//
// ExpiresAt carries second resolution; the store truncates finer precision
// on write. Notes is an opaque payload interpreted only by the consumer of
// the timer's Event kind.
type Timer struct {
	ID        int64
	GuildID   int64
	UserID    int64
	ChannelID int64 // 0 = not bound to a channel
	Event     string
	ExpiresAt time.Time
	Notes     string
}
