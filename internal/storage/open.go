package storage

import (
	"context"
	"errors"
	"strings"
	"time"

	logx "timercore/pkg/logx"
)

// Store is the persistence API consumed by the dispatch service.
//
// FetchTimer and FetchNearest return (nil, nil) when no row matches.
// DeleteTimer reports false when the row was already gone, which is a valid
// outcome for an idempotent cancel.
type Store interface {
	InsertTimer(ctx context.Context, t Timer) (int64, error)
	DeleteTimer(ctx context.Context, id, guildID int64) (bool, error)
	FetchTimer(ctx context.Context, id, guildID int64) (*Timer, error)
	FetchNearest(ctx context.Context, before time.Time) (*Timer, error)
	UpdateTimer(ctx context.Context, t Timer) error
	Close() error
}

// Open initializes the configured store.
// It returns (nil, nil) if storage is disabled.
func Open(cfg Config, log logx.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "" || driver == "none" {
		return nil, nil
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	switch driver {
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	case "memory", "mem":
		return NewMemory(), nil
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
}
