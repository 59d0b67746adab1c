package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	logx "timercore/pkg/logx"

	_ "modernc.org/sqlite"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	path := cfg.Path
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	st := &sqliteStore{db: db, log: log}

	// Basic pragmas.
	if cfg.BusyTimeout > 0 {
		ms := cfg.BusyTimeout.Milliseconds()
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", ms))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) InsertTimer(ctx context.Context, t Timer) (int64, error) {
	if s == nil || s.db == nil {
		return 0, ErrDisabled
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO timers(guild_id, user_id, channel_id, event, expires, notes)
		 VALUES(?,?,?,?,?,?)`,
		t.GuildID, t.UserID, nullInt64(t.ChannelID), t.Event, t.ExpiresAt.Unix(), nullStr(t.Notes),
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (s *sqliteStore) DeleteTimer(ctx context.Context, id, guildID int64) (bool, error) {
	if s == nil || s.db == nil {
		return false, ErrDisabled
	}
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM timers WHERE id = ? AND guild_id = ?`, id, guildID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *sqliteStore) FetchTimer(ctx context.Context, id, guildID int64) (*Timer, error) {
	if s == nil || s.db == nil {
		return nil, ErrDisabled
	}
	row := s.db.QueryRowContext(ctx,
		`SELECT id, guild_id, user_id, channel_id, event, expires, notes
		 FROM timers WHERE id = ? AND guild_id = ? LIMIT 1`, id, guildID)
	return scanTimer(row)
}

func (s *sqliteStore) FetchNearest(ctx context.Context, before time.Time) (*Timer, error) {
	if s == nil || s.db == nil {
		return nil, ErrDisabled
	}
	row := s.db.QueryRowContext(ctx,
		`SELECT id, guild_id, user_id, channel_id, event, expires, notes
		 FROM timers WHERE expires < ? ORDER BY expires, id LIMIT 1`, before.Unix())
	return scanTimer(row)
}

func (s *sqliteStore) UpdateTimer(ctx context.Context, t Timer) error {
	if s == nil || s.db == nil {
		return ErrDisabled
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE timers SET user_id = ?, channel_id = ?, event = ?, expires = ?, notes = ?
		 WHERE id = ? AND guild_id = ?`,
		t.UserID, nullInt64(t.ChannelID), t.Event, t.ExpiresAt.Unix(), nullStr(t.Notes),
		t.ID, t.GuildID,
	)
	return err
}

func scanTimer(row *sql.Row) (*Timer, error) {
	var (
		t       Timer
		channel sql.NullInt64
		notes   sql.NullString
		expires int64
	)
	err := row.Scan(&t.ID, &t.GuildID, &t.UserID, &channel, &t.Event, &expires, &notes)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	t.ChannelID = channel.Int64
	t.Notes = notes.String
	t.ExpiresAt = time.Unix(expires, 0).UTC()
	return &t, nil
}

func nullStr(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}

func nullInt64(v int64) any {
	if v == 0 {
		return nil
	}
	return v
}
