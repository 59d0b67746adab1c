package storage

import (
	"context"
	"sort"
	"sync"
	"time"
)

// memStore keeps timers in a sorted slice. It mirrors the sqlite driver's
// semantics (second-resolution expiry, (expires, id) ordering) so the two
// are interchangeable in tests and embedders.
type memStore struct {
	mu     sync.Mutex
	nextID int64
	rows   []Timer
}

// NewMemory returns an in-process Store.
func NewMemory() Store {
	return &memStore{nextID: 1}
}

func (m *memStore) InsertTimer(_ context.Context, t Timer) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t.ID = m.nextID
	m.nextID++
	t.ExpiresAt = t.ExpiresAt.Truncate(time.Second).UTC()
	m.rows = append(m.rows, t)
	m.sortLocked()
	return t.ID, nil
}

func (m *memStore) DeleteTimer(_ context.Context, id, guildID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, r := range m.rows {
		if r.ID == id && r.GuildID == guildID {
			m.rows = append(m.rows[:i], m.rows[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) FetchTimer(_ context.Context, id, guildID int64) (*Timer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rows {
		if r.ID == id && r.GuildID == guildID {
			cp := r
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memStore) FetchNearest(_ context.Context, before time.Time) (*Timer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cutoff := before.Unix()
	for _, r := range m.rows {
		if r.ExpiresAt.Unix() < cutoff {
			cp := r
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memStore) UpdateTimer(_ context.Context, t Timer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, r := range m.rows {
		if r.ID == t.ID && r.GuildID == t.GuildID {
			t.ExpiresAt = t.ExpiresAt.Truncate(time.Second).UTC()
			m.rows[i] = t
			m.sortLocked()
			return nil
		}
	}
	// Matching the sqlite driver: updating a missing row is a no-op.
	return nil
}

func (m *memStore) Close() error { return nil }

func (m *memStore) sortLocked() {
	sort.SliceStable(m.rows, func(i, j int) bool {
		a, b := m.rows[i], m.rows[j]
		if !a.ExpiresAt.Equal(b.ExpiresAt) {
			return a.ExpiresAt.Before(b.ExpiresAt)
		}
		return a.ID < b.ID
	})
}
