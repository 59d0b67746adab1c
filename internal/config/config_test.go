package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"timercore/internal/ratelimit"
)

func writeConfig(t *testing.T, body string) *Manager {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return NewManager(path)
}

func TestLoadFullDocument(t *testing.T) {
	t.Parallel()
	m := writeConfig(t, `
logging:
  level: debug
  console: true
storage:
  driver: sqlite
  path: /tmp/timers.db
  busy_timeout: 5s
dispatch:
  lookahead: 720h
  rescan: 30m
  error_backoff: 1s
buckets:
  punishment_suppression:
    period: 30s
    limit: 1
    per: member
  spam:
    period: 10s
    limit: 8
    per: user
    blocking: true
`)
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if m.Get() != cfg {
		t.Fatal("Load did not commit")
	}

	sc, err := cfg.StorageOptions()
	if err != nil {
		t.Fatalf("StorageOptions: %v", err)
	}
	if sc.Driver != "sqlite" || sc.BusyTimeout != 5*time.Second {
		t.Fatalf("storage options = %+v", sc)
	}

	lookahead, rescan, backoff, err := cfg.DispatchOptions()
	if err != nil {
		t.Fatalf("DispatchOptions: %v", err)
	}
	if lookahead != 720*time.Hour || rescan != 30*time.Minute || backoff != time.Second {
		t.Fatalf("dispatch options = %v %v %v", lookahead, rescan, backoff)
	}

	lims, err := cfg.BuildLimiters()
	if err != nil {
		t.Fatalf("BuildLimiters: %v", err)
	}
	if len(lims) != 2 {
		t.Fatalf("limiters = %d, want 2", len(lims))
	}
	if got := lims["punishment_suppression"].Kind(); got != ratelimit.KindMember {
		t.Fatalf("kind = %v, want member", got)
	}
}

func TestDispatchDefaults(t *testing.T) {
	t.Parallel()
	m := writeConfig(t, "storage:\n  driver: memory\n")
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	lookahead, rescan, backoff, err := cfg.DispatchOptions()
	if err != nil {
		t.Fatalf("DispatchOptions: %v", err)
	}
	if lookahead != 40*24*time.Hour {
		t.Fatalf("lookahead default = %v", lookahead)
	}
	if rescan != time.Hour {
		t.Fatalf("rescan default = %v", rescan)
	}
	if backoff != 2*time.Second {
		t.Fatalf("error backoff default = %v", backoff)
	}
}

func TestLoadRejectsUnknownField(t *testing.T) {
	t.Parallel()
	m := writeConfig(t, "storage:\n  driver: memory\nschedulerr:\n  x: 1\n")
	if _, err := m.Load(); err == nil {
		t.Fatal("unknown top-level key accepted")
	}
}

func TestLoadRejectsBadBucket(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name string
		body string
	}{
		{"bad kind", "buckets:\n  b:\n    period: 10s\n    limit: 1\n    per: planet\n"},
		{"missing period", "buckets:\n  b:\n    limit: 1\n    per: user\n"},
		{"zero limit", "buckets:\n  b:\n    period: 10s\n    limit: 0\n    per: user\n"},
		{"bad duration", "dispatch:\n  rescan: soon\n"},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			m := writeConfig(t, tc.body)
			if _, err := m.Load(); err == nil {
				t.Fatal("invalid document accepted")
			}
		})
	}
}

func TestSubscribePublish(t *testing.T) {
	t.Parallel()
	m := writeConfig(t, "storage:\n  driver: memory\n")
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	ch := m.Subscribe(1)
	defer m.Unsubscribe(ch)
	m.publish(cfg)

	select {
	case got := <-ch:
		if got != cfg {
			t.Fatal("wrong config delivered")
		}
	case <-time.After(time.Second):
		t.Fatal("no config delivered")
	}
}

func TestParseRejectsTrailingData(t *testing.T) {
	t.Parallel()
	// Raw JSON input with concatenated documents.
	path := filepath.Join(t.TempDir(), "config.json")
	body := `{"storage":{"driver":"memory"}}{"storage":{"driver":"memory"}}`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	m := NewManager(path)
	_, err := m.Parse()
	if err == nil || !strings.Contains(err.Error(), "trailing") {
		t.Fatalf("err = %v, want trailing data rejection", err)
	}
}
