package config

import (
	"fmt"
	"strings"
	"time"

	"timercore/internal/ratelimit"
	"timercore/internal/storage"
	logx "timercore/pkg/logx"
)

type Config struct {
	Logging  LoggingConfig           `json:"logging"`
	Storage  StorageConfig           `json:"storage"`
	Dispatch DispatchConfig          `json:"dispatch"`
	Buckets  map[string]BucketConfig `json:"buckets,omitempty"`
}

type LoggingConfig struct {
	Level   string     `json:"level,omitempty"`
	Console bool       `json:"console,omitempty"`
	File    FileConfig `json:"file,omitempty"`
}

type FileConfig struct {
	Enabled bool   `json:"enabled,omitempty"`
	Path    string `json:"path,omitempty"`
}

type StorageConfig struct {
	Driver string `json:"driver"`
	Path   string `json:"path,omitempty"`

	// BusyTimeout is a Go duration string (sqlite only, e.g. "5s").
	BusyTimeout string `json:"busy_timeout,omitempty"`
}

// DispatchConfig controls the timer dispatch loop.
//
// All durations are Go duration strings (e.g. "500ms", "10s", "1h").
//
// Defaults (when fields are omitted/zero):
//   - lookahead: "960h" (40 days)
//   - rescan: "1h"
//   - error_backoff: "2s"
type DispatchConfig struct {
	Lookahead    string `json:"lookahead,omitempty"`
	Rescan       string `json:"rescan,omitempty"`
	ErrorBackoff string `json:"error_backoff,omitempty"`
}

// BucketConfig declares one named rate-limit bucket, e.g.:
//
//	buckets:
//	  punishment_suppression:
//	    period: 30s
//	    limit: 1
//	    per: member
//	  spam:
//	    period: 10s
//	    limit: 8
//	    per: user
type BucketConfig struct {
	Period   string `json:"period"`
	Limit    int    `json:"limit"`
	Per      string `json:"per"` // global | guild | channel | user | member
	Blocking bool   `json:"blocking,omitempty"`
}

// LogxConfig converts the logging section to the logx service config.
func (c *Config) LogxConfig() logx.Config {
	return logx.Config{
		Level:   c.Logging.Level,
		Console: c.Logging.Console,
		File:    logx.FileConfig{Enabled: c.Logging.File.Enabled, Path: c.Logging.File.Path},
	}
}

// StorageOptions converts the storage section to the storage driver config.
func (c *Config) StorageOptions() (storage.Config, error) {
	bt, err := ParseDurationField("storage.busy_timeout", c.Storage.BusyTimeout)
	if err != nil {
		return storage.Config{}, err
	}
	return storage.Config{
		Driver:      c.Storage.Driver,
		Path:        c.Storage.Path,
		BusyTimeout: bt,
	}, nil
}

// DispatchOptions resolves the dispatch section with defaults applied.
func (c *Config) DispatchOptions() (lookahead, rescan, errorBackoff time.Duration, err error) {
	lookahead, err = ParseDurationOrDefault("dispatch.lookahead", c.Dispatch.Lookahead, 40*24*time.Hour)
	if err != nil {
		return 0, 0, 0, err
	}
	rescan, err = ParseDurationOrDefault("dispatch.rescan", c.Dispatch.Rescan, time.Hour)
	if err != nil {
		return 0, 0, 0, err
	}
	errorBackoff, err = ParseDurationOrDefault("dispatch.error_backoff", c.Dispatch.ErrorBackoff, 2*time.Second)
	if err != nil {
		return 0, 0, 0, err
	}
	return lookahead, rescan, errorBackoff, nil
}

// BuildLimiters constructs one limiter per declared bucket.
func (c *Config) BuildLimiters() (map[string]*ratelimit.Limiter, error) {
	out := make(map[string]*ratelimit.Limiter, len(c.Buckets))
	for name, bc := range c.Buckets {
		period, err := ParseDurationField(fmt.Sprintf("buckets.%s.period", name), bc.Period)
		if err != nil {
			return nil, err
		}
		if period <= 0 {
			return nil, fmt.Errorf("buckets.%s: period is required", name)
		}
		if bc.Limit <= 0 {
			return nil, fmt.Errorf("buckets.%s: limit must be > 0", name)
		}
		kind, err := ratelimit.ParseKind(strings.TrimSpace(bc.Per))
		if err != nil {
			return nil, fmt.Errorf("buckets.%s: %w", name, err)
		}
		out[name] = ratelimit.NewLimiter(period, bc.Limit, kind, bc.Blocking)
	}
	return out, nil
}

// Validate checks the whole document without constructing anything.
func (c *Config) Validate() error {
	if _, err := c.StorageOptions(); err != nil {
		return err
	}
	if _, _, _, err := c.DispatchOptions(); err != nil {
		return err
	}
	if _, err := c.BuildLimiters(); err != nil {
		return err
	}
	return nil
}
