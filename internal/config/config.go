// Package config loads server settings from an optional TOML file with
// environment variable overrides.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/andy6609/chat-relay/internal/chat"
)

// EnvPrefix starts every override variable: CHATRELAY_<SECTION>_<KEY>.
const EnvPrefix = "CHATRELAY_"

type Config struct {
	Server  ServerSection  `toml:"server"`
	Session SessionSection `toml:"session"`
	Monitor MonitorSection `toml:"monitor"`
	Log     LogSection     `toml:"log"`
}

type ServerSection struct {
	Capacity         int    `toml:"capacity"`
	MetricsAddr      string `toml:"metrics_addr"`
	AcceptRetryMs    int    `toml:"accept_retry_ms"`
	GraceMs          int    `toml:"grace_ms"`
	WriteTimeoutMs   int    `toml:"write_timeout_ms"`
	HandshakeTimeout int    `toml:"handshake_timeout_seconds"`
}

type SessionSection struct {
	MaxNameLength    int `toml:"max_name_length"`
	MaxMessageLength int `toml:"max_message_length"`
}

type MonitorSection struct {
	Enabled            bool `toml:"enabled"`
	RefreshMs          int  `toml:"refresh_ms"`
	ActivityCapacity   int  `toml:"activity_capacity"`
	ActivityBodyLength int  `toml:"activity_body_length"`
}

type LogSection struct {
	Level string `toml:"level"`
	File  string `toml:"file"` // "-" logs to stderr
}

func Default() Config {
	return Config{
		Server: ServerSection{
			Capacity:         100,
			AcceptRetryMs:    100,
			GraceMs:          500,
			WriteTimeoutMs:   2000,
			HandshakeTimeout: 30,
		},
		Session: SessionSection{
			MaxNameLength:    31,
			MaxMessageLength: 1024,
		},
		Monitor: MonitorSection{
			Enabled:            true,
			RefreshMs:          1000,
			ActivityCapacity:   10,
			ActivityBodyLength: 255,
		},
		Log: LogSection{
			Level: "info",
			File:  "server.log",
		},
	}
}

// Load reads path on top of the defaults. An empty path or a missing file
// yields the defaults. Environment overrides are applied last.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("parse config file: %w", err)
		}
	}
	if err := applyEnv(&cfg, os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	checks := []struct {
		name  string
		value int
	}{
		{"server.capacity", c.Server.Capacity},
		{"server.accept_retry_ms", c.Server.AcceptRetryMs},
		{"server.grace_ms", c.Server.GraceMs},
		{"session.max_name_length", c.Session.MaxNameLength},
		{"session.max_message_length", c.Session.MaxMessageLength},
		{"monitor.refresh_ms", c.Monitor.RefreshMs},
		{"monitor.activity_capacity", c.Monitor.ActivityCapacity},
		{"monitor.activity_body_length", c.Monitor.ActivityBodyLength},
	}
	for _, ch := range checks {
		if ch.value <= 0 {
			return fmt.Errorf("invalid config: %s must be positive, got %d", ch.name, ch.value)
		}
	}
	if c.Server.WriteTimeoutMs < 0 || c.Server.HandshakeTimeout < 0 {
		return fmt.Errorf("invalid config: timeouts must not be negative")
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		return err
	}
	return nil
}

// ServerOptions maps the config onto chat.Options.
func (c Config) ServerOptions() chat.Options {
	return chat.Options{
		Capacity:           c.Server.Capacity,
		MaxNameLength:      c.Session.MaxNameLength,
		MaxMessageLength:   c.Session.MaxMessageLength,
		ActivityCapacity:   c.Monitor.ActivityCapacity,
		ActivityBodyLength: c.Monitor.ActivityBodyLength,
		WriteTimeout:       time.Duration(c.Server.WriteTimeoutMs) * time.Millisecond,
		HandshakeTimeout:   time.Duration(c.Server.HandshakeTimeout) * time.Second,
		AcceptRetry:        time.Duration(c.Server.AcceptRetryMs) * time.Millisecond,
		Grace:              time.Duration(c.Server.GraceMs) * time.Millisecond,
	}
}

func (c Config) RefreshInterval() time.Duration {
	return time.Duration(c.Monitor.RefreshMs) * time.Millisecond
}

func (l LogSection) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, fmt.Errorf("invalid config: log.level: %w", err)
	}
	return level, nil
}

type lookupFunc func(string) (string, bool)

func applyEnv(c *Config, lookup lookupFunc) error {
	ints := map[string]*int{
		"SERVER_CAPACITY":                  &c.Server.Capacity,
		"SERVER_ACCEPT_RETRY_MS":           &c.Server.AcceptRetryMs,
		"SERVER_GRACE_MS":                  &c.Server.GraceMs,
		"SERVER_WRITE_TIMEOUT_MS":          &c.Server.WriteTimeoutMs,
		"SERVER_HANDSHAKE_TIMEOUT_SECONDS": &c.Server.HandshakeTimeout,
		"SESSION_MAX_NAME_LENGTH":          &c.Session.MaxNameLength,
		"SESSION_MAX_MESSAGE_LENGTH":       &c.Session.MaxMessageLength,
		"MONITOR_REFRESH_MS":               &c.Monitor.RefreshMs,
		"MONITOR_ACTIVITY_CAPACITY":        &c.Monitor.ActivityCapacity,
		"MONITOR_ACTIVITY_BODY_LENGTH":     &c.Monitor.ActivityBodyLength,
	}
	for key, dst := range ints {
		val, ok := lookup(EnvPrefix + key)
		if !ok || strings.TrimSpace(val) == "" {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(val))
		if err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
		}
		*dst = n
	}

	strs := map[string]*string{
		"SERVER_METRICS_ADDR": &c.Server.MetricsAddr,
		"LOG_LEVEL":           &c.Log.Level,
		"LOG_FILE":            &c.Log.File,
	}
	for key, dst := range strs {
		if val, ok := lookup(EnvPrefix + key); ok {
			*dst = val
		}
	}

	if val, ok := lookup(EnvPrefix + "MONITOR_ENABLED"); ok && val != "" {
		enabled, err := strconv.ParseBool(val)
		if err != nil {
			return fmt.Errorf("%sMONITOR_ENABLED: %w", EnvPrefix, err)
		}
		c.Monitor.Enabled = enabled
	}
	return nil
}
