package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Config holds all jobflow server configuration.
// Priority: flags > env vars > settings.toml > defaults.
type Config struct {
	ListenAddr         string   `toml:"listen_addr"`
	DBPath             string   `toml:"db_path"`
	LogLevel           string   `toml:"log_level"`
	CatalogFiles       []string `toml:"catalog_files"`
	EventHub           string   `toml:"event_hub"` // memory | redis
	RedisURL           string   `toml:"redis_url"`
	SessionIdleTimeout duration `toml:"session_idle_timeout"`
	VacuumSchedule     string   `toml:"vacuum_schedule"`
}

// duration decodes TOML strings such as "30m".
type duration struct{ time.Duration }

func (d *duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Event hub backends.
const (
	hubMemory = "memory"
	hubRedis  = "redis"
)

func defaultConfig() Config {
	return Config{
		ListenAddr:         ":4200",
		DBPath:             filepath.Join(jobflowDir(), "jobflow.db"),
		LogLevel:           "info",
		EventHub:           hubMemory,
		SessionIdleTimeout: duration{30 * time.Minute},
		VacuumSchedule:     "@daily",
	}
}

func jobflowDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".jobflow"
	}
	return filepath.Join(home, ".jobflow")
}

func settingsPath() string {
	return filepath.Join(jobflowDir(), "settings.toml")
}

func pidPath() string {
	return filepath.Join(jobflowDir(), "jobflow.pid")
}

// loadConfig layers the settings file at path (skipped when missing) and
// JOBFLOW_* env vars over the defaults.
func loadConfig(path string) (Config, error) {
	cfg := defaultConfig()

	if _, err := toml.DecodeFile(path, &cfg); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return cfg, fmt.Errorf("read %s: %w", path, err)
	}

	if v := os.Getenv("JOBFLOW_LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv("JOBFLOW_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("JOBFLOW_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("JOBFLOW_CATALOG_FILES"); v != "" {
		cfg.CatalogFiles = splitList(v)
	}
	if v := os.Getenv("JOBFLOW_EVENT_HUB"); v != "" {
		cfg.EventHub = v
	}
	if v := os.Getenv("JOBFLOW_REDIS_URL"); v != "" {
		cfg.RedisURL = v
	}
	if v := os.Getenv("JOBFLOW_SESSION_IDLE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.SessionIdleTimeout = duration{d}
		}
	}
	if v, ok := os.LookupEnv("JOBFLOW_VACUUM_SCHEDULE"); ok {
		cfg.VacuumSchedule = v
	}

	return cfg, cfg.validate()
}

func (c Config) validate() error {
	switch c.EventHub {
	case hubMemory:
	case hubRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("event_hub %q requires redis_url", c.EventHub)
		}
	default:
		return fmt.Errorf("unknown event_hub %q (want %s or %s)", c.EventHub, hubMemory, hubRedis)
	}
	return nil
}

// writeConfig stores cfg as TOML at path, creating the directory.
func writeConfig(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// configDiff describes what changed between two configurations.
type configDiff struct {
	CatalogChanged bool
	RestartNeeded  []string // fields that require a server restart
}

func diffConfigs(old, new Config) configDiff {
	var d configDiff
	if !slices.Equal(old.CatalogFiles, new.CatalogFiles) {
		d.CatalogChanged = true
	}
	if old.ListenAddr != new.ListenAddr {
		d.RestartNeeded = append(d.RestartNeeded, "listen_addr")
	}
	if old.DBPath != new.DBPath {
		d.RestartNeeded = append(d.RestartNeeded, "db_path")
	}
	if old.LogLevel != new.LogLevel {
		d.RestartNeeded = append(d.RestartNeeded, "log_level")
	}
	if old.EventHub != new.EventHub || old.RedisURL != new.RedisURL {
		d.RestartNeeded = append(d.RestartNeeded, "event_hub")
	}
	if old.SessionIdleTimeout != new.SessionIdleTimeout || old.VacuumSchedule != new.VacuumSchedule {
		d.RestartNeeded = append(d.RestartNeeded, "housekeeping")
	}
	return d
}
