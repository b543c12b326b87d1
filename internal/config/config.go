package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"tripcal/internal/model"
)

// ICSConfig describes a single trip feed.
type ICSConfig struct {
	// URL is the ICS subscription endpoint.
	URL string `yaml:"url" json:"url"`
	// ID is an internal identifier used for de-dup, logging and trip IDs.
	ID string `yaml:"id" json:"id"`
	// Name is a human-friendly label shown in the UI.
	Name string `yaml:"name" json:"name"`
}

// SourceID returns ID, falling back to Name and then URL.
func (c ICSConfig) SourceID() string {
	switch {
	case c.ID != "":
		return c.ID
	case c.Name != "":
		return c.Name
	default:
		return c.URL
	}
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the Web UI/API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// PopoverConfig sizes and times the trip hover preview.
type PopoverConfig struct {
	Padding float64 `yaml:"padding" json:"padding"`
	Width   float64 `yaml:"width" json:"width"`
	Height  float64 `yaml:"height" json:"height"`

	// OpenMs / CloseMs are the panel's transition durations.
	OpenMs  int `yaml:"open_ms" json:"open_ms"`
	CloseMs int `yaml:"close_ms" json:"close_ms"`

	// LeaveGraceMs is how long the panel survives the pointer leaving the
	// anchor before it reaches the panel.
	LeaveGraceMs int `yaml:"leave_grace_ms" json:"leave_grace_ms"`
}

func (p PopoverConfig) OpenDelay() time.Duration {
	return time.Duration(p.OpenMs) * time.Millisecond
}

func (p PopoverConfig) CloseDelay() time.Duration {
	return time.Duration(p.CloseMs) * time.Millisecond
}

func (p PopoverConfig) LeaveGrace() time.Duration {
	return time.Duration(p.LeaveGraceMs) * time.Millisecond
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the Web UI and API.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA timezone the calendar grid is built in.
	Timezone string `yaml:"timezone" json:"timezone"`

	// RefreshCron is a cron-style schedule string (e.g. "*/15 * * * *")
	// for re-fetching trip feeds.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" json:"log_level"`

	// CacheDir holds the conditional-GET cache of trip feeds.
	CacheDir string `yaml:"cache_dir" json:"cache_dir"`

	// PlaceholderAvatar is shown for trips whose group has no avatar.
	PlaceholderAvatar string `yaml:"placeholder_avatar" json:"placeholder_avatar"`

	// UnnamedGroup is shown for trips whose group has no name.
	UnnamedGroup string `yaml:"unnamed_group" json:"unnamed_group"`

	Popover PopoverConfig `yaml:"popover" json:"popover"`

	// ICS is the list of trip feeds.
	ICS []ICSConfig `yaml:"ics" json:"ics"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all endpoints
	// except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

const (
	defaultListen      = "127.0.0.1:8080"
	defaultTimezone    = "Asia/Ho_Chi_Minh"
	defaultRefreshCron = "*/15 * * * *"
	defaultCacheDir    = "/var/lib/tripcal/ics-cache"
	defaultAvatar      = "/static/group-placeholder.svg"
)

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.Normalize()
	return cfg
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	if c.Timezone == "" {
		c.Timezone = defaultTimezone
	}
	if c.RefreshCron == "" {
		c.RefreshCron = defaultRefreshCron
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.CacheDir == "" {
		c.CacheDir = defaultCacheDir
	}
	if c.PlaceholderAvatar == "" {
		c.PlaceholderAvatar = defaultAvatar
	}
	if c.UnnamedGroup == "" {
		c.UnnamedGroup = model.DefaultGroupName
	}

	if c.Popover.Padding <= 0 {
		c.Popover.Padding = 8
	}
	if c.Popover.Width <= 0 {
		c.Popover.Width = 320
	}
	if c.Popover.Height <= 0 {
		c.Popover.Height = 220
	}
	if c.Popover.OpenMs < 0 {
		c.Popover.OpenMs = 0
	}
	if c.Popover.CloseMs < 0 {
		c.Popover.CloseMs = 0
	}
	if c.Popover.LeaveGraceMs <= 0 {
		c.Popover.LeaveGraceMs = 150
	}

	if c.ICS == nil {
		c.ICS = []ICSConfig{}
	}
}

// Location resolves Timezone, falling back to time.Local.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local, fmt.Errorf("load timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist, a default config is written with 0600
//     perms (creating the parent directory) and returned.
//   - Otherwise the YAML is unmarshalled and normalized.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes cfg to path atomically (temp file in the same directory,
// then rename) with 0600 permissions.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".tripcal-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}

	return os.Rename(tmpName, path)
}

func (c *Config) Save(path string) error {
	return Save(path, c)
}
