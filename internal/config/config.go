// Package config provides configuration management for clanstore.
//
// Settings come from three layers, later layers winning:
//  1. built-in defaults
//  2. the first config file found (see FindConfigPath)
//  3. CLANSTORE_* environment variables
//
// Config file locations (priority order):
//  1. $CLANSTORE_CONFIG
//  2. ./clanstore.yaml
//  3. ~/.config/clanstore/config.yaml
//  4. /etc/clanstore/config.yaml
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Defaults for a new installation
const (
	DefaultDriver        = "sqlite"
	DefaultDatabasePath  = "./clanstore.db"
	DefaultCacheCapacity = 1024
	DefaultHTTPAddr      = ":8420"
)

// Load finds and loads the config file, or starts from defaults if none is
// found, then applies environment overrides
func Load() (*Config, string, error) {
	path := FindConfigPath()
	if path == "" {
		cfg := DefaultConfig()
		if err := cfg.ApplyEnv(); err != nil {
			return nil, "", err
		}
		return cfg, "", cfg.Validate()
	}
	return LoadFromPath(path)
}

// LoadFromPath loads config from a specific path and applies environment overrides
func LoadFromPath(path string) (*Config, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, path, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, path, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()

	if err := cfg.ApplyEnv(); err != nil {
		return nil, path, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, path, err
	}
	return &cfg, path, nil
}

// Save writes config to the specified path
func (c *Config) Save(path string) error {
	if err := EnsureConfigDir(path); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0644)
}

// DefaultConfig returns sensible defaults for a new installation
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// applyDefaults fills in missing values with defaults
func (c *Config) applyDefaults() {
	if c.Version == 0 {
		c.Version = 1
	}
	if c.Database.Driver == "" {
		c.Database.Driver = DefaultDriver
	}
	if c.Database.Path == "" {
		c.Database.Path = DefaultDatabasePath
	}
	if c.Cache.Capacity <= 0 {
		c.Cache.Capacity = DefaultCacheCapacity
	}
	if c.Reconnect.MaxAttempts <= 0 {
		c.Reconnect.MaxAttempts = 1
	}
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = DefaultHTTPAddr
	}
}

// ApplyEnv overrides fields from CLANSTORE_* environment variables
func (c *Config) ApplyEnv() error {
	if err := env.Parse(c); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	c.applyDefaults()
	return nil
}

// Validate checks that the configuration can open a store
func (c *Config) Validate() error {
	switch strings.ToLower(c.Database.Driver) {
	case "sqlite", "sqlite3":
		if strings.TrimSpace(c.Database.Path) == "" {
			return fmt.Errorf("database.path is required for sqlite")
		}
	case "postgres", "postgresql", "pgx":
		if strings.TrimSpace(c.Database.DSN) == "" {
			return fmt.Errorf("database.dsn is required for postgres")
		}
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if c.Seed.Watch && c.Seed.Path == "" {
		return fmt.Errorf("seed.watch requires seed.path")
	}
	if c.Reconnect.Backoff < 0 {
		return fmt.Errorf("reconnect.backoff must not be negative")
	}
	return nil
}

// CacheSizes returns the capacity of each entity cache in the order clans,
// claims, members, perms
func (c *Config) CacheSizes() (clans, claims, members, perms int) {
	pick := func(n int) int {
		if n > 0 {
			return n
		}
		return c.Cache.Capacity
	}
	return pick(c.Cache.Clans), pick(c.Cache.Claims), pick(c.Cache.Members), pick(c.Cache.Perms)
}

// Summary returns a human-readable config summary
func (c *Config) Summary() string {
	target := c.Database.Path
	if c.Database.Driver != DefaultDriver {
		target = "dsn"
	}
	return fmt.Sprintf("Database: %s (%s), cache: %d per kind, reconnect: %d attempt(s) backoff %s, http: %s",
		c.Database.Driver, target, c.Cache.Capacity,
		c.Reconnect.MaxAttempts, c.Reconnect.Backoff.Duration(), c.HTTP.Addr)
}
