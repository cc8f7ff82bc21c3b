package config

import (
	"time"
)

// Config is the persisted configuration of a clanstore server. Every field
// can also be set from the environment; the environment wins.
type Config struct {
	Version   int             `yaml:"version"`
	Database  DatabaseConfig  `yaml:"database"`
	Cache     CacheConfig     `yaml:"cache"`
	Reconnect ReconnectConfig `yaml:"reconnect"`
	HTTP      HTTPConfig      `yaml:"http"`
	Seed      SeedConfig      `yaml:"seed,omitempty"`
}

// DatabaseConfig selects the storage engine
type DatabaseConfig struct {
	Driver string `yaml:"driver" env:"CLANSTORE_DB_DRIVER"` // sqlite or postgres
	Path   string `yaml:"path" env:"CLANSTORE_DB_PATH"`     // sqlite file
	DSN    string `yaml:"dsn,omitempty" env:"CLANSTORE_DB_DSN"`
}

// CacheConfig sizes the entity caches. Capacity applies to every kind that
// has no explicit size of its own.
type CacheConfig struct {
	Capacity int `yaml:"capacity" env:"CLANSTORE_CACHE_CAPACITY"`
	Clans    int `yaml:"clans,omitempty"`
	Claims   int `yaml:"claims,omitempty"`
	Members  int `yaml:"members,omitempty"`
	Perms    int `yaml:"perms,omitempty"`
}

// ReconnectConfig controls how a lost database connection is re-established
type ReconnectConfig struct {
	MaxAttempts int      `yaml:"max_attempts" env:"CLANSTORE_RECONNECT_ATTEMPTS"`
	Backoff     Duration `yaml:"backoff" env:"CLANSTORE_RECONNECT_BACKOFF"`
}

// HTTPConfig configures the admin API listener
type HTTPConfig struct {
	Addr string `yaml:"addr" env:"CLANSTORE_HTTP_ADDR"`
}

// SeedConfig names a snapshot file loaded at startup. With Watch set it is
// loaded again whenever it changes.
type SeedConfig struct {
	Path  string `yaml:"path,omitempty" env:"CLANSTORE_SEED_PATH"`
	Watch bool   `yaml:"watch,omitempty" env:"CLANSTORE_SEED_WATCH"`
}

// Duration wraps time.Duration for YAML and environment unmarshaling
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler
func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	return d.UnmarshalText([]byte(s))
}

// UnmarshalText implements encoding.TextUnmarshaler for environment values
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Duration returns the underlying time.Duration
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}
