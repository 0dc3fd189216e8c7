package session

import (
	"fmt"
	"os"
	"path/filepath"
)

// Backend names accepted by Config.Backend.
const (
	BackendMemory = "memory"
	BackendPebble = "pebble"
	BackendRedis  = "redis"
)

// Config selects and parameterizes the session store backend.
type Config struct {
	Backend     string `json:"backend" yaml:"backend"`
	Path        string `json:"path,omitempty" yaml:"path,omitempty"`
	RedisAddr   string `json:"redis_addr,omitempty" yaml:"redis_addr,omitempty"`
	RedisDB     int    `json:"redis_db,omitempty" yaml:"redis_db,omitempty"`
	RedisPrefix string `json:"redis_prefix,omitempty" yaml:"redis_prefix,omitempty"`
}

// DefaultConfig returns the default session configuration: an in-memory
// store, with pebble and redis parameters pre-filled for when the backend
// is switched.
func DefaultConfig() Config {
	return Config{
		Backend:     BackendMemory,
		Path:        filepath.Join("data", "sessions"),
		RedisAddr:   "localhost:6379",
		RedisPrefix: "lifeline:",
	}
}

// Merge applies non-zero values from source into c.
func (c *Config) Merge(source *Config) {
	if source.Backend != "" {
		c.Backend = source.Backend
	}
	if source.Path != "" {
		c.Path = source.Path
	}
	if source.RedisAddr != "" {
		c.RedisAddr = source.RedisAddr
	}
	if source.RedisDB > 0 {
		c.RedisDB = source.RedisDB
	}
	if source.RedisPrefix != "" {
		c.RedisPrefix = source.RedisPrefix
	}
}

// New creates a Store from configuration.
func New(cfg *Config) (Store, error) {
	switch cfg.Backend {
	case "", BackendMemory:
		return NewMemoryStore(), nil
	case BackendPebble:
		if err := os.MkdirAll(cfg.Path, 0700); err != nil {
			return nil, fmt.Errorf("create pebble directory: %w", err)
		}
		return OpenPebbleStore(cfg.Path, nil)
	case BackendRedis:
		return NewRedisStore(cfg.RedisAddr, cfg.RedisDB, cfg.RedisPrefix)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStore, cfg.Backend)
	}
}
