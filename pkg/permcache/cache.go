// Package permcache holds optional caches for resolved permission sets. Entries are
// opaque byte payloads. Invalidate drops every entry at once so that any committed
// membership, role or menu mutation makes stale decisions unreachable.
//
// Writers read Generation before loading the data they cache and pass it to Set.
// A value loaded before an Invalidate is never readable after it.
package permcache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// ErrCacheMiss is returned by Get when no live entry exists
var ErrCacheMiss = errors.New("cache miss")

// Backend names accepted by New
const (
	BackendNone  = "none"
	BackendLRU   = "lru"
	BackendRedis = "redis"
)

// Cache stores resolved permission payloads
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	// Generation returns a token that changes on every Invalidate
	Generation(ctx context.Context) (int64, error)
	// Set stores value unless the cache was invalidated after gen was read
	Set(ctx context.Context, gen int64, key string, value []byte) error
	// Invalidate makes every existing entry unreachable
	Invalidate(ctx context.Context) error
	Close() error
}

// Config selects and tunes the cache backend
type Config struct {
	Backend    string        `yaml:"backend"`
	TTL        time.Duration `yaml:"ttl"`
	MaxEntries int           `yaml:"max_entries"`
	RedisURL   string        `yaml:"redis_url"`
	KeyPrefix  string        `yaml:"key_prefix"`
}

// DefaultConfig returns a disabled cache configuration
func DefaultConfig() Config {
	return Config{
		Backend:    BackendNone,
		TTL:        5 * time.Minute,
		MaxEntries: 10000,
		KeyPrefix:  "orgaccess",
	}
}

// Validate checks the backend-specific settings
func (c Config) Validate() error {
	switch c.Backend {
	case "", BackendNone:
		return nil
	case BackendLRU:
		if c.MaxEntries <= 0 {
			return fmt.Errorf("cache.max_entries must be positive for the lru backend")
		}
	case BackendRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("cache.redis_url is required for the redis backend")
		}
	default:
		return fmt.Errorf("unknown cache backend: %s", c.Backend)
	}
	if c.TTL <= 0 {
		return fmt.Errorf("cache.ttl must be positive")
	}
	return nil
}

// New builds the configured backend
func New(ctx context.Context, cfg Config, log logrus.FieldLogger) (Cache, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.Backend {
	case BackendLRU:
		log.WithField("max_entries", cfg.MaxEntries).Info("using in-process permission cache")
		return NewLRUCache(cfg.MaxEntries, cfg.TTL), nil
	case BackendRedis:
		c, err := NewRedisCache(ctx, cfg.RedisURL, cfg.KeyPrefix, cfg.TTL)
		if err != nil {
			return nil, err
		}
		log.Info("using redis permission cache")
		return c, nil
	default:
		return Noop{}, nil
	}
}

// Noop never stores anything
type Noop struct{}

func (Noop) Get(context.Context, string) ([]byte, error) { return nil, ErrCacheMiss }
func (Noop) Generation(context.Context) (int64, error) { return 0, nil }
func (Noop) Set(context.Context, int64, string, []byte) error { return nil }
func (Noop) Invalidate(context.Context) error { return nil }
func (Noop) Close() error { return nil }
