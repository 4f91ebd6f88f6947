// Package cache stores solve results keyed by instance content, in memory or
// in Redis.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bipflow/pkg/config"
)

// Backends.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

var (
	// ErrKeyNotFound is returned by Get for missing or expired keys.
	ErrKeyNotFound = errors.New("key not found")
	// ErrCacheClosed is returned by every operation after Close.
	ErrCacheClosed = errors.New("cache is closed")
	// ErrUnknownBackend is returned by New for an unsupported backend name.
	ErrUnknownBackend = errors.New("unknown cache backend")
)

// Cache is a byte-oriented key/value store with per-entry TTL.
type Cache interface {
	// Get returns ErrKeyNotFound when the key is missing or expired.
	Get(ctx context.Context, key string) ([]byte, error)
	// Set stores value; a ttl <= 0 uses the cache default.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)

	// Keys and DeleteByPattern accept a single '*' wildcard.
	Keys(ctx context.Context, pattern string) ([]string, error)
	DeleteByPattern(ctx context.Context, pattern string) (int64, error)

	Stats(ctx context.Context) (*Stats, error)
	Clear(ctx context.Context) error
	Close() error
}

// Stats describes cache usage.
type Stats struct {
	TotalKeys    int64
	Hits         int64
	Misses       int64
	HitRate      float64
	MemoryBytes  int64
	KeysByPrefix map[string]int64
	Backend      string
}

func (s *Stats) computeHitRate() {
	if total := s.Hits + s.Misses; total > 0 {
		s.HitRate = float64(s.Hits) / float64(total)
	}
}

// Options configures New.
type Options struct {
	Backend    string
	DefaultTTL time.Duration

	// Memory backend
	MaxEntries      int
	CleanupInterval time.Duration

	// Redis backend
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPoolSize int
	// KeyPrefix namespaces every Redis key.
	KeyPrefix string
}

// DefaultOptions returns an in-memory cache keeping results for a day.
func DefaultOptions() *Options {
	return &Options{
		Backend:         BackendMemory,
		DefaultTTL:      24 * time.Hour,
		MaxEntries:      10000,
		CleanupInterval: time.Minute,
		RedisAddr:       "localhost:6379",
		RedisPoolSize:   10,
		KeyPrefix:       "bipflow:",
	}
}

// FromConfig converts the cache section of the application config.
func FromConfig(cfg config.CacheConfig) *Options {
	opts := DefaultOptions()
	if cfg.Driver != "" {
		opts.Backend = cfg.Driver
	}
	if cfg.DefaultTTL > 0 {
		opts.DefaultTTL = cfg.DefaultTTL
	}
	if cfg.MaxEntries > 0 {
		opts.MaxEntries = cfg.MaxEntries
	}
	opts.RedisAddr = cfg.Address()
	opts.RedisPassword = cfg.Password
	opts.RedisDB = cfg.DB
	return opts
}

// New creates the cache selected by opts.Backend.
func New(opts *Options) (Cache, error) {
	if opts == nil {
		opts = DefaultOptions()
	}

	switch opts.Backend {
	case BackendMemory, "":
		return NewMemoryCache(opts), nil
	case BackendRedis:
		return NewRedisCache(opts)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, opts.Backend)
	}
}
