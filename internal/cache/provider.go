package cache

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Backends accepted by New.
const (
	BackendNone   = "none"
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Provider stores encoded prediction results keyed by model fingerprint and
// frame hash.
type Provider interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, key string) error
	Close() error
}

// ErrCacheMiss signals that a cache key was not found.
var ErrCacheMiss = errors.New("cache miss")

// Options select and size a backend.
type Options struct {
	Backend string
	Size    int
	TTL     time.Duration
	Redis   RedisConfig
}

// New builds the configured backend. An unreachable Redis server degrades to
// NoopProvider with a warning; the returned name reports what is in use.
func New(opts Options, logger *slog.Logger) (Provider, string) {
	if logger == nil {
		logger = slog.Default()
	}
	switch opts.Backend {
	case BackendMemory:
		return NewMemoryProvider(opts.Size, opts.TTL), BackendMemory
	case BackendRedis:
		provider, err := NewRedisProvider(opts.Redis)
		if err != nil {
			logger.Warn("redis cache unavailable, caching disabled", slog.Any("error", err))
			return NoopProvider{}, BackendNone
		}
		return provider, BackendRedis
	default:
		return NoopProvider{}, BackendNone
	}
}

// NoopProvider never stores anything.
type NoopProvider struct{}

func (NoopProvider) Get(context.Context, string) ([]byte, error) { return nil, ErrCacheMiss }

func (NoopProvider) Set(context.Context, string, []byte, time.Duration) error { return nil }

func (NoopProvider) Del(context.Context, string) error { return nil }

func (NoopProvider) Close() error { return nil }
