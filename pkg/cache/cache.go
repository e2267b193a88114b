// Package cache provides a byte-oriented key/value cache backed by Redis,
// with a no-op implementation when caching is disabled.
package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/mxn2020/prompt-verse-io/pkg/lifecycle"
)

// System stores opaque values under string keys for a bounded time.
type System interface {
	// Start registers connection check and close hooks with the lifecycle coordinator.
	Start(lc *lifecycle.Coordinator) error
	// Get returns the value at key and whether it was present.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set stores value at key with the configured TTL.
	Set(ctx context.Context, key string, value []byte) error
	// Enabled reports whether values are actually retained.
	Enabled() bool
}

// New returns a Redis-backed System, or a no-op System when cfg.Enabled is false.
func New(cfg *Config, logger *slog.Logger) System {
	if !cfg.Enabled {
		return Noop()
	}

	client := goredis.NewClient(&goredis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: cfg.DialTimeoutDuration(),
	})

	return &redisCache{
		client:  client,
		prefix:  cfg.Prefix,
		ttl:     cfg.TTLDuration(),
		timeout: cfg.DialTimeoutDuration(),
		logger:  logger.With("system", "cache"),
	}
}

type redisCache struct {
	client  *goredis.Client
	prefix  string
	ttl     time.Duration
	timeout time.Duration
	logger  *slog.Logger
	ready   atomic.Bool
}

// Ready reports whether the startup ping succeeded.
func (c *redisCache) Ready() bool {
	return c.ready.Load()
}

func (c *redisCache) Start(lc *lifecycle.Coordinator) error {
	c.logger.Info("starting cache")
	lc.Track("cache", c)

	lc.OnStartup(func() {
		ctx, cancel := context.WithTimeout(lc.Context(), c.timeout)
		defer cancel()

		if err := c.client.Ping(ctx).Err(); err != nil {
			c.logger.Error("cache ping failed", "error", err)
			return
		}

		c.ready.Store(true)
		c.logger.Info("cache connection established")
	})

	lc.OnShutdown(func() {
		<-lc.Context().Done()
		c.ready.Store(false)
		if err := c.client.Close(); err != nil {
			c.logger.Error("cache close failed", "error", err)
			return
		}
		c.logger.Info("cache connection closed")
	})

	return nil
}

func (c *redisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("cache get %s: %w", key, err)
	}
	return val, true, nil
}

func (c *redisCache) Set(ctx context.Context, key string, value []byte) error {
	if err := c.client.Set(ctx, c.prefix+key, value, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache set %s: %w", key, err)
	}
	return nil
}

func (c *redisCache) Enabled() bool { return true }

type noop struct{}

// Noop returns a System that stores nothing.
func Noop() System { return noop{} }

func (noop) Start(*lifecycle.Coordinator) error { return nil }

func (noop) Get(context.Context, string) ([]byte, bool, error) { return nil, false, nil }

func (noop) Set(context.Context, string, []byte) error { return nil }

func (noop) Enabled() bool { return false }

// Memory returns an in-process System with per-entry expiry. Entries are not
// shared across processes; the server uses Redis or Noop, and tests use
// Memory to exercise caching without Redis.
func Memory(ttl time.Duration) System {
	return &memory{ttl: ttl, entries: make(map[string]entry)}
}

type entry struct {
	value   []byte
	expires time.Time
}

type memory struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]entry
}

func (m *memory) Start(*lifecycle.Coordinator) error { return nil }

func (m *memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok {
		return nil, false, nil
	}
	if time.Now().After(e.expires) {
		delete(m.entries, key)
		return nil, false, nil
	}
	return e.value, true, nil
}

func (m *memory) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[key] = entry{value: value, expires: time.Now().Add(m.ttl)}
	return nil
}

func (m *memory) Enabled() bool { return true }
