// Package limiter counts failed login attempts per account in Redis and locks
// the account out once the budget for the current window is spent.
package limiter

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	DefaultMaxAttempts = 5
	DefaultWindow      = 15 * time.Minute
	DefaultKeyPrefix   = "login_attempts"
)

// Limiter decides whether another login attempt is allowed for a key
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
	RecordFailure(ctx context.Context, key string) error
	Reset(ctx context.Context, key string) error
}

// Config controls the attempt budget
type Config struct {
	MaxAttempts int
	Window      time.Duration
	KeyPrefix   string
}

// RedisLimiter implements Limiter with a fixed window counter per key
type RedisLimiter struct {
	client *redis.Client
	cfg    Config
}

// NewRedisClient creates a Redis client for the limiter
func NewRedisClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

// NewRedisLimiter creates a Redis-backed limiter. Zero config values fall back
// to the defaults.
func NewRedisLimiter(client *redis.Client, cfg Config) *RedisLimiter {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = DefaultKeyPrefix
	}

	return &RedisLimiter{client: client, cfg: cfg}
}

// Allow reports whether the key still has attempts left in the current window
func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	raw, err := l.client.Get(ctx, l.key(key)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return true, nil
		}
		return false, fmt.Errorf("failed to read attempts: %w", err)
	}

	count, err := strconv.Atoi(raw)
	if err != nil {
		return false, fmt.Errorf("invalid attempt counter %q: %w", raw, err)
	}

	return count < l.cfg.MaxAttempts, nil
}

// RecordFailure increments the counter; the first failure opens the window.
// INCR and EXPIRE NX run in one MULTI so a counter never outlives its window.
func (l *RedisLimiter) RecordFailure(ctx context.Context, key string) error {
	k := l.key(key)

	_, err := l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, k)
		pipe.ExpireNX(ctx, k, l.cfg.Window)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to record attempt: %w", err)
	}

	return nil
}

// Reset clears the counter after a successful login
func (l *RedisLimiter) Reset(ctx context.Context, key string) error {
	return l.client.Del(ctx, l.key(key)).Err()
}

// Ping checks connectivity to Redis
func (l *RedisLimiter) Ping(ctx context.Context) error {
	return l.client.Ping(ctx).Err()
}

func (l *RedisLimiter) key(key string) string {
	return fmt.Sprintf("%s:%s", l.cfg.KeyPrefix, strings.ToLower(key))
}

// Noop never limits. It is used when no Redis is configured.
type Noop struct{}

func (Noop) Allow(context.Context, string) (bool, error)  { return true, nil }
func (Noop) RecordFailure(context.Context, string) error { return nil }
func (Noop) Reset(context.Context, string) error         { return nil }
