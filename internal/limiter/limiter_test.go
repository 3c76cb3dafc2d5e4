package limiter

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()

	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return client, server
}

func TestRedisLimiter_LocksOutAfterMaxAttempts(t *testing.T) {
	client, server := newTestRedis(t)
	l := NewRedisLimiter(client, Config{MaxAttempts: 3, Window: time.Minute})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, err := l.Allow(ctx, "ada@example.com")
		require.NoError(t, err)
		require.True(t, ok, "attempt %d should be allowed", i+1)
		require.NoError(t, l.RecordFailure(ctx, "ada@example.com"))
	}

	ok, err := l.Allow(ctx, "ada@example.com")
	require.NoError(t, err)
	assert.False(t, ok)

	ttl := server.TTL("login_attempts:ada@example.com")
	assert.True(t, ttl > 0 && ttl <= time.Minute, "unexpected ttl %v", ttl)

	// other accounts are unaffected
	ok, err = l.Allow(ctx, "alan@example.com")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisLimiter_WindowExpires(t *testing.T) {
	client, server := newTestRedis(t)
	l := NewRedisLimiter(client, Config{MaxAttempts: 1, Window: time.Minute})
	ctx := context.Background()

	require.NoError(t, l.RecordFailure(ctx, "ada@example.com"))
	ok, err := l.Allow(ctx, "ada@example.com")
	require.NoError(t, err)
	require.False(t, ok)

	server.FastForward(time.Minute + time.Second)

	ok, err = l.Allow(ctx, "ada@example.com")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisLimiter_WindowIsFixed(t *testing.T) {
	client, server := newTestRedis(t)
	l := NewRedisLimiter(client, Config{MaxAttempts: 5, Window: time.Minute})
	ctx := context.Background()

	require.NoError(t, l.RecordFailure(ctx, "ada@example.com"))
	server.FastForward(30 * time.Second)
	require.NoError(t, l.RecordFailure(ctx, "ada@example.com"))

	ttl := server.TTL("login_attempts:ada@example.com")
	assert.LessOrEqual(t, ttl, 30*time.Second)
}

func TestRedisLimiter_CounterWithoutTTLGetsWindow(t *testing.T) {
	client, server := newTestRedis(t)
	l := NewRedisLimiter(client, Config{MaxAttempts: 3, Window: time.Minute})
	ctx := context.Background()

	// a counter left behind without an expiry
	require.NoError(t, server.Set("login_attempts:ada@example.com", "3"))
	require.Zero(t, server.TTL("login_attempts:ada@example.com"))

	require.NoError(t, l.RecordFailure(ctx, "ada@example.com"))

	ttl := server.TTL("login_attempts:ada@example.com")
	assert.True(t, ttl > 0 && ttl <= time.Minute, "unexpected ttl %v", ttl)

	server.FastForward(time.Minute + time.Second)

	ok, err := l.Allow(ctx, "ada@example.com")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisLimiter_ResetAndKeyNormalisation(t *testing.T) {
	client, server := newTestRedis(t)
	l := NewRedisLimiter(client, Config{MaxAttempts: 1})
	ctx := context.Background()

	require.NoError(t, l.RecordFailure(ctx, "Ada@Example.com"))
	ok, err := l.Allow(ctx, "ada@example.com")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, l.Reset(ctx, "ADA@example.com"))
	assert.False(t, server.Exists("login_attempts:ada@example.com"))

	ok, err = l.Allow(ctx, "ada@example.com")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisLimiter_Defaults(t *testing.T) {
	client, _ := newTestRedis(t)
	l := NewRedisLimiter(client, Config{})

	assert.Equal(t, DefaultMaxAttempts, l.cfg.MaxAttempts)
	assert.Equal(t, DefaultWindow, l.cfg.Window)
	assert.Equal(t, DefaultKeyPrefix, l.cfg.KeyPrefix)
	assert.NoError(t, l.Ping(context.Background()))
}

func TestRedisLimiter_CorruptCounter(t *testing.T) {
	client, server := newTestRedis(t)
	l := NewRedisLimiter(client, Config{})

	require.NoError(t, server.Set("login_attempts:ada@example.com", "not-a-number"))

	_, err := l.Allow(context.Background(), "ada@example.com")
	assert.Error(t, err)
}

func TestRedisLimiter_Unavailable(t *testing.T) {
	client, server := newTestRedis(t)
	l := NewRedisLimiter(client, Config{})
	server.Close()

	_, err := l.Allow(context.Background(), "ada@example.com")
	assert.Error(t, err)
	assert.Error(t, l.RecordFailure(context.Background(), "ada@example.com"))
}

func TestNoop(t *testing.T) {
	var l Limiter = Noop{}
	ctx := context.Background()

	for i := 0; i < 100; i++ {
		require.NoError(t, l.RecordFailure(ctx, "k"))
	}
	ok, err := l.Allow(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, l.Reset(ctx, "k"))
}
