package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"usersvc/internal/apperror"
)

// clearEnv blanks every variable Load reads so the host environment cannot leak in
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"PORT", "APP_ENV", "LOG_LEVEL", "LOG_FORMAT", "JWT_SECRET", "JWT_TTL", "BCRYPT_COST",
		"HASH_MAX_CONCURRENCY", "STORE_DRIVER", "DATABASE_URL", "MONGO_URI", "MONGO_DATABASE",
		"REDIS_ADDR", "REDIS_PASSWORD", "REDIS_DB", "LOGIN_MAX_ATTEMPTS", "LOGIN_LOCKOUT_WINDOW",
		"CORS_ALLOWED_ORIGINS", "CONSUL_HTTP_ADDR", "CONSUL_HTTP_TOKEN", "SERVICE_NAME",
		"SERVICE_HOST", "HTTP_READ_TIMEOUT", "HTTP_WRITE_TIMEOUT", "HTTP_IDLE_TIMEOUT",
		"HTTP_SHUTDOWN_TIMEOUT",
	} {
		t.Setenv(key, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("DATABASE_URL", "postgres://localhost/usersvc")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, time.Hour, cfg.JWTTTL)
	assert.Equal(t, 10, cfg.BcryptCost)
	assert.Equal(t, DriverPostgres, cfg.StoreDriver)
	assert.Equal(t, 5, cfg.LoginMaxAttempts)
	assert.Equal(t, 15*time.Minute, cfg.LoginLockoutWindow)
	assert.Equal(t, "usersvc", cfg.MongoDatabase)
	assert.Empty(t, cfg.CORSAllowedOrigins)
	assert.False(t, cfg.IsProduction())
}

func TestLoad_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("STORE_DRIVER", "Mongo")
	t.Setenv("MONGO_URI", "mongodb://localhost:27017")
	t.Setenv("PORT", "9090")
	t.Setenv("JWT_TTL", "30m")
	t.Setenv("APP_ENV", "production")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example ,")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DriverMongo, cfg.StoreDriver)
	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, 30*time.Minute, cfg.JWTTTL)
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSAllowedOrigins)
}

func TestLoad_MissingSecretIsConfigurationError(t *testing.T) {
	clearEnv(t)
	t.Setenv("STORE_DRIVER", "memory")

	_, err := Load()
	require.Error(t, err)
	assert.True(t, apperror.Is(err, apperror.KindConfiguration))
	assert.Contains(t, err.Error(), "JWT_SECRET")
}

func TestLoad_ReportsEveryProblem(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "eighty")
	t.Setenv("JWT_TTL", "forever")

	_, err := Load()
	require.Error(t, err)
	for _, want := range []string{"JWT_SECRET", "DATABASE_URL", "PORT", "JWT_TTL"} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestLoad_RejectsUnknownDriverAndBadTTL(t *testing.T) {
	clearEnv(t)
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("STORE_DRIVER", "sqlite")
	t.Setenv("JWT_TTL", "-5m")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "STORE_DRIVER")
	assert.Contains(t, err.Error(), "JWT_TTL must be positive")
}

func TestValidateEnv(t *testing.T) {
	t.Setenv("PRESENT_VAR", "x")
	t.Setenv("BLANK_VAR", "  ")

	assert.NoError(t, ValidateEnv([]string{"PRESENT_VAR"}))

	err := ValidateEnv([]string{"PRESENT_VAR", "BLANK_VAR", "ABSENT_VAR_FOR_TEST"})
	require.Error(t, err)
	assert.Equal(t, "missing required environment variables: BLANK_VAR, ABSENT_VAR_FOR_TEST", err.Error())
}

func TestGetEnvOrDefault(t *testing.T) {
	t.Setenv("SOME_VAR", "value")
	assert.Equal(t, "value", GetEnvOrDefault("SOME_VAR", "default"))
	assert.Equal(t, "default", GetEnvOrDefault("UNSET_VAR_FOR_TEST", "default"))
}
