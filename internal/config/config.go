// Package config loads the service configuration from the environment
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"usersvc/internal/apperror"
)

// Store drivers
const (
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
	DriverMemory   = "memory"
)

// Config holds every setting the service reads at startup
type Config struct {
	Port      int
	Env       string
	LogLevel  string
	LogFormat string

	JWTSecret  string
	JWTTTL     time.Duration
	BcryptCost int
	// HashMaxConcurrency bounds parallel bcrypt work; 0 means GOMAXPROCS.
	HashMaxConcurrency int

	StoreDriver   string
	DatabaseURL   string
	MongoURI      string
	MongoDatabase string

	RedisAddr          string
	RedisPassword      string
	RedisDB            int
	LoginMaxAttempts   int
	LoginLockoutWindow time.Duration

	CORSAllowedOrigins []string

	ConsulAddr  string
	ConsulToken string
	ServiceName string
	ServiceHost string

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// IsProduction reports whether APP_ENV is production
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// Load reads the configuration from the environment. A missing secret or
// store URL is a configuration error; the process should not start.
func Load() (*Config, error) {
	p := &parser{}

	cfg := &Config{
		Port:      p.intVar("PORT", 8080),
		Env:       GetEnvOrDefault("APP_ENV", "development"),
		LogLevel:  GetEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat: GetEnvOrDefault("LOG_FORMAT", "json"),

		JWTSecret:          os.Getenv("JWT_SECRET"),
		JWTTTL:             p.durationVar("JWT_TTL", time.Hour),
		BcryptCost:         p.intVar("BCRYPT_COST", 10),
		HashMaxConcurrency: p.intVar("HASH_MAX_CONCURRENCY", 0),

		StoreDriver:   strings.ToLower(GetEnvOrDefault("STORE_DRIVER", DriverPostgres)),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		MongoURI:      os.Getenv("MONGO_URI"),
		MongoDatabase: GetEnvOrDefault("MONGO_DATABASE", "usersvc"),

		RedisAddr:          os.Getenv("REDIS_ADDR"),
		RedisPassword:      os.Getenv("REDIS_PASSWORD"),
		RedisDB:            p.intVar("REDIS_DB", 0),
		LoginMaxAttempts:   p.intVar("LOGIN_MAX_ATTEMPTS", 5),
		LoginLockoutWindow: p.durationVar("LOGIN_LOCKOUT_WINDOW", 15*time.Minute),

		CORSAllowedOrigins: splitList(os.Getenv("CORS_ALLOWED_ORIGINS")),

		ConsulAddr:  os.Getenv("CONSUL_HTTP_ADDR"),
		ConsulToken: os.Getenv("CONSUL_HTTP_TOKEN"),
		ServiceName: GetEnvOrDefault("SERVICE_NAME", "users-service"),
		ServiceHost: GetEnvOrDefault("SERVICE_HOST", "localhost"),

		ReadTimeout:     p.durationVar("HTTP_READ_TIMEOUT", 10*time.Second),
		WriteTimeout:    p.durationVar("HTTP_WRITE_TIMEOUT", 30*time.Second),
		IdleTimeout:     p.durationVar("HTTP_IDLE_TIMEOUT", time.Minute),
		ShutdownTimeout: p.durationVar("HTTP_SHUTDOWN_TIMEOUT", 10*time.Second),
	}

	required := []string{"JWT_SECRET"}
	switch cfg.StoreDriver {
	case DriverPostgres:
		required = append(required, "DATABASE_URL")
	case DriverMongo:
		required = append(required, "MONGO_URI")
	case DriverMemory:
	default:
		p.errs = append(p.errs, fmt.Errorf("STORE_DRIVER must be one of %s, %s, %s; got %q",
			DriverPostgres, DriverMongo, DriverMemory, cfg.StoreDriver))
	}

	if err := ValidateEnv(required); err != nil {
		p.errs = append([]error{err}, p.errs...)
	}
	if cfg.JWTTTL <= 0 {
		p.errs = append(p.errs, errors.New("JWT_TTL must be positive"))
	}

	if len(p.errs) > 0 {
		return nil, apperror.Configuration("invalid configuration", errors.Join(p.errs...))
	}

	return cfg, nil
}

// ValidateEnv validates that all required environment variables are set
func ValidateEnv(requiredVars []string) error {
	var missing []string

	for _, varName := range requiredVars {
		if strings.TrimSpace(os.Getenv(varName)) == "" {
			missing = append(missing, varName)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}

	return nil
}

// GetEnvOrDefault retrieves an environment variable or returns a default value
func GetEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// parser collects conversion errors so Load can report all of them at once
type parser struct {
	errs []error
}

func (p *parser) intVar(key string, def int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: invalid integer %q", key, raw))
		return def
	}
	return v
}

func (p *parser) durationVar(key string, def time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: invalid duration %q", key, raw))
		return def
	}
	return v
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
