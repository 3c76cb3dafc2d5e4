package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"usersvc/internal/auth"
	"usersvc/internal/config"
	"usersvc/internal/consul"
	"usersvc/internal/database"
	"usersvc/internal/limiter"
	"usersvc/internal/logger"
	"usersvc/internal/metrics"
	"usersvc/internal/server"
	"usersvc/internal/users"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	log := logger.New(logger.Options{
		Level:  logger.ParseLevel(cfg.LogLevel),
		Format: logger.ParseFormat(cfg.LogFormat),
	})
	logger.SetDefault(log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := run(cfg); err != nil {
		slog.Error("Users service stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	ctx := context.Background()

	slog.Info("Starting users service",
		"port", cfg.Port,
		"env", cfg.Env,
		"store", cfg.StoreDriver,
	)

	checks := map[string]server.HealthCheck{}

	// Initialize user store
	store, closeStore, err := openStore(ctx, cfg, checks)
	if err != nil {
		return err
	}
	defer closeStore()

	// Initialize login limiter (optional)
	var loginLimiter limiter.Limiter = limiter.Noop{}
	if cfg.RedisAddr != "" {
		client := limiter.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		defer client.Close()

		redisLimiter := limiter.NewRedisLimiter(client, limiter.Config{
			MaxAttempts: cfg.LoginMaxAttempts,
			Window:      cfg.LoginLockoutWindow,
		})
		if err := redisLimiter.Ping(ctx); err != nil {
			slog.Warn("Redis unreachable, login limiting will fail open", "addr", cfg.RedisAddr, "error", err)
		} else {
			slog.Info("Connected to Redis", "addr", cfg.RedisAddr)
		}
		loginLimiter = redisLimiter
		checks["redis"] = func(ctx context.Context) map[string]string {
			if err := redisLimiter.Ping(ctx); err != nil {
				return map[string]string{"status": "down", "error": err.Error()}
			}
			return map[string]string{"status": "up"}
		}
	} else {
		slog.Info("REDIS_ADDR not set, login limiting disabled")
	}

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metricOpts := metrics.Options{Registerer: registry}
	httpMetrics, err := metrics.NewHTTPMetrics(metricOpts)
	if err != nil {
		return fmt.Errorf("register http metrics: %w", err)
	}
	authMetrics, err := metrics.NewAuthMetrics(metricOpts)
	if err != nil {
		return fmt.Errorf("register auth metrics: %w", err)
	}

	hasher, err := auth.NewHasher(auth.HasherConfig{
		Cost:          cfg.BcryptCost,
		MaxConcurrent: cfg.HashMaxConcurrency,
	})
	if err != nil {
		return err
	}
	tokens, err := auth.NewTokenManager(auth.TokenConfig{
		Secret: []byte(cfg.JWTSecret),
		TTL:    cfg.JWTTTL,
	})
	if err != nil {
		return err
	}

	userService := users.NewService(users.Deps{
		Store:   store,
		Hasher:  hasher,
		Tokens:  tokens,
		Limiter: loginLimiter,
		Metrics: authMetrics,
	})

	router := server.New(server.Deps{
		Users:       users.NewHandler(userService, tokens.TTL()),
		Tokens:      tokens,
		HTTPMetrics: httpMetrics,
		Gatherer:    registry,
		CORSOrigins: cfg.CORSAllowedOrigins,
		Checks:      checks,
	}).RegisterRoutes()

	httpServer := server.NewHTTPServer(server.Config{
		Port:         cfg.Port,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}, router)

	// Register service with Consul (optional)
	if cfg.ConsulAddr != "" {
		deregister, err := registerWithConsul(cfg)
		if err != nil {
			return err
		}
		defer deregister()
	}

	// Start server in a goroutine
	serverErr := make(chan error, 1)
	go func() {
		slog.Info("Users service listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	// Wait for interrupt signal to gracefully shut down
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
	case sig := <-quit:
		slog.Info("Shutting down users service", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	slog.Info("Users service stopped")
	return nil
}

// openStore connects the configured backend and adds its health check.
func openStore(ctx context.Context, cfg *config.Config, checks map[string]server.HealthCheck) (users.Store, func(), error) {
	switch cfg.StoreDriver {
	case config.DriverPostgres:
		db, err := database.New(ctx, database.Config{URL: cfg.DatabaseURL})
		if err != nil {
			return nil, nil, fmt.Errorf("connect database: %w", err)
		}
		if err := db.Migrate(ctx); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("migrate database: %w", err)
		}
		checks["database"] = db.Health
		return users.NewPostgresStore(db), db.Close, nil

	case config.DriverMongo:
		client, err := database.ConnectMongo(ctx, database.MongoConfig{
			URI:      cfg.MongoURI,
			Database: cfg.MongoDatabase,
		})
		if err != nil {
			return nil, nil, err
		}
		closeClient := func() {
			disconnectCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := client.Disconnect(disconnectCtx); err != nil {
				slog.Warn("Failed to disconnect mongo", "error", err)
			}
		}

		store, err := users.NewMongoStore(ctx, client.Database(cfg.MongoDatabase))
		if err != nil {
			closeClient()
			return nil, nil, err
		}
		checks["database"] = func(ctx context.Context) map[string]string {
			if err := client.Ping(ctx, nil); err != nil {
				return map[string]string{"status": "down", "error": err.Error()}
			}
			return map[string]string{"status": "up"}
		}
		return store, closeClient, nil

	default:
		slog.Warn("Using in-memory store, data is lost on restart")
		return users.NewMemoryStore(), func() {}, nil
	}
}

// registerWithConsul registers this instance and returns its deregistration.
func registerWithConsul(cfg *config.Config) (func(), error) {
	client, err := consul.NewClient(cfg.ConsulAddr, cfg.ConsulToken)
	if err != nil {
		return nil, err
	}

	svc := consul.NewServiceConfig(cfg.ServiceName, cfg.ServiceHost, cfg.Port)

	// Deregister any existing instance with same ID (cleanup from previous crashes)
	_ = client.Deregister(svc.ID)

	if err := client.Register(svc); err != nil {
		return nil, fmt.Errorf("failed to register service with consul: %w", err)
	}
	slog.Info("Registered with Consul", "service_id", svc.ID)

	return func() {
		if err := client.Deregister(svc.ID); err != nil {
			slog.Warn("Failed to deregister from Consul", "error", err)
			return
		}
		slog.Info("Deregistered from Consul")
	}, nil
}
