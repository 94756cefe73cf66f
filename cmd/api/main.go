// Package main is the entrypoint for the facturo auth API server.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/facturo/facturo/internal/auth"
	"github.com/facturo/facturo/internal/cache"
	"github.com/facturo/facturo/internal/config"
	"github.com/facturo/facturo/internal/handler"
	"github.com/facturo/facturo/internal/metrics"
	"github.com/facturo/facturo/internal/middleware"
	"github.com/facturo/facturo/internal/policy"
	"github.com/facturo/facturo/internal/repository"
	"github.com/facturo/facturo/internal/server"
	"github.com/facturo/facturo/internal/service"
)

func main() {
	// A missing JWT_SECRET fails here.
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := newLogger(os.Stdout, cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server exited", slog.String("error", err.Error()))
		stop()
		os.Exit(1)
	}
}

// run wires the credential store, principal cache and services into the
// HTTP server and blocks until ctx is cancelled.
func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	repo, err := repository.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect to database %s: %s", redactURL(cfg.DatabaseURL), sanitizeError(err, cfg.DatabaseURL))
	}
	logger.Info("connected to database")

	recorder := metrics.NewInMemory()

	var (
		store       service.Store = repo
		cacheHealth handler.HealthChecker
		principals  *cache.Cache
	)
	if cfg.CacheEnabled() {
		principals, err = cache.New(ctx, cfg.RedisURL, cfg.PrincipalCacheTTL)
		if err != nil {
			repo.Close()
			return fmt.Errorf("connect to redis %s: %s", redactURL(cfg.RedisURL), sanitizeError(err, cfg.RedisURL))
		}
		store = service.NewCachedStore(repo, principals, recorder, logger)
		cacheHealth = principals
		logger.Info("principal cache enabled", slog.Duration("ttl", cfg.PrincipalCacheTTL))
	} else {
		logger.Info("principal cache disabled")
	}

	tokens, err := auth.NewTokenService(cfg.JWTSecret, cfg.TokenLifetime)
	if err != nil {
		return fmt.Errorf("token service: %w", err)
	}
	hasher := auth.NewHasher(cfg.BcryptCost)

	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.AllowedOrigins = cfg.GetCORSAllowedOrigins()

	router := handler.NewRouter(handler.RouterConfig{
		Logger:  logger,
		Auth:    service.NewAuthService(store, hasher, tokens, recorder, logger),
		Users:   service.NewUserService(store, hasher, policy.New(), recorder, logger),
		Health:  handler.NewHealthHandler(repo, cacheHealth),
		Metrics: recorder,
		Security: middleware.SecurityConfig{
			IsDevelopment:      cfg.IsDevelopment(),
			AllowedOrigins:     corsCfg.AllowedOrigins,
			MaxRequestBodySize: cfg.MaxRequestBodySize,
		},
		CORS: corsCfg,
	})

	srv := server.New(router, server.Options{
		Port:            cfg.AppPort,
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}, logger)
	srv.OnShutdown("postgres", func(context.Context) error {
		repo.Close()
		return nil
	})
	if principals != nil {
		srv.OnShutdown("redis", func(context.Context) error {
			return principals.Close()
		})
	}

	logger.Info("starting server",
		slog.Int("port", cfg.AppPort),
		slog.String("env", cfg.AppEnv),
		slog.Duration("token_lifetime", cfg.TokenLifetime),
	)
	return srv.Run(ctx)
}

// newLogger builds the process logger. Any format other than "json" is text.
func newLogger(w io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLogLevel(level)}
	if format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// parseLogLevel maps LOG_LEVEL to a slog level, falling back to info.
func parseLogLevel(level string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return slog.LevelInfo
	}
	return l
}
