package handler

import (
	"log/slog"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/facturo/facturo/internal/metrics"
	"github.com/facturo/facturo/internal/middleware"
	"github.com/facturo/facturo/internal/service"
)

// RouterConfig collects what the router needs to mount every endpoint.
type RouterConfig struct {
	Logger   *slog.Logger
	Auth     *service.AuthService
	Users    *service.UserService
	Health   *HealthHandler
	Metrics  metrics.Recorder
	Security middleware.SecurityConfig
	CORS     middleware.CORSConfig
}

// NewRouter configures the chi router with all routes and middleware.
func NewRouter(cfg RouterConfig) *chi.Mux {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	recorder := cfg.Metrics
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	health := cfg.Health
	if health == nil {
		health = NewHealthHandler(nil, nil)
	}

	h := New()
	authHandler := NewAuthHandler(cfg.Auth, logger)
	userHandler := NewUserHandler(cfg.Users, logger)

	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recoverer(logger))
	r.Use(middleware.Security(cfg.Security))
	r.Use(middleware.CORS(cfg.CORS))
	if cfg.Security.MaxRequestBodySize > 0 {
		r.Use(middleware.MaxBodySize(cfg.Security.MaxRequestBodySize))
	}

	// Health endpoints (no auth required)
	r.Get("/healthz", health.Healthz)
	r.Get("/readyz", health.Readyz)
	r.Get("/up", health.Up)

	if snapshotter, ok := recorder.(metrics.Snapshotter); ok {
		r.Get("/metrics", NewMetricsHandler(snapshotter).Metrics)
	}

	r.Get("/", h.Hello)

	requireAuth := middleware.Authenticate(middleware.AuthConfig{
		Logger:        logger,
		Authenticator: cfg.Auth,
		Metrics:       recorder,
	})

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", authHandler.Register)
		r.Post("/login", authHandler.Login)

		r.Group(func(r chi.Router) {
			r.Use(requireAuth)
			r.Delete("/logout", authHandler.Logout)
			r.Get("/validate", authHandler.Validate)
			r.Patch("/account", authHandler.UpdateAccount)
			r.Delete("/account", authHandler.DeleteAccount)
		})
	})

	// API v1 routes (require authentication)
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(requireAuth)

		r.Route("/users", func(r chi.Router) {
			r.Get("/", userHandler.List)
			r.Post("/", userHandler.Create)
			r.Get("/{id}", userHandler.Get)
			r.Patch("/{id}", userHandler.Update)
			r.Delete("/{id}", userHandler.Delete)
		})
	})

	// 404 and 405 handlers
	r.NotFound(h.NotFound)
	r.MethodNotAllowed(h.MethodNotAllowed)

	return r
}
