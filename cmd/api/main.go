// Package main is the entrypoint for the QueueUp API server.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"os"
	"regexp"
	"strings"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/queueup/queueup/internal/cache"
	"github.com/queueup/queueup/internal/config"
	"github.com/queueup/queueup/internal/event"
	"github.com/queueup/queueup/internal/handler"
	"github.com/queueup/queueup/internal/metrics"
	"github.com/queueup/queueup/internal/middleware"
	"github.com/queueup/queueup/internal/repository"
	"github.com/queueup/queueup/internal/server"
	"github.com/queueup/queueup/internal/service"
	"github.com/queueup/queueup/internal/ws"
)

func main() {
	// Initialize context
	ctx := context.Background()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Initialize logger
	logger := initLogger(cfg)

	// Initialize database
	repo, err := repository.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error(
			"failed to connect to database",
			slog.String("error", sanitizeError(err, cfg.DatabaseURL)),
			slog.String("database_url", redactURL(cfg.DatabaseURL)),
		)
		os.Exit(1)
	}
	defer repo.Close()
	logger.Info("connected to database")

	// Initialize cache
	cacheClient, err := cache.New(ctx, cfg.RedisURL)
	if err != nil {
		logger.Error(
			"failed to connect to Redis",
			slog.String("error", sanitizeError(err, cfg.RedisURL)),
			slog.String("redis_url", redactURL(cfg.RedisURL)),
		)
		os.Exit(1)
	}
	defer cacheClient.Close()
	logger.Info("connected to Redis")

	// Initialize services
	metricsRecorder := metrics.NewInMemory()
	publisher := event.NewRedisPublisher(cacheClient.Client(), logger, metricsRecorder)
	recruitmentService := service.NewRecruitmentService(repo, publisher, metricsRecorder)
	participationService := service.NewParticipationService(repo, publisher, metricsRecorder)

	// Initialize WebSocket hub and Redis relay
	hub := ws.NewHub(logger, metricsRecorder)
	relay := ws.NewRelay(cacheClient.Client(), hub, logger)
	relayCtx, stopRelay := context.WithCancel(ctx)
	relayDone := make(chan struct{})
	go func() {
		defer close(relayDone)
		if err := relay.Run(relayCtx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("event relay stopped with error", "error", err)
		}
	}()

	// Initialize handlers
	h := handler.New()
	healthHandler := handler.NewHealthHandler(repo, cacheClient)
	recruitmentHandler := handler.NewRecruitmentHandler(recruitmentService, participationService, logger)
	metricsHandler := handler.NewMetricsHandler(metricsRecorder)
	wsHandler := ws.NewHandler(hub, participationService, recruitmentService, logger)

	// Setup router
	r := setupRouter(h, healthHandler, recruitmentHandler, metricsHandler, wsHandler, repo, cacheClient, cfg, logger)

	// Create and run server
	srv := server.New(
		r,
		cfg.AppPort,
		cfg.ReadTimeout,
		cfg.WriteTimeout,
		cfg.ShutdownTimeout,
		logger,
	)
	srv.OnShutdown("websocket hub", func(ctx context.Context) error {
		hub.Close()
		return nil
	})
	srv.OnShutdown("event relay", func(ctx context.Context) error {
		stopRelay()
		select {
		case <-relayDone:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})

	logger.Info("starting server",
		"port", cfg.AppPort,
		"env", cfg.AppEnv,
	)

	if err := srv.Run(); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

// initLogger initializes the slog logger based on configuration.
func initLogger(cfg *config.Config) *slog.Logger {
	var h slog.Handler

	level := parseLogLevel(cfg.LogLevel)

	opts := &slog.HandlerOptions{
		Level: level,
	}

	if cfg.LogFormat == "json" {
		h = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		h = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(h)
	slog.SetDefault(logger)

	return logger
}

// parseLogLevel converts string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// setupRouter configures the chi router with all routes and middleware.
func setupRouter(
	h *handler.Handler,
	healthHandler *handler.HealthHandler,
	recruitmentHandler *handler.RecruitmentHandler,
	metricsHandler *handler.MetricsHandler,
	wsHandler *ws.Handler,
	repo *repository.Repository,
	cacheClient *cache.Cache,
	cfg *config.Config,
	logger *slog.Logger,
) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recoverer(logger))
	r.Use(middleware.Security(middleware.SecurityConfig{
		IsDevelopment: cfg.IsDevelopment(),
	}))
	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.AllowedOrigins = cfg.GetCORSAllowedOrigins()
	r.Use(middleware.CORS(corsCfg))
	r.Use(middleware.MaxBodySize(cfg.MaxRequestBodySize))

	// Health endpoints (no auth required)
	r.Get("/healthz", healthHandler.Healthz)
	r.Get("/readyz", healthHandler.Readyz)
	r.Get("/metrics", metricsHandler.Metrics)

	// Root info endpoint
	r.Get("/", h.Index)

	// Auth middleware configuration
	authCfg := middleware.AuthConfig{
		Logger:     logger,
		Repository: repo,
		Cache:      cacheClient,
	}

	// Rate limit middleware configuration
	rateLimitCfg := middleware.RateLimitConfig{
		Logger:     logger,
		Cache:      cacheClient,
		APIEnabled: cfg.RateLimitAPIEnabled,
		WSEnabled:  cfg.RateLimitWSEnabled,
		WSRPS:      cfg.RateLimitWSRPS,
		WSBurst:    cfg.RateLimitWSBurst,
	}

	// API v1 routes (require authentication)
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(authCfg))
		r.Use(middleware.RateLimitAPI(rateLimitCfg))
		r.Use(middleware.RequireJSON)

		r.Route("/recruitments", func(r chi.Router) {
			r.With(middleware.RequireRead()).Get("/", recruitmentHandler.List)
			r.With(middleware.RequireRead()).Get("/active", recruitmentHandler.ListActive)
			r.With(middleware.RequireRead()).Get("/my", recruitmentHandler.ListMine)
			r.With(middleware.RequireRead()).Get("/participating", recruitmentHandler.ListParticipating)
			r.With(middleware.RequireRead()).Get("/attraction/{attractionId}", recruitmentHandler.ListByAttraction)
			r.With(middleware.RequireRead()).Get("/{id}", recruitmentHandler.Get)

			r.With(middleware.RequireWrite()).Post("/", recruitmentHandler.Create)
			r.With(middleware.RequireWrite()).Patch("/{id}", recruitmentHandler.Update)
			r.With(middleware.RequireWrite()).Delete("/{id}", recruitmentHandler.Delete)
			r.With(middleware.RequireWrite()).Post("/{id}/cancel", recruitmentHandler.Cancel)
			r.With(middleware.RequireWrite()).Post("/{id}/complete", recruitmentHandler.Complete)
			r.With(middleware.RequireWrite()).Post("/{id}/join", recruitmentHandler.Join)
			r.With(middleware.RequireWrite()).Post("/{id}/leave", recruitmentHandler.Leave)
		})
	})

	// WebSocket endpoint (authenticated, IP rate limited on upgrade)
	r.With(middleware.RateLimitIP(rateLimitCfg), middleware.Auth(authCfg)).Get("/ws", wsHandler.ServeHTTP)

	// 404 and 405 handlers
	r.NotFound(h.NotFound)
	r.MethodNotAllowed(h.MethodNotAllowed)

	return r
}

var passwordPattern = regexp.MustCompile(`(?i)password=[^\s]+`)

func redactURL(raw string) string {
	if raw == "" {
		return ""
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "[redacted]"
	}

	if parsed.User != nil {
		username := parsed.User.Username()
		if username == "" {
			parsed.User = url.User("redacted")
		} else {
			parsed.User = url.User(username)
		}
	}

	return parsed.String()
}

func sanitizeError(err error, secrets ...string) string {
	if err == nil {
		return ""
	}

	msg := err.Error()
	for _, secret := range secrets {
		if secret == "" {
			continue
		}
		redacted := redactURL(secret)
		if redacted == "" {
			redacted = "[redacted]"
		}
		msg = strings.ReplaceAll(msg, secret, redacted)
	}

	return passwordPattern.ReplaceAllString(msg, "password=redacted")
}
