// Package main is the entry point for the API server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/ecociclo/ecociclo/internal/api"
	"github.com/ecociclo/ecociclo/internal/auth"
	"github.com/ecociclo/ecociclo/internal/claim"
	"github.com/ecociclo/ecociclo/internal/config"
	"github.com/ecociclo/ecociclo/internal/db"
	"github.com/ecociclo/ecociclo/internal/donation"
	"github.com/ecociclo/ecociclo/internal/feed"
	"github.com/ecociclo/ecociclo/internal/health"
	"github.com/ecociclo/ecociclo/internal/idempotency"
	"github.com/ecociclo/ecociclo/internal/jobs"
	"github.com/ecociclo/ecociclo/internal/lifecycle"
	"github.com/ecociclo/ecociclo/internal/message"
	"github.com/ecociclo/ecociclo/internal/middleware"
	"github.com/ecociclo/ecociclo/internal/notification"
	"github.com/ecociclo/ecociclo/internal/photo"
	"github.com/ecociclo/ecociclo/internal/point"
	"github.com/ecociclo/ecociclo/internal/profile"
	"github.com/ecociclo/ecociclo/internal/rating"
	"github.com/ecociclo/ecociclo/internal/reward"
	"github.com/ecociclo/ecociclo/internal/tracing"
	"github.com/ecociclo/ecociclo/internal/viewstate"
)

const idempotencyCleanupInterval = time.Hour

// buildHandler wraps the router in the middleware chain, outermost first.
func buildHandler(cfg *config.Config, logger *slog.Logger, router http.Handler, rateLimitStore middleware.RateLimitStore, httpMetrics *middleware.Metrics) http.Handler {
	handler := router
	handler = middleware.RateLimiter(rateLimitStore, middleware.DefaultGlobalLimit(), middleware.IPKeyFunc(), httpMetrics)(handler)
	handler = middleware.HTTPMetrics(httpMetrics)(handler)
	handler = middleware.Logging(logger)(handler)
	if cfg.OTLPEndpoint != "" {
		handler = middleware.Tracing("ecociclo-api")(handler)
	}
	if len(cfg.CORSAllowedOrigins) > 0 {
		handler = middleware.CORS(middleware.CORSConfig{
			AllowedOrigins:   cfg.CORSAllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Content-Type", "Authorization", "X-Request-ID", "Idempotency-Key"},
			AllowCredentials: true,
			MaxAge:           300,
		})(handler)
	}
	handler = middleware.RequestID(handler)
	if cfg.ProfilingEnabled {
		handler = middleware.Profiling(middleware.ProfilingConfig{
			Enabled:     true,
			Environment: cfg.Env,
		})(handler)
	}
	return handler
}

// newServer builds the HTTP server with the service's timeouts.
func newServer(cfg *config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

func main() {
	help := flag.Bool("help", false, "display help message")
	configPath := flag.String("config", "", "path to an optional YAML config file")
	flag.Parse()

	if *help {
		fmt.Println("EcoCiclo API Server")
		fmt.Println()
		fmt.Println("Usage: api [options]")
		fmt.Println()
		fmt.Println("Options:")
		flag.PrintDefaults()
		os.Exit(0)
	}

	cfg, errs := config.Load(*configPath)
	if len(errs) > 0 {
		for _, err := range errs {
			fmt.Fprintln(os.Stderr, "config error:", err)
		}
		os.Exit(1)
	}

	logger := middleware.NewLogger(cfg.Env)
	slog.SetDefault(logger)

	summary := make([]any, 0, len(cfg.LogSummary())*2)
	for key, value := range cfg.LogSummary() {
		summary = append(summary, key, value)
	}
	logger.Info("configuration loaded", summary...)

	ctx := context.Background()

	// Distributed tracing (optional).
	tracer, err := tracing.NewProvider(tracing.Config{
		ServiceName:  "ecociclo-api",
		Enabled:      cfg.OTLPEndpoint != "",
		Environment:  cfg.Env,
		OTLPEndpoint: cfg.OTLPEndpoint,
		SamplingRate: 1.0,
		InsecureMode: cfg.Env != "production",
	})
	if err != nil {
		logger.Error("failed to initialize tracing", "error", err)
		os.Exit(1)
	}

	// PostgreSQL.
	conn, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer conn.Close()

	// Redis (optional: view state, rate limiting).
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Error("invalid REDIS_URL", "error", err)
			os.Exit(1)
		}
		redisClient = redis.NewClient(opts)
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			logger.Warn("redis unreachable at startup, continuing", "error", err)
		}
		cancel()
		defer redisClient.Close()
	}

	// Repositories.
	profiles := profile.NewPostgresRepository(conn)
	claims := claim.NewPostgresRepository(conn)
	points := point.NewPostgresRepository(conn, claims, profiles)
	credentials := auth.NewPostgresCredentialRepository(conn)
	ledger := reward.NewPostgresLedger(conn)
	notifications := notification.NewPostgresRepository(conn)
	messages := message.NewPostgresRepository(conn)
	ratings := rating.NewPostgresRepository(conn)
	donations := donation.NewPostgresRepository(conn)
	webhookEvents := donation.NewPostgresWebhookRepository(conn)
	idempotencyKeys := idempotency.NewInMemoryRepository()

	// Claim lifecycle engine over the transactional store.
	store := lifecycle.NewPostgresStore(conn, points, claims)
	engine := lifecycle.NewEngine(store, notifications, logger)

	// Change feed: the engine and the presence/message handlers publish row
	// changes, the hub streams them to WebSocket subscribers.
	bus := feed.NewBus()
	hub := feed.NewHub(bus, logger)
	publisher := feed.NewPublisher(bus, logger)
	engine.SetEvents(publisher)

	jwtService := auth.NewJWTService(cfg.JWTSecret)

	// Metrics.
	httpMetrics := middleware.NewMetrics()
	if err := httpMetrics.Register(prometheus.DefaultRegisterer); err != nil {
		logger.Error("failed to register HTTP metrics", "error", err)
		os.Exit(1)
	}
	jobMetrics := jobs.NewMetrics()
	if err := jobMetrics.Register(prometheus.DefaultRegisterer); err != nil {
		logger.Error("failed to register job metrics", "error", err)
		os.Exit(1)
	}

	// Handlers.
	recyclerHandlers := api.NewRecyclerHandlers(profiles, ratings)
	recyclerHandlers.SetPublisher(publisher)
	messageHandlers := api.NewMessageHandlers(messages, notifications, profiles)
	messageHandlers.SetPublisher(publisher)

	var donationHandlers *api.DonationHandlers
	var webhookHandlers *api.WebhookHandlers
	if cfg.StripeAPIKey != "" {
		donationHandlers = api.NewDonationHandlers(donations, profiles, donation.NewStripeClient(cfg.StripeAPIKey))
		webhookHandlers = api.NewWebhookHandlers(cfg.StripeWebhookSecret, donations, webhookEvents)
	} else {
		logger.Info("stripe not configured, donations disabled")
	}

	var photoHandlers *api.PhotoHandlers
	if cfg.S3BucketName != "" {
		photoService, err := photo.NewService(photo.ServiceConfig{
			BucketName:      cfg.S3BucketName,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
			Endpoint:        cfg.S3Endpoint,
			MaxSizeMB:       cfg.S3MaxUploadSizeMB,
		})
		if err != nil {
			logger.Error("failed to initialize photo service", "error", err)
			os.Exit(1)
		}
		photoHandlers = api.NewPhotoHandlers(photoService)
	} else {
		logger.Info("object storage not configured, photo uploads disabled")
	}

	var viewState viewstate.Store
	if redisClient != nil {
		// Sessions resume across restarts; keep state around for a month.
		viewState = viewstate.NewRedisStore(redisClient, 30*24*time.Hour)
	} else {
		viewState = viewstate.NewMemoryStore()
	}

	healthConfig := api.HealthHandlersConfig{
		DBChecker:      health.NewDBChecker(conn),
		MetricsEnabled: true,
	}
	if redisClient != nil {
		healthConfig.RedisChecker = health.NewRedisChecker(redisClient)
	}

	router := api.NewRouter(api.RouterConfig{
		Auth:          api.NewAuthHandlers(jwtService, credentials, profiles),
		Points:        api.NewPointHandlers(engine, points, claims),
		Recyclers:     recyclerHandlers,
		Rewards:       api.NewRewardHandlers(ledger),
		Stats:         api.NewStatsHandlers(points, claims),
		Notifications: api.NewNotificationHandlers(notifications),
		Messages:      messageHandlers,
		Ratings:       api.NewRatingHandlers(ratings, profiles),
		Donations:     donationHandlers,
		Photos:        photoHandlers,
		Session:       api.NewSessionHandlers(viewState),
		Webhooks:      webhookHandlers,
		Health:        api.NewHealthHandlers(healthConfig),

		Feed:    hub,
		Metrics: promhttp.Handler(),

		Authenticate:    middleware.Auth(jwtService),
		RequireRecycler: middleware.RequireRole(profile.RoleRecycler),
		DonationGuard: middleware.IdempotencyMiddleware(idempotencyKeys, map[string]bool{
			"/v1/donations": true,
		}),
	})

	// Rate limiting: Redis-backed when available so limits hold across
	// replicas, in-memory otherwise.
	var rateLimitStore middleware.RateLimitStore
	if redisClient != nil {
		rateLimitStore = middleware.NewRedisRateLimitStore(redisClient)
	} else {
		rateLimitStore = middleware.NewInMemoryRateLimitStore()
	}

	handler := buildHandler(cfg, logger, router, rateLimitStore, httpMetrics)

	// Periodic idempotency key cleanup.
	stopCleanup := make(chan struct{})
	go func() {
		ticker := time.NewTicker(idempotencyCleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				err := jobMetrics.Timed(jobs.JobTypeIdempotencyCleanup, func() error {
					_, err := idempotency.CleanupOldKeys(idempotencyKeys, idempotency.DefaultExpiry)
					return err
				})
				if err != nil {
					logger.Warn("idempotency cleanup failed", "error", err)
				}
			case <-stopCleanup:
				return
			}
		}
	}()

	server := newServer(cfg, handler)

	go func() {
		logger.Info("starting server", "port", cfg.Port, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal for graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")
	close(stopCleanup)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}
	if err := tracer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("tracer shutdown failed", "error", err)
	}

	logger.Info("server stopped")
}
