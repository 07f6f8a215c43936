// Package main is the entry point for the synchronization daemon. It keeps
// one user session in sync with the server: polling snapshots, subscribing
// to the change feed and logging the notices a client UI would surface.
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

	"github.com/ecociclo/ecociclo/internal/claim"
	"github.com/ecociclo/ecociclo/internal/config"
	"github.com/ecociclo/ecociclo/internal/db"
	"github.com/ecociclo/ecociclo/internal/middleware"
	"github.com/ecociclo/ecociclo/internal/point"
	"github.com/ecociclo/ecociclo/internal/profile"
	"github.com/ecociclo/ecociclo/internal/reward"
	"github.com/ecociclo/ecociclo/internal/sync"
	"github.com/ecociclo/ecociclo/internal/viewstate"
)

func main() {
	help := flag.Bool("help", false, "display help message")
	userID := flag.String("user", "", "user ID of the session to synchronize (required)")
	configPath := flag.String("config", "", "path to an optional YAML config file")
	flag.Parse()

	if *help {
		fmt.Println("EcoCiclo Sync Daemon")
		fmt.Println()
		fmt.Println("Usage: syncd -user <user-id> [options]")
		fmt.Println()
		fmt.Println("Options:")
		flag.PrintDefaults()
		os.Exit(0)
	}
	if *userID == "" {
		fmt.Fprintln(os.Stderr, "syncd: -user is required")
		os.Exit(1)
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

	ctx := context.Background()

	conn, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer conn.Close()

	var viewState viewstate.Store
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Error("invalid REDIS_URL", "error", err)
			os.Exit(1)
		}
		client := redis.NewClient(opts)
		defer client.Close()
		viewState = viewstate.NewRedisStore(client, 30*24*time.Hour)
	}

	profiles := profile.NewPostgresRepository(conn)
	claims := claim.NewPostgresRepository(conn)
	points := point.NewPostgresRepository(conn, claims, profiles)
	ledger := reward.NewPostgresLedger(conn)
	source := sync.NewRepositorySource(points, profiles, ledger)

	metrics := sync.NewMetrics()
	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		logger.Error("failed to register sync metrics", "error", err)
		os.Exit(1)
	}

	controller, err := sync.NewController(sync.Config{
		UserID:            *userID,
		FeedURL:           cfg.FeedURL,
		PointsInterval:    time.Duration(cfg.PointsPollSeconds) * time.Second,
		RecyclersInterval: time.Duration(cfg.RecyclersPollSeconds) * time.Second,
		ViewState:         viewState,
		Logger:            logger,
		Metrics:           metrics,
	}, source)
	if err != nil {
		logger.Error("failed to create sync controller", "error", err)
		os.Exit(1)
	}

	if err := controller.Start(ctx); err != nil {
		logger.Error("failed to start sync controller", "error", err)
		os.Exit(1)
	}
	logger.Info("sync controller started",
		"user_id", *userID,
		"feed_url", cfg.FeedURL,
		"points_interval_s", cfg.PointsPollSeconds,
		"recyclers_interval_s", cfg.RecyclersPollSeconds)

	// Notices would drive UI toasts in a client; the daemon logs them.
	go func() {
		for n := range controller.Notices() {
			logger.Info("notice", "type", n.Type, "title", n.Title, "body", n.Body)
		}
	}()

	// Probe and metrics endpoint.
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `{"status":"healthy","syncing":%t}`, controller.Syncing())
	})
	mux.Handle("GET /metrics", promhttp.Handler())

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		logger.Info("starting probe server", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("probe server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down sync daemon...")
	controller.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("probe server forced to shutdown", "error", err)
	}

	logger.Info("sync daemon stopped")
}
