package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"tablet-sync-backend/config"
	"tablet-sync-backend/internal/api"
	"tablet-sync-backend/internal/credential"
	"tablet-sync-backend/internal/db"
	"tablet-sync-backend/internal/jobs"
	applog "tablet-sync-backend/internal/log"
	"tablet-sync-backend/internal/orders"
	"tablet-sync-backend/internal/ratelimit"
	"tablet-sync-backend/internal/registry"
	"tablet-sync-backend/internal/session"
	"tablet-sync-backend/internal/store"
)

func main() {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration from %s: %v\n", configPath, err)
		os.Exit(1)
	}

	logger := applog.New(cfg.Environment, cfg.Logging)
	logger.Info().Str("path", configPath).Msg("configuration loaded")

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	gormDB, err := db.Init(&cfg.Database)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize database")
	}
	logger.Info().Str("driver", cfg.Database.Driver).Msg("database initialized")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	appStore := store.NewGormStore(gormDB)
	hasher := credential.NewHasher(cfg.Credential.BcryptCost)

	sessions := session.NewManager(appStore, appStore, hasher, cfg.Session.TTL, logger)
	devices := registry.New(appStore, hasher, logger)
	orderService := orders.NewService(appStore, cfg.Orders, logger)

	limiter, closeLimiter, err := ratelimit.FromConfig(ctx, cfg.RateLimit, cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Str("backend", cfg.RateLimit.Backend).Msg("failed to initialize rate limiter")
	}
	defer closeLimiter()
	logger.Info().
		Str("backend", cfg.RateLimit.Backend).
		Int("max_requests", cfg.RateLimit.MaxRequests).
		Dur("window", cfg.RateLimit.Window).
		Msg("rate limiter ready")

	sweeper := jobs.NewSweeper(sessions, cfg.Session.SweepSchedule, logger)
	if err := sweeper.Start(); err != nil {
		logger.Fatal().Err(err).Str("schedule", cfg.Session.SweepSchedule).Msg("failed to start session sweeper")
	}

	handler := api.NewHandler(sessions, devices, orderService, appStore, cfg.Polling.NextPoll, logger)
	router := api.NewRouter(handler, limiter, cfg, logger)
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Info().Int("port", cfg.Server.Port).Msg("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("HTTP server ListenAndServe")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	<-stop
	logger.Info().Msg("shutdown signal received, stopping services")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("HTTP server Shutdown")
	}
	sweeper.Stop()

	logger.Info().Msg("server gracefully stopped")
}
