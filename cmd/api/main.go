package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/transcriptapi/core/internal/api/handler"
	"github.com/transcriptapi/core/internal/api/middleware"
	"github.com/transcriptapi/core/internal/config"
	"github.com/transcriptapi/core/internal/infrastructure/cache"
	"github.com/transcriptapi/core/internal/infrastructure/localcache"
	"github.com/transcriptapi/core/internal/infrastructure/postgres"
	"github.com/transcriptapi/core/internal/infrastructure/queue"
	"github.com/transcriptapi/core/internal/infrastructure/ratelimit"
	"github.com/transcriptapi/core/internal/usecase"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	pgClient, err := postgres.NewClient(ctx, postgres.DefaultClientConfig(cfg.Database.DSN()))
	if err != nil {
		return fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	defer pgClient.Close()
	logger.Info("connected to PostgreSQL")

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}
	logger.Info("connected to Redis")

	sharedStore := cache.NewRedisStore(redisClient)
	jobQueue := queue.NewRedisQueue(sharedStore)
	localStore := localcache.New(cfg.Cache.C2Capacity)
	artifactRepo := postgres.NewArtifactRepository(pgClient.Pool())
	jobRepo := postgres.NewJobRepository(pgClient.Pool())

	coordinator := usecase.NewCoordinator(localStore, sharedStore, artifactRepo, jobRepo, jobQueue, usecase.CoordinatorConfig{
		ArtifactTTL:       cfg.Database.RetentionWindow(),
		SharedCacheTTL:    cfg.Cache.C3TTL,
		LocalCacheTTL:     cfg.Cache.C2TTL,
		ExtractionTimeout: cfg.Extractor.Timeout,
	})

	limiter := ratelimit.New(sharedStore, float64(cfg.RateLimit.PerMinute), float64(cfg.RateLimit.Burst), cfg.RateLimit.FailOpen)
	admissionSvc := usecase.NewAdmissionService(coordinator, limiter)

	extractionHandler := handler.NewExtractionHandler(admissionSvc)
	jobHandler := handler.NewJobHandler(jobRepo, artifactRepo)
	adminHandler := handler.NewAdminHandler(coordinator, jobQueue, limiter)

	r := setupRouter(logger, extractionHandler, jobHandler, adminHandler)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("server error: %w", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		logger.Info("shutting down server", slog.String("signal", sig.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	logger.Info("server stopped")
	return nil
}

func setupRouter(logger *slog.Logger, extractionHandler *handler.ExtractionHandler, jobHandler *handler.JobHandler, adminHandler *handler.AdminHandler) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recoverer(logger))

	r.Get("/health", handler.Health)

	r.Route("/v1", func(r chi.Router) {
		r.Post("/extract", extractionHandler.Submit)
		r.Post("/extract/batch", extractionHandler.SubmitBatch)
		r.Get("/jobs/{id}", jobHandler.Get)

		r.Route("/admin", func(r chi.Router) {
			r.Post("/cache/clear", adminHandler.ClearCache)
			r.Get("/queue/stats", adminHandler.QueueStats)
			r.Get("/ratelimit/stats", adminHandler.RateLimitStats)
			r.Post("/ratelimit/reset", adminHandler.RateLimitReset)
		})
	})

	return r
}
