package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/transcriptapi/core/internal/config"
	"github.com/transcriptapi/core/internal/domain/repository"
	"github.com/transcriptapi/core/internal/extractor"
	"github.com/transcriptapi/core/internal/infrastructure/amqp"
	"github.com/transcriptapi/core/internal/infrastructure/cache"
	"github.com/transcriptapi/core/internal/infrastructure/localcache"
	"github.com/transcriptapi/core/internal/infrastructure/postgres"
	"github.com/transcriptapi/core/internal/infrastructure/queue"
	"github.com/transcriptapi/core/internal/infrastructure/storage"
	"github.com/transcriptapi/core/internal/retrypolicy"
	"github.com/transcriptapi/core/internal/usecase"
	"github.com/transcriptapi/core/internal/webhook"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

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

	webhookQueueClient, err := amqp.NewClient(ctx, amqp.DefaultClientConfig(cfg.RabbitMQ.URL()))
	if err != nil {
		return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	defer webhookQueueClient.Close()
	logger.Info("connected to RabbitMQ")

	var rawArchive repository.RawArchive
	if cfg.MinIO.ArchiveRawEnabled {
		archiveClient, err := storage.NewClient(ctx, storage.ClientConfig{
			Endpoint:  cfg.MinIO.Endpoint,
			AccessKey: cfg.MinIO.AccessKey,
			SecretKey: cfg.MinIO.SecretKey,
			Bucket:    cfg.MinIO.Bucket,
			UseSSL:    cfg.MinIO.UseSSL,
		})
		if err != nil {
			return fmt.Errorf("failed to connect to MinIO: %w", err)
		}
		rawArchive = archiveClient
		logger.Info("connected to MinIO", slog.String("bucket", cfg.MinIO.Bucket))
	}

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

	proxies, err := extractor.LoadProxyPool(cfg.Proxy.PoolPath)
	if err != nil {
		return fmt.Errorf("failed to load proxy pool: %w", err)
	}
	var rotator *extractor.ProxyRotator
	if len(proxies) > 0 {
		rotator = extractor.NewProxyRotator(proxies, cfg.Proxy.MaxFailures, cfg.Proxy.CooldownSeconds)
		logger.Info("loaded proxy pool", slog.Int("proxies", len(proxies)))
	}

	primary := extractor.NewInnertubeEngine(cfg.Extractor.InnertubeKey, cfg.Extractor.Timeout)
	fallback := extractor.NewTimedTextEngine(cfg.Extractor.Timeout)
	extractPolicy := retrypolicy.Policy{
		Base:        cfg.Extractor.BackoffBase,
		Cap:         cfg.Extractor.BackoffCap,
		MaxAttempts: cfg.Extractor.MaxAttempts,
		FullJitter:  true,
	}
	ladder := extractor.New(primary, fallback, rotator, extractPolicy, extractor.Config{Budget: cfg.Extractor.Timeout})

	extractionSvc := usecase.NewExtractionService(jobQueue, jobRepo, coordinator, ladder, webhookQueueClient, rawArchive, usecase.ExtractionServiceConfig{
		Concurrency:    cfg.Worker.Concurrency,
		DequeueTimeout: 5 * time.Second,
		ArtifactTTL:    cfg.Database.RetentionWindow(),
	})

	dispatcher := webhook.New(jobRepo, artifactRepo, webhookQueueClient, webhook.Config{
		RequestTimeout: cfg.Webhook.Timeout,
		Secret:         []byte(cfg.Webhook.Secret),
	})

	reaper := usecase.NewReaper(jobRepo, jobQueue, artifactRepo, usecase.ReaperConfig{
		ReaperInterval:    cfg.Worker.ReaperInterval,
		ReaperGrace:       cfg.Worker.ReaperGrace,
		ExtractionTimeout: cfg.Extractor.Timeout,
		SweepInterval:     cfg.Worker.SweepInterval,
		RetentionWindow:   cfg.Database.RetentionWindow(),
	})

	errCh := make(chan error, 3)
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		logger.Info("starting extraction worker", slog.Int("concurrency", cfg.Worker.Concurrency))
		if err := extractionSvc.Run(ctx); err != nil && ctx.Err() == nil {
			errCh <- fmt.Errorf("extraction service stopped: %w", err)
		}
	}()
	go func() {
		logger.Info("starting webhook dispatcher", slog.Int("workers", cfg.Webhook.Workers))
		if err := dispatcher.Run(ctx); err != nil && ctx.Err() == nil {
			errCh <- fmt.Errorf("webhook dispatcher stopped: %w", err)
		}
	}()
	go func() {
		logger.Info("starting reaper", slog.Duration("interval", cfg.Worker.ReaperInterval))
		if err := reaper.Run(ctx); err != nil && ctx.Err() == nil {
			errCh <- fmt.Errorf("reaper stopped: %w", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		logger.Info("shutting down worker", slog.String("signal", sig.String()))
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Worker.GracefulTimeout)
	defer shutdownCancel()

	select {
	case <-stopped:
		logger.Info("all in-flight jobs completed")
	case <-shutdownCtx.Done():
		logger.Warn("shutdown timeout exceeded, some jobs may not have completed")
	}

	logger.Info("worker stopped")
	return nil
}
