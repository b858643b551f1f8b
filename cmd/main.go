package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/postforge/postforge/internal/agent"
	"github.com/postforge/postforge/internal/api"
	"github.com/postforge/postforge/internal/cache"
	"github.com/postforge/postforge/internal/config"
	"github.com/postforge/postforge/internal/logger"
	"github.com/postforge/postforge/internal/middleware"
	"github.com/postforge/postforge/internal/pipeline"
	"github.com/postforge/postforge/internal/store"
)

func main() {
	// Load and validate configuration
	cfg := config.Load()

	// Initialize logger
	if err := logger.Init(logger.Config{
		Level:  cfg.LogLevel,
		Output: cfg.LogFile,
		Pretty: cfg.Env == "development",
	}); err != nil {
		panic(err)
	}

	log := logger.Get()
	log.Info().Msg("Starting application...")

	ctx := context.Background()

	// Record store
	records, err := store.NewSQLRecords(cfg.DatabasePath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open record store")
	}
	defer records.Close()

	// Blob store
	var blobs store.Blobs
	switch cfg.BlobBackend {
	case "s3":
		blobs, err = store.NewS3Blobs(ctx, store.S3Config{
			Bucket:    cfg.BlobBucket,
			Endpoint:  cfg.S3Endpoint,
			Region:    cfg.S3Region,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
		})
	default:
		blobs, err = store.NewFileBlobs(cfg.BlobPath)
	}
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize blob store")
	}

	// Settings cache: Redis when configured, in-memory otherwise
	var settingsCache cache.SettingsCache
	if cfg.RedisURL != "" {
		settingsCache, err = cache.NewRedisCache(cfg.RedisURL, cfg.RedisPrefix)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize Redis cache")
		}
	} else {
		log.Warn().Msg("REDIS_URL not set, using in-memory settings cache")
		settingsCache = cache.NewMockCache()
	}
	defer settingsCache.Close()

	// Generation backend
	agentClient := agent.NewOpenAIClient(agent.OpenAIConfig{
		APIKey:     cfg.AIApiKey,
		BaseURL:    cfg.AIBaseURL,
		Model:      cfg.AIModel,
		ImageModel: cfg.AIImageModel,
		Timeout:    cfg.AITimeout,
	})

	orchestrator := pipeline.NewOrchestrator(&pipeline.Env{
		Records:  records,
		Blobs:    blobs,
		Agent:    agentClient,
		Images:   store.NewImageFetcher(blobs, cfg.ImageFetchTimeout),
		Cache:    settingsCache,
		CacheTTL: cfg.CacheTTL,
	})

	// Create Fiber app with custom config
	// Stage runs block on the agent call, so responses may outlive the
	// normal HTTP timeout.
	app := fiber.New(fiber.Config{
		ReadTimeout:  cfg.HTTPTimeout,
		WriteTimeout: cfg.AITimeout + cfg.HTTPTimeout,
		IdleTimeout:  120 * time.Second,
		ErrorHandler: middleware.ErrorHandler,
	})

	// Global middleware
	app.Use(recover.New())
	app.Use(middleware.RequestLogger())

	// Setup API routes
	api.SetupRoutes(app, orchestrator, records, cfg)

	// Start server in a goroutine
	go func() {
		log.Info().Str("port", cfg.Port).Msg("Starting server")
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited properly")
}
