package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/learnware/session-gateway/internal/cache"
	"github.com/learnware/session-gateway/internal/catalog"
	"github.com/learnware/session-gateway/internal/config"
	"github.com/learnware/session-gateway/internal/engine"
	"github.com/learnware/session-gateway/internal/events"
	"github.com/learnware/session-gateway/internal/handlers"
	"github.com/learnware/session-gateway/internal/history"
	"github.com/learnware/session-gateway/internal/platform"
	"github.com/learnware/session-gateway/internal/utils"
	"github.com/learnware/session-gateway/internal/validator"
	"github.com/learnware/session-gateway/pkg"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	slogLogger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
	logger := utils.NewSlogLogger(slogLogger)

	// Initialize database for the history read model
	db, err := pkg.InitDatabase(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	if err := history.Migrate(db); err != nil {
		log.Fatalf("Failed to migrate history schema: %v", err)
	}

	// Initialize Redis; checkpoints and the catalog cache live here
	redisClient, err := pkg.NewRedisClient(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize Redis: %v", err)
	}

	// Initialize event publisher
	var publisher events.EventPublisher
	if len(cfg.KafkaBrokers) > 0 {
		publisher, err = events.NewKafkaEventPublisher(events.PublisherConfig{
			KafkaBrokers: cfg.KafkaBrokers,
			TopicName:    cfg.KafkaTopic,
			Logger:       slogLogger,
		})
		if err != nil {
			log.Fatalf("Failed to initialize Kafka publisher: %v", err)
		}
	} else {
		logger.Warn("No Kafka brokers configured, session events will only be logged")
		publisher = events.NewMockEventPublisher(slogLogger)
	}

	// Initialize platform client and services
	platformClient := platform.NewHTTPClient(cfg.PlatformBaseURL, cfg.PlatformTimeout, slogLogger)
	historyService := history.NewService(db, slogLogger)
	cacheManager := cache.NewCacheManager(redisClient)
	catalogService := catalog.NewService(platformClient, cacheManager, slogLogger)

	// Initialize the session engine
	sessionManager := engine.NewSessionManager(engine.Deps{
		Client:              platformClient,
		Publisher:           publisher,
		Checkpoints:         engine.NewRedisCheckpointStore(redisClient),
		Recorder:            historyService,
		Catalog:             catalogService,
		Logger:              slogLogger,
		SubmitRetryAttempts: cfg.SubmitRetryAttempts,
		SubmitRetryInterval: cfg.SubmitRetryInterval,
	})

	// Initialize validator and handlers
	v := validator.New()
	handlerManager := handlers.NewHandlerManager(
		sessionManager, catalogService, historyService, v, logger, cfg.Casdoor)

	// Setup Gin router
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	handlers.SetupMiddleware(router, logger)
	handlerManager.SetupRoutes(router)

	// Create HTTP server
	server := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Port),
		Handler: router,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("Starting server", "port", cfg.Port, "environment", cfg.Environment)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	// Live sessions are checkpointed; timers re-arm on resume
	sessionManager.Shutdown()

	if err := publisher.Close(); err != nil {
		log.Printf("Failed to close event publisher: %v", err)
	}

	if sqlDB, err := db.DB(); err == nil {
		sqlDB.Close()
	}
	redisClient.Close()

	logger.Info("Server exited")
}
