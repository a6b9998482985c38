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

	"github.com/fluentquest/backend/internal/backend"
	"github.com/fluentquest/backend/internal/config"
	"github.com/fluentquest/backend/internal/handler"
	"github.com/fluentquest/backend/internal/kafka"
	"github.com/fluentquest/backend/internal/postgres"
	"github.com/fluentquest/backend/internal/storage"
	"github.com/fluentquest/backend/internal/websocket"
	"github.com/fluentquest/backend/internal/worker"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	flag.Parse()

	// Setup structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Warn("failed to load config file, using defaults", "error", err)
		cfg = config.DefaultConfig()
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize the local key/value store
	var store storage.Store
	switch cfg.Storage.Driver {
	case config.DriverMemory:
		store = storage.NewMemory()
		logger.Info("using in-memory storage")
	default:
		logger.Info("connecting to Redis", "addr", cfg.Storage.Redis.Addr)
		redisStore, err := storage.NewRedis(&cfg.Storage.Redis)
		if err != nil {
			logger.Error("failed to connect to Redis", "error", err)
			os.Exit(1)
		}
		defer redisStore.Close()
		store = redisStore
		logger.Info("connected to Redis")
	}

	// Initialize the remote relational adapter in remote mode
	var repo *postgres.Repository
	if cfg.Backend.Mode == config.ModeRemote {
		logger.Info("connecting to PostgreSQL", "host", cfg.Postgres.Host, "database", cfg.Postgres.Database)
		repo, err = postgres.NewRepository(&cfg.Postgres, &cfg.Leaderboard, logger)
		if err != nil {
			logger.Error("failed to connect to PostgreSQL", "error", err)
			os.Exit(1)
		}
		defer repo.Close()
		logger.Info("connected to PostgreSQL")

		if err := repo.RunMigrations(ctx); err != nil {
			logger.Error("failed to run migrations", "error", err)
			os.Exit(1)
		}
	}

	// Construct the backend service
	var remote backend.Remote
	if repo != nil {
		remote = repo
	}
	svc, err := backend.New(cfg, store, remote, logger)
	if err != nil {
		logger.Error("failed to construct backend", "error", err)
		os.Exit(1)
	}

	// Initialize WebSocket hub
	wsHub := websocket.NewHub(logger)
	go wsHub.Run()
	svc.SetHub(wsHub)
	logger.Info("WebSocket hub initialized")

	// Initialize reconciliation worker when both layers are configured
	var syncWorker *worker.SyncWorker
	if repo != nil {
		syncWorker = worker.NewSyncWorker(svc.Local(), repo, &cfg.Sync, logger)

		// Restore the local table from the database on startup (recovery)
		if err := syncWorker.RestoreFromRemote(ctx); err != nil {
			logger.Warn("failed to restore local leaderboard on startup", "error", err)
		}

		if cfg.Sync.Enabled {
			if err := syncWorker.Start(ctx); err != nil {
				logger.Error("failed to start sync worker", "error", err)
				os.Exit(1)
			}
		}
	}

	// Initialize Kafka consumer for high-volume score ingestion
	var kafkaConsumer *kafka.Consumer
	if cfg.Kafka.Enabled {
		logger.Info("initializing Kafka consumer",
			"brokers", cfg.Kafka.Brokers,
			"topic", cfg.Kafka.Topic,
		)
		kafkaConsumer, err = kafka.NewConsumer(&cfg.Kafka, svc, logger)
		if err != nil {
			logger.Warn("failed to create Kafka consumer, continuing without Kafka", "error", err)
		} else {
			if err := kafkaConsumer.Start(); err != nil {
				logger.Warn("failed to start Kafka consumer, continuing without Kafka", "error", err)
				kafkaConsumer = nil
			} else {
				logger.Info("Kafka consumer started successfully")
			}
		}
	}

	// Initialize HTTP handler with WebSocket hub
	httpHandler := handler.NewHandler(svc, wsHub, logger)

	// Create HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      httpHandler.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in goroutine
	go func() {
		logger.Info("starting HTTP server", "port", cfg.Server.Port, "mode", cfg.Backend.Mode)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	// Create shutdown context with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Stop WebSocket hub
	wsHub.Stop()

	// Stop Kafka consumer
	if kafkaConsumer != nil {
		if err := kafkaConsumer.Stop(); err != nil {
			logger.Error("failed to stop Kafka consumer", "error", err)
		}
	}

	// Stop sync worker
	if syncWorker != nil {
		if err := syncWorker.Stop(); err != nil {
			logger.Error("failed to stop sync worker", "error", err)
		}
	}

	// Shutdown HTTP server
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown server", "error", err)
	}

	logger.Info("server stopped")
}
