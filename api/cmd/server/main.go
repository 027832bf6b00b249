package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"paperPatent/api/cache"
	"paperPatent/api/config"
	"paperPatent/api/database"
	"paperPatent/api/handlers"
	"paperPatent/api/kafka"
	"paperPatent/api/repository"
	"paperPatent/api/service"
	"paperPatent/api/stream"
	"paperPatent/worker/pool"
	workerservice "paperPatent/worker/service"
)

func main() {
	cfg := config.Load()

	logger := newLogger(cfg)
	defer logger.Sync()

	logger.Info("API Service starting",
		zap.String("port", cfg.Port),
		zap.String("env", cfg.Env),
		zap.Int("workers", cfg.WorkerCount),
	)

	if cfg.DefaultAPIKey == "" {
		logger.Warn("No default API key configured, tasks need POST /api/config first")
	}

	if err := os.MkdirAll(cfg.UploadDir, 0755); err != nil {
		logger.Fatal("Failed to create upload dir", zap.String("dir", cfg.UploadDir), zap.Error(err))
	}
	if err := os.MkdirAll(cfg.Pipeline.OutputDir, 0755); err != nil {
		logger.Fatal("Failed to create output dir", zap.String("dir", cfg.Pipeline.OutputDir), zap.Error(err))
	}

	store := repository.NewMemoryStore()
	journals := repository.NewJournals(logger.Named("journal"))
	closeJournals := attachJournals(cfg, journals, logger)
	defer closeJournals()

	// Runs outlive the request that submitted them.
	runCtx, cancelRuns := context.WithCancel(context.Background())
	defer cancelRuns()

	proc := workerservice.NewPipeline(cfg.Pipeline, store, journals, logger)
	wp := pool.NewWorkerPool(cfg.WorkerCount)
	dispatcher := workerservice.NewDispatcher(runCtx, wp, proc, store, journals, logger.Named("dispatch"))

	broadcaster := stream.NewBroadcaster(store, cfg.HeartbeatInterval, logger.Named("stream"))
	credentials := service.NewCredentials(cfg.DefaultAPIKey)
	taskService := service.NewTaskService(store, journals, dispatcher, credentials, cfg.UploadDir, logger.Named("service"))
	taskHandler := handlers.NewTaskHandler(taskService, broadcaster, cfg.MaxFileSize, logger.Named("handler"))

	streamCtx, cancelStreams := context.WithCancel(context.Background())
	defer cancelStreams()

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handlers.NewRouter(taskHandler, cfg.AllowedOrigins, logger),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
		BaseContext:       func(_ net.Listener) context.Context { return streamCtx },
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("Server started", zap.String("address", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		logger.Info("Shutting down", zap.String("signal", sig.String()))
	case err := <-serverErr:
		if err != nil {
			logger.Error("Server failed", zap.Error(err))
		}
	}

	// Open streams never go idle, so end them before Shutdown waits on them.
	cancelStreams()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown failed", zap.Error(err))
	}

	if !wp.WaitTimeout(cfg.ShutdownTimeout) {
		logger.Warn("Tasks still running, cancelling", zap.Duration("timeout", cfg.ShutdownTimeout))
		cancelRuns()
		if !wp.WaitTimeout(5 * time.Second) {
			logger.Error("Tasks did not stop after cancellation")
		}
	}

	logger.Info("Server stopped")
}

func newLogger(cfg *config.Config) *zap.Logger {
	var (
		logger *zap.Logger
		err    error
	)
	if cfg.IsDevelopment() {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

// attachJournals connects every configured lifecycle mirror. A mirror that
// cannot be reached is skipped; the server runs without it.
func attachJournals(cfg *config.Config, journals *repository.Journals, logger *zap.Logger) func() {
	var closers []func()

	if cfg.DatabaseURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		db, err := database.ConnectDB(ctx, cfg.DatabaseURL)
		cancel()
		if err != nil {
			logger.Warn("Postgres journal disabled", zap.Error(err))
		} else {
			journals.Add("postgres", repository.NewPostgresJournal(db))
			closers = append(closers, db.Close)
		}
	}

	if cfg.RedisAddr != "" {
		client, err := database.ConnectCache(cfg.RedisAddr)
		if err != nil {
			logger.Warn("Redis status mirror disabled", zap.Error(err))
		} else {
			journals.Add("redis", cache.NewStatusCache(client))
			closers = append(closers, func() { client.Close() })
		}
	}

	if brokers := cfg.KafkaBrokerList(); len(brokers) > 0 {
		producer, err := kafka.NewProducer(brokers, cfg.KafkaTopic)
		if err != nil {
			logger.Warn("Kafka journal disabled", zap.Error(err))
		} else {
			journals.Add("kafka", producer)
			closers = append(closers, func() { producer.Close() })
		}
	}

	logger.Info("Lifecycle mirrors attached", zap.Int("count", journals.Len()))

	return func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
}
