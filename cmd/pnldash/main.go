package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"pnldash/internal/amqp"
	"pnldash/internal/cache"
	"pnldash/internal/cli"
	apphttp "pnldash/internal/http"
	"pnldash/internal/log"
	"pnldash/internal/services"
	"pnldash/internal/storage"
)

func main() {
	cli.LoadEnvFile()

	bootLogger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"))
	cfg := cli.LoadAndValidateConfig(bootLogger)
	logger := cli.SetupLogger(cfg.LogLevel, cfg.LogFormat)

	checks := map[string]apphttp.ReadinessCheck{}

	// Snapshot history is optional.
	var history services.SnapshotStore
	var repo *storage.SQLiteRepository
	if cfg.SQLiteDBPath != "" {
		repo = cli.InitSQLite(logger, cfg.SQLiteDBPath)
		defer repo.Close()
		history = repo
		checks["database"] = repo.Ping
		logger.Info("Snapshot history enabled", "path", cfg.SQLiteDBPath)
	}

	reports, err := cli.BuildReports(context.Background(), cfg, history, logger)
	if err != nil {
		logger.Error("Failed to initialize data backend", log.FieldError, err, log.FieldBackend, cfg.DataBackend)
		os.Exit(1)
	}
	defer reports.Close()

	cacheManager := cache.NewManager(logger)
	cacheManager.Register(reports.Cache.Store())
	cacheManager.StartCleanup(cfg.CacheTTL)
	defer cacheManager.Stop()

	// Refresh events reach other instances only when a broker is configured.
	var publisher services.RefreshPublisher
	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", log.FieldError, err)
			os.Exit(1)
		}
		defer amqpClient.Close()
		publisher = amqpClient
	}
	refresher := services.NewRefreshService(reports.Service, publisher, logger)

	srv := apphttp.NewServer(reports.Service, refresher, apphttp.Options{
		Addr:             ":" + cfg.Port,
		SourceID:         cfg.SourceID,
		SubRange:         cfg.SourceTab,
		RefreshPerMinute: cfg.RefreshRateLimit,
		CacheEntries:     reports.Cache.Store().Size,
		Checks:           checks,
		Logger:           logger,
	})

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
	})

	logger.Info("Starting pnldash server",
		"port", cfg.Port,
		log.FieldBackend, cfg.DataBackend,
		log.FieldSourceID, cfg.SourceID,
		log.FieldSubRange, cfg.SourceTab,
		log.FieldOperation, log.OpStartup)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
