package main

import (
	"context"
	"errors"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"pnldash/internal/amqp"
	"pnldash/internal/cache"
	"pnldash/internal/cli"
	"pnldash/internal/log"
	"pnldash/internal/services"
)

func main() {
	cli.LoadEnvFile()

	bootLogger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"))
	cfg := cli.LoadAndValidateConfig(bootLogger)
	logger := cli.SetupLogger(cfg.LogLevel, cfg.LogFormat).WithComponent(log.ComponentWorker)

	if cfg.SQLiteDBPath == "" && cfg.AMQPURL == "" {
		logger.Error("Nothing to do: set SQLITE_DB_PATH for snapshots or AMQP_URL for refresh events")
		os.Exit(1)
	}
	logger.Info("Starting pnldash-worker", log.FieldOperation, log.OpStartup)

	var (
		history services.SnapshotStore
		pruner  services.Pruner
	)
	if cfg.SQLiteDBPath != "" {
		repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
		defer repo.Close()
		history, pruner = repo, repo
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

	var processor *services.SnapshotProcessor
	if history != nil {
		processor = services.NewSnapshotProcessor(reports.Service, cli.SnapshotTargets(cfg), pruner, services.SnapshotProcessorConfig{
			Interval:  cfg.SnapshotInterval,
			RetainFor: cfg.SnapshotRetention,
		}, logger)
	} else {
		logger.Info("Snapshot history disabled - no SQLITE_DB_PATH provided")
	}

	var consumer *amqp.Client
	if cfg.AMQPURL != "" {
		consumer, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", log.FieldError, err)
			os.Exit(1)
		}
		defer consumer.Close()
	} else {
		logger.Info("Refresh events disabled - no AMQP_URL provided")
	}

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if processor != nil && processor.IsRunning() {
			if err := processor.Stop(ctx); err != nil {
				logger.Error("Failed to stop snapshot processor", log.FieldError, err)
			}
		}
	})

	g, gctx := errgroup.WithContext(ctx)

	if processor != nil {
		// Start takes its first round immediately.
		if err := processor.Start(gctx); err != nil {
			logger.Error("Failed to start snapshot processor", log.FieldError, err)
			os.Exit(1)
		}
	}

	if consumer != nil {
		refresher := services.NewRefreshService(reports.Service, nil, logger)
		g.Go(func() error {
			err := consumer.ConsumeRefresh(gctx, refresher.HandleRefresh)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}

	if err := g.Wait(); err != nil {
		logger.Error("Message consumption failed", log.FieldError, err)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker stopped gracefully")
}
