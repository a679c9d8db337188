package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "market-pipeline/docs"
	"market-pipeline/internal/api"
	"market-pipeline/internal/api/handler"
	"market-pipeline/internal/app"
	"market-pipeline/internal/config"
	"market-pipeline/internal/pipeline"
	"market-pipeline/internal/store"
	"market-pipeline/pkg/logger"
	"market-pipeline/pkg/metrics"
	"market-pipeline/pkg/router"
)

// @title Market Pipeline API
// @version 1.0
// @description Acquire, clean and analyze market price snapshots per dataset.
// @BasePath /
func main() {
	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := run(ctx)
	stop()
	if err != nil {
		os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	log := logger.Get()

	// defaults -> optional file -> env
	cfg, err := config.Load(ctx, "")
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	m := metrics.NewManager()

	db, err := store.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open ledger %s: %w", cfg.DBPath, err)
	}
	defer db.Close()

	orch, err := app.NewOrchestrator(ctx, cfg, log,
		pipeline.WithMetrics(m),
		pipeline.WithRecorder(db),
	)
	if err != nil {
		return fmt.Errorf("failed to build pipeline: %w", err)
	}

	h := handler.New(ctx, orch, db, cfg.DatasetSpecs(), log)
	r := router.New(log)
	api.RegisterRoutes(r, h, m.Handler())

	log.Info(ctx, "starting HTTP server",
		logger.String("addr", cfg.Addr),
		logger.String("storage", cfg.StorageBackend),
		logger.Int("datasets", len(cfg.Datasets)),
	)
	err = r.Start(ctx, cfg.Addr)

	// Runs still in flight see the cancelled context and fail fast.
	h.Wait()
	log.Info(ctx, "server stopped")
	return err
}
