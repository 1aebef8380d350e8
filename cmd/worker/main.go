package main

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/hugh/turnout-tracker/internal/database"
	"github.com/hugh/turnout-tracker/internal/tasks"
	"github.com/hugh/turnout-tracker/internal/voters"
	"github.com/hugh/turnout-tracker/pkg/config"
	"github.com/hugh/turnout-tracker/pkg/queue"
	"github.com/hugh/turnout-tracker/pkg/util"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := util.NewLogger(cfg.Server.Env)
	slog.SetDefault(logger)

	logger.Info("starting turnout tracker worker")

	cleanup, err := util.ParseSchedule(cfg.Import.CleanupCron)
	if err != nil {
		logger.Error("invalid UPLOADS_CLEANUP_CRON", "error", err)
		os.Exit(1)
	}
	if cleanup.Interval(time.Now()) > cfg.Import.StagingTTL() {
		logger.Warn("uploads cleanup runs less often than the staging TTL",
			"cron", cleanup.String(), "ttl", cfg.Import.StagingTTL())
	}

	db, err := database.Connect(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	// Imports hold one transaction each, so keep concurrency low.
	srv := queue.NewServer(&cfg.Redis, 2)
	scheduler := queue.NewScheduler(&cfg.Redis)

	handler := tasks.NewHandler(voters.NewImporter(db, logger), logger, cfg.Import.StagingDir, cfg.Import.StagingTTL())

	mux := asynq.NewServeMux()
	handler.RegisterHandlers(mux)

	entryID, err := scheduler.Register(cleanup.String(), tasks.NewUploadsCleanupTask())
	if err != nil {
		logger.Error("failed to schedule uploads cleanup", "error", err)
		os.Exit(1)
	}
	logger.Info("uploads cleanup scheduled",
		"cron", cleanup.String(),
		"entry_id", entryID,
		"next_run", cleanup.Next(time.Now()),
	)

	if err := scheduler.Start(); err != nil {
		logger.Error("failed to start scheduler", "error", err)
		os.Exit(1)
	}
	if err := srv.Start(mux); err != nil {
		logger.Error("failed to start worker", "error", err)
		os.Exit(1)
	}

	logger.Info("worker started, waiting for tasks...")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down worker...")
	scheduler.Shutdown()
	srv.Shutdown()

	if err := database.Close(db); err != nil {
		logger.Warn("closing database", "error", err)
	}

	logger.Info("worker stopped")
}
