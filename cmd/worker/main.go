package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/aurora-portal/aurora/internal/app"
	jobmetrics "github.com/aurora-portal/aurora/internal/jobs"
	"github.com/aurora-portal/aurora/internal/observations"
	"github.com/aurora-portal/aurora/internal/platform/db"
	"github.com/aurora-portal/aurora/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	engine, err := app.BuildEngine(nil)
	if err != nil {
		logger.Error("build access engine", slog.Any("error", err))
		os.Exit(1)
	}

	observationsRepo := observations.NewRepository(pool, engine)
	observationsService := observations.NewService(observationsRepo)

	metrics := jobmetrics.NewMetrics(nil)
	integrityJob := jobs.NewGroupIntegrityJob(pool, logger, metrics)
	backfillJob := jobs.NewThumbnailBackfillJob(observationsService, logger, metrics)
	pruneJob := jobs.NewSessionPruneJob(pool, logger, metrics)

	backfillTask, err := jobs.NewThumbnailBackfillTask(0)
	if err != nil {
		logger.Error("build backfill task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskGroupIntegrity, Handler: integrityJob.Handle},
			{Type: jobs.TaskThumbnailBackfill, Handler: backfillJob.Handle},
			{Type: jobs.TaskSessionPrune, Handler: pruneJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "0 1 * * *", Task: jobs.NewGroupIntegrityTask(), Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "30 1 * * *", Task: backfillTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "0 2 * * *", Task: jobs.NewSessionPruneTask(), Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
