package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/tradedesk/tradedesk/internal/app"
	jobmetrics "github.com/tradedesk/tradedesk/internal/jobs"
	"github.com/tradedesk/tradedesk/jobs"
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

	components, err := app.BuildComponents(ctx, cfg, logger)
	if err != nil {
		logger.Error("build components", slog.Any("error", err))
		os.Exit(1)
	}
	defer components.Close()
	if components.Redis == nil {
		logger.Error("worker requires redis", slog.String("addr", cfg.RedisAddr))
		os.Exit(1)
	}

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	metrics := jobmetrics.NewMetrics(nil)

	client := jobs.NewClient(redisOpts)
	defer func() {
		if err := client.Close(); err != nil {
			logger.Warn("jobs client close", slog.Any("error", err))
		}
	}()
	if err := components.Cache.ListenForInvalidation(ctx, func(version int64) {
		if err := client.EnqueueForecastWarmup(ctx, "purchase_orders_changed", version); err != nil {
			logger.Warn("enqueue forecast warmup", slog.Int64("version", version), slog.Any("error", err))
		}
	}); err != nil {
		logger.Warn("subscribe forecast invalidation", slog.Any("error", err))
	}

	extractJob := jobs.NewDocumentExtractJob(components.Intake, logger, metrics)
	sweepJob := jobs.NewExpirySweepJob(components.Workflow, logger, metrics)
	warmupJob := jobs.NewForecastWarmupJob(components.Forecast, logger, metrics)

	warmupTask, err := jobs.NewForecastWarmupTask("day_rollover", 0)
	if err != nil {
		logger.Error("build warmup task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:   redisOpts,
		Logger:      logger,
		Concurrency: cfg.WorkerConcurrency,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskDocumentExtract, Handler: extractJob.Handle},
			{Type: jobs.TaskExpirySweep, Handler: sweepJob.Handle},
			{Type: jobs.TaskForecastWarmup, Handler: warmupJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "5 0 * * *", Task: jobs.NewExpirySweepTask(), Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "10 0 * * *", Task: warmupTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
