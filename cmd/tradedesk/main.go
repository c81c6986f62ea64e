package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/tradedesk/tradedesk/internal/app"
	forecasthttp "github.com/tradedesk/tradedesk/internal/forecast/http"
	"github.com/tradedesk/tradedesk/internal/intake"
	intakehttp "github.com/tradedesk/tradedesk/internal/intake/http"
	"github.com/tradedesk/tradedesk/internal/observability"
	workflowhttp "github.com/tradedesk/tradedesk/internal/workflow/http"
	"github.com/tradedesk/tradedesk/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
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

	metrics := observability.NewMetrics()

	var enqueuer intake.Enqueuer
	var jobHandler app.Mounter
	if components.Redis != nil {
		redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
		jobsClient := jobs.NewClient(redisOpts)
		defer func() {
			if err := jobsClient.Close(); err != nil {
				logger.Warn("jobs client close", slog.Any("error", err))
			}
		}()
		enqueuer = jobsClient

		inspector := asynq.NewInspector(redisOpts)
		defer func() {
			if err := inspector.Close(); err != nil {
				logger.Warn("inspector close", slog.Any("error", err))
			}
		}()
		jobHandler = jobs.NewHandler(inspector, logger)
	}

	router := app.NewRouter(app.RouterParams{
		Logger:   logger,
		Config:   cfg,
		Metrics:  metrics,
		Workflow: workflowhttp.NewHandler(logger, components.Workflow),
		Forecast: forecasthttp.NewHandler(logger, components.Forecast),
		Intake:   intakehttp.NewHandler(logger, components.Intake, enqueuer),
		Jobs:     jobHandler,
	})

	server := &http.Server{
		Addr:              cfg.AppAddr,
		Handler:           router,
		ReadTimeout:       cfg.AppReadTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr), slog.String("store", cfg.StoreDriver))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
