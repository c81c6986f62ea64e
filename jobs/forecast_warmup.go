package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/tradedesk/tradedesk/internal/forecast"
	jobmetrics "github.com/tradedesk/tradedesk/internal/jobs"
)

// ForecastReporter builds or reads the cached forecast report.
type ForecastReporter interface {
	Report(ctx context.Context) (forecast.Report, error)
}

// ForecastWarmupJob pre-populates the forecast cache after purchase orders change and at day rollover.
type ForecastWarmupJob struct {
	Forecast ForecastReporter
	Logger   *slog.Logger
	Metrics  *jobmetrics.Metrics
}

// NewForecastWarmupJob wires dependencies for the warmup handler.
func NewForecastWarmupJob(reporter ForecastReporter, logger *slog.Logger, metrics *jobmetrics.Metrics) *ForecastWarmupJob {
	return &ForecastWarmupJob{Forecast: reporter, Logger: logger, Metrics: metrics}
}

// Handle processes TaskForecastWarmup tasks.
func (j *ForecastWarmupJob) Handle(ctx context.Context, t *asynq.Task) (resultErr error) {
	if j == nil || j.Forecast == nil {
		return errors.New("forecast warmup: handler not configured")
	}
	var payload ForecastWarmupPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return fmt.Errorf("forecast warmup: decode payload: %v: %w", err, asynq.SkipRetry)
		}
	}

	tracker := j.metrics().Track(TaskForecastWarmup)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger().With(slog.String("reason", payload.Reason), slog.Int64("version", payload.Version))
	warmCtx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	start := time.Now()
	report, err := j.Forecast.Report(warmCtx)
	if err != nil {
		logger.Error("forecast warmup failed", slog.Any("error", err))
		return err
	}
	logger.Info("forecast warmed",
		slog.Int("materials", len(report.Forecasts)),
		slog.Int("insufficient", len(report.Insufficient)),
		slog.Duration("duration", time.Since(start)),
	)
	return nil
}

func (j *ForecastWarmupJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskForecastWarmup))
	}
	return slog.Default().With(slog.String("job", TaskForecastWarmup))
}

func (j *ForecastWarmupJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
