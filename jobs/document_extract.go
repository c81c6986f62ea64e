package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/tradedesk/tradedesk/internal/extraction"
	"github.com/tradedesk/tradedesk/internal/intake"
	jobmetrics "github.com/tradedesk/tradedesk/internal/jobs"
	"github.com/tradedesk/tradedesk/internal/shared"
)

// IntakeProcessor runs the intake pipeline.
type IntakeProcessor interface {
	Process(ctx context.Context, upload intake.Upload) (intake.Outcome, error)
}

// DocumentExtractJob processes uploads queued by the async extraction endpoint.
type DocumentExtractJob struct {
	Intake  IntakeProcessor
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewDocumentExtractJob wires dependencies for the extraction handler.
func NewDocumentExtractJob(processor IntakeProcessor, logger *slog.Logger, metrics *jobmetrics.Metrics) *DocumentExtractJob {
	return &DocumentExtractJob{Intake: processor, Logger: logger, Metrics: metrics}
}

// Handle processes TaskDocumentExtract tasks. Failures that a retry cannot fix skip retry.
func (j *DocumentExtractJob) Handle(ctx context.Context, t *asynq.Task) (resultErr error) {
	if j == nil || j.Intake == nil {
		return errors.New("document extract: handler not configured")
	}
	var payload DocumentExtractPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("document extract: decode payload: %v: %w", err, asynq.SkipRetry)
	}
	upload := payload.Upload

	tracker := j.metrics().Track(TaskDocumentExtract)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()
	logger := j.logger().With(slog.String("kind", string(upload.Kind)), slog.String("file", upload.Filename))

	out, err := j.Intake.Process(ctx, upload)
	if err == nil {
		j.metrics().CountIntake(string(upload.Kind), "stored")
		logger.Info("document stored", slog.String("id", out.Record.ID), slog.String("number", out.Record.Number), slog.Int("corrections", len(out.Corrections)))
		return nil
	}

	outcome := classify(err)
	j.metrics().CountIntake(string(upload.Kind), outcome)
	if outcome == "retry" {
		logger.Warn("document extraction will retry", slog.Any("error", err))
		return err
	}
	logger.Error("document rejected", slog.String("outcome", outcome), slog.Any("error", err))
	return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
}

// classify names the outcome of a failed intake.
func classify(err error) string {
	var ext *extraction.ExternalServiceError
	switch {
	case errors.Is(err, shared.ErrValidation):
		return "invalid"
	case errors.Is(err, shared.ErrDuplicate):
		return "duplicate"
	case errors.As(err, &ext) && !ext.Retryable():
		return "provider_rejected"
	default:
		return "retry"
	}
}

func (j *DocumentExtractJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskDocumentExtract))
	}
	return slog.Default().With(slog.String("job", TaskDocumentExtract))
}

func (j *DocumentExtractJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
