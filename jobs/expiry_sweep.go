package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/tradedesk/tradedesk/internal/documents"
	jobmetrics "github.com/tradedesk/tradedesk/internal/jobs"
	"github.com/tradedesk/tradedesk/internal/workflow"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// DocumentLister reads documents with their derived status.
type DocumentLister interface {
	List(ctx context.Context, q workflow.ListQuery) ([]workflow.View, error)
}

// SweepReport summarises one expiry sweep.
type SweepReport struct {
	Counts       map[documents.Kind]map[documents.Status]int
	ExpiringSoon []string
}

// ExpirySweepJob recounts documents by effective status and reports what expires soon.
// It never writes documents: statuses derived from dates are computed on read.
type ExpirySweepJob struct {
	Documents DocumentLister
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
}

// NewExpirySweepJob wires dependencies for the sweep handler.
func NewExpirySweepJob(lister DocumentLister, logger *slog.Logger, metrics *jobmetrics.Metrics) *ExpirySweepJob {
	return &ExpirySweepJob{Documents: lister, Logger: logger, Metrics: metrics}
}

// Handle processes TaskExpirySweep tasks.
func (j *ExpirySweepJob) Handle(ctx context.Context, t *asynq.Task) (resultErr error) {
	if j == nil || j.Documents == nil {
		return errors.New("expiry sweep: handler not configured")
	}
	tracker := j.metrics().Track(TaskExpirySweep)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	start := time.Now()
	report, err := j.Sweep(ctx)
	if err != nil {
		j.logger().Error("expiry sweep failed", slog.Any("error", err))
		return err
	}
	j.logger().Info("expiry sweep completed",
		slog.Int("expiring_soon", len(report.ExpiringSoon)),
		slog.Any("expiring_numbers", report.ExpiringSoon),
		slog.Duration("duration", time.Since(start)),
	)
	return nil
}

// Sweep counts purchase orders and quotations by effective status and publishes the gauges.
func (j *ExpirySweepJob) Sweep(ctx context.Context) (SweepReport, error) {
	report := SweepReport{Counts: make(map[documents.Kind]map[documents.Status]int)}
	for _, kind := range []documents.Kind{documents.KindPurchaseOrder, documents.KindQuotation} {
		views, err := j.Documents.List(ctx, workflow.ListQuery{Kind: kind})
		if err != nil {
			return SweepReport{}, fmt.Errorf("list %s: %w", kind, err)
		}
		counts := make(map[documents.Status]int)
		gauge := make(map[string]int)
		for _, v := range views {
			counts[v.Status]++
			gauge[string(v.Status)]++
			if v.ExpiringSoon {
				report.ExpiringSoon = append(report.ExpiringSoon, v.Number)
			}
		}
		report.Counts[kind] = counts
		j.metrics().SetDocumentCounts(string(kind), gauge)
	}
	return report, nil
}

func (j *ExpirySweepJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskExpirySweep))
	}
	return slog.Default().With(slog.String("job", TaskExpirySweep))
}

func (j *ExpirySweepJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
