package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradedesk/tradedesk/internal/documents"
	"github.com/tradedesk/tradedesk/internal/extraction"
	"github.com/tradedesk/tradedesk/internal/forecast"
	"github.com/tradedesk/tradedesk/internal/intake"
	jobmetrics "github.com/tradedesk/tradedesk/internal/jobs"
	"github.com/tradedesk/tradedesk/internal/shared"
	"github.com/tradedesk/tradedesk/internal/store"
	"github.com/tradedesk/tradedesk/internal/workflow"
)

var testNow = time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type stubProcessor struct {
	err   error
	calls int
}

func (s *stubProcessor) Process(ctx context.Context, upload intake.Upload) (intake.Outcome, error) {
	s.calls++
	if s.err != nil {
		return intake.Outcome{}, s.err
	}
	return intake.Outcome{Record: workflow.View{Kind: upload.Kind, ID: "id-1", Number: "PO-1"}}, nil
}

func extractTask(t *testing.T) *asynq.Task {
	t.Helper()
	task, err := NewDocumentExtractTask(intake.Upload{Kind: documents.KindPurchaseOrder, Filename: "po.pdf", MIMEType: "application/pdf", Data: []byte("%PDF")})
	require.NoError(t, err)
	return task
}

func TestDocumentExtractPayloadRoundTrip(t *testing.T) {
	task := extractTask(t)
	assert.Equal(t, TaskDocumentExtract, task.Type())

	var payload DocumentExtractPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &payload))
	assert.Equal(t, []byte("%PDF"), payload.Upload.Data)
}

func TestDocumentExtractOutcomes(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantErr   bool
		skipRetry bool
	}{
		{name: "stored"},
		{name: "invalid", err: &shared.ValidationError{Subject: "po", Problems: []shared.FieldProblem{{Field: "poNumber", Reason: "required"}}}, wantErr: true, skipRetry: true},
		{name: "duplicate", err: shared.ErrDuplicate, wantErr: true, skipRetry: true},
		{name: "provider rejected", err: &extraction.ExternalServiceError{Provider: "gemini", StatusCode: 400, Err: errors.New("bad request")}, wantErr: true, skipRetry: true},
		{name: "provider unavailable", err: &extraction.ExternalServiceError{Provider: "gemini", StatusCode: 503, Err: errors.New("unavailable")}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job := NewDocumentExtractJob(&stubProcessor{err: tt.err}, quietLogger(), jobmetrics.NewMetrics(prometheus.NewRegistry()))
			err := job.Handle(context.Background(), extractTask(t))
			if !tt.wantErr {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.skipRetry, errors.Is(err, asynq.SkipRetry))
		})
	}
}

func TestDocumentExtractBadPayload(t *testing.T) {
	proc := &stubProcessor{}
	job := NewDocumentExtractJob(proc, quietLogger(), nil)
	err := job.Handle(context.Background(), asynq.NewTask(TaskDocumentExtract, []byte("{")))
	assert.ErrorIs(t, err, asynq.SkipRetry)
	assert.Zero(t, proc.calls)
}

func TestExpirySweepCountsEffectiveStatuses(t *testing.T) {
	mem := store.NewMemory().WithClock(func() time.Time { return testNow })
	svc := workflow.NewService(mem, workflow.Defaults{}, nil, nil, quietLogger()).WithClock(func() time.Time { return testNow })
	items := []documents.LineItem{{Name: "Pipe", Quantity: decimal.NewFromInt(1), UnitPrice: decimal.NewFromInt(10)}}
	for number, expiry := range map[string]time.Time{
		"PO-1": testNow.AddDate(0, 2, 0),
		"PO-2": testNow.AddDate(0, 0, 3),
		"PO-3": testNow.AddDate(0, 0, -2),
	} {
		_, err := svc.Create(context.Background(), documents.PurchaseOrder{
			Number: number, IssueDate: testNow, ExpiryDate: expiry,
			Customer: documents.Party{Name: "Gulf Marine"}, Items: items,
		})
		require.NoError(t, err)
	}

	job := NewExpirySweepJob(svc, quietLogger(), jobmetrics.NewMetrics(prometheus.NewRegistry()))
	report, err := job.Sweep(context.Background())
	require.NoError(t, err)

	assert.Equal(t, map[documents.Status]int{
		documents.POStatusActive:       1,
		documents.POStatusExpiringSoon: 1,
		documents.POStatusExpired:      1,
	}, report.Counts[documents.KindPurchaseOrder])
	assert.Empty(t, report.Counts[documents.KindQuotation])
	assert.Equal(t, []string{"PO-2"}, report.ExpiringSoon)

	require.NoError(t, job.Handle(context.Background(), NewExpirySweepTask()))
}

type stubReporter struct {
	err   error
	calls int
}

func (s *stubReporter) Report(ctx context.Context) (forecast.Report, error) {
	s.calls++
	return forecast.Report{}, s.err
}

func TestForecastWarmup(t *testing.T) {
	task, err := NewForecastWarmupTask("po.created", 4)
	require.NoError(t, err)

	reporter := &stubReporter{}
	job := NewForecastWarmupJob(reporter, quietLogger(), jobmetrics.NewMetrics(prometheus.NewRegistry()))
	require.NoError(t, job.Handle(context.Background(), task))
	assert.Equal(t, 1, reporter.calls)

	reporter.err = errors.New("redis down")
	assert.EqualError(t, job.Handle(context.Background(), task), "redis down")
}

type stubInspector struct {
	info *asynq.QueueInfo
	err  error
}

func (s stubInspector) GetQueueInfo(queue string) (*asynq.QueueInfo, error) { return s.info, s.err }

func TestJobsHealth(t *testing.T) {
	serve := func(inspector QueueInspector) *httptest.ResponseRecorder {
		r := chi.NewRouter()
		r.Route("/jobs", NewHandler(inspector, quietLogger()).MountRoutes)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/jobs/health", nil))
		return rec
	}

	rec := serve(stubInspector{info: &asynq.QueueInfo{Queue: "default", Pending: 2, Retry: 1}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"queue":"default","pending":2,"active":0,"scheduled":0,"retry":1,"archived":0}`, rec.Body.String())

	assert.Equal(t, http.StatusServiceUnavailable, serve(stubInspector{err: errors.New("down")}).Code)
	assert.Equal(t, http.StatusOK, serve(nil).Code)
}
