package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"

	"github.com/tradedesk/tradedesk/internal/intake"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskDocumentExtract runs the intake pipeline for an uploaded file.
	TaskDocumentExtract = "documents:extract"
	// TaskExpirySweep recounts documents by effective status.
	TaskExpirySweep = "documents:expiry_sweep"
	// TaskForecastWarmup rebuilds the cached forecast report.
	TaskForecastWarmup = "forecast:warmup"
)

// DocumentExtractPayload carries one upload through the queue.
type DocumentExtractPayload struct {
	Upload intake.Upload `json:"upload"`
}

// NewDocumentExtractTask constructs an Asynq task for an upload.
func NewDocumentExtractTask(upload intake.Upload) (*asynq.Task, error) {
	data, err := json.Marshal(DocumentExtractPayload{Upload: upload})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskDocumentExtract, data, asynq.MaxRetry(5), asynq.Timeout(3*time.Minute)), nil
}

// NewExpirySweepTask constructs the scheduled sweep task.
func NewExpirySweepTask() *asynq.Task {
	return asynq.NewTask(TaskExpirySweep, nil)
}

// ForecastWarmupPayload records why the warmup was requested.
type ForecastWarmupPayload struct {
	Reason  string `json:"reason"`
	Version int64  `json:"version,omitempty"`
}

// NewForecastWarmupTask constructs a forecast warmup task.
func NewForecastWarmupTask(reason string, version int64) (*asynq.Task, error) {
	data, err := json.Marshal(ForecastWarmupPayload{Reason: reason, Version: version})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskForecastWarmup, data), nil
}
