// Package intakehttp accepts uploaded documents for extraction.
package intakehttp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/tradedesk/tradedesk/internal/documents"
	"github.com/tradedesk/tradedesk/internal/intake"
	"github.com/tradedesk/tradedesk/internal/platform/httpx"
	"github.com/tradedesk/tradedesk/internal/shared"
)

// Processor runs the synchronous intake pipeline.
type Processor interface {
	Process(ctx context.Context, upload intake.Upload) (intake.Outcome, error)
}

// Handler serves the extraction endpoints.
type Handler struct {
	logger    *slog.Logger
	processor Processor
	enqueuer  intake.Enqueuer
}

// NewHandler constructs the intake handler. enqueuer may be nil, which disables async uploads.
func NewHandler(logger *slog.Logger, processor Processor, enqueuer intake.Enqueuer) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, processor: processor, enqueuer: enqueuer}
}

// MountRoutes registers the extraction endpoints.
func (h *Handler) MountRoutes(r chi.Router) {
	if h == nil {
		return
	}
	r.Post("/", h.handleSync)
	r.Post("/async", h.handleAsync)
}

func (h *Handler) handleSync(w http.ResponseWriter, r *http.Request) {
	upload, err := h.readUpload(w, r)
	if err != nil {
		httpx.RespondErrorLogged(w, r, h.logger, "read upload", err)
		return
	}
	out, err := h.processor.Process(r.Context(), upload)
	if err != nil {
		httpx.RespondErrorLogged(w, r, h.logger, "process upload", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, out)
}

func (h *Handler) handleAsync(w http.ResponseWriter, r *http.Request) {
	if h.enqueuer == nil {
		httpx.ProblemType(w, http.StatusServiceUnavailable, "unavailable", "Async Intake Disabled", "no job queue configured")
		return
	}
	upload, err := h.readUpload(w, r)
	if err != nil {
		httpx.RespondErrorLogged(w, r, h.logger, "read upload", err)
		return
	}
	if err := intake.Validate(upload); err != nil {
		httpx.RespondError(w, err)
		return
	}
	taskID, err := h.enqueuer.EnqueueExtraction(r.Context(), upload)
	if err != nil {
		httpx.RespondErrorLogged(w, r, h.logger, "enqueue upload", err)
		return
	}
	h.logger.InfoContext(r.Context(), "intake.enqueued", slog.String("task_id", taskID), slog.String("kind", string(upload.Kind)))
	httpx.JSON(w, http.StatusAccepted, map[string]string{"taskId": taskID, "status": "queued"})
}

// readUpload reads the multipart "file" field and the schema query parameter.
func (h *Handler) readUpload(w http.ResponseWriter, r *http.Request) (intake.Upload, error) {
	kind := documents.Kind(strings.ReplaceAll(strings.TrimSpace(r.URL.Query().Get("schema")), "-", "_"))
	if !kind.Valid() {
		verr := &shared.ValidationError{Subject: "upload"}
		verr.Add("schema", fmt.Sprintf("unknown schema tag %q", kind))
		return intake.Upload{}, verr
	}

	r.Body = http.MaxBytesReader(w, r.Body, intake.MaxUploadBytes+1<<20)
	file, header, err := r.FormFile("file")
	if err != nil {
		verr := &shared.ValidationError{Subject: "upload"}
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			verr.Add("file", "too large")
		} else {
			verr.Add("file", "multipart field \"file\" required")
		}
		return intake.Upload{}, verr
	}
	defer func() { _ = file.Close() }()

	data, err := io.ReadAll(file)
	if err != nil {
		return intake.Upload{}, fmt.Errorf("read upload: %w", err)
	}
	contentType := header.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(data)
	}
	return intake.Upload{Kind: kind, Filename: header.Filename, MIMEType: contentType, Data: data}, nil
}
