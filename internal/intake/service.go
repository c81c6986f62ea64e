// Package intake turns uploaded files into stored documents.
package intake

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/tradedesk/tradedesk/internal/documents"
	"github.com/tradedesk/tradedesk/internal/extraction"
	"github.com/tradedesk/tradedesk/internal/shared"
	"github.com/tradedesk/tradedesk/internal/workflow"
)

// MaxUploadBytes bounds a single uploaded file.
const MaxUploadBytes = 10 << 20

var allowedTypes = map[string]bool{
	"application/pdf": true,
	"image/png":       true,
	"image/jpeg":      true,
	"image/webp":      true,
}

// Upload is a file submitted for extraction.
type Upload struct {
	Kind     documents.Kind `json:"kind"`
	Filename string         `json:"filename"`
	MIMEType string         `json:"mimeType"`
	Data     []byte         `json:"data"`
}

// Creator stores a normalized record.
type Creator interface {
	Create(ctx context.Context, doc documents.Record) (workflow.View, error)
}

// Enqueuer schedules an upload for background processing and returns the task id.
type Enqueuer interface {
	EnqueueExtraction(ctx context.Context, upload Upload) (string, error)
}

// Outcome is the stored record plus what normalization changed.
type Outcome struct {
	Record         workflow.View             `json:"record"`
	Currency       string                    `json:"currency"`
	CurrencySource extraction.CurrencySource `json:"currencySource"`
	Corrections    []extraction.Correction   `json:"corrections"`
}

// Service runs extraction, normalization and creation for one upload.
type Service struct {
	extractor  extraction.Extractor
	normalizer extraction.Normalizer
	creator    Creator
	logger     *slog.Logger
}

// NewService wires the intake pipeline.
func NewService(extractor extraction.Extractor, normalizer extraction.Normalizer, creator Creator, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{extractor: extractor, normalizer: normalizer, creator: creator, logger: logger}
}

// Validate checks an upload before any external call is made.
func Validate(upload Upload) error {
	verr := &shared.ValidationError{Subject: "upload"}
	if !upload.Kind.Valid() {
		verr.Add("schema", fmt.Sprintf("unknown schema tag %q", upload.Kind))
	}
	switch {
	case len(upload.Data) == 0:
		verr.Add("file", "required")
	case len(upload.Data) > MaxUploadBytes:
		verr.Add("file", fmt.Sprintf("larger than %d bytes", MaxUploadBytes))
	}
	if !allowedTypes[mediaType(upload.MIMEType)] {
		verr.Add("file", fmt.Sprintf("unsupported content type %q", upload.MIMEType))
	}
	return verr.Err()
}

// Process extracts, normalizes and stores upload.
func (s *Service) Process(ctx context.Context, upload Upload) (Outcome, error) {
	if err := Validate(upload); err != nil {
		return Outcome{}, err
	}
	start := time.Now()
	logger := s.logger.With(slog.String("kind", string(upload.Kind)), slog.String("file", upload.Filename))

	raw, err := s.extractor.Extract(ctx, extraction.Document{
		Bytes:    upload.Data,
		MIMEType: mediaType(upload.MIMEType),
		Filename: upload.Filename,
	}, upload.Kind)
	if err != nil {
		return Outcome{}, err
	}

	res, err := s.normalizer.Normalize(upload.Kind, raw, "")
	if err != nil {
		logger.InfoContext(ctx, "intake.normalize.rejected", slog.Any("error", err))
		return Outcome{}, err
	}

	view, err := s.creator.Create(ctx, withSourceFile(res.Record, filepath.Base(upload.Filename)))
	if err != nil {
		return Outcome{}, err
	}
	logger.InfoContext(ctx, "intake.ok",
		slog.String("id", view.ID),
		slog.String("number", view.Number),
		slog.Int("corrections", len(res.Corrections)),
		slog.Int64("elapsed_ms", time.Since(start).Milliseconds()),
	)
	corrections := res.Corrections
	if corrections == nil {
		corrections = []extraction.Correction{}
	}
	return Outcome{Record: view, Currency: res.Currency, CurrencySource: res.CurrencySource, Corrections: corrections}, nil
}

func mediaType(contentType string) string {
	mt, _, _ := strings.Cut(contentType, ";")
	return strings.ToLower(strings.TrimSpace(mt))
}

func withSourceFile(doc documents.Record, name string) documents.Record {
	if name == "." || name == "/" {
		name = ""
	}
	switch d := doc.(type) {
	case documents.PurchaseOrder:
		d.SourceFile = name
		return d
	case documents.CustomerInquiry:
		d.SourceFile = name
		return d
	case documents.Quotation:
		d.SourceFile = name
		return d
	case documents.SupplierOrder:
		d.SourceFile = name
		return d
	case documents.DeliveryDocument:
		d.SourceFile = name
		return d
	}
	return doc
}
