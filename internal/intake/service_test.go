package intake

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradedesk/tradedesk/internal/documents"
	"github.com/tradedesk/tradedesk/internal/extraction"
	"github.com/tradedesk/tradedesk/internal/shared"
	"github.com/tradedesk/tradedesk/internal/store"
	"github.com/tradedesk/tradedesk/internal/workflow"
)

var testNow = time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC)

type fakeExtractor struct {
	fields map[string]any
	err    error
	calls  int
	got    extraction.Document
}

func (f *fakeExtractor) Extract(ctx context.Context, doc extraction.Document, kind documents.Kind) (map[string]any, error) {
	f.calls++
	f.got = doc
	return f.fields, f.err
}

func newTestService(ext extraction.Extractor) (*Service, *store.Memory) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	mem := store.NewMemory().WithClock(func() time.Time { return testNow })
	wf := workflow.NewService(mem, workflow.Defaults{Currency: "AED"}, nil, nil, logger).WithClock(func() time.Time { return testNow })
	return NewService(ext, extraction.NewNormalizer("AED", decimal.NewFromInt(5)), wf, logger), mem
}

func pdfUpload() Upload {
	return Upload{Kind: documents.KindPurchaseOrder, Filename: "uploads/po-4411.pdf", MIMEType: "application/pdf; charset=binary", Data: []byte("%PDF-1.4")}
}

func purchaseOrderFields() map[string]any {
	return map[string]any{
		"poNumber":     "PO-4411",
		"issueDate":    "2024-05-02",
		"expiryDate":   "2024-05-31",
		"customerName": "Gulf Marine LLC",
		"currency":     "AED",
		"items": []any{
			map[string]any{"name": "Steel pipe", "code": "SP-100", "quantity": 10, "unitPrice": 7.5, "total": 80},
		},
	}
}

func TestProcessStoresNormalizedRecord(t *testing.T) {
	ext := &fakeExtractor{fields: purchaseOrderFields()}
	svc, mem := newTestService(ext)

	out, err := svc.Process(context.Background(), pdfUpload())
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", ext.got.MIMEType)
	assert.Equal(t, documents.KindPurchaseOrder, out.Record.Kind)
	assert.Equal(t, "PO-4411", out.Record.Number)
	assert.Equal(t, extraction.CurrencyExplicit, out.CurrencySource)
	require.Len(t, out.Corrections, 1)
	assert.Equal(t, "items[0].total", out.Corrections[0].Field)

	rec, err := mem.Get(context.Background(), documents.KindPurchaseOrder, out.Record.ID)
	require.NoError(t, err)
	po, err := store.Decode[documents.PurchaseOrder](rec)
	require.NoError(t, err)
	assert.Equal(t, "po-4411.pdf", po.SourceFile)
	assert.True(t, po.Total.Equal(decimal.NewFromInt(75)))
}

func TestProcessRejectsBadUploadsBeforeExtraction(t *testing.T) {
	ext := &fakeExtractor{fields: purchaseOrderFields()}
	svc, _ := newTestService(ext)

	upload := pdfUpload()
	upload.MIMEType = "text/plain"
	upload.Kind = "invoice"
	_, err := svc.Process(context.Background(), upload)

	var verr *shared.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.True(t, verr.Has("schema"))
	assert.True(t, verr.Has("file"))
	assert.Zero(t, ext.calls)
}

func TestProcessNormalizationFailureStoresNothing(t *testing.T) {
	fields := purchaseOrderFields()
	delete(fields, "expiryDate")
	svc, mem := newTestService(&fakeExtractor{fields: fields})

	_, err := svc.Process(context.Background(), pdfUpload())
	require.ErrorIs(t, err, shared.ErrValidation)

	recs, err := mem.List(context.Background(), store.Filter{})
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestProcessSurfacesExtractorFailure(t *testing.T) {
	svc, _ := newTestService(&fakeExtractor{err: &extraction.ExternalServiceError{Provider: "gemini", StatusCode: 503, Err: errors.New("unavailable")}})

	_, err := svc.Process(context.Background(), pdfUpload())
	assert.ErrorIs(t, err, shared.ErrExternalService)
}

func TestProcessDuplicateNumber(t *testing.T) {
	svc, _ := newTestService(&fakeExtractor{fields: purchaseOrderFields()})
	_, err := svc.Process(context.Background(), pdfUpload())
	require.NoError(t, err)

	_, err = svc.Process(context.Background(), pdfUpload())
	assert.ErrorIs(t, err, shared.ErrDuplicate)
}
