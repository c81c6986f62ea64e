package gemini

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradedesk/tradedesk/internal/documents"
	"github.com/tradedesk/tradedesk/internal/extraction"
	"github.com/tradedesk/tradedesk/internal/shared"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func answer(text string) map[string]any {
	return map[string]any{
		"candidates": []any{
			map[string]any{
				"content":      map[string]any{"role": "model", "parts": []any{map[string]any{"text": text}}},
				"finishReason": "STOP",
			},
		},
	}
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(Config{APIKey: "test-key", BaseURL: srv.URL, Model: "gemini-test"}, quietLogger())
}

func sampleDoc() extraction.Document {
	return extraction.Document{Bytes: []byte("%PDF-1.4 fake"), MIMEType: "application/pdf", Filename: "po.pdf"}
}

func TestExtractSendsDocumentAndSchema(t *testing.T) {
	var got generateRequest
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models/gemini-test:generateContent", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-goog-api-key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(answer("```json\n{\"poNumber\":\"PO-1\",\"items\":[{\"name\":\"Pipe\",\"quantity\":2}]}\n```"))
	})

	fields, err := client.Extract(context.Background(), sampleDoc(), documents.KindPurchaseOrder)
	require.NoError(t, err)
	assert.Equal(t, "PO-1", fields["poNumber"])

	require.Len(t, got.Contents, 1)
	require.Len(t, got.Contents[0].Parts, 2)
	assert.Equal(t, "application/pdf", got.Contents[0].Parts[0].InlineData.MimeType)
	assert.Contains(t, got.Contents[0].Parts[1].Text, "customer purchase order")
	assert.Equal(t, "application/json", got.GenerationConfig.ResponseMimeType)
	assert.Contains(t, got.GenerationConfig.ResponseJSONSchema["properties"], "expiryDate")
}

func TestExtractRejectsWrongTypes(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(answer(`{"poNumber": 42, "items": "none"}`))
	})

	_, err := client.Extract(context.Background(), sampleDoc(), documents.KindPurchaseOrder)
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrExternalService)
}

func TestExtractSurfacesHTTPFailures(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"quota"}}`, http.StatusTooManyRequests)
	})

	_, err := client.Extract(context.Background(), sampleDoc(), documents.KindQuotation)
	var ext *extraction.ExternalServiceError
	require.ErrorAs(t, err, &ext)
	assert.Equal(t, http.StatusTooManyRequests, ext.StatusCode)
	assert.True(t, ext.Retryable())
}

func TestExtractEmptyAnswer(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"candidates": []any{}})
	})

	_, err := client.Extract(context.Background(), sampleDoc(), documents.KindInquiry)
	assert.ErrorIs(t, err, shared.ErrExternalService)
}

func TestExtractRequiresAPIKey(t *testing.T) {
	client := NewClient(Config{}, quietLogger())
	_, err := client.Extract(context.Background(), sampleDoc(), documents.KindInquiry)
	assert.ErrorIs(t, err, shared.ErrExternalService)
}
