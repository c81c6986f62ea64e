package httpx

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradedesk/tradedesk/internal/shared"
)

func TestRespondErrorMapsTaxonomy(t *testing.T) {
	tests := []struct {
		err    error
		status int
		typ    string
	}{
		{fmt.Errorf("get: %w", shared.ErrNotFound), http.StatusNotFound, "not_found"},
		{fmt.Errorf("create: %w", shared.ErrDuplicate), http.StatusConflict, "duplicate"},
		{fmt.Errorf("send: %w", shared.ErrIllegalTransition), http.StatusConflict, "illegal_transition"},
		{fmt.Errorf("forecast: %w", shared.ErrInsufficientData), http.StatusUnprocessableEntity, "insufficient_data"},
		{fmt.Errorf("gemini: %w", shared.ErrExternalService), http.StatusBadGateway, "external_service"},
		{fmt.Errorf("body: %w", shared.ErrValidation), http.StatusUnprocessableEntity, "validation"},
		{fmt.Errorf("store: %w", shared.ErrPersistence), http.StatusInternalServerError, "internal"},
		{errors.New("boom"), http.StatusInternalServerError, "internal"},
	}
	for _, tt := range tests {
		t.Run(tt.typ, func(t *testing.T) {
			rr := httptest.NewRecorder()
			RespondError(rr, tt.err)

			require.Equal(t, tt.status, rr.Code)
			assert.Equal(t, tt.status, StatusOf(tt.err))
			assert.Equal(t, "application/problem+json", rr.Header().Get("Content-Type"))
			var p ProblemDetail
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &p))
			assert.Equal(t, tt.typ, p.Type)
		})
	}
}

func TestRespondErrorListsFieldProblems(t *testing.T) {
	verr := &shared.ValidationError{Subject: "purchase_order"}
	verr.Add("customerName", "required")

	rr := httptest.NewRecorder()
	RespondError(rr, fmt.Errorf("normalize: %w", verr))

	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	var p ProblemDetail
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &p))
	require.Len(t, p.Problems, 1)
	assert.Equal(t, "customerName", p.Problems[0].Field)
}

func TestRespondErrorLoggedOnlyLogsServerErrors(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	RespondErrorLogged(httptest.NewRecorder(), req, logger, "get document", shared.ErrNotFound)
	assert.Empty(t, buf.String())

	RespondErrorLogged(httptest.NewRecorder(), req, logger, "get document", errors.New("connection reset"))
	assert.Contains(t, buf.String(), "connection reset")
}

func TestDecodeJSON(t *testing.T) {
	var dst struct {
		Name string `json:"name"`
	}
	ok := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"Pipe"}`))
	require.NoError(t, DecodeJSON(ok, &dst))
	assert.Equal(t, "Pipe", dst.Name)

	for _, body := range []string{"", `{"name":`, `{"name":"Pipe","extra":1}`} {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
		assert.ErrorIs(t, DecodeJSON(req, &dst), shared.ErrValidation, body)
	}
}
