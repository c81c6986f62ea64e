package app

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradedesk/tradedesk/internal/observability"
)

type stubMounter struct{ body string }

func (s stubMounter) MountRoutes(r chi.Router) {
	r.Get("/ping", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, s.body)
	})
}

func newTestRouter() http.Handler {
	return NewRouter(RouterParams{
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		Config:   &Config{AppEnv: "test"},
		Metrics:  observability.NewMetrics(),
		Workflow: stubMounter{body: "workflow"},
		Forecast: stubMounter{body: "forecast"},
		Intake:   stubMounter{body: "intake"},
		Jobs:     stubMounter{body: "jobs"},
	})
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
	return rr
}

func TestRouterMountsFeatureHandlers(t *testing.T) {
	router := newTestRouter()
	for path, want := range map[string]string{
		"/api/ping":             "workflow",
		"/api/forecasts/ping":   "forecast",
		"/api/extractions/ping": "intake",
		"/jobs/ping":            "jobs",
	} {
		rr := get(t, router, path)
		require.Equal(t, http.StatusOK, rr.Code, path)
		assert.Equal(t, want, rr.Body.String(), path)
	}
}

func TestRouterHealthAndMetrics(t *testing.T) {
	router := newTestRouter()

	rr := get(t, router, "/healthz")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
	assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rr.Header().Get("X-Frame-Options"))

	get(t, router, "/api/ping")
	rr = get(t, router, "/metrics")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, strings.Contains(rr.Body.String(), `tradedesk_http_requests_total{code="200",route="/api/ping"}`))
}

func TestRouterNotFoundIsProblem(t *testing.T) {
	rr := get(t, newTestRouter(), "/nope")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "application/problem+json", rr.Header().Get("Content-Type"))
}
