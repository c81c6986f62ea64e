package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tradedesk/tradedesk/internal/observability"
	"github.com/tradedesk/tradedesk/internal/platform/httpx"
)

// Mounter is implemented by every feature handler.
type Mounter interface {
	MountRoutes(r chi.Router)
}

// RouterParams groups the handlers the HTTP router serves.
type RouterParams struct {
	Logger   *slog.Logger
	Config   *Config
	Metrics  *observability.Metrics
	Workflow Mounter
	Forecast Mounter
	Intake   Mounter
	Jobs     Mounter
}

// NewRouter builds the chi router with all routes registered.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()
	for _, mw := range MiddlewareStack(MiddlewareConfig{Logger: params.Logger, Config: params.Config, Metrics: params.Metrics}) {
		r.Use(mw)
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if params.Metrics != nil {
		r.Handle("/metrics", params.Metrics.Handler())
	}
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		httpx.Problem(w, http.StatusNotFound, "not found", "")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		httpx.Problem(w, http.StatusMethodNotAllowed, "method not allowed", "")
	})

	if params.Jobs != nil {
		r.Route("/jobs", params.Jobs.MountRoutes)
	}

	r.Route("/api", func(api chi.Router) {
		if params.Forecast != nil {
			api.Route("/forecasts", params.Forecast.MountRoutes)
		}
		if params.Intake != nil {
			api.Route("/extractions", params.Intake.MountRoutes)
		}
		if params.Workflow != nil {
			params.Workflow.MountRoutes(api)
		}
	})
	return r
}
