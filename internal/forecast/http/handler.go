package forecasthttp

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tradedesk/tradedesk/internal/forecast"
	"github.com/tradedesk/tradedesk/internal/platform/httpx"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Service is the forecast contract used by the handler.
type Service interface {
	Report(ctx context.Context) (forecast.Report, error)
	Material(ctx context.Context, code string) (forecast.MaterialForecast, error)
	ExportXLSX(ctx context.Context) ([]byte, error)
}

// Handler serves forecast reports.
type Handler struct {
	logger  *slog.Logger
	service Service
	now     func() time.Time
}

// NewHandler constructs the forecast HTTP handler.
func NewHandler(logger *slog.Logger, service Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, now: time.Now}
}

func (h *Handler) handleReport(w http.ResponseWriter, r *http.Request) {
	report, err := h.service.Report(r.Context())
	if err != nil {
		httpx.RespondErrorLogged(w, r, h.logger, "forecast report", err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) handleMaterial(w http.ResponseWriter, r *http.Request) {
	f, err := h.service.Material(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		httpx.RespondErrorLogged(w, r, h.logger, "forecast material", err)
		return
	}
	httpx.JSON(w, http.StatusOK, f)
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	data, err := h.service.ExportXLSX(r.Context())
	if err != nil {
		httpx.RespondErrorLogged(w, r, h.logger, "forecast export", err)
		return
	}
	filename := "forecast-" + h.now().UTC().Format("20060102") + ".xlsx"
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
