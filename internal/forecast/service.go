package forecast

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/tradedesk/tradedesk/internal/documents"
	"github.com/tradedesk/tradedesk/internal/shared"
)

// Source lists stored purchase orders.
type Source interface {
	PurchaseOrders(ctx context.Context) ([]documents.PurchaseOrder, error)
}

// InsufficientMaterial is a material left out of the report for lack of history.
type InsufficientMaterial struct {
	Code   string `json:"code"`
	Name   string `json:"name"`
	Events int    `json:"events"`
}

// Report is the forecast of every purchased material.
type Report struct {
	GeneratedAt  time.Time              `json:"generatedAt"`
	Thresholds   Thresholds             `json:"thresholds"`
	Forecasts    []MaterialForecast     `json:"forecasts"`
	Insufficient []InsufficientMaterial `json:"insufficient"`
}

// Service computes and caches forecast reports.
type Service struct {
	source     Source
	cache      *Cache
	thresholds Thresholds
	logger     *slog.Logger
	now        func() time.Time
	group      singleflight.Group
}

// NewService wires the forecast service. cache may be nil.
func NewService(source Source, cache *Cache, th Thresholds, logger *slog.Logger) *Service {
	if th.MinOrders <= 0 {
		th.MinOrders = DefaultThresholds.MinOrders
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{source: source, cache: cache, thresholds: th, logger: logger, now: time.Now}
}

// WithClock overrides the service clock.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Bump invalidates cached reports.
func (s *Service) Bump(ctx context.Context) error {
	return s.cache.Bump(ctx)
}

// Report returns the forecast report for today. Concurrent callers share one computation.
func (s *Service) Report(ctx context.Context) (Report, error) {
	now := s.now().UTC()
	key, err := s.cache.BuildKey(ctx, "forecast", "report", now.Format("2006-01-02"))
	if err != nil {
		s.logger.WarnContext(ctx, "forecast cache unavailable", slog.Any("error", err))
		return s.Compute(ctx, now)
	}

	v, err, dup := s.group.Do(key, func() (any, error) {
		var report Report
		hit, err := s.cache.FetchJSON(ctx, key, &report, func(ctx context.Context) (any, error) {
			return s.Compute(ctx, now)
		})
		if err != nil {
			return Report{}, err
		}
		s.logger.DebugContext(ctx, "forecast report", slog.String("key", key), slog.Bool("cache_hit", hit))
		return report, nil
	})
	if err != nil {
		return Report{}, err
	}
	if dup {
		s.logger.DebugContext(ctx, "forecast report shared", slog.String("key", key))
	}
	return v.(Report), nil
}

// Compute builds the report without the cache.
func (s *Service) Compute(ctx context.Context, now time.Time) (Report, error) {
	orders, err := s.source.PurchaseOrders(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("forecast: load purchase orders: %w", err)
	}
	report := Report{
		GeneratedAt:  now,
		Thresholds:   s.thresholds,
		Forecasts:    make([]MaterialForecast, 0),
		Insufficient: make([]InsufficientMaterial, 0),
	}
	for _, h := range BuildHistories(orders) {
		f, err := Compute(h.Code, h.Name, h.Events, now, s.thresholds)
		var insufficient *InsufficientDataError
		switch {
		case errors.As(err, &insufficient):
			report.Insufficient = append(report.Insufficient, InsufficientMaterial{Code: h.Code, Name: h.Name, Events: insufficient.Events})
		case err != nil:
			return Report{}, err
		default:
			report.Forecasts = append(report.Forecasts, f)
		}
	}
	return report, nil
}

// Material returns the forecast of one material code.
func (s *Service) Material(ctx context.Context, code string) (MaterialForecast, error) {
	report, err := s.Report(ctx)
	if err != nil {
		return MaterialForecast{}, err
	}
	want := strings.ToUpper(strings.TrimSpace(code))
	for _, f := range report.Forecasts {
		if strings.EqualFold(f.Code, want) {
			return f, nil
		}
	}
	for _, m := range report.Insufficient {
		if strings.EqualFold(m.Code, want) {
			return MaterialForecast{}, &InsufficientDataError{Code: m.Code, Events: m.Events}
		}
	}
	return MaterialForecast{}, fmt.Errorf("forecast: material %s: %w", code, shared.ErrNotFound)
}
