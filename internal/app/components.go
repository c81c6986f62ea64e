package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/tradedesk/tradedesk/internal/extraction"
	"github.com/tradedesk/tradedesk/internal/extraction/gemini"
	"github.com/tradedesk/tradedesk/internal/forecast"
	"github.com/tradedesk/tradedesk/internal/intake"
	"github.com/tradedesk/tradedesk/internal/platform/cache"
	"github.com/tradedesk/tradedesk/internal/platform/db"
	"github.com/tradedesk/tradedesk/internal/shared"
	"github.com/tradedesk/tradedesk/internal/store"
	"github.com/tradedesk/tradedesk/internal/workflow"
)

// Components are the services shared by the API server and the worker.
type Components struct {
	Pool     *pgxpool.Pool
	Redis    *redis.Client
	Cache    *forecast.Cache
	Workflow *workflow.Service
	Forecast *forecast.Service
	Intake   *intake.Service

	closers []func()
}

// Close releases pools and clients in reverse order of creation.
func (c *Components) Close() {
	if c == nil {
		return
	}
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	c.closers = nil
}

// BuildComponents connects the configured store and Redis and wires the services.
// Redis is optional: without it forecasts are computed on every request and async
// extraction is unavailable.
func BuildComponents(ctx context.Context, cfg *Config, logger *slog.Logger) (*Components, error) {
	if cfg == nil {
		return nil, errors.New("app: config required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	vat, err := cfg.VATRate()
	if err != nil {
		return nil, err
	}

	c := &Components{}
	gw, audit, err := c.openStore(ctx, cfg, logger)
	if err != nil {
		c.Close()
		return nil, err
	}

	var invalidator workflow.Invalidator
	if rdb, err := cache.New(ctx, cfg.RedisAddr); err != nil {
		logger.Warn("redis unavailable, forecast cache disabled", slog.String("addr", cfg.RedisAddr), slog.Any("error", err))
	} else {
		c.Redis = rdb
		c.closers = append(c.closers, func() {
			if err := rdb.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		})
		c.Cache = forecast.NewCache(rdb, cfg.ForecastCacheTTL)
		invalidator = c.Cache
	}

	c.Workflow = workflow.NewService(gw, workflow.Defaults{
		Currency:          cfg.DefaultCurrency,
		VATRate:           vat,
		QuotationValidity: cfg.QuotationValidity,
	}, invalidator, audit, logger)

	c.Forecast = forecast.NewService(c.Workflow, c.Cache, forecast.Thresholds{
		MinOrders:      cfg.ForecastMinOrders,
		MinConsistency: cfg.ForecastMinConsistency,
	}, logger)

	extractor := gemini.NewClient(gemini.Config{
		APIKey:      cfg.GeminiAPIKey,
		BaseURL:     cfg.GeminiBaseURL,
		Model:       cfg.GeminiModel,
		Temperature: float32(cfg.GeminiTemperature),
		Timeout:     cfg.GeminiTimeout,
	}, logger)
	if cfg.GeminiAPIKey == "" {
		logger.Warn("GEMINI_API_KEY not set, extraction requests will fail")
	}
	c.Intake = intake.NewService(extractor, extraction.NewNormalizer(cfg.DefaultCurrency, vat), c.Workflow, logger)
	return c, nil
}

func (c *Components) openStore(ctx context.Context, cfg *Config, logger *slog.Logger) (store.Gateway, workflow.AuditPort, error) {
	if cfg.StoreDriver == StoreMemory {
		logger.Info("using in-memory store")
		return store.NewMemory(), shared.NewSlogAuditor(logger), nil
	}
	pool, err := db.New(ctx, cfg.PGDSN, db.PoolOptions{MaxConns: cfg.PGMaxConns})
	if err != nil {
		return nil, nil, fmt.Errorf("connect postgres: %w", err)
	}
	c.Pool = pool
	c.closers = append(c.closers, pool.Close)
	if cfg.PGMigrate {
		if err := db.Migrate(ctx, pool); err != nil {
			return nil, nil, fmt.Errorf("migrate: %w", err)
		}
	}
	return store.NewPostgres(pool), shared.NewAuditLogger(pool), nil
}
