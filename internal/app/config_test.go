package app

import (
	"bytes"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.AppAddr)
	assert.Equal(t, StorePostgres, cfg.StoreDriver)
	assert.Equal(t, "AED", cfg.DefaultCurrency)
	assert.Equal(t, 3, cfg.ForecastMinOrders)

	rate, err := cfg.VATRate()
	require.NoError(t, err)
	assert.True(t, rate.Equal(decimal.NewFromInt(5)))
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("STORE_DRIVER", " Memory ")
	t.Setenv("DEFAULT_CURRENCY", "usd")
	t.Setenv("DEFAULT_VAT_RATE", "7.5")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, StoreMemory, cfg.StoreDriver)
	assert.Equal(t, "USD", cfg.DefaultCurrency)
	rate, err := cfg.VATRate()
	require.NoError(t, err)
	assert.Equal(t, "7.5", rate.String())
}

func TestLoadConfigRejectsBadValues(t *testing.T) {
	tests := map[string][2]string{
		"driver":      {"STORE_DRIVER", "sqlite"},
		"currency":    {"DEFAULT_CURRENCY", "dollars"},
		"vat":         {"DEFAULT_VAT_RATE", "-1"},
		"min orders":  {"FORECAST_MIN_ORDERS", "0"},
		"consistency": {"FORECAST_MIN_CONSISTENCY", "1.5"},
	}
	for name, env := range tests {
		t.Run(name, func(t *testing.T) {
			t.Setenv(env[0], env[1])
			_, err := LoadConfig()
			assert.Error(t, err)
		})
	}
}

func TestNewLoggerFormats(t *testing.T) {
	var buf bytes.Buffer
	newLogger(&Config{LogFormat: "json", AppEnv: "production"}, &buf).Info("hello")
	assert.Contains(t, buf.String(), `"msg":"hello"`)

	buf.Reset()
	logger := newLogger(&Config{LogFormat: "pretty", AppEnv: "production"}, &buf)
	logger.Debug("hidden")
	logger.Info("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "msg=shown")
}

func TestRefreshTestMode(t *testing.T) {
	t.Setenv(testModeEnv, "1")
	RefreshTestMode()
	assert.True(t, InTestMode())

	t.Setenv(testModeEnv, "")
	RefreshTestMode()
	assert.False(t, InTestMode())
}
