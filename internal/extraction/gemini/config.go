package gemini

import (
	"log/slog"
	"net/http"
	"time"
)

// Config for the Gemini client.
type Config struct {
	APIKey      string
	BaseURL     string        // default https://generativelanguage.googleapis.com/v1beta
	Model       string        // e.g. "gemini-2.0-flash"
	Temperature float32       // 0..2
	Timeout     time.Duration // http client timeout
}

// Client calls the generateContent endpoint with inline document bytes.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *slog.Logger
}

// NewClient applies defaults and builds a client.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-2.0-flash"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}
