package scrape

import (
	"time"

	"go.uber.org/zap"
)

// Config mirrors the config package's scraper settings without importing
// it, keeping internal/scrape a leaf package.
type Config struct {
	APIKey        string
	AttemptBudget int
	BaseDelay     time.Duration
	BackoffFactor float64
	MaxDelay      time.Duration
	MinVendorGap  time.Duration
}

// New selects the premium provider when an API key is configured, and
// falls back to the local goquery-based provider otherwise, logging the
// choice once at startup.
func New(cfg Config, logger *zap.Logger) Scraper {
	var inner Scraper
	if cfg.APIKey != "" {
		inner = newPremiumScraper(cfg.APIKey, cfg.MinVendorGap, logger)
		logger.Info("scrape provider selected", zap.String("provider", inner.Name()))
	} else {
		inner = newLocalScraper()
		logger.Info("scrape provider selected", zap.String("provider", inner.Name()), zap.String("reason", "no SCRAPER_API_KEY set"))
	}

	return WithRetry(inner, RetryConfig{
		AttemptBudget: cfg.AttemptBudget,
		BaseDelay:     cfg.BaseDelay,
		BackoffFactor: cfg.BackoffFactor,
		MaxDelay:      cfg.MaxDelay,
	}, logger)
}
