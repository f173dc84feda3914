package scrape

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// RetryConfig controls the exponential backoff applied around a single
// vendor call (default 3 attempts, base 1s, factor 2, cap 30s).
type RetryConfig struct {
	AttemptBudget int
	BaseDelay     time.Duration
	BackoffFactor float64
	MaxDelay      time.Duration
}

// WithRetry wraps a Scraper so transient failures (network, rate_limited,
// vendor_error) are retried with exponential backoff; KindEmpty is a
// content classification, not a transient fault, and is never retried.
func WithRetry(s Scraper, cfg RetryConfig, logger *zap.Logger) Scraper {
	return &retrying{inner: s, cfg: cfg, logger: logger}
}

type retrying struct {
	inner  Scraper
	cfg    RetryConfig
	logger *zap.Logger
}

func (r *retrying) Name() string { return r.inner.Name() }

func (r *retrying) ScrapeAndHash(ctx context.Context, url string) (string, string, error) {
	return scrapeAndHash(ctx, r, url)
}

func (r *retrying) Scrape(ctx context.Context, url string) (Document, error) {
	delay := r.cfg.BaseDelay
	var lastErr error

	for attempt := 1; attempt <= r.cfg.AttemptBudget; attempt++ {
		doc, err := r.inner.Scrape(ctx, url)
		if err == nil {
			return doc, nil
		}
		lastErr = err

		var se *Error
		if as, ok := err.(*Error); ok {
			se = as
		}
		if se != nil && se.Kind == KindEmpty {
			return Document{}, err
		}

		if attempt == r.cfg.AttemptBudget {
			break
		}

		r.logger.Warn("scrape attempt failed, retrying",
			zap.String("url", url), zap.Int("attempt", attempt), zap.Error(err))

		select {
		case <-ctx.Done():
			return Document{}, ctx.Err()
		case <-time.After(delay):
		}

		next := time.Duration(float64(delay) * r.cfg.BackoffFactor)
		if next > r.cfg.MaxDelay {
			next = r.cfg.MaxDelay
		}
		delay = next
	}

	return Document{}, lastErr
}
