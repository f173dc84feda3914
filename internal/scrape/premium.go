package scrape

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// premiumScraper calls a hosted scrape API (the kind fronted by services
// like ScraperAPI/Scrapingbee) through a circuit breaker so a vendor
// outage fails fast instead of exhausting every caller's retry budget.
type premiumScraper struct {
	apiKey  string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
	limiter *rate.Limiter
}

const premiumEndpoint = "https://api.scrape.example/v1/extract"

func newPremiumScraper(apiKey string, minVendorGap time.Duration, logger *zap.Logger) *premiumScraper {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "premium-scraper",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("scrape circuit breaker state change",
				zap.String("breaker", name), zap.String("from", from.String()), zap.String("to", to.String()))
		},
	})
	return &premiumScraper{
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 20 * time.Second},
		breaker: cb,
		limiter: rate.NewLimiter(rate.Every(minVendorGap), 1),
	}
}

func (p *premiumScraper) Name() string { return "premium" }

func (p *premiumScraper) ScrapeAndHash(ctx context.Context, url string) (string, string, error) {
	return scrapeAndHash(ctx, p, url)
}

type premiumResponse struct {
	Text string `json:"text"`
}

func (p *premiumScraper) Scrape(ctx context.Context, url string) (Document, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return Document{}, newError(KindRateLimited, url, p.Name(), "local rate limit wait", err)
	}

	result, err := p.breaker.Execute(func() (any, error) {
		return p.call(ctx, url)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return Document{}, newError(KindVendorError, url, p.Name(), "circuit open", err)
		}
		var se *Error
		if errors.As(err, &se) {
			return Document{}, se
		}
		return Document{}, newError(KindNetwork, url, p.Name(), "request failed", err)
	}

	text := result.(string)
	if text == "" {
		return Document{}, newError(KindEmpty, url, p.Name(), "no extractable text", nil)
	}
	return Document{URL: url, Text: text, Hash: HashContent(text), Vendor: p.Name()}, nil
}

func (p *premiumScraper) call(ctx context.Context, url string) (string, error) {
	body, _ := json.Marshal(map[string]string{"url": url})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, premiumEndpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return "", newError(KindRateLimited, url, p.Name(), "vendor 429", nil)
	}
	if resp.StatusCode >= 500 {
		return "", fmt.Errorf("vendor %s", resp.Status)
	}
	if resp.StatusCode >= 400 {
		return "", newError(KindVendorError, url, p.Name(), resp.Status, nil)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	var pr premiumResponse
	if err := json.Unmarshal(raw, &pr); err != nil {
		return "", newError(KindVendorError, url, p.Name(), "malformed response", err)
	}
	return pr.Text, nil
}
