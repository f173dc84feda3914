package scrape

import (
	"context"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// localScraper is the credential-free fallback provider: plain HTTP GET
// plus goquery HTML-to-text extraction, used when no premium API key
// is configured.
type localScraper struct {
	client *http.Client
}

func newLocalScraper() *localScraper {
	return &localScraper{client: &http.Client{}}
}

func (l *localScraper) Name() string { return "local" }

func (l *localScraper) ScrapeAndHash(ctx context.Context, url string) (string, string, error) {
	return scrapeAndHash(ctx, l, url)
}

func (l *localScraper) Scrape(ctx context.Context, url string) (Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Document{}, newError(KindNetwork, url, l.Name(), "build request", err)
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return Document{}, newError(KindNetwork, url, l.Name(), "http request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return Document{}, newError(KindRateLimited, url, l.Name(), "http 429", nil)
	}
	if resp.StatusCode >= 500 {
		return Document{}, newError(KindVendorError, url, l.Name(), resp.Status, nil)
	}
	if resp.StatusCode >= 400 {
		return Document{}, newError(KindVendorError, url, l.Name(), resp.Status, nil)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return Document{}, newError(KindVendorError, url, l.Name(), "parse html", err)
	}

	doc.Find("script, style, nav, footer").Remove()
	text := strings.TrimSpace(collapseWhitespace(doc.Find("body").Text()))
	if text == "" {
		return Document{}, newError(KindEmpty, url, l.Name(), "no extractable text", nil)
	}

	return Document{URL: url, Text: text, Hash: HashContent(text), Vendor: l.Name()}, nil
}

func collapseWhitespace(s string) string {
	fields := strings.Fields(s)
	return strings.Join(fields, " ")
}
