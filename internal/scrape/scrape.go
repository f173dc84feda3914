// Package scrape fetches a source URL's current content. It never
// panics: every provider failure becomes a typed *Error (kind empty,
// vendor_error, network or rate_limited) so the orchestrator's state
// machine can classify and log it. The retry wrapper returns the
// context's own error when ctx is cancelled between attempts.
package scrape

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Document is the result of a successful scrape.
type Document struct {
	URL     string
	Text    string
	Hash    string
	Vendor  string
}

// Scraper fetches and normalizes a URL's textual content.
type Scraper interface {
	Scrape(ctx context.Context, url string) (Document, error)
	ScrapeAndHash(ctx context.Context, url string) (content, hash string, err error)
	Name() string
}

// scrapeAndHash is the shared ScrapeAndHash body: scrape, then hand back
// the text alongside its content hash for the orchestrator's
// unchanged-detection path.
func scrapeAndHash(ctx context.Context, s Scraper, url string) (string, string, error) {
	doc, err := s.Scrape(ctx, url)
	if err != nil {
		return "", "", err
	}
	return doc.Text, doc.Hash, nil
}

// ErrorKind classifies why a scrape failed.
type ErrorKind string

const (
	KindEmpty       ErrorKind = "empty"
	KindVendorError ErrorKind = "vendor_error"
	KindNetwork     ErrorKind = "network"
	KindRateLimited ErrorKind = "rate_limited"
)

// Error is the typed error every Scraper returns on failure, following
// the same struct+Unwrap+constructor style as internal/orchestrator/errors.go.
type Error struct {
	Kind    ErrorKind
	URL     string
	Vendor  string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("scrape: %s (%s, vendor=%s): %s: %v", e.Kind, e.URL, e.Vendor, e.Message, e.Cause)
	}
	return fmt.Sprintf("scrape: %s (%s, vendor=%s): %s", e.Kind, e.URL, e.Vendor, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

func newError(kind ErrorKind, url, vendor, message string, cause error) *Error {
	return &Error{Kind: kind, URL: url, Vendor: vendor, Message: message, Cause: cause}
}

// HashContent computes the content hash used for change detection:
// plain SHA-256 over the normalized text, distinct from the edge
// content hash in internal/store.
func HashContent(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
