package scrape

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestHashContentDeterministic(t *testing.T) {
	h1 := HashContent("hello world")
	h2 := HashContent("hello world")
	assert.Equal(t, h1, h2)
	assert.NotEqual(t, h1, HashContent("hello world!"))
}

type stubScraper struct {
	calls   int
	results []Document
	errs    []error
}

func (s *stubScraper) Name() string { return "stub" }

func (s *stubScraper) Scrape(ctx context.Context, url string) (Document, error) {
	i := s.calls
	s.calls++
	if i < len(s.errs) && s.errs[i] != nil {
		return Document{}, s.errs[i]
	}
	return s.results[i], nil
}

func (s *stubScraper) ScrapeAndHash(ctx context.Context, url string) (string, string, error) {
	return scrapeAndHash(ctx, s, url)
}

func TestWithRetrySucceedsAfterTransientFailure(t *testing.T) {
	stub := &stubScraper{
		errs:    []error{newError(KindNetwork, "u", "stub", "boom", nil), nil},
		results: []Document{{}, {URL: "u", Text: "ok", Hash: HashContent("ok")}},
	}
	retrying := WithRetry(stub, RetryConfig{AttemptBudget: 3, BaseDelay: time.Millisecond, BackoffFactor: 2, MaxDelay: time.Millisecond * 10}, zap.NewNop())

	doc, err := retrying.Scrape(context.Background(), "u")
	require.NoError(t, err)
	assert.Equal(t, "ok", doc.Text)
	assert.Equal(t, 2, stub.calls)
}

func TestWithRetryNeverRetriesEmpty(t *testing.T) {
	stub := &stubScraper{errs: []error{newError(KindEmpty, "u", "stub", "nothing here", nil)}}
	retrying := WithRetry(stub, RetryConfig{AttemptBudget: 3, BaseDelay: time.Millisecond, BackoffFactor: 2, MaxDelay: time.Millisecond * 10}, zap.NewNop())

	_, err := retrying.Scrape(context.Background(), "u")
	require.Error(t, err)
	assert.Equal(t, 1, stub.calls)

	var se *Error
	require.True(t, errors.As(err, &se))
	assert.Equal(t, KindEmpty, se.Kind)
}

func TestWithRetryExhaustsBudget(t *testing.T) {
	stub := &stubScraper{errs: []error{
		newError(KindNetwork, "u", "stub", "1", nil),
		newError(KindNetwork, "u", "stub", "2", nil),
		newError(KindNetwork, "u", "stub", "3", nil),
	}}
	retrying := WithRetry(stub, RetryConfig{AttemptBudget: 3, BaseDelay: time.Millisecond, BackoffFactor: 2, MaxDelay: time.Millisecond * 10}, zap.NewNop())

	_, err := retrying.Scrape(context.Background(), "u")
	require.Error(t, err)
	assert.Equal(t, 3, stub.calls)
}
