package httpapi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/sentinelkg/sentinel/internal/orchestrator"
)

type fakeGraphHealth struct {
	err error
}

func (f *fakeGraphHealth) HealthCheck(ctx context.Context) error { return f.err }

func TestHealthCheck(t *testing.T) {
	ac := &AppContext{Logger: zap.NewNop()}
	router := NewRouter(ac)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")
	assert.Contains(t, rec.Body.String(), `"agent_status":"stopped"`)
}

func TestHealthCheckReportsStoppedAgentBeforeLoopStarts(t *testing.T) {
	status := orchestrator.NewStatus()
	ac := &AppContext{Logger: zap.NewNop(), Status: status}
	router := NewRouter(ac)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"agent_status":"stopped"`)
}

func TestHealthCheckReturns503OnStoreFailure(t *testing.T) {
	ac := &AppContext{Logger: zap.NewNop(), Graph: &fakeGraphHealth{err: errors.New("connection refused")}}
	router := NewRouter(ac)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "unhealthy")
}

func TestIngestRequiresURL(t *testing.T) {
	ac := &AppContext{Logger: zap.NewNop()}
	router := NewRouter(ac)

	req := httptest.NewRequest(http.MethodPost, "/ingest", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestQueryRequiresQuestion(t *testing.T) {
	ac := &AppContext{Logger: zap.NewNop()}
	router := NewRouter(ac)

	req := httptest.NewRequest(http.MethodPost, "/query", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
