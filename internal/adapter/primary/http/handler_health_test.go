package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/WRLC/alma-item-checks-webhook-service/internal/port/secondary"
)

func TestHealthHandler_ServeHTTP(t *testing.T) {
	tests := []struct {
		name       string
		checks     []mockHealthCheck
		wantCode   int
		wantStatus string
		wantChecks map[string]string
	}{
		{
			name:       "no dependencies",
			wantCode:   http.StatusOK,
			wantStatus: "healthy",
			wantChecks: map[string]string{},
		},
		{
			name: "database and queue reachable",
			checks: []mockHealthCheck{
				{name: "database"},
				{name: "queue"},
			},
			wantCode:   http.StatusOK,
			wantStatus: "healthy",
			wantChecks: map[string]string{"database": "ok", "queue": "ok"},
		},
		{
			name: "cache down",
			checks: []mockHealthCheck{
				{name: "database"},
				{name: "blob"},
				{name: "cache", err: errors.New("dial tcp redis-prod.internal:6379: connection refused")},
			},
			wantCode:   http.StatusServiceUnavailable,
			wantStatus: "unhealthy",
			wantChecks: map[string]string{"database": "ok", "blob": "ok", "cache": "error"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var checks []healthCheckerAdapter
			for _, c := range tt.checks {
				checks = append(checks, healthCheckerAdapter{check: c})
			}

			rec := httptest.NewRecorder()
			NewHealthHandler(toHealthCheckers(checks), zap.NewNop()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

			var resp HealthResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantStatus, resp.Status)
			assert.Equal(t, tt.wantChecks, resp.Checks)
		})
	}
}

// blockingCheck waits for its context, like a check against an unreachable
// host.
type blockingCheck struct{ name string }

func (b blockingCheck) Name() string { return b.name }

func (b blockingCheck) Check(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestHealthHandler_checksShareRequestDeadline(t *testing.T) {
	handler := NewHealthHandler([]secondary.HealthChecker{
		blockingCheck{name: "queue"},
		blockingCheck{name: "blob"},
		healthCheckerAdapter{check: mockHealthCheck{name: "database"}},
	}, zap.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/health", nil).WithContext(ctx)
	rec := httptest.NewRecorder()

	start := time.Now()
	handler.ServeHTTP(rec, req)

	assert.Less(t, time.Since(start), time.Second, "blocking checks run in parallel under one deadline")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "error", resp.Checks["queue"])
	assert.Equal(t, "ok", resp.Checks["database"])
}

func TestNewHealthHandler_skipsNilCheckers(t *testing.T) {
	handler := NewHealthHandler([]secondary.HealthChecker{nil, healthCheckerAdapter{check: mockHealthCheck{name: "queue"}}}, zap.NewNop())

	assert.Len(t, handler.checks, 1)
}

func TestHealthHandler_logsFailureDetail(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	dsnErr := errors.New("dial tcp db.example.edu:3306: user=alma password=hunter2")
	handler := NewHealthHandler([]secondary.HealthChecker{
		healthCheckerAdapter{check: mockHealthCheck{name: "database", err: dsnErr}},
	}, zap.New(core))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.NotContains(t, rec.Body.String(), "db.example.edu")
	assert.NotContains(t, rec.Body.String(), "hunter2")

	entries := logs.FilterMessage("dependency check failed").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "database", entries[0].ContextMap()["check"])
	assert.Equal(t, dsnErr.Error(), entries[0].ContextMap()["error"])
}
