package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/WRLC/alma-item-checks-webhook-service/internal/port/secondary"
)

const checkTimeout = 5 * time.Second

// HealthHandler handles GET /health requests.
type HealthHandler struct {
	checks []secondary.HealthChecker
	logger *zap.Logger
}

// NewHealthHandler creates a health check handler. Nil checkers are
// skipped.
func NewHealthHandler(checks []secondary.HealthChecker, logger *zap.Logger) *HealthHandler {
	live := make([]secondary.HealthChecker, 0, len(checks))
	for _, c := range checks {
		if c != nil {
			live = append(live, c)
		}
	}
	return &HealthHandler{checks: live, logger: logger.Named("health")}
}

// ServeHTTP runs the dependency checks in parallel under one deadline and
// reports the aggregate status. Any failing check makes the service
// unhealthy. Failure details are logged, never returned to the caller.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
	defer cancel()

	var (
		mu      sync.Mutex
		healthy = true
		results = make(map[string]string, len(h.checks))
	)

	var g errgroup.Group
	for _, check := range h.checks {
		g.Go(func() error {
			err := check.Check(ctx)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				h.logger.Warn("dependency check failed", zap.String("check", check.Name()), zap.Error(err))
				healthy = false
				results[check.Name()] = "error"
			} else {
				results[check.Name()] = "ok"
			}
			return nil
		})
	}
	_ = g.Wait()

	resp := HealthResponse{Status: "healthy", Checks: results}
	status := http.StatusOK
	if !healthy {
		resp.Status = "unhealthy"
		status = http.StatusServiceUnavailable
	}

	respondJSON(w, status, resp)
}
