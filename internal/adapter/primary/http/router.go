package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/WRLC/alma-item-checks-webhook-service/internal/port/primary"
	"github.com/WRLC/alma-item-checks-webhook-service/internal/port/secondary"
)

// NewRouter creates a chi router with all application routes registered.
func NewRouter(
	webhookService primary.WebhookService,
	healthChecks []secondary.HealthChecker,
	maxBodyBytes int64,
	logger *zap.Logger,
) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(logger.Named("http")))
	r.Use(middleware.Recoverer)

	webhook := NewWebhookHandler(webhookService, maxBodyBytes, logger)
	for _, path := range []string{"/scfwebhook", "/api/scfwebhook"} {
		r.Get(path, webhook.Challenge)
		r.Post(path, webhook.Receive)
	}

	r.Method(http.MethodGet, "/health", NewHealthHandler(healthChecks, logger))

	return r
}

// requestLogger logs one line per request. Bodies and query strings are
// never logged.
func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			logger.Info("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
				zap.String("remote_addr", r.RemoteAddr),
			)
		})
	}
}
