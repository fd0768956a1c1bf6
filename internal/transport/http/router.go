// Package http wires the feature handlers, platform middleware and ops
// endpoints into the chi router.
package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"waypost/internal/platform/metrics"
	"waypost/internal/platform/middleware"
	"waypost/internal/transport/http/shared"
)

const requestTimeout = 15 * time.Second

// Registrar mounts a feature's routes on the router.
type Registrar interface {
	Register(r chi.Router)
}

// HealthChecker reports readiness of one dependency.
type HealthChecker func(ctx context.Context) error

// Options collects router dependencies.
type Options struct {
	Logger   *slog.Logger
	Metrics  *metrics.Metrics
	Features []Registrar
	Health   map[string]HealthChecker
}

// NewRouter assembles the full middleware chain and mounts every feature
// plus the ops endpoints.
func NewRouter(opts Options) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RequestTime)
	r.Use(middleware.Recovery(opts.Logger))
	r.Use(middleware.Logger(opts.Logger))
	r.Use(middleware.Timeout(requestTimeout))
	r.Use(middleware.ContentTypeJSON)
	r.Use(middleware.ClientInfo)
	r.Use(middleware.Latency(opts.Metrics))

	r.Get("/healthz", healthHandler(opts.Health))
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	for _, feature := range opts.Features {
		feature.Register(r)
	}
	return r
}

func healthHandler(checks map[string]HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := http.StatusOK
		detail := make(map[string]string, len(checks))
		for name, check := range checks {
			if err := check(r.Context()); err != nil {
				status = http.StatusServiceUnavailable
				detail[name] = err.Error()
				continue
			}
			detail[name] = "ok"
		}
		shared.WriteJSON(w, status, map[string]any{
			"status": http.StatusText(status),
			"checks": detail,
		})
	}
}
