// Package httptransport assembles the HTTP surface: the middleware chain, the
// authenticated API routes and the operational endpoints.
package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	audithandler "sigej/internal/audit/handler"
	decisionhandler "sigej/internal/decision/handler"
	"sigej/internal/platform/metrics"
	"sigej/internal/platform/middleware"
)

// Dependencies collects what the router mounts.
type Dependencies struct {
	Logger       *slog.Logger
	Metrics      *metrics.Metrics
	JWTValidator middleware.JWTValidator
	Decisiones   *decisionhandler.Handler
	Auditoria    *audithandler.Handler
	// Health reports readiness of the backing stores; nil means always ready.
	Health func() error
}

// NewRouter wires the middleware chain and mounts every endpoint.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.ClientMetadata)
	r.Use(middleware.Logger(deps.Logger))
	if deps.Metrics != nil {
		r.Use(middleware.Latency(deps.Metrics))
	}

	r.Get("/salud", func(w http.ResponseWriter, req *http.Request) {
		if deps.Health != nil {
			if err := deps.Health(); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Group(func(api chi.Router) {
		api.Use(middleware.Timeout(30 * time.Second))
		api.Use(middleware.RequireAuth(deps.JWTValidator, deps.Logger))
		deps.Decisiones.Register(api)
		deps.Auditoria.Register(api)
	})

	return r
}
