// Package middleware holds the HTTP middleware chain: request IDs, panic
// recovery, structured request logging, timeouts, client metadata capture and
// latency metrics. Authentication and role checks live in auth.go.
package middleware

import (
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/mssola/useragent"

	"sigej/internal/platform/metrics"
	"sigej/pkg/requestcontext"
)

// RequestID attaches a request ID to the context, honoring one supplied by a
// trusted proxy.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-Id")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", requestID)
		ctx := requestcontext.WithRequestID(r.Context(), requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Recovery turns panics into 500 responses instead of dropped connections.
func Recovery(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if recovered := recover(); recovered != nil {
					logger.ErrorContext(r.Context(), "panic en handler",
						"request_id", requestcontext.RequestID(r.Context()),
						"panic", recovered,
						"ruta", r.URL.Path,
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_, _ = w.Write([]byte(`{"error":"internal"}`))
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// ClientMetadata captures the client IP and a normalized user agent into the
// context; audit appends read them from there.
func ClientMetadata(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithClientMetadata(r.Context(), clientIP(r), resumenUserAgent(r.UserAgent()))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func clientIP(r *http.Request) string {
	// First hop of X-Forwarded-For when a proxy is in front.
	if reenviado := r.Header.Get("X-Forwarded-For"); reenviado != "" {
		primero, _, _ := strings.Cut(reenviado, ",")
		return strings.TrimSpace(primero)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// resumenUserAgent normalizes the raw header into "navegador/versión (so)" so
// the audit column stays readable and bounded.
func resumenUserAgent(crudo string) string {
	if crudo == "" {
		return ""
	}
	ua := useragent.New(crudo)
	navegador, version := ua.Browser()
	if navegador == "" {
		if len(crudo) > 120 {
			return crudo[:120]
		}
		return crudo
	}
	resumen := navegador + "/" + version
	if so := ua.OS(); so != "" {
		resumen += " (" + so + ")"
	}
	return resumen
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Logger emits one structured line per request.
func Logger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			grabador := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(grabador, r)
			logger.InfoContext(r.Context(), "request",
				"request_id", requestcontext.RequestID(r.Context()),
				"metodo", r.Method,
				"ruta", r.URL.Path,
				"estado", grabador.status,
				"duration_ms", time.Since(start).Milliseconds(),
			)
		})
	}
}

// Latency feeds the HTTP latency histogram, labeled by route pattern and
// status class.
func Latency(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			grabador := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(grabador, r)
			// The pattern is only resolved once routing ran, so read it after
			// the handler. Raw paths would mint one series per UUID.
			ruta := r.URL.Path
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				if patron := rctx.RoutePattern(); patron != "" {
					ruta = patron
				}
			}
			m.LatenciaHTTP.WithLabelValues(ruta, strconv.Itoa(grabador.status)).
				Observe(time.Since(start).Seconds())
		})
	}
}

// Timeout bounds handler execution through the request context.
func Timeout(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, `{"error":"timeout"}`)
	}
}
