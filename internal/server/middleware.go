package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/skalra/auros/internal/metrics"
)

// requireAPIKey rejects requests without the configured key. Auth is
// disabled when no key is configured. The metrics endpoint stays behind
// the same key as everything else.
func (s *Server) requireAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.APIKey != "" && r.Header.Get("X-API-Key") != s.cfg.APIKey {
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// metricsMiddleware records request count, latency, and in-progress gauge.
// The path label uses the chi route pattern, not the raw URL, to bound
// cardinality.
func (s *Server) metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		metrics.HTTPInProgress.Inc()
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		defer func() {
			path := chi.RouteContext(r.Context()).RoutePattern()
			if path == "" {
				path = "unknown"
			}
			metrics.HTTPRequests.WithLabelValues(r.Method, path, strconv.Itoa(ww.Status())).Inc()
			metrics.HTTPDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
			metrics.HTTPInProgress.Dec()
		}()

		next.ServeHTTP(ww, r)
	})
}
