package handler

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/segyhp/dealer-loan-engine/internal/metrics"
	"github.com/segyhp/dealer-loan-engine/pkg/response"

	"github.com/gorilla/mux"
)

// LoggingMiddleware logs each request and records its latency under the
// matched route template, so path parameters do not explode label cardinality
func LoggingMiddleware(log *slog.Logger, m *metrics.Metrics) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			recorder := response.NewRecorder(w)

			next.ServeHTTP(recorder, r)

			route := "unmatched"
			if current := mux.CurrentRoute(r); current != nil {
				if tmpl, err := current.GetPathTemplate(); err == nil {
					route = tmpl
				}
			}
			duration := time.Since(start)

			m.HTTPRequests.WithLabelValues(r.Method, route, strconv.Itoa(recorder.StatusCode)).Inc()
			m.HTTPLatency.WithLabelValues(r.Method, route).Observe(duration.Seconds())
			log.InfoContext(r.Context(), "http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", recorder.StatusCode,
				"duration", duration,
			)
		})
	}
}
