package handler

import (
	"log/slog"
	"net/http"

	"github.com/segyhp/dealer-loan-engine/internal/metrics"
	"github.com/segyhp/dealer-loan-engine/pkg/response"

	"github.com/gorilla/mux"
)

// NewRouter wires health, metrics and the versioned API
func NewRouter(loans *LoanHandler, health *HealthHandler, metricsHandler http.Handler, log *slog.Logger, m *metrics.Metrics) *mux.Router {
	router := mux.NewRouter()
	router.Use(response.CORSMiddleware, LoggingMiddleware(log, m))

	router.HandleFunc("/health", health.Health).Methods(http.MethodGet)
	router.HandleFunc("/health/ready", health.Ready).Methods(http.MethodGet)
	if metricsHandler != nil {
		router.Handle("/metrics", metricsHandler).Methods(http.MethodGet)
	}

	api := router.PathPrefix("/api/v1").Subrouter()
	loans.Register(api)

	return router
}
