// Package metrics defines the Prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "dealer_loan"

// Metrics groups the engine's collectors
type Metrics struct {
	LoansOriginated    *prometheus.CounterVec
	StatusTransitions  *prometheus.CounterVec
	PaymentsProcessed  *prometheus.CounterVec
	PaymentAmount      *prometheus.CounterVec
	PenaltyAccrued     prometheus.Counter
	DelinquencyRuns    *prometheus.CounterVec
	DelinquencyLoans   *prometheus.CounterVec
	DelinquencyLatency prometheus.Histogram
	EventsPublished    *prometheus.CounterVec
	HTTPRequests       *prometheus.CounterVec
	HTTPLatency        *prometheus.HistogramVec
}

// New creates the collectors and registers them with reg
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		LoansOriginated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "loans_originated_total",
			Help:      "Loans created, by origin (application or restructure).",
		}, []string{"origin"}),
		StatusTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "status_transitions_total",
			Help:      "Loan status transitions.",
		}, []string{"from", "to"}),
		PaymentsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payments_total",
			Help:      "Payments by source and outcome.",
		}, []string{"source", "outcome"}),
		PaymentAmount: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_allocated_amount_total",
			Help:      "Allocated payment amounts by component.",
		}, []string{"component"}),
		PenaltyAccrued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "penalty_accrued_amount_total",
			Help:      "Penalty added by delinquency runs.",
		}),
		DelinquencyRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "delinquency_runs_total",
			Help:      "Delinquency passes by outcome.",
		}, []string{"outcome"}),
		DelinquencyLoans: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "delinquency_loans_total",
			Help:      "Loans visited by delinquency passes, by result.",
		}, []string{"result"}),
		DelinquencyLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "delinquency_run_duration_seconds",
			Help:      "Duration of a full delinquency pass.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
		EventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Lifecycle events handed to the sink, by type and outcome.",
		}, []string{"type", "outcome"}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status code.",
		}, []string{"method", "route", "code"}),
		HTTPLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	reg.MustRegister(
		m.LoansOriginated,
		m.StatusTransitions,
		m.PaymentsProcessed,
		m.PaymentAmount,
		m.PenaltyAccrued,
		m.DelinquencyRuns,
		m.DelinquencyLoans,
		m.DelinquencyLatency,
		m.EventsPublished,
		m.HTTPRequests,
		m.HTTPLatency,
	)
	return m
}

// NewNop returns collectors registered nowhere
func NewNop() *Metrics {
	return New(prometheus.NewRegistry())
}

// Handler serves the registry in the Prometheus exposition format
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
