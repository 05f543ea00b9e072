// Package metrics holds the service's prometheus collectors.
package metrics

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	LedgerOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_operations_total",
			Help: "Wallet ledger operations by operation and result",
		},
		[]string{"op", "result"},
	)

	StockOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stock_operations_total",
			Help: "Stock reservations and releases by result",
		},
		[]string{"op", "result"},
	)

	SagaRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "saga_runs_total",
			Help: "Saga executions by saga and result",
		},
		[]string{"saga", "result"},
	)

	SagaCompensations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "saga_compensations_total",
			Help: "Compensation steps run, by saga, step and result",
		},
		[]string{"saga", "step", "result"},
	)

	PaymentVerifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_verifications_total",
			Help: "Top-up verification attempts by result",
		},
		[]string{"result"},
	)

	PaymentsReclaimed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_reclaimed_total",
			Help: "Stale processing payments handled by the reclaimer, by outcome",
		},
		[]string{"outcome"},
	)

	ReferralCommissions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "referral_commissions_total",
			Help: "Referral commissions credited",
		},
	)

	NotificationsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "notifications_dropped_total",
			Help: "Notifications dropped because the dispatch queue was full",
		},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency by route and status",
			Buckets: []float64{.005, .01, .05, .1, .25, .5, 1, 2, 5},
		},
		[]string{"method", "route", "status"},
	)
)

// Result labels an operation outcome.
func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// Handler serves the default registry.
func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
