// Package metrics holds the Prometheus collectors of the marketplace API.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "coffee_market"

// Metrics groups the collectors registered on one registry.
type Metrics struct {
	Registry *prometheus.Registry

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	purchases        *prometheus.CounterVec
	purchaseRetries  prometheus.Counter
	unitsSold        prometheus.Counter
	authVerification *prometheus.CounterVec
	noncesIssued     *prometheus.CounterVec
}

// New creates the collectors and registers them on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests handled.",
			},
			[]string{"method", "route", "status"},
		),
		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "Duration of HTTP requests.",
				Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
			},
			[]string{"method", "route"},
		),
		purchases: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "ledger",
				Name:      "purchases_total",
				Help:      "Purchase attempts by outcome.",
			},
			[]string{"outcome"},
		),
		purchaseRetries: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "ledger",
				Name:      "purchase_conflict_retries_total",
				Help:      "Purchase units of work retried after a stock conflict.",
			},
		),
		unitsSold: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "ledger",
				Name:      "units_sold_total",
				Help:      "Units removed from stock by committed purchases.",
			},
		),
		authVerification: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "auth",
				Name:      "verifications_total",
				Help:      "Wallet signature verifications by outcome.",
			},
			[]string{"outcome"},
		),
		noncesIssued: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "auth",
				Name:      "nonces_issued_total",
				Help:      "Nonce requests, split by whether a new wallet was registered.",
			},
			[]string{"new_wallet"},
		),
	}

	m.Registry.MustRegister(
		m.httpRequests,
		m.httpDuration,
		m.purchases,
		m.purchaseRetries,
		m.unitsSold,
		m.authVerification,
		m.noncesIssued,
	)

	return m
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// ObserveHTTP records one handled request.
func (m *Metrics) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// ObservePurchase records the outcome of a purchase and, on success, the units sold.
func (m *Metrics) ObservePurchase(outcome string, units int) {
	if m == nil {
		return
	}
	m.purchases.WithLabelValues(outcome).Inc()
	if outcome == OutcomeSuccess {
		m.unitsSold.Add(float64(units))
	}
}

// ObservePurchaseRetry records one conflict retry.
func (m *Metrics) ObservePurchaseRetry() {
	if m == nil {
		return
	}
	m.purchaseRetries.Inc()
}

// ObserveVerification records the outcome of a signature verification.
func (m *Metrics) ObserveVerification(outcome string) {
	if m == nil {
		return
	}
	m.authVerification.WithLabelValues(outcome).Inc()
}

// ObserveNonce records a nonce request.
func (m *Metrics) ObserveNonce(newWallet bool) {
	if m == nil {
		return
	}
	m.noncesIssued.WithLabelValues(strconv.FormatBool(newWallet)).Inc()
}

// Outcome labels shared by the ledger and auth collectors.
const (
	OutcomeSuccess  = "success"
	OutcomeRejected = "rejected"
	OutcomeConflict = "conflict"
	OutcomeError    = "error"
)
