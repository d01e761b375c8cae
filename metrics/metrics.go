package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
)

const namespace = "lms"

// Metrics methods are safe to call on a nil receiver so collaborators can
// be built without instrumentation in tests.
type Metrics struct {
	gatherer  prometheus.Gatherer
	requests  *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	checkouts *prometheus.CounterVec
	revenue   *prometheus.CounterVec
	sideFx    *prometheus.CounterVec
}

func New(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		gatherer: reg,
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"route", "method", "status"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_ms",
			Help:      "HTTP request latency in milliseconds.",
			Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		}, []string{"route"}),
		checkouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "checkout",
			Name:      "attempts_total",
			Help:      "Checkout attempts by outcome.",
		}, []string{"outcome"}),
		revenue: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "checkout",
			Name:      "revenue_total",
			Help:      "Committed invoice totals.",
		}, []string{"currency"}),
		sideFx: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "checkout",
			Name:      "post_commit_failures_total",
			Help:      "Post-commit side effects that failed and were logged.",
		}, []string{"effect"}),
	}

	reg.MustRegister(m.requests, m.latency, m.checkouts, m.revenue, m.sideFx)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveRequest(route, method, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(route, method, status).Inc()
	m.latency.WithLabelValues(route).Observe(float64(d.Milliseconds()))
}

func (m *Metrics) CheckoutOutcome(outcome string) {
	if m == nil {
		return
	}
	m.checkouts.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Revenue(currency string, amount decimal.Decimal) {
	if m == nil {
		return
	}
	m.revenue.WithLabelValues(currency).Add(amount.InexactFloat64())
}

func (m *Metrics) PostCommitFailure(effect string) {
	if m == nil {
		return
	}
	m.sideFx.WithLabelValues(effect).Inc()
}

func (m *Metrics) Requests(route, method, status string) prometheus.Counter {
	return m.requests.WithLabelValues(route, method, status)
}

// Checkouts exposes the counter of one checkout outcome.
func (m *Metrics) Checkouts(outcome string) prometheus.Counter {
	return m.checkouts.WithLabelValues(outcome)
}

func (m *Metrics) PostCommitFailures(effect string) prometheus.Counter {
	return m.sideFx.WithLabelValues(effect)
}
