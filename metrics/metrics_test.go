package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
)

func TestCounters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveRequest("/cart", "GET", "200", 3*time.Millisecond)
	m.ObserveRequest("/cart", "GET", "200", 5*time.Millisecond)
	m.CheckoutOutcome("completed")
	m.Revenue("USD", decimal.RequireFromString("300000"))
	m.PostCommitFailure("receipt")

	if got := testutil.ToFloat64(m.requests.WithLabelValues("/cart", "GET", "200")); got != 2 {
		t.Fatalf("expected 2 requests, got %v", got)
	}
	if got := testutil.ToFloat64(m.checkouts.WithLabelValues("completed")); got != 1 {
		t.Fatalf("expected 1 completed checkout, got %v", got)
	}
	if got := testutil.ToFloat64(m.revenue.WithLabelValues("USD")); got != 300000 {
		t.Fatalf("expected revenue 300000, got %v", got)
	}
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	m.ObserveRequest("/", "GET", "200", time.Millisecond)
	m.CheckoutOutcome("failed")
	m.Revenue("USD", decimal.NewFromInt(1))
	m.PostCommitFailure("cart")
}
