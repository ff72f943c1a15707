package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CheckoutMetrics tracks order conversion outcomes and stock pressure.
type CheckoutMetrics struct {
	ordersCreated     prometheus.Counter
	checkoutFailures  *prometheus.CounterVec
	checkoutDuration  prometheus.Histogram
	insufficientStock prometheus.Counter
}

// NewCheckoutMetrics registers the checkout metrics on the provided registerer.
func NewCheckoutMetrics(reg prometheus.Registerer) *CheckoutMetrics {
	if reg == nil {
		return &CheckoutMetrics{}
	}
	ordersCreated := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "orders_created_total",
		Help: "Orders successfully created from carts.",
	})
	checkoutFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_failures_total",
		Help: "Checkout attempts rejected, by reason.",
	}, []string{"reason"})
	checkoutDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "checkout_duration_seconds",
		Help:    "Duration of cart to order conversion in seconds.",
		Buckets: prometheus.DefBuckets,
	})
	insufficientStock := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "insufficient_stock_total",
		Help: "Stock operations rejected for lack of sellable quantity.",
	})
	reg.MustRegister(ordersCreated, checkoutFailures, checkoutDuration, insufficientStock)
	return &CheckoutMetrics{
		ordersCreated:     ordersCreated,
		checkoutFailures:  checkoutFailures,
		checkoutDuration:  checkoutDuration,
		insufficientStock: insufficientStock,
	}
}

// IncOrdersCreated counts a successful conversion.
func (c *CheckoutMetrics) IncOrdersCreated() {
	if c == nil || c.ordersCreated == nil {
		return
	}
	c.ordersCreated.Inc()
}

// IncCheckoutFailure counts a rejected conversion by reason.
func (c *CheckoutMetrics) IncCheckoutFailure(reason string) {
	if c == nil || c.checkoutFailures == nil {
		return
	}
	if reason == "" {
		reason = "unknown"
	}
	c.checkoutFailures.WithLabelValues(reason).Inc()
}

// ObserveCheckoutDuration records the conversion latency.
func (c *CheckoutMetrics) ObserveCheckoutDuration(duration time.Duration) {
	if c == nil || c.checkoutDuration == nil {
		return
	}
	c.checkoutDuration.Observe(duration.Seconds())
}

// IncInsufficientStock counts a stock rejection.
func (c *CheckoutMetrics) IncInsufficientStock() {
	if c == nil || c.insufficientStock == nil {
		return
	}
	c.insufficientStock.Inc()
}
