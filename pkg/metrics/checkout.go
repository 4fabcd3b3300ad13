package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CheckoutMetrics records outcome counters for the payment protocol.
type CheckoutMetrics struct {
	attempts  *prometheus.CounterVec
	completed prometheus.Counter
	declined  prometheus.Counter
	failed    *prometheus.CounterVec
	duration  prometheus.Histogram
}

// NewCheckoutMetrics registers the checkout metrics on the provided registerer.
func NewCheckoutMetrics(reg prometheus.Registerer) *CheckoutMetrics {
	if reg == nil {
		return &CheckoutMetrics{}
	}
	attempts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_attempts_total",
		Help: "Checkout orchestrations started, by payment method.",
	}, []string{"method"})
	completed := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "checkout_completed_total",
		Help: "Orders committed by the commerce backend.",
	})
	declined := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "checkout_payment_declined_total",
		Help: "Payment collections declined by the provider.",
	})
	failed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_failed_total",
		Help: "Checkouts failed after collection started, by phase.",
	}, []string{"phase"})
	duration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "checkout_duration_seconds",
		Help:    "End-to-end checkout orchestration duration.",
		Buckets: prometheus.DefBuckets,
	})
	reg.MustRegister(attempts, completed, declined, failed, duration)
	return &CheckoutMetrics{
		attempts:  attempts,
		completed: completed,
		declined:  declined,
		failed:    failed,
		duration:  duration,
	}
}

// IncAttempt records a checkout start for the given payment method.
func (m *CheckoutMetrics) IncAttempt(method string) {
	if m == nil || m.attempts == nil {
		return
	}
	if method == "" {
		method = "unknown"
	}
	m.attempts.WithLabelValues(method).Inc()
}

// IncCompleted records a committed order.
func (m *CheckoutMetrics) IncCompleted() {
	if m == nil || m.completed == nil {
		return
	}
	m.completed.Inc()
}

// IncDeclined records a provider-side decline.
func (m *CheckoutMetrics) IncDeclined() {
	if m == nil || m.declined == nil {
		return
	}
	m.declined.Inc()
}

// IncFailed records a failure in the named protocol phase.
func (m *CheckoutMetrics) IncFailed(phase string) {
	if m == nil || m.failed == nil {
		return
	}
	if phase == "" {
		phase = "unknown"
	}
	m.failed.WithLabelValues(phase).Inc()
}

// ObserveDuration records the orchestration duration.
func (m *CheckoutMetrics) ObserveDuration(d time.Duration) {
	if m == nil || m.duration == nil {
		return
	}
	m.duration.Observe(d.Seconds())
}
