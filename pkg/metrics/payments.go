package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// PaymentMetrics counts payment verification outcomes and order transitions.
type PaymentMetrics struct {
	verifications *prometheus.CounterVec
	transitions   *prometheus.CounterVec
}

// NewPaymentMetrics registers the payment metrics on the provided registerer.
func NewPaymentMetrics(reg prometheus.Registerer) *PaymentMetrics {
	if reg == nil {
		return &PaymentMetrics{}
	}
	verifications := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_verifications_total",
		Help: "Payment verification attempts by method and outcome.",
	}, []string{"method", "outcome"})
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "order_transitions_total",
		Help: "Order status transitions by target status.",
	}, []string{"status"})
	reg.MustRegister(verifications, transitions)
	return &PaymentMetrics{
		verifications: verifications,
		transitions:   transitions,
	}
}

// ObserveVerification records one verification attempt.
func (m *PaymentMetrics) ObserveVerification(method, outcome string) {
	if m == nil || m.verifications == nil {
		return
	}
	m.verifications.WithLabelValues(normalizeLabel(method), normalizeLabel(outcome)).Inc()
}

// ObserveTransition records one order status transition.
func (m *PaymentMetrics) ObserveTransition(status string) {
	if m == nil || m.transitions == nil {
		return
	}
	m.transitions.WithLabelValues(normalizeLabel(status)).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
