// Package metrics регистрирует счетчики prometheus для ядра защиты данных.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics объединяет счетчики ядра: исходы webhook-событий и сбои
// расшифровки полей.
type Metrics struct {
	// WebhookOutcome — исходы событий платежного шлюза: applied, noop, rejected.
	WebhookOutcome *prometheus.CounterVec

	// DecryptFailures — сбои расшифровки по имени поля. Рост счетчика —
	// сигнал о повреждении данных или чужом ключе.
	DecryptFailures *prometheus.CounterVec
}

// New создает и регистрирует все счетчики ядра.
func New() *Metrics {
	return &Metrics{
		WebhookOutcome: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "identity_guard_webhook_outcomes_total",
			Help: "Total subscription webhook events by outcome",
		}, []string{"outcome"}),

		DecryptFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "identity_guard_decrypt_failures_total",
			Help: "Total field decryption failures by field",
		}, []string{"field"}),
	}
}

// IncrementOutcome фиксирует исход webhook-события.
func (m *Metrics) IncrementOutcome(outcome string) {
	if m != nil {
		m.WebhookOutcome.WithLabelValues(outcome).Inc()
	}
}

// IncrementDecryptFailure фиксирует сбой расшифровки поля.
func (m *Metrics) IncrementDecryptFailure(field string) {
	if m != nil {
		m.DecryptFailures.WithLabelValues(field).Inc()
	}
}
